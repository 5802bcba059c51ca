package backend

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/rl1809/liora-bloom/internal/port"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = port.ErrBackendUnavailable

type Options struct {
	BaseURL string
	AnonKey string
	Timeout time.Duration
}

// APIError is a non-2xx answer from the hosted backend.
type APIError = port.BackendError

// errorBody covers the shapes the auth and storage APIs answer with.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (b *errorBody) text() string {
	for _, s := range []string{b.ErrorDescription, b.Msg, b.Message, b.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Client is the shared connection to the hosted identity and storage
// backend. Per-device sessions are created with Auth.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	baseURL string
	log     *zap.Logger
}

func NewClient(opts Options, log *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")
	if opts.AnonKey != "" {
		httpClient.SetHeader("apikey", opts.AnonKey)
	}

	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || (errors.As(err, &apiErr) && apiErr.Rejected())
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		http:    httpClient,
		breaker: breaker,
		baseURL: opts.BaseURL,
		log:     log,
	}
}

// do sends req through the breaker and turns error statuses into APIError.
func (c *Client) do(req *resty.Request, method, path string) (*resty.Response, error) {
	resp, err := c.breaker.Execute(func() (*resty.Response, error) {
		req.SetError(&errorBody{})
		resp, err := req.Execute(method, path)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		if resp.IsError() {
			return resp, apiError(resp)
		}
		return resp, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrUnavailable
	}
	return resp, err
}

func apiError(resp *resty.Response) *APIError {
	msg := ""
	if body, ok := resp.Error().(*errorBody); ok && body != nil {
		msg = body.text()
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode())
	}
	return &APIError{Status: resp.StatusCode(), Message: msg}
}
