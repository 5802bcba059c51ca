package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/core/service"
)

const (
	DeviceHeader = "X-Device-ID"
	DeviceCookie = "liora_device"

	deviceCookieMaxAge = 30 * 24 * time.Hour
)

type ctxKey int

const visitorKey ctxKey = iota

func visitorFrom(ctx context.Context) *service.Visitor {
	v, _ := ctx.Value(visitorKey).(*service.Visitor)
	return v
}

// deviceID reads the device from the header, then the cookie. Anything
// that is not a uuid is replaced by a fresh one.
func deviceID(r *http.Request) (string, bool) {
	if id := r.Header.Get(DeviceHeader); id != "" {
		if _, err := uuid.Parse(id); err == nil {
			return id, false
		}
	}
	if c, err := r.Cookie(DeviceCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value, false
		}
	}
	return uuid.NewString(), true
}

// withVisitor attaches the device's visitor to the request, issuing a
// device cookie on first contact.
func (h *HTTPHandler) withVisitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, fresh := deviceID(r)
		if fresh {
			http.SetCookie(w, &http.Cookie{
				Name:     DeviceCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(deviceCookieMaxAge.Seconds()),
				HttpOnly: true,
				Secure:   h.opts.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}
		w.Header().Set(DeviceHeader, id)

		v, err := h.visitors.Get(r.Context(), id)
		if err != nil {
			h.respondServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), visitorKey, v)))
	})
}

func (h *HTTPHandler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := visitorFrom(r.Context()).Gate.Current(); !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized", "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// signedIn returns the visitor's profile. A session can end between the
// auth check and the handler, so it is checked again here.
func signedIn(w http.ResponseWriter, r *http.Request) (*domain.Profile, bool) {
	owner := visitorFrom(r.Context()).Owner()
	if owner == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "sign in required")
		return nil, false
	}
	return owner, true
}

func (h *HTTPHandler) requirePrivileged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gate := visitorFrom(r.Context()).Gate
		if _, ok := gate.Current(); !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized", "sign in required")
			return
		}
		if !gate.IsPrivileged() {
			respondError(w, http.StatusForbidden, "forbidden", "staff access only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *HTTPHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.log.Debug("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (h *HTTPHandler) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.opts.MaxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
