package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/port"
)

// SessionStorageKey is the local store key holding the persisted session.
const SessionStorageKey = "liora_blooms_session"

type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	User         *authUser `json:"user"`
}

// signupResponse is a bare user, or a session wrapping one when email
// confirmation is off.
type signupResponse struct {
	authUser
	User *authUser `json:"user"`
}

type storedSession struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresAt    int64    `json:"expires_at"`
	User         authUser `json:"user"`
}

// AuthSession is one device's view of the identity backend. The session
// lives in the device's local store, so it survives restarts.
type AuthSession struct {
	client *Client
	store  port.LocalStore
	log    *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	subs map[int]chan domain.SessionEvent
	next int
}

func (c *Client) Auth(store port.LocalStore, log *zap.Logger) *AuthSession {
	return &AuthSession{
		client: c,
		store:  store,
		log:    log,
		now:    time.Now,
		subs:   make(map[int]chan domain.SessionEvent),
	}
}

// GetSession restores the persisted session. An expired access token is
// refreshed when possible and discarded otherwise.
func (a *AuthSession) GetSession(ctx context.Context) (*domain.Session, error) {
	stored, err := a.load(ctx)
	if err != nil || stored == nil {
		a.emit(domain.SessionEvent{Kind: domain.SessionEventInitial})
		return nil, err
	}

	if a.expired(stored) {
		refreshed, err := a.refresh(ctx, stored.RefreshToken)
		if err != nil {
			a.log.Info("discarding expired session", zap.String("user_id", stored.User.ID), zap.Error(err))
			if clearErr := a.persist(ctx, nil); clearErr != nil {
				return nil, clearErr
			}
			a.emit(domain.SessionEvent{Kind: domain.SessionEventInitial})
			return nil, nil
		}
		stored = refreshed
	}

	session := stored.toDomain()
	a.emit(domain.SessionEvent{Kind: domain.SessionEventInitial, Session: session})
	return session, nil
}

func (a *AuthSession) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	var out tokenResponse
	req := a.client.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&out)
	if _, err := a.client.do(req, http.MethodPost, "/auth/v1/token"); err != nil {
		return nil, err
	}

	stored, err := a.fromToken(out)
	if err != nil {
		return nil, err
	}
	if err := a.persist(ctx, stored); err != nil {
		return nil, err
	}

	session := stored.toDomain()
	a.emit(domain.SessionEvent{Kind: domain.SessionEventSignedIn, Session: session})
	return session, nil
}

// SignUp creates the credential only. A session returned alongside is
// not kept; the shopper signs in afterwards.
func (a *AuthSession) SignUp(ctx context.Context, email, password string) (*domain.User, error) {
	var out signupResponse
	req := a.client.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&out)
	if _, err := a.client.do(req, http.MethodPost, "/auth/v1/signup"); err != nil {
		return nil, err
	}

	user := out.authUser
	if out.User != nil {
		user = *out.User
	}
	if user.ID == "" {
		return nil, errors.New("signup response carried no user")
	}
	return &domain.User{ID: user.ID, Email: user.Email}, nil
}

// SignOut revokes the token at the backend and always forgets it locally.
func (a *AuthSession) SignOut(ctx context.Context) error {
	stored, loadErr := a.load(ctx)

	var remoteErr error
	if stored != nil && stored.AccessToken != "" {
		req := a.client.http.R().SetContext(ctx).SetAuthToken(stored.AccessToken)
		_, remoteErr = a.client.do(req, http.MethodPost, "/auth/v1/logout")

		var apiErr *APIError
		if errors.As(remoteErr, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusNotFound) {
			remoteErr = nil
		}
	}

	persistErr := a.persist(ctx, nil)
	a.emit(domain.SessionEvent{Kind: domain.SessionEventSignedOut})
	return errors.Join(loadErr, remoteErr, persistErr)
}

// User asks the backend who the current token belongs to.
func (a *AuthSession) User(ctx context.Context) (*domain.User, error) {
	stored, err := a.load(ctx)
	if err != nil || stored == nil {
		return nil, err
	}

	var out authUser
	req := a.client.http.R().SetContext(ctx).SetAuthToken(stored.AccessToken).SetResult(&out)
	if _, err := a.client.do(req, http.MethodGet, "/auth/v1/user"); err != nil {
		return nil, err
	}
	return &domain.User{ID: out.ID, Email: out.Email}, nil
}

func (a *AuthSession) Subscribe() (<-chan domain.SessionEvent, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.next
	a.next++
	ch := make(chan domain.SessionEvent, 8)
	a.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			delete(a.subs, id)
			close(ch)
		})
	}
}

// emit never blocks; a subscriber that has fallen behind misses events.
func (a *AuthSession) emit(ev domain.SessionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ch := range a.subs {
		select {
		case ch <- ev:
		default:
			a.log.Warn("session event dropped", zap.String("kind", string(ev.Kind)))
		}
	}
}

func (a *AuthSession) refresh(ctx context.Context, refreshToken string) (*storedSession, error) {
	if refreshToken == "" {
		return nil, errors.New("no refresh token")
	}

	var out tokenResponse
	req := a.client.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "refresh_token").
		SetBody(map[string]string{"refresh_token": refreshToken}).
		SetResult(&out)
	if _, err := a.client.do(req, http.MethodPost, "/auth/v1/token"); err != nil {
		return nil, err
	}

	stored, err := a.fromToken(out)
	if err != nil {
		return nil, err
	}
	if err := a.persist(ctx, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

func (a *AuthSession) fromToken(out tokenResponse) (*storedSession, error) {
	if out.AccessToken == "" || out.User == nil {
		return nil, errors.New("token response carried no session")
	}
	expiresAt := out.ExpiresAt
	if expiresAt == 0 && out.ExpiresIn > 0 {
		expiresAt = a.now().Add(time.Duration(out.ExpiresIn) * time.Second).Unix()
	}
	return &storedSession{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         *out.User,
	}, nil
}

// expired prefers the token's own exp claim over the stored expiry.
func (a *AuthSession) expired(s *storedSession) bool {
	exp := time.Time{}
	if s.ExpiresAt > 0 {
		exp = time.Unix(s.ExpiresAt, 0)
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}

	return !exp.IsZero() && !a.now().Before(exp)
}

func (a *AuthSession) load(ctx context.Context) (*storedSession, error) {
	data, ok, err := a.store.Get(ctx, SessionStorageKey)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var stored *storedSession
	if err := json.Unmarshal(data, &stored); err != nil {
		a.log.Warn("discarding unreadable session", zap.Error(err))
		return nil, nil
	}
	if stored == nil || stored.AccessToken == "" {
		return nil, nil
	}
	return stored, nil
}

// persist writes s, or forgets the session when s is nil.
func (a *AuthSession) persist(ctx context.Context, s *storedSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := a.store.Set(ctx, SessionStorageKey, data); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *storedSession) toDomain() *domain.Session {
	session := &domain.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		User:         domain.User{ID: s.User.ID, Email: s.User.Email},
	}
	if s.ExpiresAt > 0 {
		session.ExpiresAt = time.Unix(s.ExpiresAt, 0)
	}
	return session
}
