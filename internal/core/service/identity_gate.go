package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/port"
)

type SignupInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required"`
	Phone    string `json:"phone"`
}

// IdentityGate tracks whether a device has an authenticated identity.
// Start restores the session and follows backend session changes until
// Close.
type IdentityGate struct {
	auth     port.AuthBackend
	profiles port.ProfileRepository
	local    port.LocalStore
	log      *zap.Logger

	mu           sync.RWMutex
	state        domain.SessionState
	profile      *domain.Profile
	onLocalClear []func()

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewIdentityGate(auth port.AuthBackend, profiles port.ProfileRepository, local port.LocalStore, log *zap.Logger) *IdentityGate {
	return &IdentityGate{
		auth:     auth,
		profiles: profiles,
		local:    local,
		log:      log,
		state:    domain.SessionUninitialized,
	}
}

// OnLocalClear registers fn to run after logout wipes the local store.
func (g *IdentityGate) OnLocalClear(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onLocalClear = append(g.onLocalClear, fn)
}

func (g *IdentityGate) Start(ctx context.Context) {
	g.startOnce.Do(func() {
		g.setState(domain.SessionChecking, nil)

		events, unsubscribe := g.auth.Subscribe()

		session, err := g.auth.GetSession(ctx)
		switch {
		case err != nil:
			g.log.Warn("session restore failed", zap.Error(err))
			g.setState(domain.SessionAnonymous, nil)
		case session == nil:
			g.setState(domain.SessionAnonymous, nil)
		default:
			if _, err := g.resolve(ctx, session); err != nil {
				g.forceSignOut(ctx)
			}
		}

		loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		g.cancel = cancel
		g.done = make(chan struct{})

		go func() {
			defer close(g.done)
			defer unsubscribe()
			for {
				select {
				case <-loopCtx.Done():
					return
				case ev, ok := <-events:
					if !ok {
						return
					}
					g.handleEvent(loopCtx, ev)
				}
			}
		}()
	})
}

// Close stops following session changes. It is safe to call more than once
// and before Start.
func (g *IdentityGate) Close() {
	g.startOnce.Do(func() {})
	if g.cancel == nil {
		return
	}
	g.cancel()
	<-g.done
}

func (g *IdentityGate) handleEvent(ctx context.Context, ev domain.SessionEvent) {
	switch ev.Kind {
	case domain.SessionEventInitial:
		// Start already resolved the restored session.
	case domain.SessionEventSignedOut:
		g.setState(domain.SessionAnonymous, nil)
	default:
		if ev.Session == nil {
			g.setState(domain.SessionAnonymous, nil)
			return
		}
		if _, err := g.resolve(ctx, ev.Session); err != nil {
			g.forceSignOut(ctx)
		}
	}
}

// resolve fetches the profile for session and settles the gate.
func (g *IdentityGate) resolve(ctx context.Context, session *domain.Session) (domain.Profile, error) {
	profile, err := g.profiles.GetProfile(ctx, session.User.ID)
	if err != nil || profile == nil {
		g.log.Warn("profile not found for session",
			zap.String("user_id", session.User.ID),
			zap.Error(err),
		)
		g.setState(domain.SessionAnonymous, nil)
		if err != nil {
			return domain.Profile{}, fmt.Errorf("%w: %w", ErrProfileMissing, err)
		}
		return domain.Profile{}, ErrProfileMissing
	}

	merged := *profile
	if session.User.Email != "" {
		merged.Email = session.User.Email
	}
	g.setState(domain.SessionAuthenticated, &merged)
	return merged, nil
}

func (g *IdentityGate) forceSignOut(ctx context.Context) {
	if err := g.auth.SignOut(ctx); err != nil {
		g.log.Warn("forced sign-out failed", zap.Error(err))
	}
	g.setState(domain.SessionAnonymous, nil)
}

// Login succeeds only when both the credentials and the profile check out.
// A credential without a profile is signed out again.
func (g *IdentityGate) Login(ctx context.Context, email, password string) (domain.Profile, error) {
	session, err := g.auth.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return domain.Profile{}, err
	}

	profile, err := g.resolve(ctx, session)
	if err != nil {
		if logoutErr := g.Logout(ctx); logoutErr != nil {
			g.log.Warn("logout after missing profile failed", zap.Error(logoutErr))
		}
		return domain.Profile{}, err
	}
	return profile, nil
}

// Logout ends the backend session and wipes the device's local store,
// which empties the cart as well. Local state is cleared even when the
// backend call fails.
func (g *IdentityGate) Logout(ctx context.Context) error {
	signOutErr := g.auth.SignOut(ctx)

	g.setState(domain.SessionAnonymous, nil)
	clearErr := g.local.Clear(ctx)

	g.mu.RLock()
	hooks := append([]func(){}, g.onLocalClear...)
	g.mu.RUnlock()
	for _, fn := range hooks {
		fn()
	}

	if signOutErr != nil {
		signOutErr = fmt.Errorf("sign out: %w", signOutErr)
	}
	if clearErr != nil {
		clearErr = fmt.Errorf("clear local store: %w", clearErr)
	}
	return errors.Join(signOutErr, clearErr)
}

// Signup creates the credential and then the profile row. If the profile
// insert fails the credential stays behind.
func (g *IdentityGate) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := check(in); err != nil {
		return nil, err
	}

	user, err := g.auth.SignUp(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	err = g.profiles.CreateProfile(ctx, domain.Profile{
		ID:       user.ID,
		FullName: in.FullName,
		Email:    in.Email,
		Phone:    in.Phone,
		Role:     domain.RoleUser,
	})
	if err != nil {
		g.log.Error("profile insert failed after credential creation",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrSignupIncomplete, err)
	}
	return user, nil
}

func (g *IdentityGate) State() domain.SessionState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *IdentityGate) Current() (domain.Profile, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.profile == nil {
		return domain.Profile{}, false
	}
	return *g.profile, true
}

func (g *IdentityGate) IsPrivileged() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.profile != nil && g.profile.Role.Privileged()
}

func (g *IdentityGate) CheckoutEntry() domain.CheckoutDecision {
	if g.State() == domain.SessionAuthenticated {
		return domain.CheckoutProceed
	}
	return domain.CheckoutChooseLoginOrGuest
}

func (g *IdentityGate) setState(state domain.SessionState, profile *domain.Profile) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = state
	g.profile = profile
}
