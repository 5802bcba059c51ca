package domain

import "time"

type SessionState int

const (
	SessionUninitialized SessionState = iota
	SessionChecking
	SessionAnonymous
	SessionAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case SessionChecking:
		return "checking"
	case SessionAnonymous:
		return "anonymous"
	case SessionAuthenticated:
		return "authenticated"
	default:
		return "uninitialized"
	}
}

type User struct {
	ID    string
	Email string
}

type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

type SessionEventKind string

const (
	SessionEventInitial   SessionEventKind = "INITIAL_SESSION"
	SessionEventSignedIn  SessionEventKind = "SIGNED_IN"
	SessionEventSignedOut SessionEventKind = "SIGNED_OUT"
)

type SessionEvent struct {
	Kind    SessionEventKind
	Session *Session
}

type CheckoutDecision string

const (
	CheckoutProceed            CheckoutDecision = "proceed"
	CheckoutChooseLoginOrGuest CheckoutDecision = "choose_login_or_guest"
)
