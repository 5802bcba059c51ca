package port

import (
	"context"

	"github.com/rl1809/liora-bloom/internal/core/domain"
)

// AuthBackend is the hosted identity service as seen by one device.
type AuthBackend interface {
	// GetSession restores the persisted session, nil if there is none
	GetSession(ctx context.Context) (*domain.Session, error)

	// SignInWithPassword checks credentials and persists the issued session
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)

	// SignUp creates a credential for email
	SignUp(ctx context.Context, email, password string) (*domain.User, error)

	// SignOut invalidates the session at the backend and locally
	SignOut(ctx context.Context) error

	// Subscribe delivers session changes until the returned func is called
	Subscribe() (<-chan domain.SessionEvent, func())
}
