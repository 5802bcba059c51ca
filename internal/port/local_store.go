package port

import "context"

// LocalStore is the durable key-value space of one device, the server-side
// counterpart of browser local storage.
type LocalStore interface {
	// Get returns the stored value and whether the key was present
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key string, value []byte) error

	// Clear removes every key of the device
	Clear(ctx context.Context) error
}
