package settings

import "context"

// Repository loads the persisted configuration documents.
type Repository interface {
	// Load returns the current snapshot; missing documents are filled from Defaults.
	Load(ctx context.Context) (*Snapshot, error)
}
