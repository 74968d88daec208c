package employee

import (
	"context"
)

// Repository defines the operations for retrieving employees.
type Repository interface {
	// ListByRoles returns active employees with one of the roles, in directory order.
	ListByRoles(ctx context.Context, roles []Role) ([]*Employee, error)
	GetByName(ctx context.Context, name string) (*Employee, error)
}
