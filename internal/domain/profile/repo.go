package profile

import (
	"context"
)

// Repository reads and writes profiles as the calling user; every method runs
// under row-level security.
type Repository interface {
	GetOwn(ctx context.Context) (*Profile, error)
	UpdateContact(ctx context.Context, u ContactUpdate) (*Profile, error)
	List(ctx context.Context, role string, limit, offset int) ([]*Profile, int, error)
}
