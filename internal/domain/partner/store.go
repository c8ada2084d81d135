package partner

import "context"

//go:generate mockgen -source store.go -destination mock_store.go -package partner

// Store is the backing storage of the Registry. Implementations must be safe
// for concurrent use and must not hand out references to their internal state.
type Store interface {
	Save(ctx context.Context, p Partner) error
	Get(ctx context.Context, id string) (Partner, error)
	List(ctx context.Context) ([]Partner, error)
	Delete(ctx context.Context, id string) (bool, error)
	SetActive(ctx context.Context, id string, active bool) (Partner, error)
}
