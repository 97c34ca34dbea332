package scriptstore

import (
	"context"

	"github.com/starford/vssflow/internal/models"
)

// Repository defines the script persistence operations used by the mock
// backend. Consumers depend on this interface rather than *DB.
type Repository interface {
	ListScripts(ctx context.Context, query string) ([]models.Script, error)
	GetScript(ctx context.Context, id string) (*models.Script, error)
	SaveScript(ctx context.Context, s models.Script) (*models.Script, error)
	DeleteScript(ctx context.Context, id string) error
	RecordRun(ctx context.Context, scriptID string) (*models.RunReceipt, error)
	Runs(ctx context.Context, scriptID string) ([]models.RunReceipt, error)
	Close() error
}

// Verify *DB satisfies Repository at compile time.
var _ Repository = (*DB)(nil)
