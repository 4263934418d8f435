package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopfront/accounts/internal/media"
	"go.uber.org/zap"
)

// AvatarBucket lists and destroys stored avatar objects
type AvatarBucket interface {
	List(ctx context.Context) ([]media.Object, error)
	Destroy(ctx context.Context, publicID string) error
}

// AvatarReferences lists avatar ids referenced by user records
type AvatarReferences interface {
	ListAvatarPublicIDs(ctx context.Context) ([]string, error)
}

// Result summarizes a reconciliation run
type Result struct {
	Scanned   int
	Destroyed int
}

// Reconciler destroys avatar objects that no user references.
// Objects younger than the grace period are kept so in-flight registrations are not affected.
type Reconciler struct {
	avatars AvatarBucket
	refs    AvatarReferences
	grace   time.Duration
	logger  *zap.Logger
	now     func() time.Time

	// one run at a time
	mu sync.Mutex
}

// NewReconciler creates a new reconciler
func NewReconciler(avatars AvatarBucket, refs AvatarReferences, grace time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		avatars: avatars,
		refs:    refs,
		grace:   grace,
		logger:  logger,
		now:     time.Now,
	}
}

// Run performs a single reconciliation pass
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result Result

	objects, err := r.avatars.List(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list avatar objects: %w", err)
	}
	result.Scanned = len(objects)

	ids, err := r.refs.ListAvatarPublicIDs(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list referenced avatars: %w", err)
	}
	referenced := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		referenced[id] = struct{}{}
	}

	cutoff := r.now().Add(-r.grace)
	for _, obj := range objects {
		if _, ok := referenced[obj.Key]; ok {
			continue
		}
		if !obj.LastModified.IsZero() && obj.LastModified.After(cutoff) {
			continue
		}
		if err := r.avatars.Destroy(ctx, obj.Key); err != nil {
			r.logger.Warn("failed to destroy orphaned avatar", zap.String("public_id", obj.Key), zap.Error(err))
			continue
		}
		result.Destroyed++
	}

	r.logger.Info("avatar reconciliation finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("destroyed", result.Destroyed),
	)
	return result, nil
}

// Schedule registers periodic runs on a new cron instance. The caller starts and stops it.
func (r *Reconciler) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := r.Run(ctx); err != nil {
			r.logger.Error("avatar reconciliation failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	return c, nil
}
