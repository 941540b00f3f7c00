package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scribeq/internal/config"
	"scribeq/internal/logging"
	"scribeq/internal/services"
)

// Service layers enqueue validation, retry policy, and aggregate statistics
// on top of the store. All business writes go through it.
type Service struct {
	store  *Store
	cfg    *config.Config
	logger *slog.Logger
}

// NewService constructs a queue service.
func NewService(store *Store, cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "queue"),
	}
}

// Store exposes the backing store for read-only consumers.
func (s *Service) Store() *Store {
	return s.store
}

// Enqueue validates the payload metadata, applies the priority escalation
// rule, assigns a position, and persists the item as pending.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (*Item, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, services.Wrap(services.ErrValidation, "queue", "enqueue", "owner id required", nil)
	}
	if strings.TrimSpace(req.PayloadPath) == "" {
		return nil, services.Wrap(services.ErrInvalidPayload, "queue", "enqueue", "payload reference missing", nil)
	}
	if req.PayloadSize <= 0 {
		return nil, services.Wrap(services.ErrInvalidPayload, "queue", "enqueue", "payload size must be positive", nil)
	}

	item, err := s.store.Insert(ctx, req, s.cfg.Queue.MaxRetries, s.cfg.Queue.ExpiryDays)
	if err != nil {
		return nil, err
	}
	s.logger.Info("recording enqueued",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldOwner, item.OwnerID),
		logging.String(logging.FieldPriority, string(item.Priority)),
		logging.Int64("position", item.Position),
	)
	return item, nil
}

// NextItem returns the next eligible pending item for a scope, or nil.
func (s *Service) NextItem(ctx context.Context, scope Scope) (*Item, error) {
	return s.store.NextItem(ctx, scope)
}

// Get fetches one item by id.
func (s *Service) Get(ctx context.Context, id int64) (*Item, error) {
	return s.store.GetByID(ctx, id)
}

// List returns items for a scope filtered by status.
func (s *Service) List(ctx context.Context, scope Scope, statuses ...Status) ([]*Item, error) {
	return s.store.List(ctx, scope, statuses...)
}

// Transition applies a status change through the enforced transition table.
func (s *Service) Transition(ctx context.Context, id int64, to Status, data *TransitionData) (*Item, error) {
	item, err := s.store.Transition(ctx, id, to, data)
	if err != nil {
		return nil, err
	}
	s.logger.Info("item transitioned",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldStatus, string(item.Status)),
	)
	return item, nil
}

// Retry re-queues a failed item at the back of its owner's queue.
func (s *Service) Retry(ctx context.Context, id int64) (*Item, error) {
	item, err := s.store.RetryItem(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("item re-queued for retry",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.Int("retry_count", item.RetryCount),
		logging.Int64("position", item.Position),
	)
	return item, nil
}

// Cancel deletes a pending item. Items in any other status cannot be
// cancelled; an in-flight transcription has no cancel primitive.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return services.Wrap(services.ErrValidation, "queue", "cancel", fmt.Sprintf("item %d not found", id), nil)
	}
	if item.Status != StatusPending {
		return services.Wrap(services.ErrInvalidTransition, "queue", "cancel",
			fmt.Sprintf("item %d is %s, only pending items can be cancelled", id, item.Status), nil)
	}
	if _, err := s.store.Remove(ctx, id); err != nil {
		return err
	}
	s.logger.Info("item cancelled", logging.Int64(logging.FieldItemID, id))
	return nil
}

// Stats aggregates totals, per-status counts, and average processing and
// queue times over completed items.
func (s *Service) Stats(ctx context.Context, scope Scope) (Stats, error) {
	counts, err := s.store.StatusCounts(ctx, scope)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{ByStatus: counts}
	for _, count := range counts {
		stats.Total += count
	}

	triples, err := s.store.CompletedDurations(ctx, scope)
	if err != nil {
		return Stats{}, err
	}
	var processing, queued time.Duration
	var processed, timed int
	for _, triple := range triples {
		started, completed, created := triple[0], triple[1], triple[2]
		if completed.IsZero() {
			continue
		}
		if !started.IsZero() {
			processing += completed.Sub(started)
			processed++
		}
		if !created.IsZero() {
			queued += completed.Sub(created)
			timed++
		}
	}
	if processed > 0 {
		stats.AvgProcessingTime = processing / time.Duration(processed)
	}
	if timed > 0 {
		stats.AvgQueueTime = queued / time.Duration(timed)
	}
	return stats, nil
}

// Cleanup removes terminal items older than the retention window and any
// item past its hard TTL, returning the count removed.
func (s *Service) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = s.cfg.Queue.RetentionDays
	}
	removed, err := s.store.Cleanup(ctx, retentionDays)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("queue cleanup removed items",
			logging.Int64("removed", removed),
			logging.Int("retention_days", retentionDays),
		)
	}
	return removed, nil
}
