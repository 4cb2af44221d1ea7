package repository

import (
	"fmt"
	"time"

	"kidsnest-backend/internal/notification/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QueueRepository owns the QueuedNotification lifecycle.
type QueueRepository interface {
	Create(n *domain.QueuedNotification) error
	FindByID(id string) (*domain.QueuedNotification, error)

	// ClaimBatch atomically transitions up to batchSize due pending rows
	// to processing, oldest-created first. Safe to call concurrently from
	// multiple dispatcher instances; claimed sets never overlap.
	ClaimBatch(batchSize int, now time.Time) ([]*domain.QueuedNotification, error)

	// RecordResult resolves a processing row. Retry scheduling and the
	// terminal-failure cutoff follow the repository's configured policy.
	RecordResult(id string, outcome domain.DeliveryOutcome, now time.Time) error

	// RecoverStale re-queues processing rows whose last attempt is older
	// than the threshold, treating them as abandoned by a crashed worker.
	// Attempts are left untouched. Returns the number of rows recovered.
	RecoverStale(olderThan time.Duration, now time.Time) (int64, error)

	MarkRead(id string, now time.Time) error
	Requeue(id string, now time.Time) error

	ListForRecipient(recipientID string, limit, offset int) ([]*domain.QueuedNotification, int64, error)
	ListFailed(limit, offset int) ([]*domain.QueuedNotification, error)
}

type gormQueueRepository struct {
	db          *gorm.DB
	maxAttempts int
	baseDelay   time.Duration
}

// NewQueueRepository creates a gorm-backed QueueRepository with the
// given retry policy.
func NewQueueRepository(db *gorm.DB, maxAttempts int, baseDelay time.Duration) QueueRepository {
	return &gormQueueRepository{db: db, maxAttempts: maxAttempts, baseDelay: baseDelay}
}

func (r *gormQueueRepository) Create(n *domain.QueuedNotification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	now := time.Now()
	n.Status = domain.StatusPending
	n.Attempts = 0
	if n.NextAttemptAt.IsZero() {
		n.NextAttemptAt = now
	}
	n.CreatedAt = now
	n.UpdatedAt = now
	return r.db.Create(n).Error
}

func (r *gormQueueRepository) FindByID(id string) (*domain.QueuedNotification, error) {
	var n domain.QueuedNotification
	err := r.db.Where("id = ?", id).First(&n).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

func (r *gormQueueRepository) ClaimBatch(batchSize int, now time.Time) ([]*domain.QueuedNotification, error) {
	claimed := make([]*domain.QueuedNotification, 0, batchSize)
	seen := make([]string, 0, batchSize)

	// Rows lost to concurrent dispatchers are replaced by re-selecting
	// past them, so a worker only returns short when the queue really
	// has nothing left to claim.
	for len(claimed) < batchSize {
		var candidates []*domain.QueuedNotification
		query := r.db.Where("status = ? AND next_attempt_at <= ?", domain.StatusPending, now)
		if len(seen) > 0 {
			query = query.Where("id NOT IN ?", seen)
		}
		err := query.Order("created_at ASC").Limit(batchSize - len(claimed)).Find(&candidates).Error
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			break
		}

		// Per-row compare-and-set: the status guard ensures at most one
		// dispatcher wins each row even when several claim concurrently.
		for _, candidate := range candidates {
			seen = append(seen, candidate.ID)
			res := r.db.Model(&domain.QueuedNotification{}).
				Where("id = ? AND status = ?", candidate.ID, domain.StatusPending).
				Updates(map[string]interface{}{
					"status":          domain.StatusProcessing,
					"last_attempt_at": now,
					"updated_at":      now,
				})
			if res.Error != nil {
				return nil, res.Error
			}
			if res.RowsAffected == 0 {
				continue // lost the race to another dispatcher
			}
			if err := candidate.Claim(now); err != nil {
				return nil, err
			}
			claimed = append(claimed, candidate)
		}
	}
	return claimed, nil
}

func (r *gormQueueRepository) RecordResult(id string, outcome domain.DeliveryOutcome, now time.Time) error {
	n, err := r.FindByID(id)
	if err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("queued notification %s not found", id)
	}
	if err := n.ApplyOutcome(outcome, now, r.maxAttempts, r.baseDelay); err != nil {
		return err
	}

	res := r.db.Model(&domain.QueuedNotification{}).
		Where("id = ? AND status = ?", id, domain.StatusProcessing).
		Updates(map[string]interface{}{
			"status":          n.Status,
			"attempts":        n.Attempts,
			"next_attempt_at": n.NextAttemptAt,
			"sent_at":         n.SentAt,
			"error_message":   n.ErrorMessage,
			"updated_at":      now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("queued notification %s is no longer processing", id)
	}
	return nil
}

func (r *gormQueueRepository) RecoverStale(olderThan time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-olderThan)
	res := r.db.Model(&domain.QueuedNotification{}).
		Where("status = ? AND last_attempt_at < ?", domain.StatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":     domain.StatusPending,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// MarkRead sets the first-acknowledgment timestamp. The read_at guard
// makes repeated calls no-ops.
func (r *gormQueueRepository) MarkRead(id string, now time.Time) error {
	return r.db.Model(&domain.QueuedNotification{}).
		Where("id = ? AND read_at IS NULL", id).
		Updates(map[string]interface{}{
			"read_at":    now,
			"updated_at": now,
		}).Error
}

func (r *gormQueueRepository) Requeue(id string, now time.Time) error {
	n, err := r.FindByID(id)
	if err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("queued notification %s not found", id)
	}
	if err := n.Requeue(now); err != nil {
		return err
	}

	res := r.db.Model(&domain.QueuedNotification{}).
		Where("id = ? AND status = ?", id, domain.StatusFailed).
		Updates(map[string]interface{}{
			"status":          domain.StatusPending,
			"attempts":        0,
			"error_message":   "",
			"next_attempt_at": now,
			"updated_at":      now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("queued notification %s is not failed", id)
	}
	return nil
}

func (r *gormQueueRepository) ListForRecipient(recipientID string, limit, offset int) ([]*domain.QueuedNotification, int64, error) {
	var notifications []*domain.QueuedNotification
	var total int64

	query := r.db.Model(&domain.QueuedNotification{}).Where("recipient_id = ?", recipientID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&notifications).Error
	return notifications, total, err
}

func (r *gormQueueRepository) ListFailed(limit, offset int) ([]*domain.QueuedNotification, error) {
	var notifications []*domain.QueuedNotification
	err := r.db.Where("status = ?", domain.StatusFailed).
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&notifications).Error
	return notifications, err
}
