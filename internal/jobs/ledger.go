package jobs

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/xelth-com/arcasync/internal/database"
	"github.com/xelth-com/arcasync/internal/models"
	"github.com/xelth-com/arcasync/internal/sync"
)

// Ledger stores one row per job run
type Ledger interface {
	Start(ctx context.Context, run *models.SyncHistory) error
	Finish(ctx context.Context, run *models.SyncHistory) error
	Recent(ctx context.Context, job string, limit int) ([]models.SyncHistory, error)
}

// GormLedger keeps the run history in the ledger database
type GormLedger struct {
	db *database.DB
}

// NewGormLedger creates a ledger over db
func NewGormLedger(db *database.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (l *GormLedger) Start(ctx context.Context, run *models.SyncHistory) error {
	return l.db.WithContext(ctx).Create(run).Error
}

func (l *GormLedger) Finish(ctx context.Context, run *models.SyncHistory) error {
	return l.db.WithContext(ctx).Save(run).Error
}

// Recent returns the newest runs first, optionally for one job
func (l *GormLedger) Recent(ctx context.Context, job string, limit int) ([]models.SyncHistory, error) {
	if limit <= 0 {
		limit = 30
	}
	query := l.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if job != "" {
		query = query.Where("job = ?", job)
	}

	var history []models.SyncHistory
	if err := query.Find(&history).Error; err != nil {
		return nil, err
	}
	return history, nil
}

// applyResult copies the outcome of a run onto its ledger row.
// Remote response bodies stay in the run log and are not stored.
func applyResult(row *models.SyncHistory, res *sync.Result, runErr error, completed time.Time) {
	row.CompletedAt = &completed
	row.Duration = int(completed.Sub(row.StartedAt).Milliseconds())
	row.Status = runStatus(res, runErr)

	if runErr != nil {
		row.ErrorDetail = runErr.Error()
	}
	if res == nil {
		return
	}

	row.Created = res.Created
	row.Updated = res.Updated
	row.Deleted = res.Deleted
	row.Skipped = res.Skipped
	row.Errors = res.Failed

	if len(res.Failures) > 0 {
		failures := make([]sync.Failure, len(res.Failures))
		for i, f := range res.Failures {
			f.Body = ""
			failures[i] = f
		}
		if b, err := json.Marshal(failures); err == nil {
			row.Failures = datatypes.JSON(b)
		}
	}
	if len(res.Extra) > 0 {
		if b, err := json.Marshal(res.Extra); err == nil {
			row.Counters = datatypes.JSON(b)
		}
	}
}

func runStatus(res *sync.Result, runErr error) string {
	switch {
	case runErr != nil:
		return models.RunStatusError
	case res == nil:
		return models.RunStatusSuccess
	case res.Cancelled:
		return models.RunStatusCancelled
	case res.Failed > 0:
		return models.RunStatusPartial
	}
	return models.RunStatusSuccess
}
