package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ArchiveStore is the object storage the archiver writes to
type ArchiveStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	ObjectExists(ctx context.Context, key string) (bool, error)
}

// ArchiverConfig holds archive settings
type ArchiverConfig struct {
	// Prefix is prepended to every object key
	Prefix string
	// Retention is how long a finished log stays hot before it is exported
	Retention time.Duration
	// PageSize bounds each List call
	PageSize int
}

// ArchiveResult summarizes one archive pass
type ArchiveResult struct {
	Scanned  int `json:"scanned"`
	Exported int `json:"exported"`
	Existing int `json:"existing"`
}

// Archiver copies finished sync logs older than the retention age to object storage as JSON.
// Rows are never deleted, and an object that already exists is not rewritten.
type Archiver struct {
	repo   integration.SyncLogRepository
	store  ArchiveStore
	cfg    ArchiverConfig
	clock  func() time.Time
	logger *zap.Logger
}

// NewArchiver creates an Archiver
func NewArchiver(repo integration.SyncLogRepository, store ArchiveStore, cfg ArchiverConfig, log *zap.Logger) *Archiver {
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	return &Archiver{
		repo:   repo,
		store:  store,
		cfg:    cfg,
		clock:  time.Now,
		logger: logger.OrNop(log),
	}
}

// SetClock overrides the time source
func (a *Archiver) SetClock(clock func() time.Time) {
	a.clock = clock
}

// archivedLog is the exported document
type archivedLog struct {
	ID         string                  `json:"id"`
	Operation  string                  `json:"operation"`
	Status     string                  `json:"status"`
	DryRun     bool                    `json:"dry_run"`
	Processed  int                     `json:"processed"`
	Succeeded  int                     `json:"succeeded"`
	Failed     int                     `json:"failed"`
	Skipped    int                     `json:"skipped"`
	Errors     []integration.SyncError `json:"errors"`
	Detail     string                  `json:"detail,omitempty"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt *time.Time              `json:"finished_at"`
}

// Key returns the object key of a log: <prefix>/YYYY/MM/DD/<id>.json by start date
func (a *Archiver) Key(log *integration.SyncLog) string {
	started := log.StartedAt.UTC()
	return path.Join(
		strings.TrimSuffix(a.cfg.Prefix, "/"),
		started.Format("2006"), started.Format("01"), started.Format("02"),
		log.ID.String()+".json",
	)
}

// Archive exports every finished log older than the retention age
func (a *Archiver) Archive(ctx context.Context) (*ArchiveResult, error) {
	cutoff := a.clock().Add(-a.cfg.Retention).UTC()
	result := &ArchiveResult{}

	for offset := 0; ; offset += a.cfg.PageSize {
		logs, _, err := a.repo.List(ctx, integration.SyncLogFilter{
			FinishedBefore: &cutoff,
			Limit:          a.cfg.PageSize,
			Offset:         offset,
		})
		if err != nil {
			return result, fmt.Errorf("list sync logs: %w", err)
		}
		for _, log := range logs {
			result.Scanned++
			exported, err := a.export(ctx, log)
			if err != nil {
				return result, err
			}
			if exported {
				result.Exported++
			} else {
				result.Existing++
			}
		}
		if len(logs) < a.cfg.PageSize {
			break
		}
	}

	logger.L(ctx).Info("Sync log archive pass finished",
		zap.Time("cutoff", cutoff),
		zap.Int("scanned", result.Scanned),
		zap.Int("exported", result.Exported),
	)
	return result, nil
}

func (a *Archiver) export(ctx context.Context, log *integration.SyncLog) (bool, error) {
	key := a.Key(log)
	exists, err := a.store.ObjectExists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check archive object %s: %w", key, err)
	}
	if exists {
		return false, nil
	}

	errs := log.Errors
	if errs == nil {
		errs = []integration.SyncError{}
	}
	body, err := json.Marshal(archivedLog{
		ID:         log.ID.String(),
		Operation:  string(log.Operation),
		Status:     string(log.Status),
		DryRun:     log.DryRun,
		Processed:  log.Processed,
		Succeeded:  log.Succeeded,
		Failed:     log.Failed,
		Skipped:    log.Skipped,
		Errors:     errs,
		Detail:     log.Detail,
		StartedAt:  log.StartedAt,
		FinishedAt: log.FinishedAt,
	})
	if err != nil {
		return false, fmt.Errorf("encode sync log %s: %w", log.ID, err)
	}
	if err := a.store.Upload(ctx, key, body, "application/json"); err != nil {
		return false, fmt.Errorf("upload archive object %s: %w", key, err)
	}
	a.logger.Debug("Archived sync log", zap.String("key", key))
	return true, nil
}
