package cron

import (
	"context"
	"fmt"

	"github.com/davidortega/channelsync-backend/pkg/logger"
)

const changeLogRetentionDays = 90

type changeLogPruner interface {
	PruneChangeLog(ctx context.Context, retentionDays int) (int64, error)
}

// ChangeLogRetentionJobParams configure the change-log pruning job.
type ChangeLogRetentionJobParams struct {
	Logger    *logger.Logger
	Ledger    changeLogPruner
	Retention int
}

// NewChangeLogRetentionJob prunes ledger change-log rows past the
// retention window.
func NewChangeLogRetentionJob(params ChangeLogRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = changeLogRetentionDays
	}
	return &changeLogRetentionJob{
		logg:      params.Logger,
		ledger:    params.Ledger,
		retention: retention,
	}, nil
}

type changeLogRetentionJob struct {
	logg      *logger.Logger
	ledger    changeLogPruner
	retention int
}

func (j *changeLogRetentionJob) Name() string { return "changelog-retention" }

func (j *changeLogRetentionJob) Run(ctx context.Context) error {
	deleted, err := j.ledger.PruneChangeLog(ctx, j.retention)
	if err != nil {
		return fmt.Errorf("changelog retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "changelog retention complete")
	return nil
}
