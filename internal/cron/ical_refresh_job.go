package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/davidortega/channelsync-backend/internal/channels"
	"github.com/davidortega/channelsync-backend/internal/reconcile"
	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	"github.com/davidortega/channelsync-backend/pkg/logger"
)

type feedMappingLister interface {
	ListActiveFeedMappings(ctx context.Context) ([]models.ChannelMapping, error)
}

type feedProcessor interface {
	ProcessFeed(ctx context.Context, mapping models.ChannelMapping, feed []reconcile.FeedReservation) (*reconcile.FeedResult, error)
}

type adapterSource interface {
	Get(ch enums.Channel) (channels.Adapter, error)
}

// ICalRefreshJobParams configure the calendar feed refresh job.
type ICalRefreshJobParams struct {
	Logger     *logger.Logger
	Mappings   feedMappingLister
	Adapters   adapterSource
	Reconciler feedProcessor
}

// NewICalRefreshJob polls every active feed-backed mapping and runs the
// result through the reconciler.
func NewICalRefreshJob(params ICalRefreshJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Mappings == nil {
		return nil, fmt.Errorf("mappings lister required")
	}
	if params.Adapters == nil {
		return nil, fmt.Errorf("adapter source required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	return &icalRefreshJob{
		logg:       params.Logger,
		mappings:   params.Mappings,
		adapters:   params.Adapters,
		reconciler: params.Reconciler,
	}, nil
}

type icalRefreshJob struct {
	logg       *logger.Logger
	mappings   feedMappingLister
	adapters   adapterSource
	reconciler feedProcessor
}

func (j *icalRefreshJob) Name() string { return "ical-refresh" }

// Run continues past per-mapping failures so one broken feed cannot
// starve the others; the aggregated error marks the run failed.
func (j *icalRefreshJob) Run(ctx context.Context) error {
	mappings, err := j.mappings.ListActiveFeedMappings(ctx)
	if err != nil {
		return fmt.Errorf("list feed mappings: %w", err)
	}

	var errs error
	refreshed := 0
	for _, mapping := range mappings {
		if err := j.refresh(ctx, mapping); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("mapping %s: %w", mapping.ID, err))
			continue
		}
		refreshed++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"mappings":  len(mappings),
		"refreshed": refreshed,
	})
	j.logg.Info(logCtx, "ical refresh complete")
	return errs
}

func (j *icalRefreshJob) refresh(ctx context.Context, mapping models.ChannelMapping) error {
	adapter, err := j.adapters.Get(mapping.Channel)
	if err != nil {
		return err
	}
	if !adapter.Capabilities().Has(channels.CapPullReservations) {
		return nil
	}

	reservations, err := adapter.PullReservations(ctx, mapping)
	if err != nil {
		return err
	}

	feed := make([]reconcile.FeedReservation, 0, len(reservations))
	for _, res := range reservations {
		feed = append(feed, reconcile.FeedReservation{
			ExternalID: res.ExternalID,
			CheckIn:    res.CheckIn,
			CheckOut:   res.CheckOut,
			Units:      res.Units,
			Cancelled:  res.Cancelled,
		})
	}

	_, err = j.reconciler.ProcessFeed(ctx, mapping, feed)
	return err
}
