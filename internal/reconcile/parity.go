package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/davidortega/channelsync-backend/internal/channels"
	"github.com/davidortega/channelsync-backend/internal/ledger"
	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
)

// ParityRequest asks for one rate across a date range, everywhere.
type ParityRequest struct {
	RoomTypeID uuid.UUID
	// Range is half-open: [From, To).
	From time.Time
	To   time.Time
	Rate decimal.Decimal
}

func (r ParityRequest) validate() error {
	if r.RoomTypeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "room type id required")
	}
	if !r.To.After(r.From) {
		return pkgerrors.New(pkgerrors.CodeValidation, "range end must be after start")
	}
	if r.Rate.IsNegative() || r.Rate.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "rate must be positive")
	}
	return nil
}

// Per-channel parity outcomes.
const (
	ParityAccepted    = "accepted"
	ParityRejected    = "rejected"
	ParityUnsupported = "unsupported"
	ParityUnavailable = "unavailable"
	ParityStale       = "stale"
)

// ParityChannelResult is one channel's verdict on the rate push.
type ParityChannelResult struct {
	Channel enums.Channel `json:"channel"`
	Status  string        `json:"status"`
	Error   string        `json:"error,omitempty"`
}

// ParityResult reports the local write and every channel's outcome.
type ParityResult struct {
	Days    []models.InventoryDay `json:"days"`
	Results []ParityChannelResult `json:"results"`
}

// RateParity writes the rate into the ledger first; the local ledger is
// authoritative and keeps the new rate even when every push fails. Pushes
// run concurrently, one goroutine per channel, and report individually.
func (s *service) RateParity(ctx context.Context, req ParityRequest) (*ParityResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	req.From = normalizeDate(req.From)
	req.To = normalizeDate(req.To)

	mutations := []ledger.Mutation{}
	for d := req.From; d.Before(req.To); d = d.AddDate(0, 0, 1) {
		rate := req.Rate
		mutations = append(mutations, ledger.Mutation{
			RoomTypeID: req.RoomTypeID,
			Date:       d,
			Source:     enums.SourceManual,
			SetRate:    &rate,
		})
	}
	days, err := s.ledger.ApplyAll(ctx, mutations)
	if err != nil {
		return nil, err
	}

	roomType, err := s.rooms.GetRoomType(ctx, req.RoomTypeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "load room type")
	}
	mappings, err := s.rooms.ListMappings(ctx, req.RoomTypeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "list channel mappings")
	}

	results := make([]ParityChannelResult, 0, len(mappings))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, mapping := range mappings {
		if !mapping.IsActive {
			continue
		}
		mapping := mapping
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome := s.pushRateToChannel(ctx, mapping, days, roomType.Currency)
			mu.Lock()
			results = append(results, outcome)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Channel < results[j].Channel })
	return &ParityResult{Days: days, Results: results}, nil
}

func (s *service) pushRateToChannel(ctx context.Context, mapping models.ChannelMapping, days []models.InventoryDay, currency string) ParityChannelResult {
	result := ParityChannelResult{Channel: mapping.Channel, Status: ParityAccepted}

	adapter, err := s.registry.Get(mapping.Channel)
	if err != nil {
		result.Status = ParityUnavailable
		result.Error = err.Error()
		return result
	}
	if !adapter.Capabilities().Has(channels.CapPushRate) {
		result.Status = ParityUnsupported
		return result
	}

	var pushErr error
	for _, day := range days {
		callCtx, cancel := context.WithTimeout(ctx, s.pushTimeout)
		err := adapter.PushRate(callCtx, mapping, channels.RatePush{
			Date:          day.Date,
			Rate:          day.Rate,
			Currency:      currency,
			TargetVersion: day.Version,
		})
		cancel()
		pushErr = multierr.Append(pushErr, err)
	}
	if pushErr == nil {
		return result
	}

	result.Error = pushErr.Error()
	switch {
	case pkgerrors.HasCode(pushErr, pkgerrors.CodeChannelRejected):
		result.Status = ParityRejected
	case pkgerrors.HasCode(pushErr, pkgerrors.CodeStaleVersion):
		result.Status = ParityStale
	default:
		result.Status = ParityUnavailable
	}
	return result
}
