package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/davidortega/channelsync-backend/internal/channels"
	"github.com/davidortega/channelsync-backend/internal/health"
	"github.com/davidortega/channelsync-backend/internal/rooms"
	"github.com/davidortega/channelsync-backend/pkg/config"
	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
	"github.com/davidortega/channelsync-backend/pkg/logger"
	"github.com/davidortega/channelsync-backend/pkg/metrics"
)

// Service owns the outbound push pipeline: tasks are coalesced per
// (channel, room type, date, kind), dispatched in batches, retried with
// exponential backoff, and dead-lettered when the retry budget runs out.
// A per-channel circuit breaker stops hammering an unavailable OTA.
type Service interface {
	// Enqueue queues tasks for dispatch. A task whose key is already
	// pending replaces the older one when it carries a newer version.
	Enqueue(ctx context.Context, tasks ...Task) error
	// Run dispatches queued tasks until ctx is cancelled.
	Run(ctx context.Context) error
	// PendingCount reports queued tasks for a channel.
	PendingCount(channel enums.Channel) int
}

// ServiceParams wires the scheduler dependencies.
type ServiceParams struct {
	Registry    *channels.Registry
	Rooms       rooms.Repository
	DeadLetters DeadLetterRepository
	Monitor     *health.Monitor
	Metrics     *metrics.SyncMetrics
	Logger      *logger.Logger
	Config      config.SyncConfig
	Now         func() time.Time
}

type channelQueue struct {
	mu      sync.Mutex
	pending map[taskKey]*Task
	breaker *breaker
}

type service struct {
	registry    *channels.Registry
	rooms       rooms.Repository
	deadLetters DeadLetterRepository
	monitor     *health.Monitor
	metrics     *metrics.SyncMetrics
	log         *logger.Logger
	cfg         config.SyncConfig
	now         func() time.Time

	queues map[enums.Channel]*channelQueue
}

// NewService validates dependencies and builds the sync scheduler.
func NewService(params ServiceParams) (Service, error) {
	if params.Registry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "adapter registry required")
	}
	if params.Rooms == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "rooms repository required")
	}
	if params.DeadLetters == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "dead-letter repository required")
	}
	if params.Monitor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "health monitor required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}

	s := &service{
		registry:    params.Registry,
		rooms:       params.Rooms,
		deadLetters: params.DeadLetters,
		monitor:     params.Monitor,
		metrics:     params.Metrics,
		log:         params.Logger,
		cfg:         params.Config,
		now:         params.Now,
	}

	s.queues = make(map[enums.Channel]*channelQueue, len(enums.Channels()))
	for _, ch := range enums.Channels() {
		s.queues[ch] = &channelQueue{
			pending: map[taskKey]*Task{},
			breaker: newBreaker(params.Config.FailureThreshold, params.Config.CooldownWindow, params.Now),
		}
	}
	return s, nil
}

func (s *service) Enqueue(ctx context.Context, tasks ...Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := range tasks {
		task := tasks[i]
		if err := task.validate(); err != nil {
			return err
		}
		task.Date = task.Date.UTC().Truncate(24 * time.Hour)

		queue := s.queues[task.Channel]
		queue.mu.Lock()
		key := task.key()
		if existing, ok := queue.pending[key]; ok {
			// Last write wins per key. The older payload is obsolete
			// either way, so count the replacement and move on.
			if task.TargetVersion >= existing.TargetVersion {
				queue.pending[key] = &task
			}
			s.metrics.IncCoalesced(string(task.Channel))
		} else {
			queue.pending[key] = &task
		}
		queue.mu.Unlock()
	}
	return nil
}

func (s *service) PendingCount(channel enums.Channel) int {
	queue, ok := s.queues[channel]
	if !ok {
		return 0
	}
	queue.mu.Lock()
	defer queue.mu.Unlock()
	return len(queue.pending)
}

// Run dispatches on a fixed interval until ctx is cancelled.
func (s *service) Run(ctx context.Context) error {
	interval := s.cfg.DispatchInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info(ctx, "sync scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, "sync scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.dispatchAll(ctx)
		}
	}
}

func (s *service) dispatchAll(ctx context.Context) {
	for _, ch := range enums.Channels() {
		s.dispatchChannel(ctx, ch)
	}
}

// dispatchChannel drains up to one batch of ready tasks for a channel.
func (s *service) dispatchChannel(ctx context.Context, ch enums.Channel) {
	queue := s.queues[ch]
	batch := s.takeBatch(queue)
	if len(batch) == 0 {
		return
	}

	adapter, err := s.registry.Get(ch)
	if err != nil {
		// No adapter wired for a channel with queued work is a
		// deployment bug; park everything for the operator.
		for _, task := range batch {
			s.deadLetter(ctx, task, err)
		}
		return
	}

	for _, task := range batch {
		if ctx.Err() != nil {
			s.requeue(task)
			continue
		}
		if !queue.breaker.Allow() {
			s.requeue(task)
			s.syncCircuitState(ch, queue.breaker.State())
			continue
		}
		s.dispatch(ctx, queue, adapter, task)
	}
	s.syncCircuitState(ch, queue.breaker.State())
}

// takeBatch removes up to BatchSize ready tasks, oldest dates first.
func (s *service) takeBatch(queue *channelQueue) []*Task {
	queue.mu.Lock()
	defer queue.mu.Unlock()

	now := s.now()
	ready := make([]*Task, 0, len(queue.pending))
	for _, task := range queue.pending {
		if task.NotBefore.After(now) {
			continue
		}
		ready = append(ready, task)
	}
	sort.Slice(ready, func(i, j int) bool {
		if !ready[i].Date.Equal(ready[j].Date) {
			return ready[i].Date.Before(ready[j].Date)
		}
		return ready[i].key().externalID < ready[j].key().externalID
	})

	limit := s.cfg.BatchSize
	if limit <= 0 {
		limit = 25
	}
	if len(ready) > limit {
		ready = ready[:limit]
	}
	for _, task := range ready {
		delete(queue.pending, task.key())
	}
	return ready
}

func (s *service) dispatch(ctx context.Context, queue *channelQueue, adapter channels.Adapter, task *Task) {
	ch := task.Channel
	lctx := s.log.WithFields(ctx, map[string]any{
		"channel":        string(ch),
		"room_type_id":   task.RoomTypeID.String(),
		"date":           task.Date.Format("2006-01-02"),
		"kind":           string(task.Kind),
		"target_version": task.TargetVersion,
		"attempt":        task.Attempts + 1,
	})

	mapping, err := s.rooms.GetMapping(ctx, task.RoomTypeID, ch)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.deadLetter(lctx, task, pkgerrors.New(pkgerrors.CodeNotFound, "channel mapping missing"))
			return
		}
		s.requeue(task)
		s.log.Error(lctx, "mapping lookup failed, task requeued", err)
		return
	}
	if !mapping.IsActive {
		// Deactivated mid-flight. The task is moot, not broken.
		s.metrics.IncDispatch(string(ch), metrics.OutcomeStale)
		s.log.Info(lctx, "mapping inactive, task dropped")
		return
	}

	timeout := s.cfg.AdapterTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	started := s.now()
	err = s.push(callCtx, adapter, *mapping, task)
	cancel()
	s.metrics.ObserveDispatch(string(ch), s.now().Sub(started))

	switch {
	case err == nil:
		queue.breaker.Success()
		s.monitor.RecordSuccess(ch)
		s.metrics.IncDispatch(string(ch), metrics.OutcomeSuccess)

	case pkgerrors.HasCode(err, pkgerrors.CodeStaleVersion):
		// The channel already holds a newer version; nothing to retry.
		queue.breaker.Success()
		s.monitor.RecordSuccess(ch)
		s.metrics.IncDispatch(string(ch), metrics.OutcomeStale)
		s.log.Info(lctx, "channel reported newer version, task dropped")

	case pkgerrors.HasCode(err, pkgerrors.CodeChannelRejected):
		// Permanent: the channel answered and said no.
		queue.breaker.Success()
		s.monitor.RecordFailure(ch, err)
		s.metrics.IncDispatch(string(ch), metrics.OutcomeRejected)
		s.deadLetter(lctx, task, err)

	default:
		opened := queue.breaker.Failure()
		s.monitor.RecordFailure(ch, err)
		s.metrics.IncDispatch(string(ch), metrics.OutcomeFailure)

		task.Attempts++
		maxAttempts := s.cfg.MaxAttempts
		if maxAttempts <= 0 {
			maxAttempts = 8
		}
		if task.Attempts >= maxAttempts {
			s.deadLetter(lctx, task, err)
		} else {
			task.NotBefore = s.now().Add(s.backoff(task.Attempts))
			s.requeue(task)
			s.log.Warn(lctx, "dispatch failed, task requeued")
		}
		if opened {
			s.log.Warn(lctx, "circuit opened")
		}
	}
}

// push routes the task to the adapter call matching its kind, enforcing
// the advertised capability set first.
func (s *service) push(ctx context.Context, adapter channels.Adapter, mapping models.ChannelMapping, task *Task) error {
	caps := adapter.Capabilities()
	switch task.Kind {
	case enums.TaskKindAvailability:
		if !caps.Has(channels.CapPushAvailability) {
			return pkgerrors.New(pkgerrors.CodeChannelRejected, "channel does not accept availability pushes")
		}
		return adapter.PushAvailability(ctx, mapping, channels.AvailabilityPush{
			Date:          task.Date,
			Available:     task.Available,
			TargetVersion: task.TargetVersion,
		})
	case enums.TaskKindRate:
		if !caps.Has(channels.CapPushRate) {
			return pkgerrors.New(pkgerrors.CodeChannelRejected, "channel does not accept rate pushes")
		}
		return adapter.PushRate(ctx, mapping, channels.RatePush{
			Date:          task.Date,
			Rate:          task.Rate,
			Currency:      task.Currency,
			TargetVersion: task.TargetVersion,
		})
	case enums.TaskKindCancellation:
		if !caps.Has(channels.CapPullReservations) {
			return pkgerrors.New(pkgerrors.CodeChannelRejected, "channel has no reservation API")
		}
		return adapter.CancelReservation(ctx, mapping, task.ExternalID)
	}
	return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unhandled task kind %q", task.Kind))
}

// requeue puts a task back unless a newer one claimed its key meanwhile.
func (s *service) requeue(task *Task) {
	queue := s.queues[task.Channel]
	queue.mu.Lock()
	defer queue.mu.Unlock()

	key := task.key()
	if existing, ok := queue.pending[key]; ok {
		if existing.TargetVersion >= task.TargetVersion {
			s.metrics.IncCoalesced(string(task.Channel))
			return
		}
	}
	queue.pending[key] = task
}

func (s *service) deadLetter(ctx context.Context, task *Task, cause error) {
	letter := &models.SyncDeadLetter{
		Channel:       task.Channel,
		RoomTypeID:    task.RoomTypeID,
		Date:          task.Date,
		Kind:          task.Kind,
		TargetVersion: task.TargetVersion,
		AttemptCount:  task.Attempts,
		FailedAt:      s.now().UTC(),
	}
	if cause != nil {
		msg := cause.Error()
		letter.LastError = &msg
	}
	if err := s.deadLetters.Create(ctx, letter); err != nil {
		s.log.Error(ctx, "dead-letter write failed", err)
	}
	s.monitor.RecordDeadLetter(task.Channel)
	s.metrics.IncDeadLetter(string(task.Channel))
	s.log.Warn(s.log.WithFields(ctx, map[string]any{
		"channel": string(task.Channel),
		"kind":    string(task.Kind),
	}), "task dead-lettered")
}

// backoff doubles per attempt from the configured base up to the cap.
func (s *service) backoff(attempts int) time.Duration {
	base := s.cfg.BackoffBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	ceiling := s.cfg.BackoffCap
	if ceiling <= 0 {
		ceiling = 2 * time.Minute
	}

	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling
		}
	}
	if delay > ceiling {
		return ceiling
	}
	return delay
}

func (s *service) syncCircuitState(ch enums.Channel, state enums.CircuitState) {
	s.monitor.SetCircuitState(ch, state)
	s.metrics.SetCircuitState(string(ch), circuitGaugeValue(state))
}

func circuitGaugeValue(state enums.CircuitState) float64 {
	switch state {
	case enums.CircuitOpen:
		return 1
	case enums.CircuitHalfOpen:
		return 2
	default:
		return 0
	}
}
