package health

import (
	"sync"
	"time"

	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
)

// windowSize bounds the rolling outcome window per channel.
const windowSize = 50

// ChannelHealth is a read-only snapshot of one channel's delivery health.
type ChannelHealth struct {
	Channel             enums.Channel      `json:"channel"`
	CircuitState        enums.CircuitState `json:"circuit_state"`
	SuccessRate         float64            `json:"success_rate"`
	WindowSize          int                `json:"window_size"`
	ConsecutiveFailures int                `json:"consecutive_failures"`
	DeadLetters         int64              `json:"dead_letters"`
	LastError           string             `json:"last_error,omitempty"`
	LastErrorAt         *time.Time         `json:"last_error_at,omitempty"`
	LastSuccessAt       *time.Time         `json:"last_success_at,omitempty"`
}

type channelState struct {
	window       []bool // true = success, newest last
	circuit      enums.CircuitState
	consecFails  int
	deadLetters  int64
	lastError    string
	lastErrorAt  *time.Time
	lastSuccess  *time.Time
}

// Monitor aggregates dispatch outcomes per channel. All methods are safe
// for concurrent use.
type Monitor struct {
	mu       sync.RWMutex
	channels map[enums.Channel]*channelState
	now      func() time.Time
}

// NewMonitor builds a monitor pre-seeded with every known channel.
func NewMonitor() *Monitor {
	m := &Monitor{
		channels: map[enums.Channel]*channelState{},
		now:      time.Now,
	}
	for _, ch := range enums.Channels() {
		m.channels[ch] = &channelState{circuit: enums.CircuitClosed}
	}
	return m
}

func (m *Monitor) state(ch enums.Channel) *channelState {
	st, ok := m.channels[ch]
	if !ok {
		st = &channelState{circuit: enums.CircuitClosed}
		m.channels[ch] = st
	}
	return st
}

// RecordSuccess notes a delivered push or probe.
func (m *Monitor) RecordSuccess(ch enums.Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state(ch)
	st.push(true)
	st.consecFails = 0
	now := m.now().UTC()
	st.lastSuccess = &now
}

// RecordFailure notes a failed push or probe.
func (m *Monitor) RecordFailure(ch enums.Channel, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state(ch)
	st.push(false)
	st.consecFails++
	now := m.now().UTC()
	st.lastErrorAt = &now
	if err != nil {
		st.lastError = err.Error()
	}
}

// SetCircuitState mirrors the scheduler's breaker state.
func (m *Monitor) SetCircuitState(ch enums.Channel, state enums.CircuitState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state(ch).circuit = state
}

// RecordDeadLetter notes a task that exhausted its retry budget.
func (m *Monitor) RecordDeadLetter(ch enums.Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state(ch).deadLetters++
}

// Reset clears a channel's window after operator intervention.
func (m *Monitor) Reset(ch enums.Channel) error {
	if !ch.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown channel").
			WithDetails(map[string]any{"channel": string(ch)})
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch] = &channelState{circuit: enums.CircuitClosed}
	return nil
}

// Snapshot returns every channel's health in enum order.
func (m *Monitor) Snapshot() []ChannelHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ChannelHealth, 0, len(m.channels))
	for _, ch := range enums.Channels() {
		st, ok := m.channels[ch]
		if !ok {
			continue
		}
		out = append(out, ChannelHealth{
			Channel:             ch,
			CircuitState:        st.circuit,
			SuccessRate:         st.successRate(),
			WindowSize:          len(st.window),
			ConsecutiveFailures: st.consecFails,
			DeadLetters:         st.deadLetters,
			LastError:           st.lastError,
			LastErrorAt:         st.lastErrorAt,
			LastSuccessAt:       st.lastSuccess,
		})
	}
	return out
}

func (s *channelState) push(success bool) {
	s.window = append(s.window, success)
	if len(s.window) > windowSize {
		s.window = s.window[len(s.window)-windowSize:]
	}
}

func (s *channelState) successRate() float64 {
	if len(s.window) == 0 {
		return 1.0
	}
	succeeded := 0
	for _, ok := range s.window {
		if ok {
			succeeded++
		}
	}
	return float64(succeeded) / float64(len(s.window))
}
