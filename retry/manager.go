package retry

import (
	"context"
	"math"
	"time"

	"github.com/cesium-ml/baselayer/logger"
)

const (
	INITIAL_RETRY_DELAY      = time.Second
	MAX_RETRY_DELAY          = 30 * time.Second
	RETRY_BACKOFF_MULTIPLIER = 1.5
)

// Backoff holds the parameters of an exponential reconnect schedule.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Decay   float64
}

func DefaultBackoff() Backoff {
	return Backoff{
		Initial: INITIAL_RETRY_DELAY,
		Max:     MAX_RETRY_DELAY,
		Decay:   RETRY_BACKOFF_MULTIPLIER,
	}
}

// Delay returns min(Max, Initial * Decay^attempt).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	decay := b.Decay
	if decay < 1 {
		decay = 1
	}
	delay := float64(b.Initial) * math.Pow(decay, float64(attempt))
	if b.Max > 0 && (delay > float64(b.Max) || math.IsInf(delay, 1)) {
		return b.Max
	}
	return time.Duration(delay)
}

// Manager tracks reconnect attempts against a Backoff schedule. It is not
// safe for concurrent use; the owning connection controller serialises
// access.
type Manager struct {
	backoff     Backoff
	maxAttempts int
	attempt     int
	logger      logger.Logger
}

// NewManager builds a manager. maxAttempts of 0 retries forever.
func NewManager(backoff Backoff, maxAttempts int, logger logger.Logger) *Manager {
	return &Manager{
		backoff:     backoff,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// ShouldReconnect reports whether another attempt is allowed. Call it before
// WaitBeforeReconnect so an exhausted cap stops without sleeping.
func (m *Manager) ShouldReconnect() bool {
	if m.maxAttempts > 0 && m.attempt >= m.maxAttempts {
		m.logger.Info("Max reconnection attempts (%d) reached", m.maxAttempts)
		return false
	}
	return true
}

// NextDelay is the wait before the next attempt.
func (m *Manager) NextDelay() time.Duration {
	return m.backoff.Delay(m.attempt)
}

// WaitBeforeReconnect sleeps for NextDelay and then counts the attempt.
func (m *Manager) WaitBeforeReconnect(ctx context.Context) error {
	delay := m.NextDelay()
	m.logger.Warn("Waiting %v before reconnection attempt %d", delay, m.attempt+1)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		m.attempt++
		return nil
	}
}

func (m *Manager) Reset() {
	if m.attempt > 0 {
		m.logger.Info("Reconnection manager reset - connection successful")
	}
	m.attempt = 0
}

func (m *Manager) GetAttempt() int {
	return m.attempt
}

func (m *Manager) GetMaxAttempts() int {
	return m.maxAttempts
}
