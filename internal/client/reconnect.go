package client

import (
	"sync"
	"time"
)

// SupervisorState is the reconnection state machine position
type SupervisorState int

const (
	StateIdle SupervisorState = iota
	StateConnecting
	StateConnected
	StateBackoff
	StateCooldown
)

func (s SupervisorState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	case StateCooldown:
		return "cooldown"
	}
	return "unknown"
}

// SupervisorConfig tunes reconnection behavior
type SupervisorConfig struct {
	BaseDelay     time.Duration // first retry delay
	MaxDelay      time.Duration // exponential backoff cap
	MaxAttempts   int           // rapid attempts tolerated before cooldown
	AttemptWindow time.Duration // attempts closer together than this count as rapid
	Cooldown      time.Duration // fixed pause after a rapid-attempt loop
}

// DefaultSupervisorConfig returns the production defaults
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		BaseDelay:     time.Second,
		MaxDelay:      30 * time.Second,
		MaxAttempts:   3,
		AttemptWindow: 3 * time.Second,
		Cooldown:      10 * time.Second,
	}
}

// Supervisor implements the client-side reconnection policy: exponential
// backoff min(base·2^n, max) with n reset on success, plus loop detection
// that forces a fixed cooldown when attempts hammer the server in a tight
// window regardless of the computed backoff.
type Supervisor struct {
	cfg SupervisorConfig

	mu          sync.Mutex
	state       SupervisorState
	failures    int
	rapid       int
	lastAttempt time.Time

	now func() time.Time // stubbed in tests
}

// NewSupervisor creates a supervisor in the idle state
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	return &Supervisor{cfg: cfg, now: time.Now}
}

// State returns the current state
func (s *Supervisor) State() SupervisorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connecting marks the start of a connection attempt
func (s *Supervisor) Connecting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateConnecting
}

// Connected marks a successful connection, resetting the failure counter
// and the rapid-attempt window
func (s *Supervisor) Connected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateConnected
	s.failures = 0
	s.rapid = 0
}

// Failed records a failed attempt (or a dropped connection) and returns
// how long to wait before the next attempt
func (s *Supervisor) Failed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.lastAttempt.IsZero() && now.Sub(s.lastAttempt) <= s.cfg.AttemptWindow {
		s.rapid++
	} else {
		s.rapid = 1
	}
	s.lastAttempt = now

	if s.rapid > s.cfg.MaxAttempts {
		s.rapid = 0
		s.state = StateCooldown
		return s.cfg.Cooldown
	}

	delay := s.cfg.BaseDelay << uint(s.failures)
	if delay <= 0 || delay > s.cfg.MaxDelay {
		delay = s.cfg.MaxDelay
	}
	s.failures++
	s.state = StateBackoff
	return delay
}

// Reset returns the supervisor to idle, clearing all counters
func (s *Supervisor) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.failures = 0
	s.rapid = 0
	s.lastAttempt = time.Time{}
}
