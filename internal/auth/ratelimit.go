package auth

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default login throttling values.
const (
	DefaultMaxAttempts     = 5
	DefaultWindow          = 300 * time.Second
	DefaultCleanupInterval = time.Minute
)

// RateLimiterConfig configures the login rate limiter.
type RateLimiterConfig struct {
	// Enabled turns throttling on. A disabled limiter allows everything.
	Enabled bool

	// MaxAttempts is the number of attempts allowed inside Window.
	// Defaults to DefaultMaxAttempts if zero or negative.
	MaxAttempts int

	// Window is the sliding window size.
	// Defaults to DefaultWindow if zero or negative.
	Window time.Duration

	// CleanupInterval is how often identifiers without live attempts are
	// dropped. Defaults to DefaultCleanupInterval if zero or negative.
	CleanupInterval time.Duration

	// Now overrides the clock. Used by tests.
	Now func() time.Time

	// Registerer, when set, receives a gauge of tracked identifiers.
	Registerer prometheus.Registerer
}

// RateLimiter throttles login attempts per identifier over a sliding window.
// It is safe for concurrent use.
//
// A background goroutine periodically drops identifiers whose attempts have
// all expired. Call Close to stop it.
type RateLimiter struct {
	mu          sync.Mutex
	attempts    map[string][]time.Time
	enabled     bool
	maxAttempts int
	window      time.Duration
	now         func() time.Time

	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	trackedGa prometheus.Gauge
}

// NewRateLimiter creates a rate limiter and starts its cleanup goroutine.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}
	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	rl := &RateLimiter{
		attempts:    make(map[string][]time.Time),
		enabled:     cfg.Enabled,
		maxAttempts: maxAttempts,
		window:      window,
		now:         now,
		stopChan:    make(chan struct{}),
	}

	if cfg.Registerer != nil {
		rl.trackedGa = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marathon_login_ratelimit_identifiers",
			Help: "Current number of identifiers tracked by the login rate limiter",
		})
		cfg.Registerer.MustRegister(rl.trackedGa)
	}

	rl.wg.Add(1)
	go rl.cleanupLoop(cleanupInterval)

	return rl
}

// Allowed records an attempt for id and reports whether it is within the
// limit. A rejected attempt is not recorded.
func (rl *RateLimiter) Allowed(id string) bool {
	if !rl.enabled {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	live := rl.purgeLocked(id, now)
	if len(live) >= rl.maxAttempts {
		return false
	}

	rl.attempts[id] = append(live, now)
	rl.updateGaugeLocked()
	return true
}

// RemainingSeconds returns how long until the oldest live attempt for id
// leaves the window. It is 0 when nothing is recorded or the limiter is off.
func (rl *RateLimiter) RemainingSeconds(id string) int {
	if !rl.enabled {
		return 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	live := rl.purgeLocked(id, now)
	if len(live) == 0 {
		return 0
	}

	remaining := rl.window - now.Sub(live[0])
	if remaining <= 0 {
		return 0
	}
	return int(remaining / time.Second)
}

// Reset forgets every attempt recorded for id.
func (rl *RateLimiter) Reset(id string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	delete(rl.attempts, id)
	rl.updateGaugeLocked()
}

// Sweep drops identifiers that have no attempts left inside the window.
func (rl *RateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for id := range rl.attempts {
		rl.purgeLocked(id, now)
	}
	rl.updateGaugeLocked()
}

// Tracked returns the number of identifiers currently held in memory.
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.attempts)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
	})
	rl.wg.Wait()
}

// purgeLocked removes expired timestamps for id and returns the survivors,
// oldest first. Identifiers left empty are deleted. Caller holds rl.mu.
func (rl *RateLimiter) purgeLocked(id string, now time.Time) []time.Time {
	stamps, ok := rl.attempts[id]
	if !ok {
		return nil
	}

	live := stamps[:0]
	for _, ts := range stamps {
		if now.Sub(ts) < rl.window {
			live = append(live, ts)
		}
	}
	if len(live) == 0 {
		delete(rl.attempts, id)
		return nil
	}
	rl.attempts[id] = live
	return live
}

func (rl *RateLimiter) updateGaugeLocked() {
	if rl.trackedGa != nil {
		rl.trackedGa.Set(float64(len(rl.attempts)))
	}
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	defer rl.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}
