// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// maxLockout caps the exponential lockout backoff.
const maxLockout = 24 * time.Hour

// LoginProtectionConfig holds configuration for login protection.
type LoginProtectionConfig struct {
	// IPRateLimit is login requests per second per client IP.
	IPRateLimit float64
	// IPBurst is the burst size for IPRateLimit.
	IPBurst int
	// MaxFailedAttempts within AttemptWindow locks the account.
	MaxFailedAttempts int
	// LockoutDuration is the first lockout length. Each further lockout doubles it.
	LockoutDuration time.Duration
	// AttemptWindow bounds how long failed attempts are counted.
	AttemptWindow time.Duration
	// SweepInterval controls how often stale accounts are forgotten.
	SweepInterval time.Duration
}

// DefaultLoginProtectionConfig returns the production defaults.
func DefaultLoginProtectionConfig() LoginProtectionConfig {
	return LoginProtectionConfig{
		IPRateLimit:       0.5,
		IPBurst:           5,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		AttemptWindow:     15 * time.Minute,
		SweepInterval:     10 * time.Minute,
	}
}

// withDefaults fills zero or negative fields from DefaultLoginProtectionConfig.
func (c LoginProtectionConfig) withDefaults() LoginProtectionConfig {
	def := DefaultLoginProtectionConfig()
	if c.IPRateLimit <= 0 {
		c.IPRateLimit = def.IPRateLimit
	}
	if c.IPBurst <= 0 {
		c.IPBurst = def.IPBurst
	}
	if c.MaxFailedAttempts <= 0 {
		c.MaxFailedAttempts = def.MaxFailedAttempts
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = def.LockoutDuration
	}
	if c.AttemptWindow <= 0 {
		c.AttemptWindow = def.AttemptWindow
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	return c
}

// accountState is the failure history of one login email.
type accountState struct {
	failures    int
	windowStart time.Time
	lockedUntil time.Time
	lockouts    int
}

func (s *accountState) stale(now time.Time, window time.Duration) bool {
	return !now.Before(s.lockedUntil) && now.Sub(s.windowStart) > window
}

// LoginProtection throttles login requests per client IP and locks accounts
// after repeated credential failures.
type LoginProtection struct {
	cfg      LoginProtectionConfig
	ips      *limiterCache[string]
	now      func() time.Time
	mu       sync.Mutex
	accounts map[string]*accountState
	stop     chan struct{}
	stopOnce sync.Once
}

// NewLoginProtection creates a LoginProtection and starts its sweep
// goroutine. Call Close to stop it.
func NewLoginProtection(cfg LoginProtectionConfig) *LoginProtection {
	cfg = cfg.withDefaults()
	lp := &LoginProtection{
		cfg:      cfg,
		ips:      newLimiterCache[string](cfg.IPRateLimit, cfg.IPBurst),
		now:      time.Now,
		accounts: make(map[string]*accountState),
		stop:     make(chan struct{}),
	}
	go lp.sweepLoop()
	return lp
}

// Close stops the sweep goroutine. It is safe to call more than once.
func (lp *LoginProtection) Close() {
	lp.stopOnce.Do(func() { close(lp.stop) })
}

// accountKey makes lockouts independent of email casing.
func accountKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CheckIPRateLimit reports whether a login request from ip may proceed.
func (lp *LoginProtection) CheckIPRateLimit(ip string) bool {
	return lp.ips.get(ip).Allow()
}

// IsAccountLocked reports whether email is locked and for how much longer.
func (lp *LoginProtection) IsAccountLocked(email string) (bool, time.Duration) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	s, ok := lp.accounts[accountKey(email)]
	if !ok {
		return false, 0
	}
	now := lp.now()
	if now.Before(s.lockedUntil) {
		return true, s.lockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailedAttempt counts a credential failure for email. When the count
// reaches the limit the account is locked and the lock length is returned.
func (lp *LoginProtection) RecordFailedAttempt(email string) (bool, time.Duration) {
	key := accountKey(email)
	now := lp.now()

	lp.mu.Lock()
	defer lp.mu.Unlock()

	s, ok := lp.accounts[key]
	switch {
	case !ok:
		s = &accountState{windowStart: now}
		lp.accounts[key] = s
	case now.Sub(s.windowStart) > lp.cfg.AttemptWindow:
		s.failures = 0
		s.windowStart = now
	}

	s.failures++
	if s.failures < lp.cfg.MaxFailedAttempts {
		slog.Debug("failed login recorded", "email", key, "failures", s.failures)
		return false, 0
	}

	d := lockoutFor(lp.cfg.LockoutDuration, s.lockouts)
	s.lockedUntil = now.Add(d)
	s.lockouts++
	s.failures = 0

	slog.Warn("account locked after failed logins",
		"email", key,
		"lockouts", s.lockouts,
		"duration", d,
	)
	return true, d
}

// lockoutFor doubles base once per previous lockout, capped at maxLockout.
func lockoutFor(base time.Duration, previous int) time.Duration {
	d := base
	for i := 0; i < previous && d < maxLockout; i++ {
		d *= 2
	}
	return min(d, maxLockout)
}

// RecordSuccessfulLogin forgets the failure history of email.
func (lp *LoginProtection) RecordSuccessfulLogin(email string) {
	lp.mu.Lock()
	delete(lp.accounts, accountKey(email))
	lp.mu.Unlock()
}

// RemainingAttempts returns how many failures email may still make before
// it is locked.
func (lp *LoginProtection) RemainingAttempts(email string) int {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	s, ok := lp.accounts[accountKey(email)]
	if !ok || lp.now().Sub(s.windowStart) > lp.cfg.AttemptWindow {
		return lp.cfg.MaxFailedAttempts
	}
	return max(lp.cfg.MaxFailedAttempts-s.failures, 0)
}

func (lp *LoginProtection) sweepLoop() {
	ticker := time.NewTicker(lp.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lp.sweep()
		case <-lp.stop:
			return
		}
	}
}

// sweep drops unlocked accounts whose window has passed and returns how
// many were removed.
func (lp *LoginProtection) sweep() int {
	now := lp.now()
	lp.ips.prune(now, maxLimiterEntries)

	removed := 0
	lp.mu.Lock()
	for key, s := range lp.accounts {
		if s.stale(now, lp.cfg.AttemptWindow) {
			delete(lp.accounts, key)
			removed++
		}
	}
	lp.mu.Unlock()
	return removed
}

// Middleware rate limits POST requests per client IP. Mount it on the
// login route.
func (lp *LoginProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				if ip := GetClientIP(r); !lp.CheckIPRateLimit(ip) {
					slog.Warn("login rate limit exceeded", "ip", ip)
					WriteAPIError(w, http.StatusTooManyRequests, "rate_limit_exceeded",
						"Too many login attempts, try again later", nil)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
