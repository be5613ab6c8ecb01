package swarm

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	minLimit  = 0.1
	backOffBy = 2.0
	recoverBy = 1.5
)

// RateLimiters keeps track of per-host rate limiting of image pulls,
// for an arbitrary set of registry hosts.
//
// Call `*RateLimiters.Wait(ctx, host)` before pulling from a host.
// When the registry says it has had too many requests, call
// `BackOff(host)` to halve the limit for that host; call
// `Recover(host)` when a pull has succeeded without incident, which
// will increase the rate limit modestly back towards the given ideal.
type RateLimiters struct {
	RPS     float64
	Burst   int
	Logger  log.Logger
	perHost map[string]*rate.Limiter
	mu      sync.Mutex
}

func (limiters *RateLimiters) clip(limit float64) float64 {
	if limit < minLimit {
		return minLimit
	}
	if limit > limiters.RPS {
		return limiters.RPS
	}
	return limit
}

func (limiters *RateLimiters) limiter(host string) *rate.Limiter {
	if limiters.perHost == nil {
		limiters.perHost = map[string]*rate.Limiter{}
	}
	rl, ok := limiters.perHost[host]
	if !ok {
		rl = rate.NewLimiter(rate.Limit(limiters.RPS), limiters.Burst)
		limiters.perHost[host] = rl
	}
	return rl
}

// Wait blocks until a pull from host is allowed, or the context ends.
func (limiters *RateLimiters) Wait(ctx context.Context, host string) error {
	limiters.mu.Lock()
	rl := limiters.limiter(host)
	limiters.mu.Unlock()
	// Wait errors out if the pull cannot be made within the deadline.
	// This is pre-emptive, instead of waiting the entire duration.
	if err := rl.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limited")
	}
	return nil
}

// BackOff reduces the limit for a particular host.
func (limiters *RateLimiters) BackOff(host string) {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()

	limiter := limiters.limiter(host)
	oldLimit := float64(limiter.Limit())
	newLimit := limiters.clip(oldLimit / backOffBy)
	if oldLimit != newLimit && limiters.Logger != nil {
		limiters.Logger.Log("info", "reducing rate limit", "host", host, "limit", strconv.FormatFloat(newLimit, 'f', 2, 64))
	}
	limiter.SetLimit(rate.Limit(newLimit))
}

// Recover should be called when a pull has succeeded, to bump the
// limit back up again.
func (limiters *RateLimiters) Recover(host string) {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()
	if limiters.perHost == nil {
		return
	}
	if limiter, ok := limiters.perHost[host]; ok {
		oldLimit := float64(limiter.Limit())
		newLimit := limiters.clip(oldLimit * recoverBy)
		if newLimit != oldLimit && limiters.Logger != nil {
			limiters.Logger.Log("info", "increasing rate limit", "host", host, "limit", strconv.FormatFloat(newLimit, 'f', 2, 64))
		}
		limiter.SetLimit(rate.Limit(newLimit))
	}
}

// Limit reports the current limit for host, or the ideal if nothing
// has been pulled from it yet.
func (limiters *RateLimiters) Limit(host string) float64 {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()
	if rl, ok := limiters.perHost[host]; ok {
		return float64(rl.Limit())
	}
	return limiters.RPS
}

// tooManyRequests recognises the registry's rate limiting response
// as relayed by the docker CLI.
func tooManyRequests(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "toomanyrequests") || strings.Contains(s, "too many requests")
}
