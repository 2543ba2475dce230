package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/pointboard/forum/internal/api/middleware/ip"
	"github.com/pointboard/forum/internal/setup/config"
	"github.com/pointboard/forum/pkg/utils"
	"github.com/redis/rueidis"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	errBlocked     = "temporarily blocked for repeated rate limit violations"
	errRateLimit   = "rate limit exceeded"
	headerRetryAt  = "Retry-After"
	blockKeyPrefix = "rl:block:"

	defaultSharedBlockRecheck = time.Second
)

type limiterState struct {
	mu           sync.Mutex
	limiter      *rate.Limiter
	strikes      int       // Number of times client has violated rate limit
	blockedUntil time.Time // Time until client is blocked for repeated violations
	sharedAfter  time.Time // Earliest time the shared block is looked up again
}

// Middleware implements per-IP rate limiting for API requests. Blocks are
// optionally mirrored to Redis so every API instance honors them.
type Middleware struct {
	limiters *utils.TTLMap[string, *limiterState]
	config   *config.RateLimit
	blocks   rueidis.Client
	recheck  time.Duration
	logger   *zap.Logger
}

// New creates a new rate limiting middleware. blocks may be nil.
func New(config *config.RateLimit, blocks rueidis.Client, logger *zap.Logger) *Middleware {
	// Use the longer of block duration or burst window * 2 for TTL
	ttl := time.Second * time.Duration(config.BurstSize*2)
	if blockTTL := time.Second * time.Duration(config.BlockDuration*2); blockTTL > ttl {
		ttl = blockTTL
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	recheck := time.Duration(config.SharedBlockRecheck) * time.Millisecond
	if recheck <= 0 {
		recheck = defaultSharedBlockRecheck
	}

	return &Middleware{
		limiters: utils.NewTTLMap[string, *limiterState](ttl),
		config:   config,
		blocks:   blocks,
		recheck:  recheck,
		logger:   logger.Named("ratelimit_middleware"),
	}
}

// Close stops the limiter cleanup loop.
func (m *Middleware) Close() {
	m.limiters.Close()
}

// Middleware returns a bunrouter middleware handler for rate limiting.
func (m *Middleware) Middleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		clientIP := ip.FromContext(req.Context())
		if allowed, retryAfter, msg := m.checkRateLimit(req.Context(), clientIP); !allowed {
			if retryAfter > 0 {
				w.Header().Set(headerRetryAt, fmt.Sprintf("%.0f", math.Ceil(retryAfter.Seconds())))
			}
			http.Error(w, msg, http.StatusTooManyRequests)
			return nil
		}
		return next(w, req)
	}
}

// getLimiter returns the limiter state for the specified IP.
func (m *Middleware) getLimiter(clientIP string) *limiterState {
	return m.limiters.GetOrSet(clientIP, func() *limiterState {
		return &limiterState{
			limiter: rate.NewLimiter(rate.Limit(m.config.RequestsPerSecond), m.config.BurstSize),
		}
	})
}

// handleStrikes blocks the client once strikes reach the limit.
func (m *Middleware) handleStrikes(ctx context.Context, state *limiterState, clientIP string) (bool, time.Duration) {
	if m.config.StrikeLimit <= 0 || state.strikes < m.config.StrikeLimit {
		return true, 0
	}

	blockDuration := time.Duration(m.config.BlockDuration) * time.Second
	state.blockedUntil = time.Now().Add(blockDuration)
	state.strikes = 0

	m.logger.Debug("Client exceeded strike limit and is now blocked",
		zap.String("ip", clientIP),
		zap.Int("strikes", m.config.StrikeLimit),
		zap.Duration("block_duration", blockDuration))

	if m.blocks != nil && blockDuration > 0 {
		cmd := m.blocks.B().Set().Key(blockKeyPrefix + clientIP).Value("1").Ex(blockDuration).Build()
		if err := m.blocks.Do(ctx, cmd).Error(); err != nil {
			m.logger.Error("Failed to share block", zap.String("ip", clientIP), zap.Error(err))
		}
	}

	return false, blockDuration
}

// checkBlocked reports whether the client is blocked locally. The caller
// holds state.mu. needShared is set when the shared block is due for a lookup.
func (m *Middleware) checkBlocked(state *limiterState, clientIP string, now time.Time) (blocked bool, retryAfter time.Duration, needShared bool) {
	if now.Before(state.blockedUntil) {
		retryAfter = state.blockedUntil.Sub(now).Round(time.Second)
		m.logger.Debug("Client is temporarily blocked",
			zap.String("ip", clientIP),
			zap.Duration("retry_after", retryAfter))
		return true, retryAfter, false
	}

	if m.blocks == nil || now.Before(state.sharedAfter) {
		return false, 0, false
	}

	// Claim the lookup so concurrent requests from the same client skip it
	state.sharedAfter = now.Add(m.recheck)
	return false, 0, true
}

// sharedBlock returns how long another instance has blocked the client for.
// Lookup failures fail open.
func (m *Middleware) sharedBlock(ctx context.Context, clientIP string) time.Duration {
	ttl, err := m.blocks.Do(ctx, m.blocks.B().Pttl().Key(blockKeyPrefix+clientIP).Build()).AsInt64()
	if err != nil {
		m.logger.Error("Failed to check shared block", zap.String("ip", clientIP), zap.Error(err))
		return 0
	}
	if ttl <= 0 {
		return 0
	}
	return time.Duration(ttl) * time.Millisecond
}

// checkRateLimit reports whether the request may proceed. Rejections carry
// the suggested wait and the message sent to the client.
func (m *Middleware) checkRateLimit(ctx context.Context, clientIP string) (bool, time.Duration, string) {
	state := m.getLimiter(clientIP)

	state.mu.Lock()
	blocked, retryAfter, needShared := m.checkBlocked(state, clientIP, time.Now())
	state.mu.Unlock()

	if blocked {
		return false, retryAfter, errBlocked
	}

	// Redis is queried without holding the client's lock
	var shared time.Duration
	if needShared {
		shared = m.sharedBlock(ctx, clientIP)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if shared > 0 {
		if until := time.Now().Add(shared); until.After(state.blockedUntil) {
			state.blockedUntil = until
		}
		return false, shared.Round(time.Second), errBlocked
	}

	reservation := state.limiter.Reserve()
	if !reservation.OK() {
		state.strikes++

		if allowed, retryAfter := m.handleStrikes(ctx, state, clientIP); !allowed {
			return false, retryAfter, errBlocked
		}

		m.logger.Debug("Rate limit exceeded",
			zap.String("ip", clientIP),
			zap.Int("strikes", state.strikes))

		return false, 0, errRateLimit
	}

	delay := reservation.Delay()
	if delay > 0 {
		state.strikes++
		reservation.Cancel()

		if allowed, retryAfter := m.handleStrikes(ctx, state, clientIP); !allowed {
			return false, retryAfter, errBlocked
		}

		m.logger.Debug("Rate limit delay required",
			zap.String("ip", clientIP),
			zap.Duration("delay", delay),
			zap.Int("strikes", state.strikes))
		return false, delay, errRateLimit
	}

	state.strikes = 0

	return true, 0, ""
}
