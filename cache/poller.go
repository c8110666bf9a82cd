package cache

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Poller refetches every cached key of one kind on a fixed interval,
// independently of the staleness table.
type Poller struct {
	cache  *QueryCache
	policy PollPolicy
	clock  clockwork.Clock
	logger zerolog.Logger
}

// NewPoller creates a poller for policy. The cache's clock and logger are
// reused.
func NewPoller(cache *QueryCache, policy PollPolicy) (*Poller, error) {
	if cache == nil {
		return nil, errors.New("cache: poller requires a cache")
	}
	if policy.Interval <= 0 {
		return nil, errors.New("cache: poll interval must be positive")
	}
	if !supports(policy.Entity, policy.Kind) {
		return nil, errors.New("cache: poll policy targets an unsupported query kind")
	}
	return &Poller{
		cache:  cache,
		policy: policy,
		clock:  cache.clock,
		logger: cache.logger.With().Str("component", "poller").Str("kind", string(policy.Kind)).Logger(),
	}, nil
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.policy.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			p.Poll(ctx)
		}
	}
}

// Poll refetches every matching key once and returns how many refreshed
// successfully.
func (p *Poller) Poll(ctx context.Context) int {
	keys := p.cache.Keys(MatchEntity(p.policy.Entity).Kind(p.policy.Kind))
	refreshed := 0
	for _, key := range keys {
		if _, err := p.cache.Refresh(ctx, key); err != nil {
			p.logger.Warn().Err(err).Str("key", key.String()).Msg("poll refresh failed")
			continue
		}
		refreshed++
	}
	return refreshed
}
