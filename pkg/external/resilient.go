package external

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/trialmatch-engine/internal/domain"
)

// ResilientSearchClient wraps the registry and literature clients with
// circuit breakers and caching. It implements both domain.TrialSearcher and
// domain.LiteratureSearcher so the mining engine depends on one
// collaborator regardless of deployment topology.
//
// Trial searches fall back to the Redis cache when the breaker is open;
// literature lookups fall back to the in-process cache.
type ResilientSearchClient struct {
	logger *logrus.Logger

	registry   domain.TrialSearcher
	literature domain.LiteratureSearcher

	trialCache *TrialSearchCache // nil when caching is disabled
	litCache   *LiteratureCache

	registryBreaker   *gobreaker.CircuitBreaker
	literatureBreaker *gobreaker.CircuitBreaker
}

// NewResilientSearchClient creates the combined collaborator. trialCache
// may be nil; the client then degrades to breaker-only behavior for trial
// searches.
func NewResilientSearchClient(
	logger *logrus.Logger,
	registry domain.TrialSearcher,
	literature domain.LiteratureSearcher,
	trialCache *TrialSearchCache,
	litCache *LiteratureCache,
) *ResilientSearchClient {
	onStateChange := func(name string, from gobreaker.State, to gobreaker.State) {
		logger.WithFields(logrus.Fields{
			"breaker": name,
			"from":    from.String(),
			"to":      to.String(),
		}).Warn("Circuit breaker state changed")
	}

	readyToTrip := func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= 3 && failureRatio >= 0.6
	}

	return &ResilientSearchClient{
		logger:     logger,
		registry:   registry,
		literature: literature,
		trialCache: trialCache,
		litCache:   litCache,
		registryBreaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:          "TrialRegistry",
			MaxRequests:   5,
			Interval:      30 * time.Second,
			Timeout:       60 * time.Second,
			ReadyToTrip:   readyToTrip,
			OnStateChange: onStateChange,
		}),
		literatureBreaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:          "Literature",
			MaxRequests:   5,
			Interval:      30 * time.Second,
			Timeout:       60 * time.Second,
			ReadyToTrip:   readyToTrip,
			OnStateChange: onStateChange,
		}),
	}
}

// Search implements domain.TrialSearcher with cache-first reads, breaker
// protection, and cache fallback when the registry is unavailable.
func (r *ResilientSearchClient) Search(ctx context.Context, condition, region string, limit int) ([]domain.Trial, error) {
	if r.trialCache != nil {
		if trials, hit, err := r.trialCache.GetTrials(ctx, condition, region, limit); err == nil && hit {
			return trials, nil
		} else if err != nil {
			r.logger.WithError(err).Debug("Trial cache read failed, querying registry")
		}
	}

	result, err := r.registryBreaker.Execute(func() (interface{}, error) {
		return r.registry.Search(ctx, condition, region, limit)
	})
	if err != nil {
		// Serve stale-tolerant data from the cache while the registry is
		// down rather than failing the whole mining run.
		if err == gobreaker.ErrOpenState && r.trialCache != nil {
			if trials, hit, cacheErr := r.trialCache.GetTrials(ctx, condition, region, limit); cacheErr == nil && hit {
				r.logger.WithField("condition", condition).Warn("Registry breaker open, serving cached trials")
				return trials, nil
			}
		}
		return nil, err
	}

	trials := result.([]domain.Trial)
	if r.trialCache != nil {
		if cacheErr := r.trialCache.SetTrials(ctx, condition, region, limit, trials, 0); cacheErr != nil {
			r.logger.WithError(cacheErr).Debug("Trial cache write failed")
		}
	}
	return trials, nil
}

// SearchArticles implements domain.LiteratureSearcher with an in-process
// TTL cache in front of the breaker.
func (r *ResilientSearchClient) SearchArticles(ctx context.Context, condition string, limit int) ([]domain.Article, error) {
	if r.litCache != nil {
		if articles, hit := r.litCache.Get(condition); hit {
			return articles, nil
		}
	}

	result, err := r.literatureBreaker.Execute(func() (interface{}, error) {
		return r.literature.SearchArticles(ctx, condition, limit)
	})
	if err != nil {
		return nil, err
	}

	articles := result.([]domain.Article)
	if r.litCache != nil {
		r.litCache.Set(condition, articles)
	}
	return articles, nil
}
