package judge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// ScoreCache is the subset of the cache layer the caching scorer needs.
// *cache.CacheAside[ScoreResult] satisfies it.
type ScoreCache interface {
	Get(ctx context.Context, key string, loader func(ctx context.Context) (ScoreResult, error)) (ScoreResult, error)
}

// CachingScorer wraps a Scorer with a cache so repeated runs over the
// same dataset do not re-spend tokens on answers already judged.
type CachingScorer struct {
	inner  Scorer
	cache  ScoreCache
	scope  string
	hits   atomic.Int64
	misses atomic.Int64
}

var _ Scorer = (*CachingScorer)(nil)

// NewCachingScorer creates a caching wrapper around inner. The scope
// string partitions cache entries; use CacheScope so entries are only
// shared between runs with identical scoring inputs.
func NewCachingScorer(inner Scorer, cache ScoreCache, scope string) *CachingScorer {
	return &CachingScorer{
		inner: inner,
		cache: cache,
		scope: scope,
	}
}

// Score returns the cached result for this criterion and input, scoring
// through the inner Scorer on a miss.
func (c *CachingScorer) Score(ctx context.Context, criterion Criterion, input CaseInput) (*ScoreResult, error) {
	loaded := false
	result, err := c.cache.Get(ctx, c.cacheKey(criterion, input), func(ctx context.Context) (ScoreResult, error) {
		loaded = true
		scored, err := c.inner.Score(ctx, criterion, input)
		if err != nil {
			return ScoreResult{}, err
		}
		return *scored, nil
	})
	if err != nil {
		return nil, err
	}

	if loaded {
		c.misses.Add(1)
	} else {
		c.hits.Add(1)
	}
	return &result, nil
}

// CacheStats reports cache effectiveness for a run.
type CacheStats struct {
	Hits   int64
	Misses int64
}

// Stats returns hit and miss counts since construction.
func (c *CachingScorer) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// cacheKey hashes the scoring inputs. JSON keeps field boundaries
// unambiguous when questions or answers contain separator characters.
func (c *CachingScorer) cacheKey(criterion Criterion, input CaseInput) string {
	payload, _ := json.Marshal(struct {
		Scope     string `json:"scope"`
		Criterion string `json:"criterion"`
		Question  string `json:"question"`
		Answer    string `json:"answer"`
	}{c.scope, criterion.Name, input.Question, input.Answer})
	sum := sha256.Sum256(payload)
	return "score:" + hex.EncodeToString(sum[:])
}

// CacheScope derives a cache scope from the judge configuration. Every
// input that affects a ScoreResult is folded in so cached entries never
// leak between runs judged differently.
func CacheScope(provider string, cfg Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%g|%d|%g", provider, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.DefaultThreshold)

	names := make([]string, 0, len(cfg.Thresholds))
	for name := range cfg.Thresholds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "|%s=%g", name, cfg.Thresholds[name])
	}
	return b.String()
}
