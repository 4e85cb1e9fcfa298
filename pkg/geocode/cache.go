package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// cacheKey returns SHA-256 hex of the normalized address for cache lookup.
func cacheKey(addr AddressInput) string {
	normalized := fmt.Sprintf("%s|%s|%s|%s",
		strings.ToLower(strings.TrimSpace(addr.Street)),
		strings.ToLower(strings.TrimSpace(addr.City)),
		strings.ToLower(strings.TrimSpace(addr.State)),
		strings.TrimSpace(addr.ZipCode),
	)
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

// checkCache looks up a cached geocode result. Returns cached non-matches
// (Matched=false) so the caller skips the providers entirely.
func (g *geocoder) checkCache(ctx context.Context, key string) (*Result, bool) {
	if g.cache == nil {
		return nil, false
	}

	r, found, err := g.cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("geocode cache lookup failed", zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}

	keyPrefix := key
	if len(keyPrefix) > 12 {
		keyPrefix = keyPrefix[:12]
	}
	zap.L().Debug("geocode cache hit", zap.String("key", keyPrefix), zap.Bool("matched", r.Matched))
	return r, true
}

// storeCache inserts a geocode result (match or non-match) into the cache.
// Cache write failures are logged, not returned: the result is still usable.
func (g *geocoder) storeCache(ctx context.Context, key string, result *Result) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Put(ctx, key, *result, g.cacheTTL); err != nil {
		zap.L().Warn("geocode cache store failed", zap.Error(err))
	}
}
