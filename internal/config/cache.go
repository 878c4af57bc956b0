package config

import "time"

// CacheConfig tunes the response cache wrapped around the public browse
// endpoints. Availability reads are deliberately excluded from this layer;
// their freshness is governed by the snapshot cache inside the service,
// which supports invalidation. This one is TTL-only.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads response cache settings from the environment.
func LoadCacheConfig() CacheConfig {
	def := CacheConfig{
		Enabled:      envBool("RESPONSE_CACHE_ENABLED", true),
		TTL:          envDur("RESPONSE_CACHE_TTL", 30*time.Second),
		Prefix:       envStr("RESPONSE_CACHE_PREFIX", "rc"),
		MaxBodyBytes: envInt("RESPONSE_CACHE_MAX_BODY_BYTES", 1<<20),
	}
	if def.TTL <= 0 {
		def.TTL = 30 * time.Second
	}
	if def.MaxBodyBytes < 0 {
		def.MaxBodyBytes = 0
	}
	return def
}
