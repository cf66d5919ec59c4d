// Package cache provides an optional redis-backed cache for resolved parcel
// features. Resolution fans out up to ten upstream queries per identifier, so
// caching hits is cheap relief for the county map server. The cache is
// best-effort: a nil *ResolveCache (redis not configured) is a valid no-op.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/parcelforge/api/internal/arcgis"
	"github.com/paulmach/orb/geojson"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "resolve:"

// ResolveCache stores resolved features keyed by the raw identifier.
type ResolveCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a ResolveCache. A nil client yields a nil cache, which every
// method treats as a miss.
func New(client *redis.Client, ttl time.Duration) *ResolveCache {
	if client == nil {
		return nil
	}
	return &ResolveCache{client: client, ttl: ttl}
}

// Open connects to redis. An empty addr disables caching and returns nil.
func Open(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// cachedFeature is the serialized form; orb geometry travels as GeoJSON.
type cachedFeature struct {
	Attributes map[string]interface{} `json:"attributes"`
	Geometry   *geojson.Geometry      `json:"geometry,omitempty"`
}

// Get returns the cached feature for an identifier, if any.
func (c *ResolveCache) Get(ctx context.Context, id string) (arcgis.Feature, bool) {
	if c == nil {
		return arcgis.Feature{}, false
	}

	data, err := c.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		return arcgis.Feature{}, false
	}

	var cached cachedFeature
	if err := json.Unmarshal(data, &cached); err != nil {
		return arcgis.Feature{}, false
	}

	feature := arcgis.Feature{Attributes: cached.Attributes}
	if cached.Geometry != nil {
		feature.Geometry = cached.Geometry.Geometry()
	}
	return feature, true
}

// Put stores a resolved feature. Failures are ignored; the cache is never
// load-bearing.
func (c *ResolveCache) Put(ctx context.Context, id string, feature arcgis.Feature) {
	if c == nil {
		return
	}

	cached := cachedFeature{Attributes: feature.Attributes}
	if feature.Geometry != nil {
		cached.Geometry = geojson.NewGeometry(feature.Geometry)
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return
	}
	c.client.Set(ctx, keyPrefix+id, data, c.ttl)
}
