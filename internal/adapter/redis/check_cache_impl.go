package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/pkg/utils"
)

const checkResultPrefix = "linkcheck:result:"

// cachedResult is the JSON stored under each key.
type cachedResult struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// CheckCacheImpl provides a concrete implementation for the CheckCacheRepository interface using Redis.
type CheckCacheImpl struct {
	client redis.Cmdable
}

// NewCheckCache creates a new instance of CheckCacheImpl.
func NewCheckCache(client redis.Cmdable) *CheckCacheImpl {
	return &CheckCacheImpl{client: client}
}

func (c *CheckCacheImpl) key(url string) string {
	return checkResultPrefix + utils.HashURL(url)
}

// Get returns the cached result for url. A miss is (zero, false, nil).
func (c *CheckCacheImpl) Get(ctx context.Context, url string) (entity.CheckResult, bool, error) {
	raw, err := c.client.Get(ctx, c.key(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return entity.CheckResult{}, false, nil
	}
	if err != nil {
		return entity.CheckResult{}, false, err
	}

	var cr cachedResult
	if err := json.Unmarshal(raw, &cr); err != nil {
		return entity.CheckResult{}, false, fmt.Errorf("decode cached result: %w", err)
	}
	status, err := entity.ParseLinkStatus(cr.Status)
	if err != nil || status == entity.StatusUnchecked {
		return entity.CheckResult{}, false, nil
	}
	return entity.CheckResult{Status: status, Reason: cr.Reason}, true, nil
}

// Put stores a verdict with SETEX so it expires after ttl.
func (c *CheckCacheImpl) Put(ctx context.Context, url string, result entity.CheckResult, ttl time.Duration) error {
	raw, err := json.Marshal(cachedResult{Status: result.Status.String(), Reason: result.Reason})
	if err != nil {
		return err
	}
	return c.client.SetEx(ctx, c.key(url), raw, ttl).Err()
}
