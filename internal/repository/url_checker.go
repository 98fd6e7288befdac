package repository

import (
	"context"
	"time"

	"github.com/user/linkchecker-service/internal/entity"
)

// URLChecker defines the contract for the URL liveness check.
type URLChecker interface {
	// Check never fails: transport errors are reported as StatusBroken.
	Check(ctx context.Context, url string) entity.CheckResult
}

// CheckCacheRepository remembers recent check results per URL so a link
// shared by many entities is requested once.
type CheckCacheRepository interface {
	Get(ctx context.Context, url string) (entity.CheckResult, bool, error)
	Put(ctx context.Context, url string, result entity.CheckResult, ttl time.Duration) error
}
