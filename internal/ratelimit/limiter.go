package ratelimit

import "context"

// RateLimiter controls outbound send throughput per destination endpoint.
type RateLimiter interface {
	Allow(ctx context.Context, endpoint string) (bool, error)
	Wait(ctx context.Context, endpoint string) error
}
