// ratelimit.go groups per-category request throttles for the Exchange
// engine's request adapters. Adapted from the teacher's hand-rolled
// TokenBucket (internal/exchange/ratelimit.go in the original) onto
// golang.org/x/time/rate's token bucket, since that library is already a
// dependency this rewrite carries forward and duplicates exactly what the
// teacher's bucket did by hand.
package exchange

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter groups rate.Limiters by request category. The Exchange engine
// calls the matching Wait method before each adapter call.
type RateLimiter struct {
	Order  *rate.Limiter
	Cancel *rate.Limiter
	Book   *rate.Limiter
}

// NewRateLimiter builds a RateLimiter with conservative default burst/rate
// pairs; a real adapter would size these to its exchange's published limits
// the way the teacher sized Polymarket's to 3500/3000/1500 per 10s window.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		Order:  rate.NewLimiter(rate.Limit(50), 350),
		Cancel: rate.NewLimiter(rate.Limit(30), 300),
		Book:   rate.NewLimiter(rate.Limit(15), 150),
	}
}

// WaitOrder, WaitCancel and WaitBook block until ctx is cancelled or a token
// is available in the matching limiter.
func (l *RateLimiter) WaitOrder(ctx context.Context) error  { return l.Order.Wait(ctx) }
func (l *RateLimiter) WaitCancel(ctx context.Context) error { return l.Cancel.Wait(ctx) }
func (l *RateLimiter) WaitBook(ctx context.Context) error   { return l.Book.Wait(ctx) }
