// Package throttle spaces out requests to a remote host.
//
// Throttle.Wait sleeps for a uniformly random duration in [0, max) so that
// downloads never follow a fixed, easily fingerprinted interval. A Limiter
// can be attached to add a hard cap on top of the jitter:
//
//	th := throttle.New(throttle.WithLimiter(throttle.NewTokenBucket(30, time.Minute)))
//	if err := th.Wait(ctx, 3*time.Second); err != nil {
//	    return err // ctx was cancelled
//	}
//
// All types are safe for concurrent use.
package throttle
