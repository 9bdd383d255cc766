// Package middleware provides HTTP middleware for the metrics server.
//
//	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
//	defer rl.Stop()
//	handler = rl.Middleware(handler)
package middleware
