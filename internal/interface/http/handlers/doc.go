// Package handlers contains health checks and reusable middleware for the
// HTTP API.
//
// # Health Checks
//
// Required checks decide readiness; optional checks only mark the service
// degraded:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("postgres", handlers.NewPingCheck(pool))
//	checker.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
//	checker.AddOptionalCheck("cohort_index_breaker", handlers.NewBreakerCheck(index.Breaker()))
//
//	status := checker.Check(ctx)
//
// # Middleware
//
//	handler := handlers.ChainHandler(
//	    router,
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.NoCacheMiddleware,
//	    handlers.RequestSizeLimitMiddleware(1<<20),
//	)
package handlers
