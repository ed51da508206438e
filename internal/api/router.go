package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/vibefs/internal/app"
	"github.com/charlesng35/vibefs/internal/handlers"
	"github.com/charlesng35/vibefs/internal/middleware"
	"github.com/charlesng35/vibefs/internal/monitoring"
)

// NewRouter builds the Gin engine, wires middleware and registers the resource routes.
// health and rates may be nil: health then always reports up and rate limiting is off.
func NewRouter(cfg *app.Config, resources *handlers.ResourceHandler, health *monitoring.HealthManager, rates middleware.RateStore) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if resources == nil {
		return nil, fmt.Errorf("resource handler must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	registerHealthRoutes(r, health)
	registerResourceRoutes(r, resources, middleware.RateLimit(rates, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window))
	registerMonitoringRoutes(r, cfg.Monitoring.Prometheus)

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
