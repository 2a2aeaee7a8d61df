/*
Package monitoring provides Prometheus metrics for the kiosk shell.

# Overview

Metrics cover the HTTP control surface, the view lifecycle (creations,
teardowns, state transitions, dropped duplicate shows, surfaced load
failures), idle resets and websocket fan-out.

Every collector is registered on a per-instance registry, so several
Metrics values can coexist in one process (tests do this). A nil *Metrics
records nothing.

# Usage

	metrics := monitoring.NewMetrics()

	router := mux.NewRouter()
	router.Use(monitoring.Middleware(metrics))
	router.Handle("/metrics", monitoring.Handler(metrics))

	metrics.IncViewsCreated()
	metrics.RecordTransition("creating", "active")
*/
package monitoring
