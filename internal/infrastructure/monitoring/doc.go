/*
Package monitoring provides metrics collection for the QC pipeline.

# Overview

Collectors are registered on an injected prometheus.Registerer so several
pipelines (or tests) can coexist in one process. Every method is safe on a
nil *Metrics.

# Metrics

- HTTP requests (count, latency)
- Records ingested, skipped by the stream selector, and source errors
- Records processed per worker and QC results per check and validity
- Queue depth for the raw and result queues
- Sink writes (status, latency)
- WebSocket connections and messages

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	timer := monitoring.NewTimer(metrics, "nats")
	err := publish()
	timer.Stop(err)
*/
package monitoring
