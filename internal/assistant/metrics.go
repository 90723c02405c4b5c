package assistant

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce        sync.Once
	summaryCacheHits   otelmetric.Int64Counter
	summaryCacheMisses otelmetric.Int64Counter
	loopIterations     otelmetric.Int64Counter
	assembleRequests   otelmetric.Int64Counter
)

func initMetrics() {
	meter := otel.Meter("hive/assistant")
	var err error
	summaryCacheHits, err = meter.Int64Counter(
		"summary_cache_hits_total",
		otelmetric.WithDescription("Cached summaries served without regeneration"),
	)
	if err != nil {
		log.Printf("assistant metrics init: summary_cache_hits_total: %v", err)
	}
	summaryCacheMisses, err = meter.Int64Counter(
		"summary_cache_misses_total",
		otelmetric.WithDescription("Cached summary lookups that required regeneration"),
	)
	if err != nil {
		log.Printf("assistant metrics init: summary_cache_misses_total: %v", err)
	}
	loopIterations, err = meter.Int64Counter(
		"tool_loop_iterations_total",
		otelmetric.WithDescription("Reasoning-engine round trips inside the tool loop"),
	)
	if err != nil {
		log.Printf("assistant metrics init: tool_loop_iterations_total: %v", err)
	}
	assembleRequests, err = meter.Int64Counter(
		"context_assemblies_total",
		otelmetric.WithDescription("Context snapshots assembled"),
	)
	if err != nil {
		log.Printf("assistant metrics init: context_assemblies_total: %v", err)
	}
}

func recordCacheHit(ctx context.Context, typ string) {
	metricsOnce.Do(initMetrics)
	if summaryCacheHits != nil {
		summaryCacheHits.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("type", typ)))
	}
}

func recordCacheMiss(ctx context.Context, typ string) {
	metricsOnce.Do(initMetrics)
	if summaryCacheMisses != nil {
		summaryCacheMisses.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("type", typ)))
	}
}

func recordLoopIterations(ctx context.Context, n int) {
	metricsOnce.Do(initMetrics)
	if loopIterations != nil {
		loopIterations.Add(ctx, int64(n))
	}
}

func recordAssembly(ctx context.Context, mode string) {
	metricsOnce.Do(initMetrics)
	if assembleRequests != nil {
		assembleRequests.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("mode", mode)))
	}
}
