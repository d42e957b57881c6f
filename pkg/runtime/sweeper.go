package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// The sweeper periodically forces the retention passes on every registered
// agent's memory store, so entries expire even on agents that rarely write.

func (p *Pool) startSweeper() {
	if p.sweepInterval <= 0 {
		p.logger.Info("runtime.memory.sweeper.disabled",
			slog.Duration("interval", p.sweepInterval))
		return
	}
	if p.sweepCancel != nil {
		p.stopSweeper()
	}
	initSweepMetrics()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.sweepCancel = cancel
	p.sweepDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.sweepInterval)
		defer ticker.Stop()
		p.logger.Info("runtime.memory.sweeper.start",
			slog.Duration("interval", p.sweepInterval))
		for {
			select {
			case <-ctx.Done():
				p.logger.Info("runtime.memory.sweeper.stop")
				return
			case <-ticker.C:
				p.sweepOnce(ctx)
			}
		}
	}()
}

func (p *Pool) stopSweeper() {
	if p.sweepCancel == nil {
		return
	}
	p.sweepCancel()
	if p.sweepDone != nil {
		<-p.sweepDone
	}
	p.sweepCancel = nil
	p.sweepDone = nil
}

func (p *Pool) sweepOnce(ctx context.Context) {
	sweepStart := time.Now()
	sweepCtx := ctx
	var cancel context.CancelFunc
	if p.sweepTimeout > 0 {
		sweepCtx, cancel = context.WithTimeout(ctx, p.sweepTimeout)
		defer cancel()
	}

	holders := p.memoryHolders()
	sweepCtx, span := p.tracer.Start(sweepCtx, "runtime.memory.sweep",
		trace.WithAttributes(attribute.Int("agents", len(holders))))
	defer span.End()
	traceID, spanID := traceIDs(span)

	for agentID, store := range holders {
		start := time.Now()
		removed, err := store.Sweep(sweepCtx)
		durationMs := float64(time.Since(start).Seconds() * 1000)
		sweepCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("agent.id", agentID)))
		sweepLatencyMs.Record(ctx, durationMs, metric.WithAttributes(
			attribute.String("agent.id", agentID)))
		if err != nil {
			sweepErrorCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("agent.id", agentID)))
			span.RecordError(err)
			p.logger.Warn("runtime.memory.sweep.error",
				slog.String("agent_id", agentID),
				slog.Float64("duration_ms", durationMs),
				slog.String("trace_id", traceID),
				slog.String("span_id", spanID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if removed > 0 {
			sweptCounter.Add(ctx, int64(removed), metric.WithAttributes(
				attribute.String("agent.id", agentID)))
			p.logger.Info("runtime.memory.sweep.agent",
				slog.String("agent_id", agentID),
				slog.Int("removed", removed),
				slog.Float64("duration_ms", durationMs),
				slog.String("trace_id", traceID),
				slog.String("span_id", spanID),
			)
		}
	}

	sweepTotalLatencyMs.Record(ctx, float64(time.Since(sweepStart).Seconds()*1000),
		metric.WithAttributes(attribute.Int("agents", len(holders))))
}

// memoryHolders snapshots the stores of registered agents that own one.
func (p *Pool) memoryHolders() map[string]sweepableStore {
	p.mu.RLock()
	defer p.mu.RUnlock()
	holders := make(map[string]sweepableStore, len(p.agents))
	for id, a := range p.agents {
		if h, ok := a.(memoryHolder); ok {
			if store := h.Store(); store != nil {
				holders[id] = store
			}
		}
	}
	return holders
}

type sweepableStore interface {
	Sweep(ctx context.Context) (int, error)
}

var (
	sweepMetricsOnce    sync.Once
	sweepCounter        metric.Int64Counter
	sweepErrorCounter   metric.Int64Counter
	sweptCounter        metric.Int64Counter
	sweepLatencyMs      metric.Float64Histogram
	sweepTotalLatencyMs metric.Float64Histogram
)

func initSweepMetrics() {
	sweepMetricsOnce.Do(func() {
		meter := otel.Meter("ergon/runtime")
		sweepCounter, _ = meter.Int64Counter("ergon.runtime.memory.sweep.count")
		sweepErrorCounter, _ = meter.Int64Counter("ergon.runtime.memory.sweep.error.count")
		sweptCounter, _ = meter.Int64Counter("ergon.runtime.memory.swept.count")
		sweepLatencyMs, _ = meter.Float64Histogram("ergon.runtime.memory.sweep.latency_ms")
		sweepTotalLatencyMs, _ = meter.Float64Histogram("ergon.runtime.memory.sweep.total_latency_ms")
	})
}
