package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"CandleKeep/internal/domain/models"
	domrepo "CandleKeep/internal/domain/repository"
	mid "CandleKeep/internal/middleware"
)

// TickProcessor forwards validated ticks to the ingestion transport.
type TickProcessor struct {
	pub     domrepo.Publisher
	metrics domrepo.Metrics
}

// NewTickProcessor creates a new TickProcessor instance.
func NewTickProcessor(pub domrepo.Publisher, metrics domrepo.Metrics) *TickProcessor {
	return &TickProcessor{pub: pub, metrics: metrics}
}

// Process publishes a single tick.
func (p *TickProcessor) Process(ctx context.Context, t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}

	start := time.Now()
	if err := p.pub.Publish(ctx, t); err != nil {
		p.metrics.RecordError("publish")
		return fmt.Errorf("publish tick: %w", err)
	}

	p.metrics.RecordMessageSent("kafka", t.Symbol)
	p.metrics.RecordLatency("publish", time.Since(start).Seconds())
	return nil
}

// ProcessBatch publishes multiple ticks in one transport write.
func (p *TickProcessor) ProcessBatch(ctx context.Context, ticks []*models.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	start := time.Now()
	if err := p.pub.PublishBatch(ctx, ticks); err != nil {
		p.metrics.RecordError("publish_batch")
		return fmt.Errorf("publish batch: %w", err)
	}

	for _, t := range ticks {
		p.metrics.RecordMessageSent("kafka", t.Symbol)
	}
	p.metrics.RecordLatency("publish_batch", time.Since(start).Seconds())
	return nil
}

// Close closes the underlying publisher.
func (p *TickProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
}

// TickCollector reads ticks from the exchange stream and pushes them through
// the realtime pipeline.
type TickCollector struct {
	stream  domrepo.TickStream
	proc    *TickProcessor
	metrics domrepo.Metrics
	pipe    *mid.RealtimePipeline
	stopped atomic.Bool
}

// NewTickCollector creates a new TickCollector instance.
func NewTickCollector(stream domrepo.TickStream, proc *TickProcessor, metrics domrepo.Metrics, pipe *mid.RealtimePipeline) *TickCollector {
	return &TickCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the exchange stream is connected.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	tkCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, tkCh, errCh)
	return nil
}

func (c *TickCollector) consume(ctx context.Context, tkCh <-chan *models.Tick, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
			}
			// An error or a closed channel both mean the read loop is gone;
			// re-dial and swap in the new connection's channels.
			if !ok || err != nil {
				if tkCh, errCh = c.resume(ctx); tkCh == nil {
					return
				}
			}
		case t, ok := <-tkCh:
			if !ok {
				if tkCh, errCh = c.resume(ctx); tkCh == nil {
					return
				}
				continue
			}
			if t == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, t)
			} else {
				_ = c.proc.Process(ctx, t)
			}
			c.metrics.RecordLastPrice(t.Symbol, t.Price)
		}
	}
}

// resume re-dials the stream after a read failure and hands back the new
// connection's channels. Nil channels mean the collector is stopping.
func (c *TickCollector) resume(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	for {
		if ctx.Err() != nil || c.stopped.Load() {
			return nil, nil
		}
		if err := c.stream.Reconnect(ctx); err != nil {
			c.metrics.RecordError("reconnect")
			continue
		}
		return c.stream.Read(ctx)
	}
}

// Processor returns the underlying TickProcessor for lifecycle management.
func (c *TickCollector) Processor() *TickProcessor { return c.proc }

// Shutdown stops the pipeline and closes the stream.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	c.stopped.Store(true)
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
