package middleware

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"KlineScope/internal/domain/models"
	domrepo "KlineScope/internal/domain/repository"

	"github.com/cenkalti/backoff/v4"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, c *models.StreamCandle) error
	ProcessBatch(ctx context.Context, candles []*models.StreamCandle) error
}

// CandlePipeline sits between the kline stream and the sink. It validates
// closed candles, drops replays of already forwarded buckets, and buffers
// candles while the sink is failing. Candles reach the sink in the order
// Process accepted them.
type CandlePipeline struct {
	proc      Proc
	metrics   domrepo.Metrics
	bufSize   int
	batchSize int
	bufCh     chan *models.StreamCandle
	queued    atomic.Int64 // buffered plus the batch being flushed

	mu       sync.Mutex
	started  bool
	stopCh   chan struct{}
	done     chan struct{}
	lastSeen map[string]int64 // symbol|interval -> open time of the last accepted candle
	carry    []*models.StreamCandle

	newBackOff func() backoff.BackOff
}

type PipelineOption func(*CandlePipeline)

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *CandlePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBatchSize caps how many buffered candles are flushed per write.
func WithBatchSize(n int) PipelineOption {
	return func(p *CandlePipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithRetryBackOff sets the delay policy between failed flushes.
func WithRetryBackOff(fn func() backoff.BackOff) PipelineOption {
	return func(p *CandlePipeline) { p.newBackOff = fn }
}

// NewCandlePipeline creates a new pipeline.
func NewCandlePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *CandlePipeline {
	p := &CandlePipeline{
		proc:      proc,
		metrics:   metrics,
		bufSize:   1000,
		batchSize: 100,
		lastSeen:  make(map[string]int64),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			b.MaxElapsedTime = 0
			b.Reset()
			return b
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.StreamCandle, p.bufSize)
	return p
}

// Start launches background flushing of buffered candles.
func (p *CandlePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	go p.flushLoop(ctx, p.stopCh, p.done)
}

// Stop stops the background flushing and waits for it to exit.
func (p *CandlePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	done := p.done
	p.mu.Unlock()
	<-done
}

// Buffered returns the number of candles waiting for the sink, including a
// batch currently being flushed.
func (p *CandlePipeline) Buffered() int { return int(p.queued.Load()) }

// Process validates c and forwards it, buffering on sink errors. Open
// candles and replays are dropped without error. While older candles are
// still buffered, c queues behind them instead of going to the sink directly.
func (p *CandlePipeline) Process(ctx context.Context, c *models.StreamCandle) error {
	start := time.Now()
	if err := validateCandle(c); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !c.IsClosed || !p.accept(c) {
		return nil
	}

	if p.queued.Load() > 0 {
		if !p.enqueue(c) {
			return fmt.Errorf("pipeline buffer full, dropped %s %d", c.Symbol, c.Time)
		}
		return nil
	}

	if err := p.proc.Process(ctx, c); err != nil {
		p.metrics.RecordError("pipeline_process")
		p.enqueue(c)
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func (p *CandlePipeline) enqueue(c *models.StreamCandle) bool {
	p.queued.Add(1)
	select {
	case p.bufCh <- c:
		return true
	default:
		p.queued.Add(-1)
		p.metrics.RecordError("pipeline_buffer_full")
		return false
	}
}

func (p *CandlePipeline) flushLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	bo := p.newBackOff()

	p.mu.Lock()
	batch := p.carry
	p.carry = nil
	p.mu.Unlock()

	for {
		if len(batch) == 0 {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case c := <-p.bufCh:
				batch = append(batch, c)
			}
		}
	drain:
		for len(batch) < p.batchSize {
			select {
			case c := <-p.bufCh:
				batch = append(batch, c)
			default:
				break drain
			}
		}

		// a failed batch is retried as is so newer candles stay behind it
		for {
			err := p.proc.ProcessBatch(ctx, batch)
			if err == nil {
				break
			}
			p.metrics.RecordError("pipeline_flush")
			wait := bo.NextBackOff()
			if wait == backoff.Stop {
				wait = time.Second
			}
			select {
			case <-stop:
				p.keep(batch)
				return
			case <-ctx.Done():
				p.keep(batch)
				return
			case <-time.After(wait):
			}
		}
		p.queued.Add(-int64(len(batch)))
		bo.Reset()
		batch = nil
	}
}

// keep holds an unflushed batch for the next flush loop.
func (p *CandlePipeline) keep(batch []*models.StreamCandle) {
	p.mu.Lock()
	p.carry = batch
	p.mu.Unlock()
}

// accept reports whether c opens a newer bucket than the last one forwarded
// for its symbol and interval.
func (p *CandlePipeline) accept(c *models.StreamCandle) bool {
	key := c.Symbol + "|" + c.Interval
	p.mu.Lock()
	defer p.mu.Unlock()
	if last, ok := p.lastSeen[key]; ok && c.Time <= last {
		return false
	}
	p.lastSeen[key] = c.Time
	return true
}

func validateCandle(c *models.StreamCandle) error {
	if c == nil {
		return fmt.Errorf("candle nil")
	}
	if c.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if c.Time <= 0 {
		return fmt.Errorf("open time invalid")
	}
	if c.Open < 0 || c.High < 0 || c.Low < 0 || c.Close < 0 || c.Volume < 0 {
		return fmt.Errorf("negative price/volume")
	}
	if c.High < c.Low {
		return fmt.Errorf("high below low")
	}
	return nil
}
