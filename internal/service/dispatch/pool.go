package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/metrics"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// Runner executes one send. *Engine satisfies it.
type Runner interface {
	SendCampaign(ctx context.Context, req SendRequest) (*domain.DispatchResult, error)
}

// Ack is returned to the caller of an asynchronous send.
type Ack struct {
	TaskID     string    `json:"task_id"`
	CampaignID int64     `json:"campaign_id"`
	QueuedAt   time.Time `json:"queued_at"`
}

// TaskResult is the outcome of a background send.
type TaskResult struct {
	TaskID   string
	Request  SendRequest
	Result   *domain.DispatchResult
	Err      error
	Duration time.Duration
}

// PoolConfig sizes the pool. OnResult, when set, is called from the result
// drainer after the result is logged.
type PoolConfig struct {
	Workers   int
	QueueSize int
	OnResult  func(TaskResult)
}

type task struct {
	id  string
	req SendRequest
}

// Pool runs campaign sends in the background. Workers go through the same
// engine lock as synchronous sends, so adding workers does not add
// concurrency to sending; it only keeps queued requests from waiting on a
// full queue.
type Pool struct {
	runner   Runner
	tasks    chan task
	results  chan TaskResult
	onResult func(TaskResult)

	mu     sync.RWMutex
	closed bool

	workers sync.WaitGroup
	drained chan struct{}
}

// NewPool starts the workers and the result drainer.
func NewPool(runner Runner, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	p := &Pool{
		runner:   runner,
		tasks:    make(chan task, cfg.QueueSize),
		results:  make(chan TaskResult, cfg.Workers),
		onResult: cfg.OnResult,
		drained:  make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.workers.Add(1)
		go p.work()
	}
	go p.drain()
	go func() {
		p.workers.Wait()
		close(p.results)
	}()
	return p
}

// Submit queues req and returns without waiting for it to run.
func (p *Pool) Submit(req SendRequest) (Ack, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return Ack{}, ErrPoolClosed
	}
	t := task{id: uuid.NewString(), req: req}
	select {
	case p.tasks <- t:
	default:
		return Ack{}, ErrQueueFull
	}
	metrics.AsyncQueueDepth.Set(float64(len(p.tasks)))
	logger.Info("[dispatch.Pool] campaign send queued", "task_id", t.id, "campaign_id", req.CampaignID)
	return Ack{TaskID: t.id, CampaignID: req.CampaignID, QueuedAt: time.Now()}, nil
}

func (p *Pool) work() {
	defer p.workers.Done()
	for t := range p.tasks {
		metrics.AsyncQueueDepth.Set(float64(len(p.tasks)))
		start := time.Now()
		res, err := p.runner.SendCampaign(context.Background(), t.req)
		p.results <- TaskResult{TaskID: t.id, Request: t.req, Result: res, Err: err, Duration: time.Since(start)}
	}
}

func (p *Pool) drain() {
	defer close(p.drained)
	for r := range p.results {
		if r.Err != nil {
			logger.Error("[dispatch.Pool] async campaign send failed",
				"task_id", r.TaskID, "campaign_id", r.Request.CampaignID, "error", r.Err)
		} else {
			logger.Info("[dispatch.Pool] async campaign send finished",
				"task_id", r.TaskID, "campaign_id", r.Request.CampaignID,
				"sent", r.Result.SuccessfulSends, "failed", r.Result.FailedSends, "duration", r.Duration)
		}
		if p.onResult != nil {
			p.onResult(r)
		}
	}
}

// Shutdown stops accepting tasks and waits for queued and running sends to
// finish, or for ctx to end.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	select {
	case <-p.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
