// Package queue is a Redis-backed work queue for fulfillment retries. Tasks
// survive process restarts: the ready queue is a Redis list, delayed retries
// live in a sorted set scored by their due time, and permanently failed
// tasks land in a dead-letter list for operator inspection.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"starpay/pkg/logger"
	"starpay/pkg/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	readyKey = "fulfillment:tasks"
	delayKey = "fulfillment:retry"
	deadKey  = "fulfillment:dead"

	popTimeout    = 5 * time.Second
	promotePeriod = time.Second
)

// Task is one fulfillment attempt for an order.
type Task struct {
	OrderID string `json:"orderId"`
	Attempt int    `json:"attempt"`
}

// Handler performs one attempt. A returned error reschedules the task with
// backoff until attempts run out.
type Handler func(ctx context.Context, task Task) error

type WorkerPool struct {
	rdb         *redis.Client
	handler     Handler
	workers     int
	maxAttempts int
	baseBackoff time.Duration
}

func NewWorkerPool(rdb *redis.Client, handler Handler, workers, maxAttempts int, baseBackoff time.Duration) *WorkerPool {
	return &WorkerPool{
		rdb:         rdb,
		handler:     handler,
		workers:     workers,
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
	}
}

// Enqueue pushes a fresh task onto the ready queue.
func (p *WorkerPool) Enqueue(ctx context.Context, orderID string) error {
	return p.push(ctx, Task{OrderID: orderID})
}

func (p *WorkerPool) push(ctx context.Context, task Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.rdb.LPush(ctx, readyKey, raw).Err()
}

// Start launches the workers and the retry promoter. They run until ctx ends.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		go p.worker(ctx, i)
	}
	go p.promoter(ctx)
	logger.Log.Info("queue: worker pool started", zap.Int("workers", p.workers))
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}

		res, err := p.rdb.BRPop(ctx, popTimeout, readyKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			logger.Log.Error("queue: pop failed", zap.Int("worker", id), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		var task Task
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			logger.Log.Error("queue: malformed task dropped", zap.String("raw", res[1]), zap.Error(err))
			continue
		}

		if err := p.handler(ctx, task); err != nil {
			p.reschedule(ctx, task, err)
		}
	}
}

func (p *WorkerPool) reschedule(ctx context.Context, task Task, cause error) {
	task.Attempt++
	if task.Attempt >= p.maxAttempts {
		p.deadLetter(ctx, task, cause)
		return
	}

	raw, err := json.Marshal(task)
	if err != nil {
		logger.Log.Error("queue: marshal failed", zap.Error(err))
		return
	}

	due := time.Now().Add(p.Backoff(task.Attempt))
	err = p.rdb.ZAdd(ctx, delayKey, redis.Z{
		Score:  float64(due.Unix()),
		Member: raw,
	}).Err()
	if err != nil {
		logger.Log.Error("queue: reschedule failed",
			zap.String("order_id", task.OrderID), zap.Error(err))
		return
	}

	metrics.FulfillmentRetriesQueued.Inc()
	logger.Log.Warn("queue: task rescheduled",
		zap.String("order_id", task.OrderID),
		zap.Int("attempt", task.Attempt),
		zap.Time("due", due),
		zap.Error(cause))
}

// Backoff is exponential in the attempt number: base, 2x, 4x, 8x...
func (p *WorkerPool) Backoff(attempt int) time.Duration {
	return p.baseBackoff << uint(attempt-1)
}

func (p *WorkerPool) deadLetter(ctx context.Context, task Task, cause error) {
	raw, _ := json.Marshal(task)
	if err := p.rdb.LPush(ctx, deadKey, raw).Err(); err != nil {
		logger.Log.Error("queue: dead-letter push failed", zap.Error(err))
	}
	logger.Log.Error("queue: task failed permanently",
		zap.String("order_id", task.OrderID),
		zap.Int("attempts", task.Attempt),
		zap.Error(cause))
}

// promoter moves due retries back onto the ready queue and samples depth.
func (p *WorkerPool) promoter(ctx context.Context) {
	ticker := time.NewTicker(promotePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.promoteDue(ctx)

			if depth, err := p.rdb.LLen(ctx, readyKey).Result(); err == nil {
				metrics.QueueDepth.Set(float64(depth))
			}
		}
	}
}

func (p *WorkerPool) promoteDue(ctx context.Context) {
	now := float64(time.Now().Unix())
	members, err := p.rdb.ZRangeByScore(ctx, delayKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatFloat(now, 'f', 0, 64),
	}).Result()
	if err != nil || len(members) == 0 {
		return
	}

	for _, member := range members {
		// Remove first so a concurrent promoter cannot double-deliver.
		removed, err := p.rdb.ZRem(ctx, delayKey, member).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := p.rdb.LPush(ctx, readyKey, member).Err(); err != nil {
			logger.Log.Error("queue: promote failed", zap.Error(err))
		}
	}
}
