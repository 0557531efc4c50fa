package usecase

import (
	"context"
	"errors"
	"sync"

	"payout-service/internal/domain"

	"go.uber.org/zap"
)

// ErrQueueFull is returned when the dispatch buffer has no room; the caller
// should surface this as back-pressure rather than blocking the request.
var ErrQueueFull = errors.New("withdrawal queue is full")

type withdrawalExecutor interface {
	ExecuteWithdrawal(ctx context.Context, req *domain.WithdrawRequest, tx *domain.Transaction) (*domain.WithdrawalReceipt, error)
}

type withdrawalJob struct {
	req *domain.WithdrawRequest
	tx  *domain.Transaction
}

// Dispatcher is the asynchronous boundary between the front door and the
// saga: a bounded job queue drained by a fixed worker pool. The front door
// enqueues and returns; a worker runs the saga to a terminal state.
type Dispatcher struct {
	executor withdrawalExecutor
	cache    OutcomeCache
	jobs     chan withdrawalJob
	wg       sync.WaitGroup
	logger   *zap.Logger
}

func NewDispatcher(executor withdrawalExecutor, cache OutcomeCache, workers, queueSize int, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		executor: executor,
		cache:    cache,
		jobs:     make(chan withdrawalJob, queueSize),
		logger:   logger,
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	return d
}

// Enqueue hands a (request, PENDING transaction) pair to the worker pool.
// Fails fast with ErrQueueFull instead of blocking the request path.
func (d *Dispatcher) Enqueue(req *domain.WithdrawRequest, tx *domain.Transaction) error {
	select {
	case d.jobs <- withdrawalJob{req: req, tx: tx}:
		return nil
	default:
		d.logger.Error("withdrawal queue full, rejecting job",
			zap.String("transaction_id", tx.ID.String()))
		return ErrQueueFull
	}
}

// Close stops accepting work and waits for in-flight sagas to finish.
func (d *Dispatcher) Close() {
	close(d.jobs)
	d.wg.Wait()
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for job := range d.jobs {
		key := job.req.IdempotencyKey

		d.logger.Info("processing withdrawal in background",
			zap.Int("worker", id),
			zap.String("transaction_id", job.tx.ID.String()),
			zap.String("idempotency_key", key))

		receipt, err := d.executor.ExecuteWithdrawal(context.Background(), job.req, job.tx)
		if err != nil {
			d.logger.Error("withdrawal execution failed",
				zap.Int("worker", id),
				zap.String("transaction_id", job.tx.ID.String()),
				zap.String("idempotency_key", key),
				zap.Error(err))

			// The saga did not reach a terminal persist. Still publish a
			// FAILED outcome so resubmissions with the same key replay it
			// instead of re-running the saga.
			d.cache.Put(context.Background(), key, &domain.WithdrawalReceipt{
				TransactionID: job.tx.ID,
				Status:        domain.StatusFailed,
			})
			continue
		}

		d.logger.Info("withdrawal processed",
			zap.Int("worker", id),
			zap.String("transaction_id", receipt.TransactionID.String()),
			zap.String("status", string(receipt.Status)))
	}
}
