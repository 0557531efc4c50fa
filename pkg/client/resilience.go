package client

import (
	"context"
	"errors"
	"fmt"

	"payout-service/config"
	"payout-service/internal/domain"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// httpResult is the raw outcome of one outbound call. Non-5xx responses are
// handed back to the client for interpretation; transport errors and 5xx
// responses count against the breaker and are retried.
type httpResult struct {
	status int
	body   []byte
}

// Guard wraps outbound calls with bounded exponential-backoff retries and a
// circuit breaker. Exhaustion and open-circuit short-circuiting both surface
// as a domain.ExternalServiceError, so the orchestrator only ever sees
// "success with value" or "failure with reason".
type Guard struct {
	name    string
	cfg     config.ResilienceConfig
	breaker *gobreaker.CircuitBreaker[*httpResult]
	logger  *zap.Logger
}

func NewGuard(name string, cfg config.ResilienceConfig, logger *zap.Logger) *Guard {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.BreakerFailures)
		},
	}

	return &Guard{
		name:    name,
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker[*httpResult](settings),
		logger:  logger,
	}
}

func (g *Guard) Do(ctx context.Context, op func(ctx context.Context) (*httpResult, error)) (*httpResult, error) {
	attempt := 0

	operation := func() (*httpResult, error) {
		attempt++

		res, err := g.breaker.Execute(func() (*httpResult, error) {
			res, err := op(ctx)
			if err != nil {
				return nil, err
			}
			if res.status >= 500 {
				return nil, fmt.Errorf("%s returned status %d", g.name, res.status)
			}
			return res, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				g.logger.Warn("circuit open, short-circuiting call",
					zap.String("service", g.name))
				return nil, backoff.Permanent(err)
			}

			g.logger.Warn("outbound call failed",
				zap.String("service", g.name),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return nil, err
		}

		return res, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.cfg.InitialInterval
	bo.MaxInterval = g.cfg.MaxInterval

	res, err := backoff.RetryWithData(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(g.cfg.MaxAttempts-1)), ctx),
	)
	if err != nil {
		return nil, domain.NewExternalServiceError(g.name, "service unavailable", err)
	}

	return res, nil
}
