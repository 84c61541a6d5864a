package storage

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/semmidev/harmony/internal/domain"
)

// BreakerConfig tunes the circuit breaker around a remote target.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          5 * time.Minute,
		FailureThreshold: 3,
	}
}

// Breaker fails fast once a remote target keeps failing, so a dead mirror
// does not stall every execution.
type Breaker struct {
	inner domain.ArtifactStorage
	cb    *gobreaker.CircuitBreaker[[]byte]
}

// NewBreaker wraps storage. onStateChange may be nil.
func NewBreaker(name string, storage domain.ArtifactStorage, cfg BreakerConfig, onStateChange func(name string, from, to gobreaker.State)) *Breaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// A missing artifact is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound)
		},
		OnStateChange: onStateChange,
	}
	return &Breaker{
		inner: storage,
		cb:    gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) Put(ctx context.Context, filename string, data []byte) (string, error) {
	out, err := b.cb.Execute(func() ([]byte, error) {
		url, err := b.inner.Put(ctx, filename, data)
		return []byte(url), err
	})
	return string(out), err
}

func (b *Breaker) Get(ctx context.Context, filename string) ([]byte, error) {
	return b.cb.Execute(func() ([]byte, error) {
		return b.inner.Get(ctx, filename)
	})
}

func (b *Breaker) Delete(ctx context.Context, filename string) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.inner.Delete(ctx, filename)
	})
	return err
}

func (b *Breaker) List(ctx context.Context) ([]string, error) {
	var files []string
	_, err := b.cb.Execute(func() ([]byte, error) {
		var err error
		files, err = b.inner.List(ctx)
		return nil, err
	})
	return files, err
}
