package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/garyellow/tamly-chatbot-go/internal/metrics"
)

const operationComplete = "complete"

// errCallerDone marks a failure caused by the caller's context ending
// rather than by the provider.
var errCallerDone = errors.New("caller context done")

// breakerSuccess keeps caller cancellations and turn timeouts from counting
// against a provider's breaker.
func breakerSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, errCallerDone)
}

// link is one model in the fallback chain with its breaker.
type link struct {
	completer Completer
	breaker   *gobreaker.CircuitBreaker
}

func (l link) name() string {
	return l.completer.Provider().String() + "/" + l.completer.Model()
}

// FallbackCompleter tries a chain of completers in order. Each one is
// retried on transient errors and guarded by its own circuit breaker.
// Only cancellation of the caller's context stops the chain early.
type FallbackCompleter struct {
	links   []link
	retry   RetryConfig
	timeout time.Duration
	metrics *metrics.Metrics
}

var _ Completer = (*FallbackCompleter)(nil)

// FallbackOptions configures a FallbackCompleter.
type FallbackOptions struct {
	Retry   RetryConfig
	Breaker BreakerConfig
	// Timeout bounds each attempt. Zero means no per-attempt deadline.
	Timeout time.Duration
	Metrics *metrics.Metrics
}

// NewFallbackCompleter chains completers in the given order.
func NewFallbackCompleter(opts FallbackOptions, chain ...Completer) *FallbackCompleter {
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryConfig()
	}
	if opts.Breaker.Failures == 0 {
		opts.Breaker.Failures = DefaultBreakerFailures
	}
	if opts.Breaker.Cooldown <= 0 {
		opts.Breaker.Cooldown = DefaultBreakerCooldown
	}

	f := &FallbackCompleter{
		retry:   opts.Retry,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
	}
	for _, c := range chain {
		if c == nil {
			continue
		}
		l := link{completer: c}
		l.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:         l.name(),
			MaxRequests:  1,
			Timeout:      opts.Breaker.Cooldown,
			IsSuccessful: breakerSuccess,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= opts.Breaker.Failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state changed",
					"breaker", name,
					"from", from.String(),
					"to", to.String())
				f.metrics.SetBreakerState(name, int(to))
			},
		})
		f.metrics.SetBreakerState(l.name(), int(gobreaker.StateClosed))
		f.links = append(f.links, l)
	}
	return f
}

// Complete implements Completer.
func (f *FallbackCompleter) Complete(ctx context.Context, req Request) (string, error) {
	if f == nil || len(f.links) == 0 {
		return "", ErrNoProvider
	}

	start := time.Now()
	var lastErr error
	for i, l := range f.links {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		attemptStart := time.Now()
		text, err := f.call(ctx, l, req)
		provider := l.completer.Provider().String()
		if err == nil {
			f.metrics.RecordLLM(provider, operationComplete, "success", time.Since(attemptStart).Seconds())
			if i > 0 {
				f.metrics.RecordLLMFallback(f.links[0].name(), l.name(), operationComplete)
				slog.InfoContext(ctx, "completion served by fallback model",
					"model", l.name(),
					"position", i,
					"duration", time.Since(start))
			}
			return text, nil
		}

		lastErr = err
		f.metrics.RecordLLM(provider, operationComplete, classifyErrorType(err), time.Since(attemptStart).Seconds())
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return "", err
		}

		level := slog.LevelWarn
		if errors.Is(err, gobreaker.ErrOpenState) {
			level = slog.LevelDebug
		}
		slog.Log(ctx, level, "completion model failed",
			"model", l.name(),
			"action", ClassifyError(err).String(),
			"error", err)
	}

	slog.ErrorContext(ctx, "all completion models failed",
		"chain_size", len(f.links),
		"duration", time.Since(start),
		"error", lastErr)
	return "", fmt.Errorf("all providers failed: %w", lastErr)
}

// call runs one link: retries happen inside the breaker so an exhausted
// retry loop counts as a single failure.
func (f *FallbackCompleter) call(ctx context.Context, l link, req Request) (string, error) {
	out, err := l.breaker.Execute(func() (interface{}, error) {
		var text string
		err := WithRetry(ctx, f.retry,
			func(attempt int, err error) {
				slog.DebugContext(ctx, "retrying completion",
					"model", l.name(),
					"attempt", attempt,
					"error", err)
			},
			func() error {
				attemptCtx, cancel := f.attemptContext(ctx)
				defer cancel()
				var err error
				text, err = l.completer.Complete(attemptCtx, req)
				return err
			})
		if err != nil && ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", errCallerDone, err)
		}
		return text, err
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (f *FallbackCompleter) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.timeout)
}

// Provider returns the provider of the primary model.
func (f *FallbackCompleter) Provider() Provider {
	if f == nil || len(f.links) == 0 {
		return ""
	}
	return f.links[0].completer.Provider()
}

// Model returns the primary model.
func (f *FallbackCompleter) Model() string {
	if f == nil || len(f.links) == 0 {
		return ""
	}
	return f.links[0].completer.Model()
}

// Len returns the number of models in the chain.
func (f *FallbackCompleter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.links)
}

// Close closes every completer in the chain.
func (f *FallbackCompleter) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, l := range f.links {
		if err := l.completer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
