package util

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"revwatch/internal/core/errors"
	"revwatch/internal/core/ports"
	"revwatch/internal/data/changes"
	"revwatch/internal/shared/observability"
)

// RateLimitedClient throttles a RepositoryClient and records per-operation
// metrics and spans.
type RateLimitedClient struct {
	inner   ports.RepositoryClient
	limiter *Limiter
}

var _ ports.RepositoryClient = (*RateLimitedClient)(nil)

func NewRateLimitedClient(inner ports.RepositoryClient, r float64, burst int) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, limiter: NewLimiter(r, burst)}
}

func (c *RateLimitedClient) FindChanges(ctx context.Context, pathFilters []string, maxCount int) ([]changes.ChangeSummary, error) {
	ctx, span := observability.Tracer.Start(ctx, "repository.FindChanges", trace.WithAttributes(
		attribute.StringSlice("filters", pathFilters),
		attribute.Int("max_count", maxCount),
	))
	defer span.End()

	var out []changes.ChangeSummary
	err := c.do(ctx, span, "find_changes", func(ctx context.Context) error {
		var err error
		out, err = c.inner.FindChanges(ctx, pathFilters, maxCount)
		return err
	})
	span.SetAttributes(attribute.Int("results", len(out)))
	return out, err
}

func (c *RateLimitedClient) FindFileChanges(ctx context.Context, path string, maxCount int) ([]changes.FileChangeSummary, error) {
	ctx, span := observability.Tracer.Start(ctx, "repository.FindFileChanges", trace.WithAttributes(
		attribute.String("path", path),
		attribute.Int("max_count", maxCount),
	))
	defer span.End()

	var out []changes.FileChangeSummary
	err := c.do(ctx, span, "find_file_changes", func(ctx context.Context) error {
		var err error
		out, err = c.inner.FindFileChanges(ctx, path, maxCount)
		return err
	})
	span.SetAttributes(attribute.Int("results", len(out)))
	return out, err
}

func (c *RateLimitedClient) Print(ctx context.Context, path string) ([]string, error) {
	ctx, span := observability.Tracer.Start(ctx, "repository.Print", trace.WithAttributes(
		attribute.String("path", path),
	))
	defer span.End()

	var out []string
	err := c.do(ctx, span, "print", func(ctx context.Context) error {
		var err error
		out, err = c.inner.Print(ctx, path)
		return err
	})
	return out, err
}

func (c *RateLimitedClient) GetActiveContext(ctx context.Context) (string, bool) {
	ctx, span := observability.Tracer.Start(ctx, "repository.GetActiveContext")
	defer span.End()

	var name string
	var ok bool
	err := c.do(ctx, span, "active_context", func(ctx context.Context) error {
		name, ok = c.inner.GetActiveContext(ctx)
		return nil
	})
	if err != nil {
		return "", false
	}
	return name, ok
}

func (c *RateLimitedClient) do(ctx context.Context, span trace.Span, op string, call func(context.Context) error) error {
	waitStart := time.Now()
	if err := c.limiter.Wait(ctx, 1); err != nil {
		observability.ClientRequestsTotal.WithLabelValues(op, "throttled").Inc()
		span.SetStatus(codes.Error, "rate limiter")
		return errors.AddContext(errors.Wrap(err, errors.CodeTransport, "rate limiter wait"), errors.CtxOperation, op)
	}
	observability.ClientThrottleSeconds.Observe(time.Since(waitStart).Seconds())

	started := time.Now()
	err := call(ctx)
	observability.ClientRequestDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())

	switch {
	case err == nil:
		observability.ClientRequestsTotal.WithLabelValues(op, "ok").Inc()
	case errors.IsNotFound(err):
		observability.ClientRequestsTotal.WithLabelValues(op, "not_found").Inc()
	default:
		observability.ClientRequestsTotal.WithLabelValues(op, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, op)
	}
	return err
}
