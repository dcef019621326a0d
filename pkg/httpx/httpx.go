// Package httpx holds the shared resty setup: browser-like headers and
// tracing of every outgoing request.
package httpx

import (
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gpu-hunter/pkg/logger"
)

const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// NewClient returns a resty client with a timeout and tracing installed.
func NewClient(name string, timeout time.Duration) *resty.Client {
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	Instrument(client, name)
	return client
}

// Instrument opens a span per request under the tracer called name and logs
// failures. Request lines are only logged in verbose mode.
func Instrument(client *resty.Client, name string) {
	tracer := otel.Tracer(name)

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		ctx, _ := tracer.Start(req.Context(), fmt.Sprintf("http %s", req.Method),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.url", req.URL),
			),
		)
		req.SetContext(ctx)
		logger.Verbosef("[%s] %s %s", name, req.Method, req.URL)
		return nil
	})

	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		span := trace.SpanFromContext(res.Request.Context())
		defer span.End()

		span.SetAttributes(attribute.Int("http.status_code", res.StatusCode()))
		if res.IsError() {
			span.SetStatus(codes.Error, res.Status())
		}
		logger.Verbosef("[%s] %s %s -> %d (%v)", name, res.Request.Method, res.Request.URL, res.StatusCode(), res.Time())
		return nil
	})

	client.OnError(func(req *resty.Request, err error) {
		span := trace.SpanFromContext(req.Context())
		defer span.End()

		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		log.Printf("[%s] %s %s failed: %v", name, req.Method, req.URL, err)
	})
}
