package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lensworks/raybench/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/lensworks/raybench/internal/api"

// spanned wraps a handler in a server span carrying standard HTTP
// attributes plus the request id when one is present.
func (s *Server) spanned(route string, next http.HandlerFunc) http.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(w http.ResponseWriter, r *http.Request) {
		spanName := fmt.Sprintf("API/%s %s", r.Method, route)
		ctx, span := tracer.Start(r.Context(), spanName, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		attrs := []attribute.KeyValue{
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
		}
		if reqID := logging.RequestIDFromContext(ctx); reqID != "" {
			attrs = append(attrs, attribute.String("request_id", reqID))
		}
		span.SetAttributes(attrs...)

		next(w, r.WithContext(ctx))
	}
}

// startChildSpan opens a child span for internal operations within
// handlers. Attributes are optional aids for trace navigation.
func startChildSpan(ctx context.Context, name string, extra ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(extra...))
}
