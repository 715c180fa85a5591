package boardsync

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName     = "kanban-board/boardsync"
	spanNamePrefix = "boardsync."
)

type syncOperation struct {
	logger *log.Logger
	span   trace.Span
	name   string
	userID string
	start  time.Time
}

func startOperation(ctx context.Context, logger *log.Logger, name, userID string) (context.Context, *syncOperation) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, spanNamePrefix+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("kanban.sync.op", name),
			attribute.String("kanban.user_id", userID),
		),
	)
	return ctx, &syncOperation{logger: logger, span: span, name: name, userID: userID, start: time.Now()}
}

// End records the outcome on the span and the log. found is only meaningful
// for loads.
func (o *syncOperation) End(found bool, err error) {
	elapsed := durationToMillis(time.Since(o.start))
	o.span.SetAttributes(attribute.Float64("kanban.sync.duration_ms", elapsed))
	if o.name == "load" {
		o.span.SetAttributes(attribute.Bool("kanban.sync.found", found))
	}

	fields := log.Fields{
		"op":          o.name,
		"user":        o.userID,
		"duration_ms": elapsed,
	}
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
		o.logger.WithFields(fields).WithError(err).Warn("board sync failed")
	} else {
		o.span.SetStatus(codes.Ok, "")
		o.logger.WithFields(fields).Debug("board sync")
	}
	o.span.End()
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
