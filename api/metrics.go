package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName          = "schedule-api"
	scheduleSpanName    = "schedule.fetch"
	scheduleEventName   = "schedule.fetch.metrics"
	scheduleEventDomain = "schedule"
	scheduleRoute       = "/api/schedule"
)

// scheduleRequestMetrics measures one schedule fetch end to end and emits a
// single observability event, both as a structured log entry and as an event
// on the request span.
type scheduleRequestMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time

	authDuration      time.Duration
	fetchDuration     time.Duration
	encodeDuration    time.Duration
	itemsReturned     int
	birthdaysInjected int
	overlayApplied    bool
	errorStage        string
}

func newScheduleRequestMetrics(ctx context.Context, logger *log.Logger) (*scheduleRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, scheduleSpanName)
	return &scheduleRequestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
	}, spanCtx
}

func (m *scheduleRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *scheduleRequestMetrics) ObserveFetch(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.fetchDuration = duration
}

func (m *scheduleRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *scheduleRequestMetrics) SetItemsReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.itemsReturned = count
}

func (m *scheduleRequestMetrics) SetBirthdaysInjected(count int) {
	if count < 0 {
		count = 0
	}
	m.birthdaysInjected = count
}

func (m *scheduleRequestMetrics) SetOverlayApplied(applied bool) {
	m.overlayApplied = applied
}

func (m *scheduleRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log emits the observability event and closes the span. Call it exactly
// once, after the response is written.
func (m *scheduleRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	totalMs := durationToMillis(time.Since(m.start))
	severityText, severityNumber := severityForStatus(status, err)

	attrs := map[string]any{
		"http.route":               scheduleRoute,
		"http.status_code":         status,
		"schedule.total_ms":        totalMs,
		"schedule.items_returned":  m.itemsReturned,
		"schedule.overlay_applied": m.overlayApplied,
	}
	if m.authDuration > 0 {
		attrs["schedule.auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.fetchDuration > 0 {
		attrs["schedule.fetch_ms"] = durationToMillis(m.fetchDuration)
	}
	if m.encodeDuration > 0 {
		attrs["schedule.encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.birthdaysInjected > 0 {
		attrs["schedule.birthdays_injected"] = m.birthdaysInjected
	}
	if m.errorStage != "" {
		attrs["schedule.error_stage"] = m.errorStage
	}
	if err != nil {
		attrs["error.message"] = err.Error()
	}

	if m.span != nil {
		spanAttrs := []attribute.KeyValue{
			attribute.String("http.route", scheduleRoute),
			attribute.Int("http.status_code", status),
			attribute.Int("schedule.items_returned", m.itemsReturned),
			attribute.Bool("schedule.overlay_applied", m.overlayApplied),
		}
		if m.errorStage != "" {
			spanAttrs = append(spanAttrs, attribute.String("schedule.error_stage", m.errorStage))
		}
		m.span.SetAttributes(spanAttrs...)

		eventAttrs := []attribute.KeyValue{
			attribute.String("event.name", scheduleEventName),
			attribute.String("event.domain", scheduleEventDomain),
			attribute.String("severity_text", severityText),
			attribute.Int("severity_number", severityNumber),
			attribute.Float64("schedule.total_ms", totalMs),
		}
		if m.errorStage != "" {
			eventAttrs = append(eventAttrs, attribute.String("schedule.error_stage", m.errorStage))
		}
		if err != nil {
			eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
		}
		m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))

		if err != nil || status >= http.StatusInternalServerError {
			desc := "request failed"
			if err != nil {
				desc = err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      scheduleEventName,
		"event.domain":    scheduleEventDomain,
		"attributes":      attrs,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if m.span != nil && m.span.SpanContext().HasTraceID() {
		fields["trace_id"] = m.span.SpanContext().TraceID().String()
	}

	entry := m.logger.WithFields(fields)
	switch {
	case severityNumber >= 17:
		entry.Error("observability.event")
	case severityNumber >= 13:
		entry.Warn("observability.event")
	default:
		entry.Info("observability.event")
	}
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
