package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/go-thor/restproxy/errors"
)

// ScopeName is the instrumentation scope of the instruments
const ScopeName = "github.com/go-thor/restproxy/middleware/metrics"

// OTelReporter records metrics with OpenTelemetry instruments
type OTelReporter struct {
	requests metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewOTelReporter creates a reporter on mp; nil uses the global meter provider
func NewOTelReporter(mp metric.MeterProvider) (*OTelReporter, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(ScopeName)

	requests, err := meter.Int64Counter("restproxy.client.requests",
		metric.WithDescription("Requests sent"))
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter("restproxy.client.errors",
		metric.WithDescription("Failed exchanges and error statuses"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("restproxy.client.duration",
		metric.WithDescription("Time until response headers arrived"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return &OTelReporter{requests: requests, errors: errs, duration: duration}, nil
}

func attrs(service, method string, extra ...attribute.KeyValue) metric.MeasurementOption {
	kvs := append([]attribute.KeyValue{
		attribute.String("restproxy.service", service),
		attribute.String("restproxy.method", method),
	}, extra...)
	return metric.WithAttributes(kvs...)
}

// ReportRequest implements Reporter
func (r *OTelReporter) ReportRequest(service, method string) {
	r.requests.Add(context.Background(), 1, attrs(service, method))
}

// ReportLatency implements Reporter
func (r *OTelReporter) ReportLatency(service, method string, latency time.Duration) {
	r.duration.Record(context.Background(), float64(latency)/float64(time.Millisecond), attrs(service, method))
}

// ReportError implements Reporter
func (r *OTelReporter) ReportError(service, method string, err error) {
	r.errors.Add(context.Background(), 1,
		attrs(service, method, attribute.String("restproxy.error.kind", string(errors.KindOf(err)))))
}

var (
	_ Reporter = (*DefaultReporter)(nil)
	_ Reporter = (*OTelReporter)(nil)
)
