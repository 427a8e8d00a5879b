package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
}

// Document results for RecordInvoiceDocument.
const (
	DocumentResultPersisted   = "persisted"
	DocumentResultConflict    = "conflict"
	DocumentResultRenderError = "render_error"
	DocumentResultStoreError  = "storage_error"
)

// Metrics holds the billing instruments. A nil *Metrics records nothing.
type Metrics struct {
	invoicesCreated  metric.Int64Counter
	invoicesPaid     metric.Int64Counter
	invoiceDocuments metric.Int64Counter
	invoicedAmount   metric.Float64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}
	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New creates the billing instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "tmsbilling"
	}
	meter := provider.Meter(name)

	invoicesCreated, err := meter.Int64Counter("tms_invoices_created_total")
	if err != nil {
		return nil, err
	}
	invoicesPaid, err := meter.Int64Counter("tms_invoices_paid_total")
	if err != nil {
		return nil, err
	}
	invoiceDocuments, err := meter.Int64Counter("tms_invoice_documents_total")
	if err != nil {
		return nil, err
	}
	invoicedAmount, err := meter.Float64Counter("tms_invoiced_amount_total", metric.WithUnit("USD"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		invoicesCreated:  invoicesCreated,
		invoicesPaid:     invoicesPaid,
		invoiceDocuments: invoiceDocuments,
		invoicedAmount:   invoicedAmount,
	}, nil
}

// RecordInvoiceCreated counts a committed invoice and its total.
func (m *Metrics) RecordInvoiceCreated(ctx context.Context, loadCount int, total float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(attribute.String("load_bucket", loadBucket(loadCount)))...)
	m.invoicesCreated.Add(ctx, 1, attrs)
	m.invoicedAmount.Add(ctx, total, attrs)
}

// RecordInvoicePaid counts a not-paid to paid transition. Repeat calls on a paid invoice are not counted.
func (m *Metrics) RecordInvoicePaid(ctx context.Context) {
	if m == nil {
		return
	}
	m.invoicesPaid.Add(ctx, 1)
}

func (m *Metrics) RecordInvoiceDocument(ctx context.Context, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("result", strings.TrimSpace(result)))
	m.invoiceDocuments.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func loadBucket(n int) string {
	switch {
	case n <= 1:
		return "1"
	case n <= 5:
		return "2-5"
	case n <= 20:
		return "6-20"
	default:
		return "21+"
	}
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Labels outside this set are dropped to keep series counts bounded.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":    {},
	"status_code": {},
	"result":      {},
	"load_bucket": {},
}

func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; ok {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}
