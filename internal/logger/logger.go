// Package logger configures the process-wide slog logger: JSON to stdout by
// default, or bridged into OpenTelemetry when OTEL_ENABLED is set.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var (
	programLevel = new(slog.LevelVar)
	shutdownFunc func(context.Context) error
)

// Setup initializes the default logger. Level comes from LOG_LEVEL (default
// INFO). ERROR_SAMPLE_RATE=N keeps roughly 1/N of warn and error records to
// cap log volume under a fault storm; the default 1 logs everything. With
// OTEL_ENABLED=true logs are exported over OTLP gRPC under OTEL_SERVICE_NAME;
// on exporter setup failure it falls back to JSON. Returns the configured
// logger.
func Setup() *slog.Logger {
	level, err := ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = slog.LevelInfo
	}
	programLevel.Set(level)

	sampleRate := 1
	if raw := os.Getenv("ERROR_SAMPLE_RATE"); raw != "" {
		if rate, err := strconv.Atoi(raw); err == nil && rate > 0 {
			sampleRate = rate
		}
	}

	if strings.EqualFold(os.Getenv("OTEL_ENABLED"), "true") {
		serviceName := os.Getenv("OTEL_SERVICE_NAME")
		if serviceName == "" {
			serviceName = "krino"
		}
		logger, shutdown, err := setupOTEL(context.Background(), serviceName, sampleRate)
		if err == nil {
			shutdownFunc = shutdown
			slog.SetDefault(logger)
			return logger
		}
		fmt.Fprintf(os.Stderr, "OTEL logging setup failed, falling back to JSON: %v\n", err)
	}

	handler := sampled(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: programLevel}), sampleRate)
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// setupOTEL wires slog through the OTEL log bridge.
func setupOTEL(ctx context.Context, serviceName string, sampleRate int) (*slog.Logger, func(context.Context) error, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("create resource: %w", err)
	}

	exporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)

	var handler slog.Handler = &levelHandler{
		level:   programLevel,
		handler: otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(provider)),
	}
	return slog.New(sampled(handler, sampleRate)), provider.Shutdown, nil
}

// sampled wraps a handler so only about 1/rate of warn and error records are
// emitted. Lower levels pass through untouched. rate 1 disables sampling.
func sampled(h slog.Handler, rate int) slog.Handler {
	if rate <= 1 {
		return h
	}
	return &samplingHandler{handler: h, rate: rate}
}

type samplingHandler struct {
	handler slog.Handler
	rate    int
}

func (h *samplingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *samplingHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn && rand.IntN(h.rate) != 0 {
		return nil
	}
	return h.handler.Handle(ctx, r)
}

func (h *samplingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &samplingHandler{handler: h.handler.WithAttrs(attrs), rate: h.rate}
}

func (h *samplingHandler) WithGroup(name string) slog.Handler {
	return &samplingHandler{handler: h.handler.WithGroup(name), rate: h.rate}
}

// Shutdown flushes the OTEL pipeline if one is active.
func Shutdown(ctx context.Context) error {
	if shutdownFunc != nil {
		return shutdownFunc(ctx)
	}
	return nil
}

// SetLevel sets the minimum log level.
func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

// ParseLevel converts a level name to a slog.Level. Empty input means INFO.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToUpper(levelStr) {
	case "", "INFO":
		return slog.LevelInfo, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", levelStr)
	}
}

// levelHandler filters another handler by the shared program level, which
// the OTEL bridge handler does not do on its own.
type levelHandler struct {
	level   slog.Leveler
	handler slog.Handler
}

func (h *levelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handler.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithGroup(name)}
}
