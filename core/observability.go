package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Instrumentation bundles the logger and metrics recorder every component
// reports through.
type Instrumentation struct {
	Logger  Logger
	Metrics MetricsRecorder
}

// NewInstrumentation resolves a named logger and falls back to the nop
// recorder.
func NewInstrumentation(name string, logger Logger, metrics MetricsRecorder) Instrumentation {
	_, resolved := glog.Resolve(name, nil, logger)
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}
	return Instrumentation{
		Logger:  glog.Ensure(resolved),
		Metrics: metrics,
	}
}

// ObserveOperation records a counter and duration histogram for operation
// and logs its outcome.
func (i Instrumentation) ObserveOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}

	contextFields := cloneFields(fields)
	contextFields["event_type"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = time.Since(startedAt).Milliseconds()
	if err != nil {
		contextFields["error"] = err.Error()
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			contextFields["error_text_code"] = richErr.TextCode
			contextFields["error_category"] = fmt.Sprint(richErr.Category)
		}
	}

	tags := operationTags(operation, status, contextFields)
	counter, histogram := OperationMetricNames(operation)
	i.IncCounter(ctx, counter, 1, tags)
	i.ObserveHistogram(ctx, histogram, float64(time.Since(startedAt).Milliseconds()), tags)

	if err != nil {
		i.LogError(ctx, operation+" failed", contextFields)
		return
	}
	i.LogDebug(ctx, operation+" succeeded", contextFields)
}

func (i Instrumentation) LogDebug(ctx context.Context, message string, fields map[string]any) {
	i.logWithLevel(ctx, "debug", message, fields)
}

func (i Instrumentation) LogInfo(ctx context.Context, message string, fields map[string]any) {
	i.logWithLevel(ctx, "info", message, fields)
}

func (i Instrumentation) LogWarn(ctx context.Context, message string, fields map[string]any) {
	i.logWithLevel(ctx, "warn", message, fields)
}

func (i Instrumentation) LogError(ctx context.Context, message string, fields map[string]any) {
	i.logWithLevel(ctx, "error", message, fields)
}

func (i Instrumentation) IncCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if i.Metrics == nil {
		return
	}
	i.Metrics.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (i Instrumentation) ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if i.Metrics == nil {
		return
	}
	i.Metrics.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (i Instrumentation) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if i.Logger == nil {
		return
	}
	fields = RedactSensitiveMap(fields)
	logger := i.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch level {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}
