package core

import (
	"context"
	"fmt"
	"strings"
)

const metricPrefix = "onboarding."

// OperationTagKeys are the operation fields promoted to metric tags. Any
// other field stays in the log line only.
var OperationTagKeys = []string{"action_id", "step", "status_code"}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// OperationMetricNames returns the counter and duration histogram names an
// operation is recorded under.
func OperationMetricNames(operation string) (counter string, histogram string) {
	return metricPrefix + operation + ".total", metricPrefix + operation + ".duration_ms"
}

func operationTags(operation string, status string, fields map[string]any) map[string]string {
	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	for _, key := range OperationTagKeys {
		value, ok := fields[key]
		if !ok || value == nil {
			continue
		}
		if text := strings.TrimSpace(fmt.Sprint(value)); text != "" {
			tags[key] = text
		}
	}
	return tags
}

// cloneTags copies tags, dropping entries with a blank key.
func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		if key = strings.TrimSpace(key); key != "" {
			copied[key] = value
		}
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
