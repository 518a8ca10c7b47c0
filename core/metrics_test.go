package core

import "testing"

func TestOperationTags_PromotesOnlyKnownFields(t *testing.T) {
	tags := operationTags("workflow.persist", "success", map[string]any{
		"step":        "kyb",
		"status_code": 409,
		"action_id":   nil,
		"request_id":  "req_1",
	})

	if tags["operation"] != "workflow.persist" || tags["status"] != "success" {
		t.Fatalf("expected operation and status tags, got %#v", tags)
	}
	if tags["step"] != "kyb" || tags["status_code"] != "409" {
		t.Fatalf("expected promoted fields, got %#v", tags)
	}
	if _, ok := tags["action_id"]; ok {
		t.Fatalf("expected nil field to be skipped, got %#v", tags)
	}
	if _, ok := tags["request_id"]; ok {
		t.Fatalf("expected request_id to stay out of tags, got %#v", tags)
	}
}

func TestOperationMetricNames(t *testing.T) {
	counter, histogram := OperationMetricNames("credentials.refresh")
	if counter != "onboarding.credentials.refresh.total" {
		t.Fatalf("unexpected counter name %q", counter)
	}
	if histogram != "onboarding.credentials.refresh.duration_ms" {
		t.Fatalf("unexpected histogram name %q", histogram)
	}
}

func TestCloneTags_DropsBlankKeys(t *testing.T) {
	tags := cloneTags(map[string]string{" ": "x", "step": "kyb"})
	if len(tags) != 1 || tags["step"] != "kyb" {
		t.Fatalf("expected blank key to be dropped, got %#v", tags)
	}
}
