package core

import "testing"

func TestRedactSensitiveMapPreservesTraceabilityMetadata(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"request_id":    "req_1",
		"action_id":     "submit-phone",
		"access_token":  "secret-token",
		"authorization": "Bearer secret-token",
		"phone_number":  "+966500000000",
		"nested":        map[string]any{"refresh_token": "refresh", "request_id": "req_nested"},
		"events":        []any{map[string]any{"nationalId": "1012345678"}, map[string]any{"step": "kyb"}},
	})

	if redacted["request_id"] != "req_1" || redacted["action_id"] != "submit-phone" {
		t.Fatalf("expected traceability keys to remain visible, got %#v", redacted)
	}
	for _, key := range []string{"access_token", "authorization", "phone_number"} {
		if redacted[key] != RedactedValue {
			t.Fatalf("expected %s to be redacted, got %#v", key, redacted[key])
		}
	}
	nested, ok := redacted["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested redacted map")
	}
	if nested["refresh_token"] != RedactedValue || nested["request_id"] != "req_nested" {
		t.Fatalf("unexpected nested map %#v", nested)
	}
	events, ok := redacted["events"].([]any)
	if !ok || events[0].(map[string]any)["nationalId"] != RedactedValue || events[1].(map[string]any)["step"] != "kyb" {
		t.Fatalf("unexpected events %#v", redacted["events"])
	}
}
