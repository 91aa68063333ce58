package inference

import (
	"testing"

	"dispatch-server/services/dispatch-api/internal/domain/dispatch"
)

func TestParseIntentPayloadPlain(t *testing.T) {
	result, err := parseIntentPayload(`{"intent":"geocode","query":"central station","reply":"Looking it up."}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Intent != dispatch.IntentGeocode || result.Query != "central station" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestParseIntentPayloadFenced(t *testing.T) {
	content := "```json\n{\"intent\":\"device_control\",\"device_id\":\"lamp-1\",\"action\":\"on\"}\n```"
	result, err := parseIntentPayload(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Intent != dispatch.IntentDeviceControl || result.DeviceID != "lamp-1" || result.Action != "on" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestParseIntentPayloadUnknownIntentNormalized(t *testing.T) {
	result, err := parseIntentPayload(`{"intent":"make_coffee"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Intent != dispatch.IntentUnknown {
		t.Fatalf("expected unknown intent, got %q", result.Intent)
	}
}

func TestParseIntentPayloadGarbage(t *testing.T) {
	if _, err := parseIntentPayload("sure, turning it on now!"); err == nil {
		t.Fatal("expected decode error for non-JSON content")
	}
}
