package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/nexus-receiver/internal/logic"
)

func testReading() logic.Reading {
	return logic.Reading{
		Time:       time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		ID:         5,
		Channel:    1,
		BatteryOK:  true,
		TempTenths: 215,
		Humidity:   47,
	}
}

func TestFormatPayload(t *testing.T) {
	payload := FormatPayload(testReading())

	expected := `{"time" : "2026-02-02 22:18:12 UTC", "model" : "Nexus-TH", "id" : 5, "channel" : 1, "battery_ok" : 1, "temperature_C" : 21.5, "humidity" : 47}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadIsJSON(t *testing.T) {
	tests := []struct {
		name   string
		tenths int
		want   float64
	}{
		{"positive", 215, 21.5},
		{"negative", -123, -12.3},
		{"just below zero", -5, -0.5},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testReading()
			r.TempTenths = tt.tenths

			var parsed struct {
				Time         string  `json:"time"`
				Model        string  `json:"model"`
				ID           int     `json:"id"`
				Channel      int     `json:"channel"`
				BatteryOK    int     `json:"battery_ok"`
				TemperatureC float64 `json:"temperature_C"`
				Humidity     int     `json:"humidity"`
			}
			if err := json.Unmarshal(FormatPayload(r), &parsed); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if parsed.TemperatureC != tt.want {
				t.Errorf("temperature_C: got %v, want %v", parsed.TemperatureC, tt.want)
			}
			if parsed.Model != "Nexus-TH" {
				t.Errorf("model: got %q", parsed.Model)
			}
			if parsed.ID != 5 || parsed.Channel != 1 || parsed.BatteryOK != 1 || parsed.Humidity != 47 {
				t.Errorf("unexpected fields: %+v", parsed)
			}
		})
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	r := testReading()
	r.Time = time.Date(2026, 2, 2, 23, 18, 12, 0, loc)

	var parsed struct {
		Time string `json:"time"`
	}
	if err := json.Unmarshal(FormatPayload(r), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Time != "2026-02-02 22:18:12 UTC" {
		t.Errorf("expected UTC time, got %s", parsed.Time)
	}
}

func TestTopics(t *testing.T) {
	if DefaultTopic != "rtl_433/Nexus-TH" {
		t.Errorf("unexpected topic: %s", DefaultTopic)
	}
	if got := SystemTopic(DefaultTopic); got != "rtl_433/Nexus-TH/system" {
		t.Errorf("unexpected system topic: %s", got)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 19, 5, 51, 0, time.UTC),
		Event:     "HEARTBEAT",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T19:05:51Z","event":"HEARTBEAT"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload, got %s", payload)
	}
}

func TestFormatSystemPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 5, 30, 45, 0, loc),
		Event:     "SHUTDOWN",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed SystemPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.System.Timestamp != "2026-02-03T10:30:45Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.System.Timestamp)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	if err := f.Publish(testReading()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(f.Readings))
	}
	if f.Readings[0].ID != 5 {
		t.Errorf("unexpected reading id: %d", f.Readings[0].ID)
	}
	if len(f.Payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(f.Payloads))
	}
	if string(f.Payloads[0]) != testReading().Record() {
		t.Errorf("payload does not match record: %s", f.Payloads[0])
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated error")

	if err := f.Publish(testReading()); err == nil {
		t.Error("expected error")
	}
	if len(f.Readings) != 0 {
		t.Errorf("expected no readings recorded on error, got %d", len(f.Readings))
	}
}

func TestFakePublisherPublishSystem(t *testing.T) {
	f := NewFakePublisher()
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGINT",
		Retained:  true,
	}

	if err := f.PublishSystem(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.SystemEvents) != 1 || len(f.SystemPayloads) != 1 {
		t.Fatalf("expected 1 system event and payload, got %d/%d", len(f.SystemEvents), len(f.SystemPayloads))
	}
	if !f.SystemEvents[0].Retained {
		t.Error("retained flag lost")
	}

	f.PublishSystemError = errors.New("down")
	if err := f.PublishSystem(event); err == nil {
		t.Error("expected error")
	}
	if len(f.SystemEvents) != 1 {
		t.Errorf("expected no new events on error, got %d", len(f.SystemEvents))
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(testReading())
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Close()
	f.Connected = true
	f.PublishError = errors.New("error")

	f.Reset()

	if len(f.Readings) != 0 || len(f.Payloads) != 0 {
		t.Error("readings should be cleared")
	}
	if len(f.SystemEvents) != 0 || len(f.SystemPayloads) != 0 {
		t.Error("system events should be cleared")
	}
	if f.Closed || f.Connected {
		t.Error("flags should be reset")
	}
	if f.PublishError != nil {
		t.Error("error should be cleared")
	}

	// Reusable after reset
	if err := f.Publish(testReading()); err != nil {
		t.Fatalf("unexpected error after reset: %v", err)
	}
	if len(f.Readings) != 1 {
		t.Errorf("expected 1 reading after reset, got %d", len(f.Readings))
	}
}
