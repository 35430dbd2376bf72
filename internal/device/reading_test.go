package device

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestReadingExactlyOneVariant(t *testing.T) {
	tests := []struct {
		name string
		r    Reading
		kind Kind
	}{
		{"bool", Bool(true), KindBool},
		{"int", Int(-7), KindInt},
		{"float", Float(21.5), KindFloat},
		{"text", Text("dry"), KindText},
		{"bytes", Bytes([]byte{1, 2}), KindBytes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.r.Kind() != tt.kind {
				t.Fatalf("kind: got %s, want %s", tt.r.Kind(), tt.kind)
			}
			populated := 0
			if _, ok := tt.r.Bool(); ok {
				populated++
			}
			if _, ok := tt.r.Int(); ok {
				populated++
			}
			if _, ok := tt.r.Float(); ok {
				populated++
			}
			if _, ok := tt.r.Text(); ok {
				populated++
			}
			if _, ok := tt.r.Bytes(); ok {
				populated++
			}
			if populated != 1 {
				t.Errorf("expected exactly one populated variant, got %d", populated)
			}
		})
	}
}

func TestZeroReading(t *testing.T) {
	var r Reading
	if !r.IsZero() {
		t.Error("zero Reading should report IsZero")
	}
	if r.Value() != nil {
		t.Errorf("zero Reading value: got %v, want nil", r.Value())
	}
	if _, err := json.Marshal(r); err == nil {
		t.Error("expected error marshalling empty reading")
	}
}

func TestBytesAreCopied(t *testing.T) {
	src := []byte{0xde, 0xad}
	r := Bytes(src)
	src[0] = 0

	got, _ := r.Bytes()
	if got[0] != 0xde {
		t.Errorf("reading shares caller slice: got %x", got)
	}
	got[1] = 0
	again, _ := r.Bytes()
	if again[1] != 0xad {
		t.Errorf("accessor leaks internal slice: got %x", again)
	}
}

func TestNumber(t *testing.T) {
	if v, ok := Int(3).Number(); !ok || v != 3 {
		t.Errorf("Int(3).Number() = %v, %v", v, ok)
	}
	if v, ok := Float(2.5).Number(); !ok || v != 2.5 {
		t.Errorf("Float(2.5).Number() = %v, %v", v, ok)
	}
	if _, ok := Text("x").Number(); ok {
		t.Error("text reading should not be numeric")
	}
}

func TestReadingJSON(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	readings := []Reading{
		Bool(true).With("rain", at),
		Int(1200).With("modbus", at),
		Float(-3.5).With("dht", at),
		Text("Temp: 21.0°C, Hum: 40.0%").With("dht-text", at),
		Bytes([]byte{0, 1, 255}).With("raw", at),
	}

	for _, want := range readings {
		t.Run(string(want.Kind()), func(t *testing.T) {
			data, err := json.Marshal(want)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var got Reading
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal %s: %v", data, err)
			}
			if diff := cmp.Diff(want.Value(), got.Value()); diff != "" {
				t.Errorf("value mismatch (-want +got):\n%s", diff)
			}
			if got.Source != want.Source || !got.Time.Equal(want.Time) {
				t.Errorf("metadata: got (%q, %v), want (%q, %v)", got.Source, got.Time, want.Source, want.Time)
			}
		})
	}
}

func TestReadingJSONUnknownKind(t *testing.T) {
	var r Reading
	err := json.Unmarshal([]byte(`{"kind":"matrix","value":1}`), &r)
	if !errors.Is(err, ErrInvalidData) {
		t.Errorf("expected ErrInvalidData, got %v", err)
	}
}

func TestFormatPayloadExactJSON(t *testing.T) {
	r := Float(21.5).With("living-room", time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC))

	payload, err := FormatPayload("gw-1", r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `{"gateway":"gw-1","reading":{"sensor":"living-room","timestamp":"2026-02-02T22:18:12Z","kind":"float","value":21.5}}`
	if string(payload) != want {
		t.Errorf("payload:\n got %s\nwant %s", payload, want)
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	r := Bool(false).With("rain", time.Date(2026, 2, 2, 23, 0, 0, 0, loc))

	payload, err := FormatPayload("", r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed struct {
		Reading struct {
			Timestamp string `json:"timestamp"`
		} `json:"reading"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Reading.Timestamp != "2026-02-02T22:00:00Z" {
		t.Errorf("timestamp should be UTC, got %s", parsed.Reading.Timestamp)
	}
}
