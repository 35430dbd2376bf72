package device

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies which variant of a Reading is populated.
type Kind string

const (
	KindBool  Kind = "bool"
	KindInt   Kind = "int"
	KindFloat Kind = "float"
	KindText  Kind = "text"
	KindBytes Kind = "bytes"
)

// Reading is a tagged value produced by a sensor. Exactly one variant is set;
// the zero Reading has no kind and is never produced by a sensor.
type Reading struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	raw  []byte

	// Source is the registered name of the sensor that produced the reading.
	Source string
	// Time is when the reading was taken.
	Time time.Time
}

// Bool returns a boolean reading.
func Bool(v bool) Reading { return Reading{kind: KindBool, b: v} }

// Int returns an integer reading.
func Int(v int64) Reading { return Reading{kind: KindInt, i: v} }

// Float returns a floating-point reading.
func Float(v float64) Reading { return Reading{kind: KindFloat, f: v} }

// Text returns a text reading.
func Text(v string) Reading { return Reading{kind: KindText, s: v} }

// Bytes returns a raw byte reading. The slice is copied.
func Bytes(v []byte) Reading {
	return Reading{kind: KindBytes, raw: append([]byte(nil), v...)}
}

// Kind reports the populated variant.
func (r Reading) Kind() Kind { return r.kind }

// IsZero reports whether no variant is populated.
func (r Reading) IsZero() bool { return r.kind == "" }

// Bool returns the boolean value and whether the reading is a bool.
func (r Reading) Bool() (bool, bool) { return r.b, r.kind == KindBool }

// Int returns the integer value and whether the reading is an int.
func (r Reading) Int() (int64, bool) { return r.i, r.kind == KindInt }

// Float returns the float value and whether the reading is a float.
func (r Reading) Float() (float64, bool) { return r.f, r.kind == KindFloat }

// Text returns the text value and whether the reading is text.
func (r Reading) Text() (string, bool) { return r.s, r.kind == KindText }

// Bytes returns a copy of the raw bytes and whether the reading is bytes.
func (r Reading) Bytes() ([]byte, bool) {
	if r.kind != KindBytes {
		return nil, false
	}
	return append([]byte(nil), r.raw...), true
}

// Number returns numeric readings (int or float) as float64.
func (r Reading) Number() (float64, bool) {
	switch r.kind {
	case KindInt:
		return float64(r.i), true
	case KindFloat:
		return r.f, true
	}
	return 0, false
}

// Value returns the populated variant as an interface value, or nil for the zero Reading.
func (r Reading) Value() any {
	switch r.kind {
	case KindBool:
		return r.b
	case KindInt:
		return r.i
	case KindFloat:
		return r.f
	case KindText:
		return r.s
	case KindBytes:
		return append([]byte(nil), r.raw...)
	}
	return nil
}

// With returns a copy stamped with source and time.
func (r Reading) With(source string, at time.Time) Reading {
	r.Source = source
	r.Time = at
	return r
}

func (r Reading) String() string {
	switch r.kind {
	case KindBool, KindInt, KindText:
		return fmt.Sprintf("%v", r.Value())
	case KindFloat:
		return fmt.Sprintf("%.2f", r.f)
	case KindBytes:
		return fmt.Sprintf("% x", r.raw)
	}
	return "<empty>"
}

// readingJSON is the wire form of a Reading.
type readingJSON struct {
	Sensor    string          `json:"sensor,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Kind      Kind            `json:"kind"`
	Value     json.RawMessage `json:"value"`
}

// MarshalJSON encodes the reading with an explicit kind tag. Bytes are base64.
func (r Reading) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return nil, fmt.Errorf("marshal reading: %w: empty reading", ErrInvalidData)
	}
	v, err := json.Marshal(r.Value())
	if err != nil {
		return nil, err
	}
	out := readingJSON{Sensor: r.Source, Kind: r.kind, Value: v}
	if !r.Time.IsZero() {
		out.Timestamp = r.Time.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var in readingJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	var out Reading
	var err error
	switch in.Kind {
	case KindBool:
		out.kind = KindBool
		err = json.Unmarshal(in.Value, &out.b)
	case KindInt:
		out.kind = KindInt
		err = json.Unmarshal(in.Value, &out.i)
	case KindFloat:
		out.kind = KindFloat
		err = json.Unmarshal(in.Value, &out.f)
	case KindText:
		out.kind = KindText
		err = json.Unmarshal(in.Value, &out.s)
	case KindBytes:
		out.kind = KindBytes
		err = json.Unmarshal(in.Value, &out.raw)
	default:
		return fmt.Errorf("unmarshal reading: %w: unknown kind %q", ErrInvalidData, in.Kind)
	}
	if err != nil {
		return fmt.Errorf("unmarshal reading %s value: %w", in.Kind, err)
	}

	out.Source = in.Sensor
	if in.Timestamp != "" {
		t, err := time.Parse(time.RFC3339Nano, in.Timestamp)
		if err != nil {
			return fmt.Errorf("unmarshal reading timestamp: %w", err)
		}
		out.Time = t
	}
	*r = out
	return nil
}
