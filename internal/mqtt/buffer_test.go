package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sweeney/sensor-gateway/internal/device"
)

func readingMsg(t *testing.T, sensor string, v float64) outgoing {
	t.Helper()
	payload, err := device.FormatPayload("gw", device.Float(v).With(sensor, at))
	if err != nil {
		t.Fatal(err)
	}
	return outgoing{topic: DefaultTopic, payload: payload, qos: 1, retained: true}
}

func values(t *testing.T, msgs []outgoing) []float64 {
	t.Helper()
	var out []float64
	for _, m := range msgs {
		var p device.Payload
		if err := json.Unmarshal(m.payload, &p); err != nil {
			t.Fatal(err)
		}
		v, ok := p.Reading.Float()
		if !ok {
			t.Fatalf("payload %s is not a float reading", m.payload)
		}
		out = append(out, v)
	}
	return out
}

func TestBacklogKeepsNewestReadings(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		readings []float64
		want     []float64
		drops    []bool
	}{
		{"empty", 3, nil, nil, nil},
		{"below capacity", 3, []float64{20.1, 20.2}, []float64{20.1, 20.2}, []bool{false, false}},
		{"exactly full", 2, []float64{20.1, 20.2}, []float64{20.1, 20.2}, []bool{false, false}},
		{"evicts oldest", 2, []float64{20.1, 20.2, 20.3, 20.4}, []float64{20.3, 20.4}, []bool{false, false, true, false}},
		{"wraps twice", 3, []float64{1, 2, 3, 4, 5, 6, 7}, []float64{5, 6, 7}, []bool{false, false, false, true, false, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBacklog(tt.size)
			var drops []bool
			for _, v := range tt.readings {
				drops = append(drops, b.add(readingMsg(t, "air", v)))
			}
			if diff := cmp.Diff(tt.drops, drops); diff != "" {
				t.Errorf("eviction reports (-want +got):\n%s", diff)
			}
			if b.size() != len(tt.want) {
				t.Errorf("size = %d, want %d", b.size(), len(tt.want))
			}
			if diff := cmp.Diff(tt.want, values(t, b.takeAll())); diff != "" {
				t.Errorf("replayed readings (-want +got):\n%s", diff)
			}
			if b.size() != 0 || b.takeAll() != nil {
				t.Error("backlog should be empty after takeAll")
			}
		})
	}
}

func TestBacklogReusedAfterTake(t *testing.T) {
	b := newBacklog(2)
	for _, v := range []float64{1, 2, 3} {
		b.add(readingMsg(t, "soil", v))
	}
	b.takeAll()

	if b.add(readingMsg(t, "soil", 10)) || b.add(readingMsg(t, "soil", 11)) {
		t.Error("no eviction expected after take")
	}
	if !b.add(readingMsg(t, "soil", 12)) {
		t.Error("eviction after take should be reported again")
	}
	if diff := cmp.Diff([]float64{11, 12}, values(t, b.takeAll())); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestBacklogKeepsDeliverySettings(t *testing.T) {
	b := newBacklog(1)
	b.add(outgoing{topic: DefaultSystemTopic, payload: []byte(`{"system":{}}`), qos: 1, retained: true})
	got := b.takeAll()
	want := outgoing{topic: DefaultSystemTopic, payload: []byte(`{"system":{}}`), qos: 1, retained: true}
	if diff := cmp.Diff([]outgoing{want}, got, cmp.AllowUnexported(outgoing{})); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
