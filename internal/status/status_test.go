package status

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/sensor-gateway/internal/device"
	"github.com/sweeney/sensor-gateway/internal/gateway"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewTracker(t *testing.T) {
	cfg := Config{Gateway: "gw-1", IntervalMs: 2000, Broker: "tcp://localhost:1883", HTTPPort: ":80"}
	tr := NewTracker(start, cfg, "temp", "rain")

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.IntervalMs != 2000 {
		t.Errorf("Config.IntervalMs: got %d, want 2000", snap.Config.IntervalMs)
	}
	if len(snap.Sensors) != 2 || snap.Sensors[0].Name != "temp" || snap.Sensors[1].Name != "rain" {
		t.Errorf("expected sensors in registration order, got %+v", snap.Sensors)
	}
	if snap.Ready() {
		t.Error("expected Ready=false before any read")
	}
	if snap.Connected {
		t.Error("expected Connected=false initially")
	}
}

func TestReadDoneUpdatesSensor(t *testing.T) {
	tr := NewTracker(start, Config{}, "temp")

	r := device.Float(21.5).With("temp", start.Add(time.Second))
	tr.ReadDone("temp", r, nil, time.Millisecond)
	tr.ReadDone("temp", device.Reading{}, device.ErrTimeout, time.Millisecond)

	s := tr.Snapshot().Sensors[0]
	if s.Reads != 1 || s.Errors != 1 {
		t.Errorf("counters: got reads=%d errors=%d, want 1/1", s.Reads, s.Errors)
	}
	if v, _ := s.Last.Float(); v != 21.5 {
		t.Errorf("failed read should keep the last value, got %v", s.Last)
	}
	if s.LastError != "timeout" {
		t.Errorf("LastError: got %q, want timeout", s.LastError)
	}

	tr.ReadDone("temp", device.Float(22), nil, 0)
	if got := tr.Snapshot().Sensors[0].LastError; got != "" {
		t.Errorf("successful read should clear the error, got %q", got)
	}
}

func TestReadDoneUnknownSensorIsAdded(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.ReadDone("late", device.Bool(true), nil, 0)

	snap := tr.Snapshot()
	if len(snap.Sensors) != 1 || snap.Sensors[0].Name != "late" {
		t.Fatalf("expected sensor to be added, got %+v", snap.Sensors)
	}
	if !snap.Ready() {
		t.Error("expected Ready=true once every sensor has a value")
	}
}

func TestCycleAndSendTracking(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.SendDone("temp", device.Response{}, nil)
	tr.SendDone("temp", device.Response{}, device.ErrSend)
	tr.CycleDone(gateway.Cycle{Seq: 7, Started: start.Add(time.Minute)})

	snap := tr.Snapshot()
	if snap.SendErrors != 1 {
		t.Errorf("SendErrors: got %d, want 1", snap.SendErrors)
	}
	if snap.Cycles != 7 || !snap.LastCycle.Equal(start.Add(time.Minute)) {
		t.Errorf("cycle not recorded: %d %v", snap.Cycles, snap.LastCycle)
	}
}

func TestSetConnected(t *testing.T) {
	tr := NewTracker(start, Config{})

	tr.SetConnected(true)
	if !tr.Snapshot().Connected {
		t.Error("expected Connected=true")
	}

	tr.SetConnected(false)
	if tr.Snapshot().Connected {
		t.Error("expected Connected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(start, Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestNetworkFromEnv(t *testing.T) {
	t.Setenv("NETWORK_STATUS", "")
	if NetworkFromEnv() != nil {
		t.Error("expected nil without NETWORK_STATUS")
	}

	t.Setenv("NETWORK_STATUS", "connected")
	t.Setenv("NETWORK_IP", "10.0.0.5")
	t.Setenv("NETWORK_WIFI_SSID", "MyNet")
	n := NetworkFromEnv()
	if n == nil || n.IP != "10.0.0.5" || n.SSID != "MyNet" {
		t.Errorf("unexpected network info %+v", n)
	}
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(start, Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(start, Config{}, "temp")
	tr.ReadDone("temp", device.Float(1), nil, 0)

	snap1 := tr.Snapshot()
	tr.ReadDone("temp", device.Float(2), nil, 0)

	if v, _ := snap1.Sensors[0].Last.Float(); v != 1 {
		t.Error("snapshot should be a copy; sensor value was modified")
	}
}

func testSnapshot() Snapshot {
	return Snapshot{
		Sensors: []SensorStatus{
			{Name: "temp", Last: device.Float(21.5).With("temp", start.Add(time.Minute)), Reads: 5},
			{Name: "rain", Errors: 2, LastError: "timeout"},
		},
		Cycles:    5,
		LastCycle: start.Add(time.Minute),
		Connected: true,
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
		Config: Config{
			Gateway:       "gw-1",
			IntervalMs:    2000,
			Communication: "mqtt",
			Broker:        "tcp://localhost:1883",
			Storage:       "memory",
			HTTPPort:      ":80",
		},
	}
}

func TestFormatJSON(t *testing.T) {
	data := FormatJSON(testSnapshot())

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	st := parsed.Status
	if st.Gateway != "gw-1" {
		t.Errorf("Gateway: got %q, want gw-1", st.Gateway)
	}
	if st.Ready {
		t.Error("expected Ready=false while a sensor has no value")
	}
	if st.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", st.UptimeSeconds)
	}
	if !st.Link.Connected || st.Link.Kind != "mqtt" {
		t.Errorf("unexpected link %+v", st.Link)
	}
	if len(st.Sensors) != 2 {
		t.Fatalf("expected 2 sensors, got %d", len(st.Sensors))
	}
	if st.Sensors[0].Display != "21.50" || st.Sensors[0].Value != 21.5 || st.Sensors[0].Kind != "float" {
		t.Errorf("unexpected temp sensor %+v", st.Sensors[0])
	}
	if st.Sensors[0].UpdatedAt != "2026-01-01T00:01:00Z" {
		t.Errorf("UpdatedAt: got %q", st.Sensors[0].UpdatedAt)
	}
	if st.Sensors[1].Display != "ERROR" || st.Sensors[1].LastError != "timeout" {
		t.Errorf("unexpected rain sensor %+v", st.Sensors[1])
	}
	if st.Config == nil || st.Config.IntervalMs != 2000 {
		t.Errorf("expected config in web output, got %+v", st.Config)
	}
	// Event and Reason should be omitted
	if st.Event != "" || st.Reason != "" {
		t.Errorf("expected empty event/reason for web format, got %q/%q", st.Event, st.Reason)
	}
}

func TestFormatJSONUnknownSensor(t *testing.T) {
	snap := Snapshot{
		Sensors:   []SensorStatus{{Name: "temp"}},
		StartTime: start,
		Now:       start.Add(time.Second),
	}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.Sensors[0].Display != "UNKNOWN" {
		t.Errorf("Display: got %q, want UNKNOWN", parsed.Status.Sensors[0].Display)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	data := FormatStatusEvent(testSnapshot(), "SHUTDOWN", "SIGTERM")

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	status := raw["status"].(map[string]interface{})
	if status["event"] != "SHUTDOWN" || status["reason"] != "SIGTERM" {
		t.Errorf("unexpected event/reason %v/%v", status["event"], status["reason"])
	}
	if _, exists := status["config"]; exists {
		t.Error("SHUTDOWN should not carry config")
	}
}

func TestFormatStatusEventStartup(t *testing.T) {
	data := FormatStatusEvent(testSnapshot(), "STARTUP", "")

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if _, exists := status["config"]; !exists {
		t.Error("STARTUP should carry config")
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := testSnapshot()
	snap.Network = &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{}, "a")
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if i%3 == 0 {
				tr.ReadDone("a", device.Reading{}, errors.New("x"), 0)
			} else {
				tr.ReadDone("a", device.Int(int64(i)), nil, 0)
			}
			tr.SetConnected(i%2 == 0)
			tr.CycleDone(gateway.Cycle{Seq: uint64(i)})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
