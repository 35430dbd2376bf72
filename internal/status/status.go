// Package status provides a thread-safe status tracker for the gateway.
// It is fed by the polling loop as an observer and read by HTTP handlers and
// lifecycle events.
package status

import (
	"os"
	"sync"
	"time"

	"github.com/sweeney/sensor-gateway/internal/device"
	"github.com/sweeney/sensor-gateway/internal/gateway"
)

// NetworkInfo contains network state as reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// NetworkFromEnv reads network info from the environment, or returns nil if
// the host does not publish it.
func NetworkFromEnv() *NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// Config contains gateway configuration for display.
type Config struct {
	Gateway       string
	Location      string
	InstanceID    string
	IntervalMs    int64
	Communication string
	Broker        string
	Storage       string
	HTTPPort      string
}

// SensorStatus is the latest known state of one sensor.
type SensorStatus struct {
	Name      string
	Last      device.Reading // zero until the first successful read
	LastError string
	ErrorTime time.Time
	Reads     int
	Errors    int
}

// Snapshot is a point-in-time view of gateway state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Sensors    []SensorStatus
	Cycles     uint64
	LastCycle  time.Time
	SendErrors int
	Connected  bool
	StartTime  time.Time
	Now        time.Time
	Network    *NetworkInfo
	Config     Config
}

// Uptime returns the duration since the gateway started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether every sensor has produced at least one reading.
func (s Snapshot) Ready() bool {
	for _, ss := range s.Sensors {
		if ss.Last.IsZero() {
			return false
		}
	}
	return len(s.Sensors) > 0
}

// Tracker holds mutable gateway state behind an RWMutex.
type Tracker struct {
	gateway.NopObserver

	mu      sync.RWMutex
	snap    Snapshot
	sensors map[string]int // index into snap.Sensors
	now     func() time.Time
}

// NewTracker creates a Tracker with the given start time and config. Sensors
// listed are shown in that order even before their first read.
func NewTracker(startTime time.Time, cfg Config, sensors ...string) *Tracker {
	t := &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		sensors: make(map[string]int),
		now:     time.Now,
	}
	for _, name := range sensors {
		t.sensorLocked(name)
	}
	return t
}

func (t *Tracker) sensorLocked(name string) *SensorStatus {
	i, ok := t.sensors[name]
	if !ok {
		i = len(t.snap.Sensors)
		t.sensors[name] = i
		t.snap.Sensors = append(t.snap.Sensors, SensorStatus{Name: name})
	}
	return &t.snap.Sensors[i]
}

// ReadDone records a sensor read.
func (t *Tracker) ReadDone(sensor string, r device.Reading, err error, took time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.sensorLocked(sensor)
	if err != nil {
		s.Errors++
		s.LastError = err.Error()
		s.ErrorTime = t.now()
		return
	}
	s.Reads++
	s.Last = r
	s.LastError = ""
}

// SendDone records a communicator result.
func (t *Tracker) SendDone(sensor string, resp device.Response, err error) {
	if err == nil {
		return
	}
	t.mu.Lock()
	t.snap.SendErrors++
	t.mu.Unlock()
}

// CycleDone records the end of a cycle.
func (t *Tracker) CycleDone(c gateway.Cycle) {
	t.mu.Lock()
	t.snap.Cycles = c.Seq
	t.snap.LastCycle = c.Started
	t.mu.Unlock()
}

// SetConnected sets the communicator connection status.
func (t *Tracker) SetConnected(connected bool) {
	t.mu.Lock()
	t.snap.Connected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the gateway state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Sensors = append([]SensorStatus(nil), t.snap.Sensors...)
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}

var _ gateway.Observer = (*Tracker)(nil)
