package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Gateway       string       `json:"gateway"`
	Location      string       `json:"location,omitempty"`
	InstanceID    string       `json:"instance_id,omitempty"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Cycles        uint64       `json:"cycles"`
	LastCycle     string       `json:"last_cycle,omitempty"`
	Link          LinkStatus   `json:"link"`
	Sensors       []SensorJSON `json:"sensors"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        *ConfigJSON  `json:"config,omitempty"`
}

// LinkStatus reports the communicator state.
type LinkStatus struct {
	Kind       string `json:"kind"`
	Connected  bool   `json:"connected"`
	Broker     string `json:"broker,omitempty"`
	SendErrors int    `json:"send_errors"`
}

// SensorJSON is the JSON representation of one sensor's status.
type SensorJSON struct {
	Name      string `json:"name"`
	Kind      string `json:"kind,omitempty"`
	Value     any    `json:"value,omitempty"`
	Display   string `json:"display"`
	UpdatedAt string `json:"updated_at,omitempty"`
	Reads     int    `json:"reads"`
	Errors    int    `json:"errors"`
	LastError string `json:"last_error,omitempty"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of gateway config.
type ConfigJSON struct {
	IntervalMs    int64  `json:"interval_ms"`
	Communication string `json:"communication"`
	Storage       string `json:"storage"`
	HTTPPort      string `json:"http_port"`
}

// Display is how a sensor's state is rendered for people.
func (s SensorStatus) Display() string {
	if s.Last.IsZero() {
		if s.LastError != "" {
			return "ERROR"
		}
		return "UNKNOWN"
	}
	return s.Last.String()
}

func buildSensors(snap Snapshot) []SensorJSON {
	out := make([]SensorJSON, 0, len(snap.Sensors))
	for _, s := range snap.Sensors {
		sj := SensorJSON{
			Name:      s.Name,
			Display:   s.Display(),
			Reads:     s.Reads,
			Errors:    s.Errors,
			LastError: s.LastError,
		}
		if !s.Last.IsZero() {
			sj.Kind = string(s.Last.Kind())
			sj.Value = s.Last.Value()
			if !s.Last.Time.IsZero() {
				sj.UpdatedAt = s.Last.Time.UTC().Format(time.RFC3339)
			}
		}
		out = append(out, sj)
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Gateway:       snap.Config.Gateway,
		Location:      snap.Config.Location,
		InstanceID:    snap.Config.InstanceID,
		Ready:         snap.Ready(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Cycles:        snap.Cycles,
		Link: LinkStatus{
			Kind:       snap.Config.Communication,
			Connected:  snap.Connected,
			Broker:     snap.Config.Broker,
			SendErrors: snap.SendErrors,
		},
		Sensors: buildSensors(snap),
	}
	if !snap.LastCycle.IsZero() {
		inner.LastCycle = snap.LastCycle.UTC().Format(time.RFC3339)
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

func buildConfig(snap Snapshot) *ConfigJSON {
	return &ConfigJSON{
		IntervalMs:    snap.Config.IntervalMs,
		Communication: snap.Config.Communication,
		Storage:       snap.Config.Storage,
		HTTPPort:      snap.Config.HTTPPort,
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	inner.Config = buildConfig(snap)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for a lifecycle event. STARTUP
// carries the config; other events omit it.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	if event == "STARTUP" {
		inner.Config = buildConfig(snap)
	}

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
