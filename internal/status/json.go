package status

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/sweeney/nexus-receiver/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	LastFrame     string       `json:"last_frame,omitempty"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"frame_counts"`
	Last          *ReadingJSON `json:"last_reading,omitempty"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Topic     string `json:"topic"`
}

// CountsJSON is the JSON representation of frame counts.
type CountsJSON struct {
	Frames        int `json:"frames"`
	Readings      int `json:"readings"`
	WrongLength   int `json:"wrong_length"`
	OutOfRange    int `json:"out_of_range"`
	WrongChannel  int `json:"wrong_channel"`
	PublishErrors int `json:"publish_errors"`
}

// ReadingJSON is the JSON representation of the last decoded reading.
type ReadingJSON struct {
	Time         string      `json:"time"`
	ID           uint8       `json:"id"`
	Channel      uint8       `json:"channel"`
	BatteryOK    bool        `json:"battery_ok"`
	TemperatureC json.Number `json:"temperature_C"`
	Humidity     uint8       `json:"humidity"`
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

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Chip        string `json:"chip"`
	Pin         int    `json:"pin"`
	Mode        string `json:"mode"`
	Channel     uint8  `json:"channel"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	WatchdogMs  int64  `json:"watchdog_ms"`
	HTTPAddr    string `json:"http_addr"`
}

// NewReadingJSON converts a reading for JSON output. The temperature keeps
// the one-decimal rendering of the published record.
func NewReadingJSON(r logic.Reading) *ReadingJSON {
	return &ReadingJSON{
		Time:         r.Time.UTC().Format(time.RFC3339),
		ID:           r.ID,
		Channel:      r.Channel,
		BatteryOK:    r.BatteryOK,
		TemperatureC: json.Number(r.Temperature()),
		Humidity:     r.Humidity,
	}
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Topic:     snap.Config.Topic,
		},
		Counts: CountsJSON{
			Frames:        snap.Counts.Frames,
			Readings:      snap.Counts.Readings,
			WrongLength:   snap.Counts.WrongLength,
			OutOfRange:    snap.Counts.OutOfRange,
			WrongChannel:  snap.Counts.WrongChannel,
			PublishErrors: snap.Counts.PublishErrors,
		},
		Config: ConfigJSON{
			Chip:        snap.Config.Chip,
			Pin:         snap.Config.Pin,
			Mode:        snap.Config.Mode,
			Channel:     snap.Config.Channel,
			HeartbeatMs: snap.Config.HeartbeatMs,
			WatchdogMs:  snap.Config.WatchdogMs,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if !snap.LastFrameAt.IsZero() {
		inner.LastFrame = snap.LastFrameAt.UTC().Format(time.RFC3339)
	}
	if snap.Last != nil {
		inner.Last = NewReadingJSON(*snap.Last)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
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
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// PinLabel formats a chip/line pair for display, e.g. "gpiochip0/27".
func (c Config) PinLabel() string {
	return c.Chip + "/" + strconv.Itoa(c.Pin)
}
