// Package status provides a thread-safe status tracker for the nexus-receiver daemon.
// It is read by HTTP handlers and heartbeat events while runLoop writes to it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/nexus-receiver/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Chip        string
	Pin         int
	Mode        string
	Channel     uint8
	Topic       string
	Broker      string
	HTTPAddr    string
	HeartbeatMs int64
	WatchdogMs  int64
}

// Counts tallies frames and their outcomes since startup.
type Counts struct {
	Frames        int
	Readings      int
	WrongLength   int
	OutOfRange    int
	WrongChannel  int
	PublishErrors int
}

// Rejected returns the number of frames that did not produce a published reading.
func (c Counts) Rejected() int {
	return c.WrongLength + c.OutOfRange + c.WrongChannel
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	Counts        Counts
	Last          *logic.Reading
	LastFrameAt   time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// RecordFrame counts a completed frame handed over by the machine.
func (t *Tracker) RecordFrame(at time.Time) {
	t.mu.Lock()
	t.snap.Counts.Frames++
	t.snap.LastFrameAt = at
	t.mu.Unlock()
}

// RecordReading counts a decoded reading and keeps it as the last one seen.
func (t *Tracker) RecordReading(r logic.Reading) {
	t.mu.Lock()
	t.snap.Counts.Readings++
	t.snap.Last = &r
	t.mu.Unlock()
}

// RecordError counts a rejected frame by kind.
func (t *Tracker) RecordError(kind logic.Kind) {
	t.mu.Lock()
	switch kind {
	case logic.KindWrongLength:
		t.snap.Counts.WrongLength++
	case logic.KindOutOfRange:
		t.snap.Counts.OutOfRange++
	case logic.KindWrongChannel:
		t.snap.Counts.WrongChannel++
	}
	t.mu.Unlock()
}

// RecordPublishError counts a reading the publisher failed to send.
func (t *Tracker) RecordPublishError() {
	t.mu.Lock()
	t.snap.Counts.PublishErrors++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Last != nil {
		last := *s.Last
		s.Last = &last
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
