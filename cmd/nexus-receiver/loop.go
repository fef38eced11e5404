package main

import (
	"errors"
	"os"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/nexus-receiver/internal/logic"
	"github.com/sweeney/nexus-receiver/internal/mqtt"
	"github.com/sweeney/nexus-receiver/internal/sampler"
	"github.com/sweeney/nexus-receiver/internal/status"
)

// pollErrorBackoff is the pause after a failed pin read.
const pollErrorBackoff = 100 * time.Millisecond

type broadcaster interface {
	Broadcast(msg []byte)
}

type edgeRecorder interface {
	Write(e sampler.Edge) error
}

type feeder interface {
	Feed()
}

// receiver owns the receive pipeline: source → machine → decoder → publisher.
// Only the tracker and hub are shared with other goroutines.
type receiver struct {
	source     sampler.Source
	machine    *logic.Machine
	decoder    *logic.Decoder
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	hub        broadcaster  // optional
	recorder   edgeRecorder // optional
	guard      feeder       // optional

	now       func() time.Time
	sleep     func(time.Duration)
	yield     time.Duration
	heartbeat time.Duration

	lastHeartbeat time.Time
	recordErrors  int
}

// runLoop polls the source until a signal arrives. Housekeeping (heartbeat,
// status refresh) runs on tick; every other iteration is spent on the line.
func (rx *receiver) runLoop(tick <-chan time.Time, sig <-chan os.Signal) error {
	if rx.sleep == nil {
		rx.sleep = time.Sleep
	}
	rx.lastHeartbeat = rx.now()

	for {
		select {
		case s := <-sig:
			rx.shutdown(s)
			return nil
		case <-tick:
			rx.housekeeping()
		default:
		}

		if rx.guard != nil {
			rx.guard.Feed()
		}

		edge, ok, err := rx.source.Poll()
		if err != nil {
			log.WithError(err).Warn("gpio read error")
			rx.sleep(pollErrorBackoff)
			continue
		}
		if !ok {
			if rx.yield > 0 {
				rx.sleep(rx.yield)
			}
			continue
		}

		rx.record(edge)
		if frame := rx.machine.Feed(edge.Falling(), edge.Duration); frame != nil {
			rx.handleFrame(frame)
		}
	}
}

func (rx *receiver) record(e sampler.Edge) {
	if rx.recorder == nil {
		return
	}
	if err := rx.recorder.Write(e); err != nil {
		// Only the first failure is logged.
		if rx.recordErrors == 0 {
			log.WithError(err).Error("capture write failed")
		}
		rx.recordErrors++
	}
}

// handleFrame decodes a completed frame and publishes the reading.
func (rx *receiver) handleFrame(frame logic.Frame) {
	t := rx.now()
	rx.tracker.RecordFrame(t)

	reading, err := rx.decoder.Decode(frame, t)
	if err != nil {
		var de *logic.DecodeError
		if !errors.As(err, &de) {
			log.WithError(err).Error("decode failed")
			return
		}
		rx.tracker.RecordError(de.Kind)

		entry := log.WithFields(log.Fields{
			"kind":  de.Kind,
			"value": de.Value,
		})
		if de.Kind == logic.KindWrongChannel {
			entry.Debug("frame for another channel")
			return
		}
		entry.WithField("samples", logic.FormatSamples(de.Samples)).Warn("frame rejected")
		return
	}

	rx.tracker.RecordReading(reading)
	log.WithFields(log.Fields{
		"id":          reading.ID,
		"channel":     reading.Channel,
		"battery_ok":  reading.BatteryOK,
		"temperature": reading.Temperature(),
		"humidity":    reading.Humidity,
	}).Info("reading")

	if rx.hub != nil {
		rx.hub.Broadcast(mqtt.FormatPayload(reading))
	}
	if err := rx.publisher.Publish(reading); err != nil {
		rx.tracker.RecordPublishError()
		log.WithError(err).Warn("publish error")
		// Don't crash on publish failure
	}
}

// housekeeping refreshes shared status and sends a heartbeat when due.
func (rx *receiver) housekeeping() {
	if rx.mqttStatus != nil {
		rx.tracker.SetMQTTConnected(rx.mqttStatus.IsConnected())
	}

	if rx.heartbeat <= 0 {
		return
	}
	t := rx.now()
	if t.Sub(rx.lastHeartbeat) < rx.heartbeat {
		return
	}
	rx.lastHeartbeat = t

	// Refresh network info for heartbeat
	if net := readNetworkInfo(); net != nil {
		rx.tracker.SetNetwork(net)
	}
	snap := rx.tracker.Snapshot()
	log.WithFields(log.Fields{
		"uptime":   snap.Uptime().Truncate(time.Second),
		"frames":   snap.Counts.Frames,
		"readings": snap.Counts.Readings,
		"rejected": snap.Counts.Rejected(),
	}).Info("heartbeat")

	event := mqtt.SystemEvent{
		Timestamp:  t,
		Event:      "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
	}
	if err := rx.publisher.PublishSystem(event); err != nil {
		log.WithError(err).Warn("heartbeat publish error")
	}
}

func (rx *receiver) shutdown(s os.Signal) {
	log.Infof("received %v, shutting down", s)
	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}

	if rx.mqttStatus != nil {
		rx.tracker.SetMQTTConnected(rx.mqttStatus.IsConnected())
	}
	snap := rx.tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  rx.now(),
		Event:      "SHUTDOWN",
		Reason:     signalName,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
	}
	if err := rx.publisher.PublishSystem(event); err != nil {
		log.WithError(err).Warn("failed to publish shutdown event")
	} else {
		log.Info("published shutdown event")
	}
}
