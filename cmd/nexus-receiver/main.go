// Command nexus-receiver decodes Nexus-TH 433 MHz sensor frames from a GPIO-attached
// OOK receiver and publishes them to MQTT as rtl_433 style records.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/nexus-receiver/internal/capture"
	"github.com/sweeney/nexus-receiver/internal/gpio"
	"github.com/sweeney/nexus-receiver/internal/logic"
	"github.com/sweeney/nexus-receiver/internal/mqtt"
	"github.com/sweeney/nexus-receiver/internal/sampler"
	"github.com/sweeney/nexus-receiver/internal/status"
	"github.com/sweeney/nexus-receiver/internal/watchdog"
	"github.com/sweeney/nexus-receiver/internal/web"
)

const (
	modePoll = "poll"
	modeEdge = "edge"

	// housekeeping is the tick interval for heartbeat and status refresh.
	housekeeping = time.Second

	edgeBuffer = 1024
)

// envMQTTPassword holds the broker password. There is no --password flag.
const envMQTTPassword = "NEXUS_MQTT_PASSWORD"

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "nexus-receiver",
	Short: "Nexus-TH 433 MHz sensor receiver",
	Long: `nexus-receiver samples a 433 MHz OOK receiver on a GPIO line, decodes
Nexus-TH temperature/humidity frames and publishes them to MQTT in the
rtl_433 record format.

The MQTT password is read from the ` + envMQTTPassword + ` environment variable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(logLevel)
	},
}

type runConfig struct {
	chip      string
	pin       int
	bias      string
	activeLow bool
	mode      string
	yield     time.Duration
	channel   uint8

	broker   string
	username string
	topic    string
	clientID string
	buffer   int

	heartbeat time.Duration
	watchdog  time.Duration
	httpAddr  string
	capture   string
}

func newRunCmd() *cobra.Command {
	var cfg runConfig
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Receive frames and publish readings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.chip, "chip", gpio.DefaultChip, "GPIO chip device")
	f.IntVar(&cfg.pin, "pin", gpio.DefaultPin, "GPIO line offset (BCM number) of the receiver data pin")
	f.StringVar(&cfg.bias, "bias", "", "line bias: none, pull-up or pull-down")
	f.BoolVar(&cfg.activeLow, "active-low", false, "invert the receiver data line")
	f.StringVar(&cfg.mode, "mode", modePoll, "edge detection: poll (busy-poll the line) or edge (kernel edge events)")
	f.DurationVar(&cfg.yield, "yield", 0, "sleep between polls when the line is idle (0 spins)")
	f.Uint8Var(&cfg.channel, "channel", 1, "sensor channel to accept (1-4)")
	f.StringVar(&cfg.broker, "broker", "tcp://mqttserver:1883", "MQTT broker address")
	f.StringVar(&cfg.username, "username", "", "MQTT username")
	f.StringVar(&cfg.topic, "topic", mqtt.DefaultTopic, "MQTT topic for readings")
	f.StringVar(&cfg.clientID, "client-id", "nexus-receiver", "MQTT client ID")
	f.IntVar(&cfg.buffer, "buffer", 100, "messages kept for replay while the broker is unreachable")
	f.DurationVar(&cfg.heartbeat, "heartbeat", 15*time.Minute, "heartbeat interval (0 to disable)")
	f.DurationVar(&cfg.watchdog, "watchdog", watchdog.DefaultTimeout, "receive loop stall timeout (0 to disable)")
	f.StringVar(&cfg.httpAddr, "http", ":8080", "HTTP status address (empty to disable)")
	f.StringVar(&cfg.capture, "capture", "", "record every edge to this CBOR file")
	return cmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.AddCommand(newRunCmd(), newDecodeCmd(), newReplayCmd(), newLevelCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func setupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}

func (c runConfig) validate() error {
	if c.channel < 1 || c.channel > 4 {
		return fmt.Errorf("--channel must be between 1 and 4, got %d", c.channel)
	}
	if c.mode != modePoll && c.mode != modeEdge {
		return fmt.Errorf("--mode must be %s or %s, got %q", modePoll, modeEdge, c.mode)
	}
	if _, err := gpio.ParseBias(c.bias); err != nil {
		return err
	}
	return nil
}

func (c runConfig) pinOptions() gpio.PinOptions {
	bias, _ := gpio.ParseBias(c.bias)
	return gpio.PinOptions{Bias: bias, ActiveLow: c.activeLow}
}

func run(cfg runConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	// Initialize GPIO
	source, closeSource, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(mqtt.Config{
		Broker:         cfg.broker,
		ClientID:       cfg.clientID,
		Username:       cfg.username,
		Password:       os.Getenv(envMQTTPassword),
		Topic:          cfg.topic,
		BufferSize:     cfg.buffer,
		PublishTimeout: publishTimeout(cfg.watchdog),
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Chip:        cfg.chip,
		Pin:         cfg.pin,
		Mode:        cfg.mode,
		Channel:     cfg.channel,
		Topic:       cfg.topic,
		Broker:      cfg.broker,
		HTTPAddr:    cfg.httpAddr,
		HeartbeatMs: cfg.heartbeat.Milliseconds(),
		WatchdogMs:  cfg.watchdog.Milliseconds(),
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(publisher.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.WithError(err).Warn("failed to publish startup event")
	} else {
		log.Info("published startup event")
	}

	// Start HTTP status server
	hub := web.NewHub()
	if cfg.httpAddr != "" {
		srv := web.New(cfg.httpAddr, tracker, hub)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infof("http status server listening on %s", cfg.httpAddr)
	}

	rx := &receiver{
		source:     source,
		machine:    logic.NewMachine(),
		decoder:    logic.NewDecoder(cfg.channel),
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		hub:        hub,
		now:        time.Now,
		yield:      cfg.yield,
		heartbeat:  cfg.heartbeat,
	}

	if cfg.capture != "" {
		rec, err := capture.Create(cfg.capture, time.Now(), tracker.Snapshot().Config.PinLabel())
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				log.WithError(err).Warn("close capture")
			}
			log.Infof("captured %d edges to %s", rec.Count(), cfg.capture)
		}()
		rx.recorder = rec
	}

	guard := watchdog.New(cfg.watchdog)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go guard.Run(ctx)
	rx.guard = guard

	log.WithFields(log.Fields{
		"pin":       tracker.Snapshot().Config.PinLabel(),
		"mode":      cfg.mode,
		"channel":   cfg.channel,
		"broker":    cfg.broker,
		"topic":     cfg.topic,
		"heartbeat": cfg.heartbeat,
		"watchdog":  cfg.watchdog,
	}).Info("started")

	watchdog.Ready()
	defer watchdog.Stopping()

	ticker := time.NewTicker(housekeeping)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return rx.runLoop(ticker.C, sigCh)
}

// publishTimeout bounds broker waits in the receive loop to half the
// watchdog timeout, so a slow broker yields a publish error rather than a
// watchdog expiry.
func publishTimeout(wd time.Duration) time.Duration {
	if wd <= 0 || wd/2 >= mqtt.DefaultPublishTimeout {
		return mqtt.DefaultPublishTimeout
	}
	return wd / 2
}

// openSource opens the receiver line in the configured mode. The returned
// func releases the line.
func openSource(cfg runConfig) (sampler.Source, func(), error) {
	opts := cfg.pinOptions()

	if cfg.mode == modeEdge {
		w, err := gpio.NewEdgeWatcher(cfg.chip, cfg.pin, opts, edgeBuffer)
		if err != nil {
			return nil, nil, fmt.Errorf("init gpio: %w", err)
		}
		closer := func() {
			if n := w.Dropped(); n > 0 {
				log.Warnf("dropped %d edge events", n)
			}
			w.Close()
		}
		return sampler.NewEventSampler(w, gpio.High), closer, nil
	}

	pin, err := gpio.NewRealPin(cfg.chip, cfg.pin, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("init gpio: %w", err)
	}
	return sampler.New(pin, gpio.NewMonotonicCounter(), gpio.High), func() { pin.Close() }, nil
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

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
