// Command thermo-sensor polls an octo MAX31855 thermocouple board and
// publishes readings and fault changes to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/thermo-sensor/internal/config"
	"github.com/sweeney/thermo-sensor/internal/gpio"
	"github.com/sweeney/thermo-sensor/internal/logic"
	"github.com/sweeney/thermo-sensor/internal/max31855"
	"github.com/sweeney/thermo-sensor/internal/mqtt"
	"github.com/sweeney/thermo-sensor/internal/status"
	"github.com/sweeney/thermo-sensor/internal/web"
)

type options struct {
	poll       time.Duration
	debounce   time.Duration
	broker     string
	heartbeat  time.Duration
	httpAddr   string
	printState bool
	configPath string
	backend    string
}

func main() {
	var o options
	flag.DurationVar(&o.poll, "poll", 5*time.Second, "Interval between polls of all channels")
	flag.DurationVar(&o.debounce, "debounce", 10*time.Second, "How long a fault state must persist before it is reported")
	flag.StringVar(&o.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&o.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.BoolVar(&o.printState, "print-state", false, "Read every configured channel once, print and exit")
	flag.StringVar(&o.configPath, "config", "", "YAML file with pins and channels (defaults if empty)")
	flag.StringVar(&o.backend, "backend", "", `GPIO backend: "cdev", "rpio" or "periph" (overrides config)`)

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.backend != "" {
		cfg.Backend = o.backend
	}

	port, err := gpio.Open(cfg.Backend, cfg.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	session, err := max31855.New(port, cfg.MAXPins())
	if err != nil {
		return fmt.Errorf("init board: %w", err)
	}
	defer func() {
		if err := session.Shutdown(); err != nil {
			log.Printf("release gpio: %v", err)
		}
	}()

	if o.printState {
		return printState(os.Stdout, session, cfg)
	}

	publisher, err := mqtt.NewRealPublisher(o.broker, mqtt.DefaultClientID)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Tracker exists before STARTUP so the event carries a full snapshot.
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      o.poll.Milliseconds(),
		DebounceMs:  o.debounce.Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		Broker:      o.broker,
		HTTPAddr:    o.httpAddr,
		Backend:     cfg.Backend,
		Channels:    channelConfigs(cfg),
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(publisher.IsConnected())

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	log.Printf("started: backend=%s channels=%v poll=%v debounce=%v broker=%s heartbeat=%v",
		cfg.Backend, cfg.ChannelNumbers(), o.poll, o.debounce, o.broker, o.heartbeat)

	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	loop := &poller{
		board:      session,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		cfg:        cfg,
		debounce:   o.debounce,
		heartbeat:  o.heartbeat,
		now:        time.Now,
	}
	return loop.run(ticker.C, sigCh)
}

// sampler reads one channel of the board.
type sampler interface {
	Sample(channel int) (max31855.Reading, error)
}

// poller owns the board for the lifetime of the daemon. Every tick reads
// each configured channel in turn; with the settle delay a full cycle of
// eight channels takes at least one second.
type poller struct {
	board      sampler
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	cfg        config.Config
	debounce   time.Duration
	heartbeat  time.Duration
	now        func() time.Time
}

func (p *poller) run(tick <-chan time.Time, sig <-chan os.Signal) error {
	detector := logic.NewDetector(p.cfg.ChannelNumbers(), p.debounce, p.now())

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			p.shutdown(signalName(s))
			return nil

		case <-tick:
			t := p.now()
			for _, ch := range p.cfg.Channels {
				p.poll(detector, ch, t)
			}

			if hb := detector.CheckHeartbeat(t, p.heartbeat); hb != nil {
				log.Printf("heartbeat: uptime=%v faults=%d clears=%d", hb.Uptime, hb.Counts.Faults, hb.Counts.Clears)
				p.refresh(detector)
				if net := readNetworkInfo(); net != nil && p.tracker != nil {
					p.tracker.SetNetwork(net)
				}
				hbEvent := mqtt.SystemEvent{Timestamp: hb.Timestamp, Event: "HEARTBEAT"}
				if p.tracker != nil {
					hbEvent.RawPayload = status.FormatStatusEvent(p.tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := p.publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			p.refresh(detector)
		}
	}
}

// poll reads one channel and feeds the result through the detector. Read
// errors are logged and counted; the channel is tried again next tick.
func (p *poller) poll(detector *logic.Detector, ch config.Channel, t time.Time) {
	r, err := p.board.Sample(ch.Number)
	if err != nil {
		log.Printf("channel %d: read error: %v", ch.Number, err)
		if p.tracker != nil {
			p.tracker.RecordError(ch.Number, err)
		}
		return
	}
	if p.tracker != nil {
		p.tracker.RecordReading(r)
	}
	if err := p.publisher.PublishReading(ch.Name, r); err != nil {
		log.Printf("channel %d: publish reading: %v", ch.Number, err)
	}

	events := detector.Process(logic.Input{
		Channel: r.Channel,
		State:   faultState(r.Fault),
		Time:    t,
	})
	for _, event := range events {
		log.Printf("event: %s channel=%d %s -> %s", event.Type, event.Channel, event.Previous, event.State)
		if err := p.publisher.Publish(event); err != nil {
			log.Printf("publish error: %v", err)
		}
	}
}

// refresh copies detector and connection state into the tracker.
func (p *poller) refresh(detector *logic.Detector) {
	if p.tracker == nil {
		return
	}
	p.tracker.Update(detector.CurrentState(), detector.IsBaselined(), detector.EventCountsSnapshot())
	if p.mqttStatus != nil {
		p.tracker.SetMQTTConnected(p.mqttStatus.IsConnected())
	}
}

func (p *poller) shutdown(reason string) {
	event := mqtt.SystemEvent{
		Timestamp: p.now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if p.tracker != nil {
		if p.mqttStatus != nil {
			p.tracker.SetMQTTConnected(p.mqttStatus.IsConnected())
		}
		event.RawPayload = status.FormatStatusEvent(p.tracker.Snapshot(), "SHUTDOWN", reason)
	}
	if err := p.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// faultState maps a decoded fault to the detector's state vocabulary.
func faultState(c max31855.FaultCode) logic.State {
	if c == max31855.NoFault {
		return logic.StateOK
	}
	return logic.State(c.String())
}

func channelConfigs(cfg config.Config) []status.ChannelConfig {
	out := make([]status.ChannelConfig, len(cfg.Channels))
	for i, ch := range cfg.Channels {
		out[i] = status.ChannelConfig{Channel: ch.Number, Name: ch.Name}
	}
	return out
}

// printState reads every configured channel once and writes one line per
// channel to w.
func printState(w io.Writer, board sampler, cfg config.Config) error {
	for _, ch := range cfg.Channels {
		r, err := board.Sample(ch.Number)
		if err != nil {
			return fmt.Errorf("read channel %d: %w", ch.Number, err)
		}
		name := ch.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%d %-12s %8.2f°C  ref %6.2f°C  %s\n", r.Channel, name, r.HotJunction, r.Reference, r.Fault)
	}
	return nil
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
