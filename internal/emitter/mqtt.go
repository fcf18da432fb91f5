// Package emitter publishes capture statistics to an MQTT broker so a
// fleet of receivers can be watched without scraping logs. Payloads
// are msgpack-encoded; the receiver is a sensor, the broker side does
// the interpreting.
package emitter

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/vmihailenco/msgpack/v5"
)

// Config selects the broker and topic.
type Config struct {
	Broker   string // host:port
	ClientID string
	Topic    string
	QoS      byte
}

// StatsPayload is the wire format of one stats report.
type StatsPayload struct {
	InstanceID  string    `msgpack:"instance_id"`
	GUID        string    `msgpack:"guid"`
	Frames      uint64    `msgpack:"frames"`
	FPSMean     float64   `msgpack:"fps_mean"`
	FPSStdDev   float64   `msgpack:"fps_stddev"`
	Stable      bool      `msgpack:"stable"`
	AvgGrabMS   float64   `msgpack:"avg_grab_ms"`
	LastFrameAt time.Time `msgpack:"last_frame_at"`
	Timestamp   time.Time `msgpack:"timestamp"`
}

// Emitter is an MQTT client publishing StatsPayload messages.
type Emitter struct {
	cfg    Config
	client mqtt.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// New creates an emitter; Connect establishes the session.
func New(cfg Config) *Emitter {
	return &Emitter{cfg: cfg}
}

// Connect establishes the broker connection with automatic reconnect.
func (e *Emitter) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		slog.Info("emitter: mqtt connected",
			"broker", e.cfg.Broker, "client_id", e.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		slog.Warn("emitter: mqtt connection lost, auto-reconnecting",
			"broker", e.cfg.Broker, "error", err)
	}

	e.client = mqtt.NewClient(opts)

	token := e.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("emitter: mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("emitter: mqtt connect: %w", err)
	}

	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()
	return nil
}

// Publish encodes and sends one stats report.
func (e *Emitter) Publish(p StatsPayload) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("emitter: mqtt not connected")
	}

	payload, err := msgpack.Marshal(p)
	if err != nil {
		e.countError()
		return fmt.Errorf("emitter: encode stats: %w", err)
	}

	token := e.client.Publish(e.cfg.Topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("emitter: publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("emitter: publish: %w", err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()

	slog.Debug("emitter: stats published",
		"topic", e.cfg.Topic, "size", len(payload))
	return nil
}

// Disconnect closes the broker connection. Safe without a prior
// successful Connect.
func (e *Emitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		slog.Info("emitter: mqtt disconnected")
	}
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
}

// Stats reports publish/error counters.
func (e *Emitter) Stats() (published, errors uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.published, e.errors
}

func (e *Emitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *Emitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
