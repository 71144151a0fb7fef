// Package mqtt publishes device records to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"labmonitor/shared/types"
)

var (
	ErrNotConnected = errors.New("mqtt client not connected")
	ErrStopped      = errors.New("mqtt client stopped")
)

const publishTimeout = 5 * time.Second

type Options struct {
	Broker   string
	Port     int
	ClientID string
	// Device, when set, enables retained presence on types.StatusTopic.
	Device string
}

func (o Options) URL() string { return fmt.Sprintf("tcp://%s:%d", o.Broker, o.Port) }

type Client struct {
	client    mqtt.Client
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClient(o Options, logger *slog.Logger) (*Client, error) {
	if o.Broker == "" {
		return nil, fmt.Errorf("mqtt: empty broker address")
	}
	if o.Port <= 0 || o.Port > 65535 {
		return nil, fmt.Errorf("mqtt: invalid port %d", o.Port)
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		opts:   o,
		logger: logger,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.URL())
	opts.SetClientID(o.ClientID)

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	if o.Device != "" {
		opts.SetWill(types.StatusTopic(o.Device), types.StatusOffline, 1, true)
	}

	opts.SetOnConnectHandler(func(cl mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", o.Broker, "port", o.Port)
		if o.Device != "" {
			// Handlers must not block on tokens.
			cl.Publish(types.StatusTopic(o.Device), 1, true, types.StatusOnline)
		}
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// Connect waits for the initial connection, respecting ctx and Disconnect.
// Paho keeps retrying in the background if ctx expires first.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return ErrStopped
	default:
	}

	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return ErrStopped
		default:
		}
	}
}

func (c *Client) String() string { return "mqtt " + c.opts.URL() }

// Submit publishes rec on the device's readings topic with QoS 1.
func (c *Client) Submit(ctx context.Context, rec types.Record) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	topic := types.ReadingsTopic(rec.DeviceName)
	rec.ClientSubmissionTime = c.now().UnixMilli()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	token := c.client.Publish(topic, 1, false, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		c.logger.Error("failed to publish record", "topic", topic, "error", err)
		return fmt.Errorf("publish record: %w", err)
	}

	c.logger.Debug("published record", "topic", topic, "device", rec.DeviceName)
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client. Safe to call more than once; Connect
// returns ErrStopped afterwards.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.client != nil {
		if c.opts.Device != "" && c.IsConnected() {
			tok := c.client.Publish(types.StatusTopic(c.opts.Device), 1, true, types.StatusOffline)
			if !tok.WaitTimeout(time.Second) || tok.Error() != nil {
				c.logger.Warn("presence not cleared", "device", c.opts.Device, "error", tok.Error())
			}
		}
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
