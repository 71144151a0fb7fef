// Package broker runs an in-process MQTT broker so a single server binary
// can accept device publishes without external infrastructure.
package broker

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

type Broker struct {
	server *mochi.Server
	host   string
	port   int
	logger *slog.Logger
}

// Start listens on addr ("host:port", port required) and accepts every
// client. Devices on the LAN are not authenticated.
func Start(addr string, logger *slog.Logger) (*Broker, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("broker address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("broker address %q: invalid port", addr)
	}
	if logger == nil {
		logger = slog.Default()
	}

	server := mochi.New(nil)
	if err := server.AddHook(&auth.AllowHook{}, nil); err != nil {
		return nil, fmt.Errorf("broker auth hook: %w", err)
	}
	tcp := listeners.NewTCP(listeners.Config{Type: "tcp", ID: "labmonitor", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("broker listener: %w", err)
	}
	if err := server.Serve(); err != nil {
		return nil, fmt.Errorf("broker serve: %w", err)
	}
	logger.Info("mqtt broker listening", "addr", addr)
	return &Broker{server: server, host: host, port: port, logger: logger}, nil
}

// Endpoint returns the host and port a local client should dial.
func (b *Broker) Endpoint() (string, int) {
	host := b.host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return host, b.port
}

func (b *Broker) Close() error {
	if b == nil || b.server == nil {
		return errors.New("broker not started")
	}
	err := b.server.Close()
	b.logger.Info("mqtt broker stopped")
	return err
}
