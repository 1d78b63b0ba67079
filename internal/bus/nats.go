package bus

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher sends JSON payloads over a NATS connection.
type Publisher struct {
	Conn   *nats.Conn
	logger *slog.Logger
}

func NewPublisher(url string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []nats.Option{
		nats.Name("panel-extractor"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("bus.nats.disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("bus.nats.reconnected", "url", nc.ConnectedUrl())
		}),
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		logger.Error("bus.nats.connect_failed", "url", url, "error", err)
		return nil, err
	}
	logger.Info("bus.nats.connected", "url", conn.ConnectedUrl())
	return &Publisher{Conn: conn, logger: logger}, nil
}

func (p *Publisher) Close() {
	if p.Conn != nil {
		if err := p.Conn.Drain(); err != nil {
			p.logger.Warn("bus.nats.drain_failed", "error", err)
		}
		p.Conn.Close()
	}
}

func (p *Publisher) Publish(subject string, payload any) error {
	if p.Conn == nil || p.Conn.IsClosed() {
		return errors.New("nats not connected")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Conn.Publish(subject, data)
}
