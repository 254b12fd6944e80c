package telemetry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// ConnectNATS connects to url and installs the connection as the event
// publisher. The returned func drains the connection and uninstalls it.
func ConnectNATS(url string) (func(), error) {
	nc, err := nats.Connect(url,
		nats.Name("chatloop"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("telemetry: nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("telemetry: nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: connect nats: %w", err)
	}
	SetPublisher(nc)
	return func() {
		SetPublisher(nil)
		if err := nc.Drain(); err != nil {
			slog.Warn("telemetry: nats drain", "err", err)
		}
	}, nil
}
