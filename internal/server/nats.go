package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/joblinkhq/linkedin-agent/internal/config"
)

const natsLogPrefix = "server:nats"

// startNATSTransport subscribes to the request subject and answers each
// message with one response. It returns a stop function that unsubscribes
// and drains the connection.
func startNATSTransport(ctx context.Context, cfg *config.Config, handle handleFunc) (func(), error) {
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("linkedin-agent"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn(fmt.Sprintf("%s - NATS disconnected: %v", natsLogPrefix, err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info(fmt.Sprintf("%s - NATS reconnected to %s", natsLogPrefix, nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to NATS at %s: %w", natsLogPrefix, cfg.NATSURL, err)
	}

	sub, err := nc.Subscribe(cfg.NATSSubject, func(msg *nats.Msg) {
		reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()

		resp := handle(reqCtx, msg.Data)
		data, err := json.Marshal(resp)
		if err != nil {
			slog.Error(fmt.Sprintf("%s - failed to marshal response: %v", natsLogPrefix, err))
			return
		}
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(data); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to respond: %v", natsLogPrefix, err))
		}
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", natsLogPrefix, cfg.NATSSubject, err)
	}

	slog.Info(fmt.Sprintf("%s - Listening on subject %s", natsLogPrefix, cfg.NATSSubject))

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn(fmt.Sprintf("%s - unsubscribe failed: %v", natsLogPrefix, err))
		}
		if err := nc.Drain(); err != nil {
			slog.Warn(fmt.Sprintf("%s - drain failed: %v", natsLogPrefix, err))
		}
	}, nil
}
