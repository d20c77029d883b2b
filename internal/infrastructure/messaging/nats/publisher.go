package nats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dreschagin/risk-dashboard/internal/application/port"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	contentTypeHeader = "Content-Type"
	drainTimeout      = 5 * time.Second
)

// Options for NewNATSPublisher. Without JetStream events go over core NATS
// and are lost while nobody is subscribed.
type Options struct {
	URL           string
	SubjectPrefix string
	JetStream     bool
}

// NATSPublisher publishes attention events to NATS
type NATSPublisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	prefix  string
	logger  *logger.Logger
	publish func(*nats.Msg) error
}

var _ port.EventPublisher = (*NATSPublisher)(nil)

func NewNATSPublisher(opts Options, log *logger.Logger) (*NATSPublisher, error) {
	log = log.With("component", "nats")

	nc, err := nats.Connect(opts.URL,
		nats.Name("risk-dashboard"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", opts.URL, err)
	}

	p := &NATSPublisher{nc: nc, prefix: opts.SubjectPrefix, logger: log}
	p.publish = nc.PublishMsg

	if opts.JetStream {
		js, err := nc.JetStream()
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("get JetStream context: %w", err)
		}
		p.js = js
		p.publish = func(msg *nats.Msg) error {
			_, err := js.PublishMsgAsync(msg)
			return err
		}
	}

	log.Info("Connected to NATS", "url", opts.URL, "prefix", opts.SubjectPrefix, "jetstream", opts.JetStream)
	return p, nil
}

// PublishEvent не ждет подтверждения доставки
func (p *NATSPublisher) PublishEvent(ctx context.Context, subject string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := newMessage(Subject(p.prefix, subject), event)
	if err != nil {
		return err
	}

	if err := p.publish(msg); err != nil {
		p.logger.Error("Failed to publish event", err, "subject", msg.Subject)
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}

	p.logger.Debug("Event published", "subject", msg.Subject, "size", len(msg.Data))
	return nil
}

// newMessage ставит Nats-Msg-Id, чтобы JetStream отбрасывал повторы
func newMessage(subject string, event any) (*nats.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event for %s: %w", subject, err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
	msg.Header.Set(contentTypeHeader, "application/json")
	return msg, nil
}

// Close ждет подтверждения асинхронных публикаций, затем закрывает соединение
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if p.js != nil {
		select {
		case <-p.js.PublishAsyncComplete():
		case <-time.After(drainTimeout):
			p.logger.Warn("NATS async publishes not acknowledged before close")
		}
	}
	p.nc.Close()
	p.logger.Info("NATS connection closed")
	return nil
}

// Subject joins prefix and subject with a dot, an empty prefix is skipped
func Subject(prefix, subject string) string {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		return subject
	}
	return prefix + "." + strings.TrimPrefix(subject, ".")
}
