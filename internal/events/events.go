// Package events carries change notifications for an idea's likes and
// comments over NATS. Notifications carry no payload: subscribers reload
// the full snapshot from storage.
package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/BetselotB/idea-plate/internal/apperr"
	"github.com/BetselotB/idea-plate/internal/logging"
)

// SubjectPrefix is the root of every notification subject.
const SubjectPrefix = "ideaplate.ideas"

// Kind names a per-idea collection.
type Kind string

const (
	KindLikes    Kind = "likes"
	KindComments Kind = "comments"
)

// Topic identifies one watched collection.
type Topic struct {
	IdeaID string
	Kind   Kind
}

// Likes returns the likes topic of an idea.
func Likes(ideaID string) Topic { return Topic{IdeaID: ideaID, Kind: KindLikes} }

// Comments returns the comments topic of an idea.
func Comments(ideaID string) Topic { return Topic{IdeaID: ideaID, Kind: KindComments} }

// Subject returns the NATS subject of the topic.
func (t Topic) Subject() string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, t.IdeaID, t.Kind)
}

func (t Topic) validate() error {
	if t.IdeaID == "" || strings.ContainsAny(t.IdeaID, ".*> \t\r\n") {
		return apperr.Validation("invalid idea id %q", t.IdeaID)
	}
	if t.Kind != KindLikes && t.Kind != KindComments {
		return apperr.Validation("invalid topic kind %q", t.Kind)
	}
	return nil
}

// Bus publishes and subscribes to change notifications.
type Bus struct {
	nc       *nats.Conn
	embedded *natsserver.Server
	logger   *zap.Logger
}

// Open connects to url, or starts an embedded server when url is empty.
func Open(url string, logger *zap.Logger) (*Bus, error) {
	logger = logging.OrNop(logger)

	var embedded *natsserver.Server
	if url == "" {
		ns, err := StartEmbedded()
		if err != nil {
			return nil, err
		}
		embedded = ns
		url = ns.ClientURL()
		logger.Info("started embedded nats server", zap.String("url", url))
	}

	nc, err := nats.Connect(url,
		nats.Name("ideaplate"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}

	b := NewBus(nc, logger)
	b.embedded = embedded
	return b, nil
}

// NewBus wraps an existing connection.
func NewBus(nc *nats.Conn, logger *zap.Logger) *Bus {
	return &Bus{nc: nc, logger: logging.OrNop(logger)}
}

// StartEmbedded runs an in-process NATS server on a random loopback port.
func StartEmbedded() (*natsserver.Server, error) {
	ns, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   natsserver.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("nats server not ready")
	}
	return ns, nil
}

// Close drains the connection and stops the embedded server, if any.
func (b *Bus) Close() {
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
	}
	if b.embedded != nil {
		b.embedded.Shutdown()
		b.embedded.WaitForShutdown()
	}
}

// Connected reports whether the NATS connection is up.
func (b *Bus) Connected() bool {
	return b.nc.IsConnected()
}

// Notify announces that the topic changed.
func (b *Bus) Notify(ctx context.Context, topic Topic) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := topic.validate(); err != nil {
		return err
	}
	if err := b.nc.Publish(topic.Subject(), nil); err != nil {
		return fmt.Errorf("publish %s: %w", topic.Subject(), err)
	}
	return nil
}

// Subscription delivers coalesced change signals for one topic.
type Subscription struct {
	sub     *nats.Subscription
	signals chan struct{}
}

// Subscribe starts listening on topic. Signals that arrive while one is
// already pending are merged into it. The subscription is registered with
// the server before Subscribe returns.
func (b *Bus) Subscribe(topic Topic) (*Subscription, error) {
	if err := topic.validate(); err != nil {
		return nil, err
	}
	s := &Subscription{signals: make(chan struct{}, 1)}
	sub, err := b.nc.Subscribe(topic.Subject(), func(*nats.Msg) {
		select {
		case s.signals <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic.Subject(), err)
	}
	if err := b.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flush subscription %s: %w", topic.Subject(), err)
	}
	s.sub = sub
	return s, nil
}

// C returns the signal channel.
func (s *Subscription) C() <-chan struct{} {
	return s.signals
}

// Close stops the subscription.
func (s *Subscription) Close() error {
	return s.sub.Unsubscribe()
}
