package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/model"
)

const (
	// Connection timeout
	ConnectTimeout = 10 * time.Second
	// Reconnect interval
	ReconnectInterval = 5 * time.Second
	// Max reconnect attempts, -1 retries forever
	MaxReconnectAttempts = -1

	// HeaderTimestamp carries the message time as epoch seconds
	HeaderTimestamp = "x-timestamp"
	// HeaderSource names the sending community
	HeaderSource = "x-source"
)

// Deliverer accepts inbound mail
type Deliverer interface {
	Deliver(ctx context.Context, m model.Mail) error
}

// Bus maps bus variables onto NATS subjects of the form <prefix>.<VAR>
type Bus struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

// Connect dials NATS with reconnect handling
func Connect(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(ConnectTimeout),
		nats.ReconnectWait(ReconnectInterval),
		nats.MaxReconnects(MaxReconnectAttempts),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("Disconnected from NATS", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("Reconnected to NATS", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	logger.Info("Connected to NATS", "url", url)
	return conn, nil
}

// NewBus creates a bus adapter on an open connection
func NewBus(conn *nats.Conn, prefix string, logger *slog.Logger) *Bus {
	return &Bus{
		conn:   conn,
		prefix: prefix,
		logger: logger,
	}
}

// Subscribe listens on the subject of every variable in vars and delivers
// each message as mail until ctx is done, then drains the subscriptions
func (b *Bus) Subscribe(ctx context.Context, d Deliverer, vars []string) error {
	b.logger.Info("Subscribing to bus variables", "prefix", b.prefix, "count", len(vars))

	for _, v := range vars {
		subject := Subject(b.prefix, v)
		sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
			b.handleMessage(ctx, d, msg)
		})
		if err != nil {
			b.logger.Error("Failed to subscribe", "subject", subject, "error", err)
			b.unsubscribeAll()
			return err
		}

		b.mu.Lock()
		b.subs = append(b.subs, sub)
		b.mu.Unlock()
		b.logger.Debug("Subscribed", "subject", subject)
	}

	// Wait for context cancellation
	<-ctx.Done()

	// Graceful shutdown with drain
	b.logger.Info("Starting graceful shutdown")
	if err := b.drain(); err != nil {
		b.logger.Error("Error during graceful shutdown", "error", err)
		return err
	}

	b.logger.Info("Graceful shutdown completed")
	return nil
}

func (b *Bus) handleMessage(ctx context.Context, d Deliverer, msg *nats.Msg) {
	m, ok := ToMail(b.prefix, msg, time.Now())
	if !ok {
		b.logger.Debug("Ignoring message outside prefix", "subject", msg.Subject)
		return
	}

	b.logger.Debug("Received mail", "key", m.Key, "subject", msg.Subject, "data_length", len(msg.Data))
	if err := d.Deliver(ctx, m); err != nil {
		b.logger.Warn("Failed to deliver mail", "key", m.Key, "error", err)
	}
}

// Publish sends every posting to <prefix>.<name>
func (b *Bus) Publish(ctx context.Context, postings []model.Posting) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish cancelled: %w", err)
	}

	var errs []error
	now := strconv.FormatFloat(model.Seconds(time.Now()), 'f', 3, 64)

	for _, p := range postings {
		msg := nats.NewMsg(Subject(b.prefix, p.Name))
		msg.Data = []byte(p.Value)
		msg.Header.Set(HeaderTimestamp, now)
		msg.Header.Set(HeaderSource, b.prefix)

		if err := b.conn.PublishMsg(msg); err != nil {
			errs = append(errs, fmt.Errorf("failed to publish %s: %w", p.Name, err))
			continue
		}
		b.logger.Debug("Posting published", "subject", msg.Subject, "value", p.Value)
	}

	return errors.Join(errs...)
}

// IsReady reports whether the connection is up
func (b *Bus) IsReady() bool {
	return b.conn != nil && b.conn.IsConnected()
}

func (b *Bus) drain() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for _, sub := range b.subs {
		if err := sub.Drain(); err != nil {
			errs = append(errs, err)
		}
	}
	b.subs = nil
	return errors.Join(errs...)
}

func (b *Bus) unsubscribeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		sub.Unsubscribe()
	}
	b.subs = nil
}

// Subject returns the NATS subject for a variable. Characters that are not
// valid in a subject token are replaced by '_'.
func Subject(prefix, name string) string {
	token := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, name)
	if prefix == "" {
		return token
	}
	return prefix + "." + token
}

// ToMail converts a message received under prefix into mail. Navigation
// variables are numeric; everything else is a string. ok is false for
// subjects outside the prefix.
func ToMail(prefix string, msg *nats.Msg, now time.Time) (model.Mail, bool) {
	key := msg.Subject
	if prefix != "" {
		var found bool
		key, found = strings.CutPrefix(msg.Subject, prefix+".")
		if !found || key == "" {
			return model.Mail{}, false
		}
	}

	at := now
	source := ""
	if msg.Header != nil {
		if ts := msg.Header.Get(HeaderTimestamp); ts != "" {
			if sec, err := strconv.ParseFloat(ts, 64); err == nil {
				at = time.Unix(0, int64(sec*1e9))
			}
		}
		source = msg.Header.Get(HeaderSource)
	}

	value := string(msg.Data)
	m := model.StringMail(key, value, at)
	if strings.HasPrefix(key, "NAV_") {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			m = model.NumberMail(key, f, at)
		}
	}
	m.Source = source
	return m, true
}
