package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/engine"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/model"
)

// RedisMirror mirrors contact state and alert events into Redis for
// dashboards and other consumers
type RedisMirror struct {
	client  *redis.Client
	ownship string
	ttl     time.Duration
	logger  *slog.Logger
}

// NewRedisMirror connects to Redis and verifies the connection
func NewRedisMirror(ctx context.Context, addr, password string, db int, ownship string, ttl time.Duration, logger *slog.Logger) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Connected to Redis", "addr", addr, "db", db)
	return &RedisMirror{client: client, ownship: ownship, ttl: ttl, logger: logger}, nil
}

func (r *RedisMirror) Close() error {
	return r.client.Close()
}

func (r *RedisMirror) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// WriteContacts stores one hash per contact with a TTL and indexes contacts
// with a known lat/lon in a geo set
func (r *RedisMirror) WriteContacts(ctx context.Context, contacts []engine.ContactStatus) error {
	if len(contacts) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	geoKey := GeoKey(r.ownship)

	for _, c := range contacts {
		key := ContactKey(r.ownship, c.Name)
		pipe.HSet(ctx, key, contactFields(c))
		pipe.Expire(ctx, key, r.ttl)

		if c.Lat != 0 || c.Lon != 0 {
			pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
				Name:      c.Name,
				Longitude: c.Lon,
				Latitude:  c.Lat,
			})
		}
	}
	pipe.Expire(ctx, geoKey, r.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// PublishAlerts publishes each alert event as JSON on the alerts channel
func (r *RedisMirror) PublishAlerts(ctx context.Context, alerts []model.AlertEvent) error {
	if len(alerts) == 0 {
		return nil
	}

	channel := AlertChannel(r.ownship)
	pipe := r.client.Pipeline()
	for _, ev := range alerts {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal alert: %w", err)
		}
		pipe.Publish(ctx, channel, payload)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// ContactKey is the hash key holding one contact's state
func ContactKey(ownship, name string) string {
	return fmt.Sprintf("contact:%s:%s:state", ownship, name)
}

// GeoKey is the geo set of contact positions
func GeoKey(ownship string) string {
	return fmt.Sprintf("contactmgr:%s:geo", ownship)
}

// AlertChannel is the pub/sub channel for alert events
func AlertChannel(ownship string) string {
	return fmt.Sprintf("contactmgr:%s:alerts", ownship)
}

func contactFields(c engine.ContactStatus) map[string]interface{} {
	return map[string]interface{}{
		"name":            c.Name,
		"type":            c.Type,
		"group":           c.Group,
		"x":               c.X,
		"y":               c.Y,
		"lat":             c.Lat,
		"lon":             c.Lon,
		"speed":           c.Speed,
		"heading":         c.Heading,
		"age":             c.Age,
		"retired":         c.Retired,
		"range":           c.Range,
		"range_actual":    c.Ranges.Actual,
		"range_extrap":    c.Ranges.Extrapolated,
		"range_cpa":       c.Ranges.CPA,
		"alerts_total":    c.AlertsTotal,
		"alerts_active":   c.AlertsActive,
		"alerts_resolved": c.AlertsResolved,
		"report":          c.Report,
	}
}
