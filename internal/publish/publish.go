// Package publish fans recognised words out to Redis subscribers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/signamoz/signa/internal/session"
)

// DefaultChannel is the pub/sub channel words are published on.
const DefaultChannel = "signa:words"

// Message is the JSON body published for every word.
type Message struct {
	SessionID string    `json:"session_id"`
	Language  string    `json:"language"`
	Word      string    `json:"word"`
	Source    string    `json:"source"`
	Appended  bool      `json:"appended"`
	Phrase    []string  `json:"phrase"`
	At        time.Time `json:"at"`
}

// NewMessage converts a word event into its published form.
func NewMessage(e session.WordEvent) Message {
	phrase := e.Phrase
	if phrase == nil {
		phrase = []string{}
	}
	return Message{
		SessionID: e.SessionID,
		Language:  string(e.Language),
		Word:      e.Word,
		Source:    string(e.Source),
		Appended:  e.Appended,
		Phrase:    phrase,
		At:        e.At,
	}
}

// Publisher sends word events somewhere.
type Publisher interface {
	Publish(ctx context.Context, e session.WordEvent) error
	Close() error
}

// client is the part of *redis.Client the publisher needs.
type client interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Options configures a Redis publisher.
type Options struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Redis publishes word events on a Redis channel.
type Redis struct {
	client  client
	channel string
}

// NewRedis connects to Redis and checks the connection with a ping.
func NewRedis(ctx context.Context, opts Options) (*Redis, error) {
	c := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return newRedis(c, opts.Channel), nil
}

func newRedis(c client, channel string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{client: c, channel: channel}
}

// Channel returns the channel messages go to.
func (r *Redis) Channel() string {
	return r.channel
}

// Publish sends e as JSON.
func (r *Redis) Publish(ctx context.Context, e session.WordEvent) error {
	body, err := json.Marshal(NewMessage(e))
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Nop discards every event. It is used when Redis is disabled.
type Nop struct{}

func (Nop) Publish(context.Context, session.WordEvent) error { return nil }
func (Nop) Close() error                                     { return nil }
