// Package mongo opens MongoDB clients for the booking record store.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Options tunes the client pool.
type Options struct {
	MaxPoolSize    uint64
	MinPoolSize    uint64
	ConnectTimeout time.Duration
	SocketTimeout  time.Duration
}

// DefaultOptions returns the pool settings used by the service.
func DefaultOptions() Options {
	return Options{
		MaxPoolSize:    50,
		MinPoolSize:    10,
		ConnectTimeout: 5 * time.Second,
		SocketTimeout:  10 * time.Second,
	}
}

// ClientOptions builds driver options for uri.
func ClientOptions(uri string, opts Options) *options.ClientOptions {
	clientOptions := options.Client().ApplyURI(uri)
	if opts.MaxPoolSize > 0 {
		clientOptions.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.MinPoolSize > 0 {
		clientOptions.SetMinPoolSize(opts.MinPoolSize)
	}
	if opts.ConnectTimeout > 0 {
		clientOptions.SetConnectTimeout(opts.ConnectTimeout)
	}
	if opts.SocketTimeout > 0 {
		clientOptions.SetSocketTimeout(opts.SocketTimeout)
	}
	return clientOptions
}

// Connect opens a client and pings the primary.
func Connect(ctx context.Context, uri string, opts Options) (*mongo.Client, error) {
	if uri == "" {
		return nil, errors.New("platform/mongo: connection uri is empty")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, ClientOptions(uri, opts))
	if err != nil {
		return nil, fmt.Errorf("platform/mongo: connect: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("platform/mongo: ping: %w", err)
	}
	return client, nil
}

// Disconnect closes the client within timeout.
func Disconnect(client *mongo.Client, timeout time.Duration) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("platform/mongo: disconnect: %w", err)
	}
	return nil
}
