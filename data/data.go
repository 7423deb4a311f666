// Package data wires the data layer: the MongoDB ledger store and the
// RabbitMQ transport, owned here and passed explicitly to components.
package data

import (
	"context"
	"fmt"
	"time"

	"github.com/medialens/medialens/config"
	"github.com/medialens/medialens/data/rabbitmq"
	"github.com/medialens/medialens/data/repository"
	"github.com/medialens/medialens/logging/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Data encapsulates all data layer dependencies.
type Data struct {
	client  *mongo.Client
	Queue   *rabbitmq.RabbitMQ
	JobRepo repository.JobRepository
}

// New creates a new Data instance. The MongoDB connection is verified
// eagerly; the broker connection is dialed on first use.
func New(cfg *config.Data, log *logger.Logger) (*Data, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDB.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info(ctx, "Connected to MongoDB successfully", "database", cfg.MongoDB.Database)

	db := client.Database(cfg.MongoDB.Database)

	return &Data{
		client:  client,
		Queue:   rabbitmq.New(cfg.RabbitMQ, log),
		JobRepo: repository.NewJobRepository(db, log),
	}, nil
}

// Close closes the MongoDB and broker connections.
func (d *Data) Close() error {
	if err := d.Queue.Close(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}
