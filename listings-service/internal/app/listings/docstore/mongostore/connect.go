package mongostore

import (
	"context"
	"fmt"
	"time"

	"goodbites/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	connectAttempts   = 10
	connectRetryDelay = 3 * time.Second
)

// Connect подключается к MongoDB с повторами: при старте в docker-compose
// база часто поднимается позже сервиса
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(uri)

	var lastErr error
	for i := 0; i < connectAttempts; i++ {
		client, err := tryConnect(ctx, clientOptions)
		if err == nil {
			return client, nil
		}
		lastErr = err

		logger.Warn().
			Int("attempt", i+1).
			Err(err).
			Msg("Failed to connect to MongoDB, retrying...")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to MongoDB: %w", ctx.Err())
		case <-time.After(connectRetryDelay):
		}
	}

	return nil, fmt.Errorf("connect to MongoDB after %d attempts: %w", connectAttempts, lastErr)
}

func tryConnect(ctx context.Context, clientOptions *options.ClientOptions) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, err
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}
