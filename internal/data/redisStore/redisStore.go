package redisStore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/akolanti/ClinicRAG/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

var (
	instances = make(map[int]*Store)
	mu        sync.RWMutex
	logger    = logger_i.NewLogger("Redis Store")
	once      sync.Once
)

type Store struct {
	client *redis.Client
	Type   int
}

type Options struct {
	Addr     string
	Password string
	DB       int
}

// GetRedisStore returns the shared store for opts.DB, connecting on first use. All stores are closed
// when ctx is cancelled.
func GetRedisStore(ctx context.Context, opts Options) (*Store, error) {

	mu.RLock()
	instance, exists := instances[opts.DB]
	mu.RUnlock()

	if exists {
		return instance, nil
	}

	mu.Lock()
	defer mu.Unlock()

	if instance, exists = instances[opts.DB]; exists {
		return instance, nil
	}
	return createNewStore(ctx, opts)

}

func closeRedisStores(ctx context.Context) {
	<-ctx.Done()
	logger.Info("Closing Redis Stores")
	mu.Lock()
	defer mu.Unlock()
	for db, store := range instances {
		err := store.client.Close()
		if err != nil {
			logger.Error("Error closing redis client", "error", err)
		}
		delete(instances, db)
	}
	logger.Info("Redis Store Closed successfully")
}

func createNewStore(ctx context.Context, opts Options) (*Store, error) {
	newClient := redis.NewClient(&redis.Options{
		Addr:                  opts.Addr,
		Password:              opts.Password,
		DB:                    opts.DB,
		ContextTimeoutEnabled: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})
	if newClient == nil {
		return nil, errors.New("could not create redis client")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := newClient.Ping(pingCtx).Err(); err != nil {
		logger.Error("Redis is offline", "addr", opts.Addr, "error", err)
		_ = newClient.Close()
		return nil, err
	}

	logger.Info("Redis client init successfully", "addr", opts.Addr, "db", opts.DB)

	newStore := &Store{
		client: newClient,
		Type:   opts.DB,
	}

	instances[opts.DB] = newStore
	once.Do(func() {
		go closeRedisStores(ctx)
	})
	return newStore, nil

}

// NewTestStore wraps an existing client, e.g. one pointed at miniredis.
func NewTestStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}
