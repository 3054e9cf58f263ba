package qdrantDB

import (
	"context"
	"errors"
	"sync"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
)

var logger *logger_i.Logger
var quadrantInstance *ClientHolder
var initErr error
var once sync.Once

type ClientHolder struct {
	QObj             *qdrant.Client
	collectionName   string
	dimension        uint64
	similarityCutoff float32
	widthWarning     sync.Once
}

// GetQuadrantClient connects once per process and makes sure the cache collection exists.
func GetQuadrantClient(ctx context.Context, cfg config.CacheSettings, dimension int) (*ClientHolder, error) {
	once.Do(func() {
		logger = logger_i.NewLogger("Qdrant")
		quadrantInstance, initErr = newClient(ctx, cfg, dimension)
		if quadrantInstance != nil {
			go closeQdrant(ctx, quadrantInstance.QObj)
		}
	})
	return quadrantInstance, initErr
}

func newClient(ctx context.Context, cfg config.CacheSettings, dimension int) (*ClientHolder, error) {
	if cfg.Collection == "" {
		return nil, errors.New("empty collection name")
	}
	port := cfg.QdrantPort
	if port == 0 {
		port = config.QdrantGrpcPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     cfg.QdrantHost,
		Port:     port,
		APIKey:   cfg.QdrantAPIKey,
		UseTLS:   cfg.UseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate: ", "error:", err)
		return nil, err
	}

	holder := &ClientHolder{
		QObj:             client,
		collectionName:   cfg.Collection,
		dimension:        uint64(dimension),
		similarityCutoff: float32(cfg.SimilarityCutoff),
	}

	initCtx, cancel := context.WithTimeout(ctx, config.QdrantConnectionTimeout)
	defer cancel()
	if err := holder.createCollection(initCtx); err != nil {
		logger.Error("could not create collection: ", "collectionName", cfg.Collection, "error:", err)
		_ = client.Close()
		return nil, err
	}
	logger.Info("Qdrant semantic cache ready", "host", cfg.QdrantHost, "collection", cfg.Collection)
	return holder, nil
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	err := qi.Close()
	if err != nil {
		logger.Error("could not close Qdrant: ", "error:", err)
	}
	logger.Info("Closed Qdrant")
}

func (db *ClientHolder) createCollection(ctx context.Context) error {
	exists, err := db.QObj.CollectionExists(ctx, db.collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return db.QObj.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: db.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     db.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}
