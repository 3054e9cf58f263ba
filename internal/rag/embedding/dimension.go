package embedding

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

type dimensionCheck struct {
	inner      Embedder
	dimension  int
	warnOnce   sync.Once
	mismatches atomic.Int64
	logger     *logger_i.Logger
}

// WithDimensionCheck passes vectors through unchanged and warns once when a backend returns a width
// other than dimension. The local fallback model and the answer cache are sized from dimension, so
// a mismatch means mixed-width vectors in the store and a cache that never hits.
func WithDimensionCheck(inner Embedder, dimension int) Embedder {
	if dimension <= 0 {
		return inner
	}
	return &dimensionCheck{
		inner:     inner,
		dimension: dimension,
		logger:    logger_i.NewLogger("embedding_dimension"),
	}
}

func (d *dimensionCheck) observe(ctx context.Context, v []float32) {
	if len(v) == d.dimension {
		return
	}
	d.mismatches.Add(1)
	d.warnOnce.Do(func() {
		d.logger.WithTrace(ctx).Warn("embedding width differs from embedding.dimension, set it to the backend's width",
			"expected", d.dimension, "got", len(v))
	})
}

func (d *dimensionCheck) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	v, err := d.inner.GetEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	d.observe(ctx, v)
	return v, nil
}

func (d *dimensionCheck) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := d.inner.BatchEmbedding(ctx, texts)
	if err != nil {
		return nil, err
	}
	for _, v := range vectors {
		d.observe(ctx, v)
	}
	return vectors, nil
}
