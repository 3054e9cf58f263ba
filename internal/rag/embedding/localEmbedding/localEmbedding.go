package localEmbedding

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/internal/rag/embedding"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

// model is a hashed-feature projection: every word and character trigram selects a row of a fixed
// random table; the rows are mean pooled and L2 normalised.
type model struct {
	table     [][]float32
	buckets   uint64
	dimension int
}

var (
	once        sync.Once
	sharedModel *model
	initCount   atomic.Int32
	logger      *logger_i.Logger
)

type client struct {
	model *model
}

// GetLocalEmbeddingClient returns an embedder backed by the process wide model. The model is built on
// first use only; later calls reuse it whatever settings they pass.
func GetLocalEmbeddingClient(cfg config.LocalEmbeddingSettings, dimension int) embedding.Embedder {
	once.Do(func() {
		logger = logger_i.NewLogger("local_embedding")
		sharedModel = loadModel(cfg, dimension)
		initCount.Add(1)
		logger.Info("Local embedding model loaded", "buckets", sharedModel.buckets, "dimension", sharedModel.dimension)
	})
	return &client{model: sharedModel}
}

func loadModel(cfg config.LocalEmbeddingSettings, dimension int) *model {
	if cfg.Buckets <= 0 {
		cfg.Buckets = config.LocalEmbeddingBuckets
	}
	if dimension <= 0 {
		dimension = config.EmbeddingOutputDimensionality
	}
	r := rand.New(rand.NewSource(cfg.Seed))
	scale := 1 / math.Sqrt(float64(dimension))

	table := make([][]float32, cfg.Buckets)
	for i := range table {
		row := make([]float32, dimension)
		for j := range row {
			row[j] = float32(r.NormFloat64() * scale)
		}
		table[i] = row
	}
	return &model{table: table, buckets: uint64(cfg.Buckets), dimension: dimension}
}

func (c *client) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if embedding.IsBlank(text) {
		return nil, knowledgeModel.ErrEmptyInput
	}
	return c.model.embed(text), nil
}

func (c *client) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	return embedding.EmbedSequentially(ctx, c, texts)
}

func (m *model) embed(text string) []float32 {
	features := extractFeatures(text)
	if len(features) == 0 {
		features = []string{"raw:" + strings.TrimSpace(text)}
	}

	sum := make([]float64, m.dimension)
	for _, f := range features {
		row := m.table[m.bucket(f)]
		for i, v := range row {
			sum[i] += float64(v)
		}
	}

	var norm float64
	for i := range sum {
		sum[i] /= float64(len(features))
		norm += sum[i] * sum[i]
	}
	norm = math.Sqrt(norm)

	out := make([]float32, m.dimension)
	if norm == 0 {
		return out
	}
	for i, v := range sum {
		out[i] = float32(v / norm)
	}
	return out
}

func (m *model) bucket(feature string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(feature))
	return h.Sum64() % m.buckets
}

func extractFeatures(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var features []string
	for _, w := range words {
		features = append(features, "w:"+w)
		padded := []rune("#" + w + "#")
		for i := 0; i+3 <= len(padded); i++ {
			features = append(features, "t:"+string(padded[i:i+3]))
		}
	}
	return features
}
