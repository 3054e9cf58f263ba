package retriever

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/internal/metrics"
	"github.com/akolanti/ClinicRAG/internal/rag/embedding"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

// CandidateFetcher is the read side of the knowledge store used for search. The retriever always
// asks for every candidate in scope.
type CandidateFetcher interface {
	FetchCandidates(ctx context.Context, scope *int64, limit int) ([]knowledgeModel.Candidate, error)
}

type Retriever struct {
	store     CandidateFetcher
	embedder  embedding.Embedder
	cfg       config.RetrievalSettings
	stopWords map[string]struct{}
	logger    *logger_i.Logger
}

func NewRetriever(store CandidateFetcher, embedder embedding.Embedder, cfg config.RetrievalSettings) *Retriever {
	stop := make(map[string]struct{}, len(cfg.StopWords))
	for _, w := range cfg.StopWords {
		stop[strings.ToLower(w)] = struct{}{}
	}
	if cfg.OverFetchFactor <= 0 {
		cfg.OverFetchFactor = config.RetrievalOverFetchFactor
	}
	if cfg.TopK <= 0 {
		cfg.TopK = config.RetrievalTopK
	}
	return &Retriever{
		store:     store,
		embedder:  embedder,
		cfg:       cfg,
		stopWords: stop,
		logger:    logger_i.NewLogger("Retriever"),
	}
}

// Search embeds query and returns at most topK fragments ranked by similarity. topK <= 0 uses the
// configured default.
func (r *Retriever) Search(ctx context.Context, query string, scope *int64, topK int) ([]knowledgeModel.ScoredFragment, error) {
	if embedding.IsBlank(query) {
		return nil, knowledgeModel.ErrEmptyQuery
	}

	start := time.Now()
	vector, err := r.embedder.GetEmbedding(ctx, query)
	metrics.CaptureExecutionMetrics("embedding", time.Since(start))
	if err != nil {
		return nil, err
	}
	return r.SearchByVector(ctx, query, vector, scope, topK)
}

// SearchByVector ranks with an already computed query vector. The query text is still needed for the
// keyword bonus.
func (r *Retriever) SearchByVector(ctx context.Context, query string, vector []float32, scope *int64, topK int) ([]knowledgeModel.ScoredFragment, error) {
	if embedding.IsBlank(query) {
		return nil, knowledgeModel.ErrEmptyQuery
	}
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	log := r.logger.WithTrace(ctx)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_search", time.Since(start)) }()

	candidates, err := r.store.FetchCandidates(ctx, scope, 0)
	if err != nil {
		log.Error("fetching candidates failed", "error", err)
		return nil, &knowledgeModel.SearchError{Err: err}
	}

	nearest := r.nearest(log, vector, candidates, topK*r.cfg.OverFetchFactor)

	tokens := r.Tokenize(query)
	scored := make([]knowledgeModel.ScoredFragment, len(nearest))
	for i, n := range nearest {
		c := candidates[n.index]
		scored[i] = knowledgeModel.ScoredFragment{Candidate: c, Similarity: clamp(n.cosine+r.keywordBonus(tokens, c), 0, 1)}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })

	kept := make([]knowledgeModel.ScoredFragment, 0, len(scored))
	for _, s := range scored {
		if s.Similarity >= r.cfg.Threshold {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		// nothing cleared the threshold; answer from the best we have
		kept = scored
	}
	if len(kept) > topK {
		kept = kept[:topK]
	}

	log.Debug("search finished", "candidates", len(candidates), "returned", len(kept))
	return kept, nil
}

type cosineHit struct {
	index  int
	cosine float64
}

// nearest scans every candidate and keeps the limit closest by cosine, returned in fetch order so
// equal final scores keep the store ordering.
func (r *Retriever) nearest(log *logger_i.Logger, vector []float32, candidates []knowledgeModel.Candidate, limit int) []cosineHit {
	hits := make([]cosineHit, len(candidates))
	for i, c := range candidates {
		hits[i].index = i
		if c.DecodeErr != nil {
			log.Warn("skipping undecodable vector", "fragmentId", c.FragmentId, "error", c.DecodeErr)
			continue
		}
		hits[i].cosine = CosineSimilarity(vector, c.Vector)
	}
	if len(hits) > limit {
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].cosine > hits[j].cosine })
		hits = hits[:limit]
		sort.Slice(hits, func(i, j int) bool { return hits[i].index < hits[j].index })
	}
	return hits
}

// CosineSimilarity is computed over the shared prefix of a and b. An empty prefix or a zero norm
// yields 0.
func CosineSimilarity(a, b []float32) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Tokenize lowercases query, strips everything but letters, digits and spaces and drops short
// tokens and stop words.
func (r *Retriever) Tokenize(query string) []string {
	cleaned := strings.Map(func(c rune) rune {
		switch {
		case unicode.IsLetter(c), unicode.IsDigit(c):
			return c
		case unicode.IsSpace(c):
			return ' '
		default:
			return -1
		}
	}, strings.ToLower(query))

	minLen := r.cfg.MinTokenLength
	if minLen <= 0 {
		minLen = config.MinKeywordLength
	}
	var tokens []string
	for _, t := range strings.Fields(cleaned) {
		if len([]rune(t)) < minLen {
			continue
		}
		if _, stop := r.stopWords[t]; stop {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// keywordBonus adds TitleBonus per token found in the title, otherwise BodyBonus when the token is
// in the fragment text.
func (r *Retriever) keywordBonus(tokens []string, c knowledgeModel.Candidate) float64 {
	if len(tokens) == 0 {
		return 0
	}
	title := strings.ToLower(c.DocumentTitle)
	body := strings.ToLower(c.Text)

	var bonus float64
	for _, t := range tokens {
		switch {
		case strings.Contains(title, t):
			bonus += r.cfg.TitleBonus
		case strings.Contains(body, t):
			bonus += r.cfg.BodyBonus
		}
	}
	return bonus
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
