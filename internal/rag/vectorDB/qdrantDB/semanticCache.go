package qdrantDB

import (
	"context"
	"encoding/json"
	"time"

	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/qdrant/go-client/qdrant"
)

// payload scope for answers asked without a scope
const noScope int64 = -1

func scopeValue(scope *int64) int64 {
	if scope == nil {
		return noScope
	}
	return *scope
}

func scopeFilter(scope *int64) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatchInt("scope", scopeValue(scope))},
	}
}

func answerPayload(scope *int64, answer knowledgeModel.Answer) (map[string]*qdrant.Value, error) {
	sources, err := json.Marshal(answer.Sources)
	if err != nil {
		return nil, err
	}
	return qdrant.NewValueMap(map[string]any{
		"question":  answer.Question,
		"answer":    answer.Text,
		"sources":   string(sources),
		"scope":     scopeValue(scope),
		"timestamp": time.Now().Unix(),
	}), nil
}

func answerFromPayload(payload map[string]*qdrant.Value) (knowledgeModel.Answer, error) {
	ans := knowledgeModel.Answer{
		Question: payload["question"].GetStringValue(),
		Text:     payload["answer"].GetStringValue(),
		Sources:  []knowledgeModel.Source{},
	}
	if raw := payload["sources"].GetStringValue(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &ans.Sources); err != nil {
			return knowledgeModel.Answer{}, err
		}
	}
	return ans, nil
}

// fitsCollection reports whether vector can be used against the collection. Qdrant rejects other
// widths, so those calls are skipped as misses instead of failing every request.
func (db *ClientHolder) fitsCollection(ctx context.Context, vector []float32) bool {
	if uint64(len(vector)) == db.dimension {
		return true
	}
	db.widthWarning.Do(func() {
		logger.WithTrace(ctx).Warn("Query vector width differs from the cache collection, caching is disabled until embedding.dimension matches",
			"collection", db.collectionName, "expected", db.dimension, "got", len(vector))
	})
	return false
}

func (db *ClientHolder) GetCachedAnswer(ctx context.Context, queryVector []float32, scope *int64) (knowledgeModel.Answer, bool, error) {
	loggr := logger.WithTrace(ctx)
	if !db.fitsCollection(ctx, queryVector) {
		return knowledgeModel.Answer{}, false, nil
	}

	searchResult, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: db.collectionName,
		Query:          qdrant.NewQuery(queryVector...),
		Filter:         scopeFilter(scope),
		Limit:          qdrant.PtrOf(uint64(1)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("Cache Query failed", "error", err)
		return knowledgeModel.Answer{}, false, err
	}
	if len(searchResult) == 0 {
		return knowledgeModel.Answer{}, false, nil
	}

	loggr.Debug("Closest cached answer", "semantic similarity score", searchResult[0].Score)
	if searchResult[0].Score < db.similarityCutoff {
		return knowledgeModel.Answer{}, false, nil
	}

	ans, err := answerFromPayload(searchResult[0].Payload)
	if err != nil {
		loggr.Warn("Cached answer payload unreadable", "error", err)
		return knowledgeModel.Answer{}, false, nil
	}
	loggr.Info("cache hit", "scope", scopeValue(scope))
	return ans, true, nil
}

func (db *ClientHolder) SaveToCache(ctx context.Context, id string, vector []float32, scope *int64, answer knowledgeModel.Answer) error {
	loggr := logger.WithTrace(ctx)
	if !db.fitsCollection(ctx, vector) {
		return nil
	}

	payload, err := answerPayload(scope, answer)
	if err != nil {
		return err
	}
	_, err = db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: db.collectionName,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(id),
				Vectors: qdrant.NewVectors(vector...),
				Payload: payload,
			},
		},
	})
	if err != nil {
		loggr.Error("Saving answer to cache failed", "error", err)
	}
	return err
}

func (db *ClientHolder) Invalidate(ctx context.Context, scope *int64) error {
	loggr := logger.WithTrace(ctx)

	if scope == nil {
		if err := db.QObj.DeleteCollection(ctx, db.collectionName); err != nil {
			loggr.Error("Dropping cache collection failed", "error", err)
			return err
		}
		loggr.Info("Semantic cache cleared")
		return db.createCollection(ctx)
	}

	_, err := db.QObj.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: db.collectionName,
		Points:         qdrant.NewPointsSelectorFilter(scopeFilter(scope)),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		loggr.Error("Invalidating cached answers failed", "scope", *scope, "error", err)
		return err
	}
	loggr.Debug("Cached answers invalidated", "scope", *scope)
	return nil
}
