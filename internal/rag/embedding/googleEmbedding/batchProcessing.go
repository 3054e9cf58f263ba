package googleEmbedding

import (
	"fmt"

	"github.com/akolanti/ClinicRAG/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))

	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

func doRetry(err error, log *logger_i.Logger) bool {
	if s, ok := status.FromError(err); ok {
		if s.Code() == codes.ResourceExhausted {
			log.Error("Rate limit hit! ", "error", err)
			return true
		}
	}
	return false
}

// toVectors requires one non-empty embedding per requested content, in request order.
func toVectors(res *genai.EmbedContentResponse, expected int) ([][]float32, error) {
	if res == nil || len(res.Embeddings) != expected {
		got := 0
		if res != nil {
			got = len(res.Embeddings)
		}
		return nil, fmt.Errorf("expected %d embeddings, got %d", expected, got)
	}
	vectors := make([][]float32, 0, expected)
	for i, e := range res.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("embedding %d is empty", i)
		}
		vectors = append(vectors, e.Values)
	}
	return vectors, nil
}
