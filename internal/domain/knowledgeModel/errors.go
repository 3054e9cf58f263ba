package knowledgeModel

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyInput       = errors.New("input text is empty")
	ErrEmptyQuery       = errors.New("query is empty")
	ErrDocumentNotFound = errors.New("document not found")
)

// ConfigurationError reports an invalid setting, e.g. chunk overlap >= window size.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// EmbeddingBackendError is returned when an embedding backend (or all of them) failed.
type EmbeddingBackendError struct {
	Backend string
	Err     error
}

func (e *EmbeddingBackendError) Error() string {
	return fmt.Sprintf("embedding backend %s failed: %v", e.Backend, e.Err)
}

func (e *EmbeddingBackendError) Unwrap() error { return e.Err }

// LLMBackendError is produced by generation backends. The answer generator absorbs it.
type LLMBackendError struct {
	Backend string
	Err     error
}

func (e *LLMBackendError) Error() string {
	return fmt.Sprintf("llm backend %s failed: %v", e.Backend, e.Err)
}

func (e *LLMBackendError) Unwrap() error { return e.Err }

type SearchError struct {
	Err error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search failed: %v", e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

func IsEmbeddingBackendError(err error) bool {
	var target *EmbeddingBackendError
	return errors.As(err, &target)
}

func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}
