package handlers

import (
	"sync"

	"github.com/akolanti/ClinicRAG/internal/rag"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

var (
	handlerInstance *KnowledgeHandler //private singleton
	once            sync.Once
	logKH           *logger_i.Logger
	logRH           = logger_i.NewLogger("RequestHandler")
)

type KnowledgeHandler struct {
	service rag.Service
}

func InitKnowledgeHandler(service rag.Service) {
	once.Do(func() {
		handlerInstance = &KnowledgeHandler{service: service}

		logKH = logger_i.NewLogger("KnowledgeHandler")
		logKH.Info("Starting knowledge handler")
	})
}

// knowledgeService is nil until InitKnowledgeHandler ran.
func knowledgeService() rag.Service {
	if handlerInstance == nil {
		return nil
	}
	return handlerInstance.service
}
