package store

import (
	"fmt"
	"time"

	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
)

func documentFromFields(id int64, fields knowledgeModel.DocumentFields, createdAt time.Time, updatedAt time.Time) knowledgeModel.Document {
	return knowledgeModel.Document{
		Id:           id,
		Title:        fields.Title,
		Content:      fields.Content,
		DocumentType: fields.DocumentType,
		Scope:        fields.Scope,
		Version:      fields.Version,
		Active:       fields.Active,
		CreatedBy:    fields.CreatedBy,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
}

func errFragmentNotFound(id int64) error {
	return fmt.Errorf("fragment %d not found", id)
}
