package model

import "github.com/pgvector/pgvector-go"

// DocumentVector maps one row of the vectors table: a chunk of a source
// document together with its embedding.
type DocumentVector struct {
	ID           uint            `gorm:"primaryKey;autoIncrement;column:id"`
	DocumentName string          `gorm:"type:text;column:document_name"`
	Text         string          `gorm:"type:text;column:text"`
	Embedding    pgvector.Vector `gorm:"type:vector;column:embedding"`
}

func (DocumentVector) TableName() string {
	return "vectors"
}

// NewDocumentVector builds a row ready for insertion.
func NewDocumentVector(documentName, text string, embedding []float32) *DocumentVector {
	return &DocumentVector{
		DocumentName: documentName,
		Text:         text,
		Embedding:    pgvector.NewVector(embedding),
	}
}

// SearchResult is a chunk returned by similarity search.
type SearchResult struct {
	DocumentName string  `json:"documentName"`
	Text         string  `json:"text"`
	Distance     float64 `json:"distance"`
	Score        float64 `json:"score"`
}
