package service

import "errors"

// Error kinds, one per failure class the request boundary distinguishes.
// Causes are attached with errors.Join and classified with errors.Is.
var (
	ErrValidation  = errors.New("validation error")
	ErrIngestion   = errors.New("ingestion error")
	ErrEmbedding   = errors.New("embedding error")
	ErrProcessing  = errors.New("processing error")
	ErrPersistence = errors.New("persistence error")
)
