package model

import (
	"fmt"
	"log/slog"
	"os"
)

// EmbedderInterface defines the embedding contract shared by the ingestion
// pipeline and query-time retrieval. Note chunks and questions must go
// through the same implementation or the index dimensions will not line up.
type EmbedderInterface interface {
	Embed(text string) ([]float32, error)
}

// NewEmbedder selects the embedding backend from EMBEDDER_TYPE:
// "openai" for the OpenAI API, anything else for local Ollama.
func NewEmbedder() (EmbedderInterface, error) {
	switch os.Getenv("EMBEDDER_TYPE") {
	case "openai":
		embedder, err := NewOpenAIEmbedder(os.Getenv("OPENAI_EMBEDDING_MODEL"))
		if err != nil {
			return nil, fmt.Errorf("configure openai embedder: %w", err)
		}
		slog.Info("using OpenAI embeddings", "model", os.Getenv("OPENAI_EMBEDDING_MODEL"))
		return embedder, nil
	default:
		url := os.Getenv("OLLAMA_EMBEDDING_URL")
		name := os.Getenv("OLLAMA_EMBEDDING_MODEL")
		slog.Info("using local Ollama embeddings", "model", name)
		return NewOllamaEmbedder(url, name), nil
	}
}
