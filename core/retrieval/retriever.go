package retrieval

import (
	"context"
	"strings"

	"github.com/siherrmann/handbot/core/pipeline"
	"github.com/siherrmann/handbot/helper"
	"github.com/siherrmann/handbot/model"
)

// NoInformationText is returned by Retrieve when the corpus is empty
const NoInformationText = "No information available from the document."

// Retriever embeds questions and looks up the nearest chunks in a Store
type Retriever struct {
	store    Store
	embedder pipeline.EmbedFunc
	config   model.QueryConfig
}

// NewRetriever creates a new retriever
func NewRetriever(store Store, embedder pipeline.EmbedFunc, config model.QueryConfig) *Retriever {
	if config.TopK <= 0 {
		config.TopK = model.DefaultTopK
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		config:   config,
	}
}

// Store returns the underlying store
func (r *Retriever) Store() Store {
	return r.store
}

// Search returns the k nearest chunks to the query, nearest first.
// k <= 0 uses the configured default.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]*model.RetrievalResult, error) {
	if k <= 0 {
		k = r.config.TopK
	}

	count, err := r.store.Count(ctx)
	if err != nil {
		return nil, helper.NewError("count chunks", err)
	}
	if count == 0 {
		return []*model.RetrievalResult{}, nil
	}

	// Generate embedding from query
	embeddings, err := r.embedder(ctx, []string{query})
	if err != nil {
		return nil, helper.NewError("generate embedding", err)
	}
	if len(embeddings) != 1 {
		return nil, helper.NewError("generate embedding", pipeline.ErrNoDocuments)
	}

	results, err := r.store.Search(ctx, embeddings[0], k)
	if err != nil {
		return nil, helper.NewError("vector search", err)
	}

	if r.config.MaxDistance > 0 {
		filtered := results[:0]
		for _, result := range results {
			if result.Distance <= r.config.MaxDistance {
				filtered = append(filtered, result)
			}
		}
		results = filtered
	}

	return results, nil
}

// Retrieve returns the text of the k nearest chunks joined by newlines.
// An empty corpus yields NoInformationText without querying the index.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (string, error) {
	results, err := r.Search(ctx, query, k)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return NoInformationText, nil
	}

	return strings.Join(Texts(results), "\n"), nil
}

// Texts returns the chunk contents of the results in order
func Texts(results []*model.RetrievalResult) []string {
	texts := make([]string, len(results))
	for i, result := range results {
		texts[i] = result.Chunk.Content
	}
	return texts
}
