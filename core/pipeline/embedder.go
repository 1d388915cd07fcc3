package pipeline

import (
	"context"
	"fmt"

	"github.com/knights-analytics/hugot"
	"github.com/openai/openai-go/v3"
	"github.com/siherrmann/handbot/helper"
)

const (
	// DefaultEmbeddingModel produces 384-dimensional embeddings
	DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"
	// DefaultEmbeddingDimension is the dimension of DefaultEmbeddingModel
	DefaultEmbeddingDimension = 384
	// DefaultOpenAIEmbeddingModel produces 1536-dimensional embeddings
	DefaultOpenAIEmbeddingModel = "text-embedding-3-small"
	// DefaultOpenAIEmbeddingDimension is the dimension of DefaultOpenAIEmbeddingModel
	DefaultOpenAIEmbeddingDimension = 1536

	embedBatchSize = 32
)

// DefaultEmbedder creates an embedder using the all-MiniLM-L6-v2 sentence transformer
func DefaultEmbedder() (EmbedFunc, error) {
	return HugotEmbedder(DefaultEmbeddingModel)
}

// HugotEmbedder creates an embedder running a feature extraction model locally.
// The model is downloaded on first use.
func HugotEmbedder(modelName string) (EmbedFunc, error) {
	// Prepare model (download if needed)
	modelPath, err := helper.PrepareModel(modelName, "onnx/model.onnx")
	if err != nil {
		return nil, err
	}

	// Initialize hugot session with Go backend
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	return func(ctx context.Context, texts []string) ([][]float32, error) {
		embeddings := make([][]float32, 0, len(texts))
		for start := 0; start < len(texts); start += embedBatchSize {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			end := min(start+embedBatchSize, len(texts))
			result, err := sentencePipeline.RunPipeline(texts[start:end])
			if err != nil {
				return nil, fmt.Errorf("failed to generate embeddings: %w", err)
			}
			if len(result.Embeddings) != end-start {
				return nil, fmt.Errorf("embedding count mismatch: got %d embeddings for %d texts", len(result.Embeddings), end-start)
			}

			embeddings = append(embeddings, result.Embeddings...)
		}
		return embeddings, nil
	}, nil
}

// OpenAIEmbedder creates an embedder using the OpenAI embeddings endpoint
func OpenAIEmbedder(client openai.Client, modelName string) EmbedFunc {
	if modelName == "" {
		modelName = DefaultOpenAIEmbeddingModel
	}

	return func(ctx context.Context, texts []string) ([][]float32, error) {
		embeddings := make([][]float32, 0, len(texts))
		for start := 0; start < len(texts); start += embedBatchSize {
			end := min(start+embedBatchSize, len(texts))
			batch := texts[start:end]

			resp, err := client.Embeddings.New(ctx, openai.EmbeddingNewParams{
				Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
				Model: openai.EmbeddingModel(modelName),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to generate embeddings: %w", err)
			}
			if len(resp.Data) != len(batch) {
				return nil, fmt.Errorf("embedding count mismatch: got %d embeddings for %d texts", len(resp.Data), len(batch))
			}

			// Data is ordered by index, which is not guaranteed to match the slice order
			vectors := make([][]float32, len(batch))
			for _, data := range resp.Data {
				idx := int(data.Index)
				if idx < 0 || idx >= len(batch) {
					return nil, fmt.Errorf("embedding index %d out of range", idx)
				}
				vector := make([]float32, len(data.Embedding))
				for i, v := range data.Embedding {
					vector[i] = float32(v)
				}
				vectors[idx] = vector
			}

			embeddings = append(embeddings, vectors...)
		}
		return embeddings, nil
	}
}
