package vision

import (
	"context"
	"fmt"
	"image"
	"math"
	"path"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/backends"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/knights-analytics/hugot/util/imageutil"
	"github.com/patrickmn/go-cache"
	"github.com/siherrmann/handbot/helper"
)

const (
	// clipLogitScale is the learned temperature of the released CLIP models
	clipLogitScale = 100
	clipImageSize  = 224
)

// CLIPScorer scores images against labels with the two encoders of a CLIP
// model. Label embeddings are kept for the lifetime of the scorer.
type CLIPScorer struct {
	session *hugot.Session
	text    *pipelines.FeatureExtractionPipeline
	vision  *pipelines.FeatureExtractionPipeline
	labels  *cache.Cache

	mu sync.Mutex
}

var _ Scorer = (*CLIPScorer)(nil)

// NewCLIPScorer creates a scorer from the configured model, downloading both
// encoders on first use.
func NewCLIPScorer(config helper.VisionConfiguration) (*CLIPScorer, error) {
	modelPath, err := helper.PrepareModel(config.Model, config.TextOnnx)
	if err != nil {
		return nil, err
	}
	if _, err := helper.PrepareModel(config.Model, config.VisionOnnx); err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	scorer := &CLIPScorer{
		session: session,
		labels:  cache.New(cache.NoExpiration, 0),
	}

	scorer.text, err = hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath:    modelPath,
		Name:         "clip-text-pipeline",
		OnnxFilename: path.Base(config.TextOnnx),
		Options: []backends.PipelineOption[*pipelines.FeatureExtractionPipeline]{
			pipelines.WithOutputName("text_embeds"),
		},
	})
	if err != nil {
		return nil, scorer.destroy(fmt.Errorf("failed to create text pipeline: %w", err))
	}

	scorer.vision, err = hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath:    modelPath,
		Name:         "clip-vision-pipeline",
		OnnxFilename: path.Base(config.VisionOnnx),
		Options: []backends.PipelineOption[*pipelines.FeatureExtractionPipeline]{
			pipelines.WithImageMode(),
			pipelines.WithOutputName("image_embeds"),
			pipelines.WithPreprocessSteps[*pipelines.FeatureExtractionPipeline](
				imageutil.ResizeStep(clipImageSize),
				imageutil.CenterCropStep(clipImageSize, clipImageSize),
			),
			pipelines.WithNormalizationSteps[*pipelines.FeatureExtractionPipeline](
				imageutil.RescaleStep(),
				imageutil.CLIPPixelNormalizationStep(),
			),
			pipelines.WithNCHWFormat[*pipelines.FeatureExtractionPipeline](),
		},
	})
	if err != nil {
		return nil, scorer.destroy(fmt.Errorf("failed to create vision pipeline: %w", err))
	}

	return scorer, nil
}

// Logits returns the scaled cosine similarity of the image and each label
func (s *CLIPScorer) Logits(ctx context.Context, img image.Image, labels []string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	textEmbeddings, err := s.labelEmbeddings(labels)
	if err != nil {
		return nil, err
	}

	result, err := s.vision.RunWithImages([]image.Image{img})
	if err != nil {
		return nil, fmt.Errorf("failed to embed image: %w", err)
	}
	if len(result.Embeddings) != 1 {
		return nil, fmt.Errorf("embedding count mismatch: got %d embeddings for 1 image", len(result.Embeddings))
	}

	logits := make([]float32, len(labels))
	for i, embedding := range textEmbeddings {
		logits[i] = clipLogitScale * cosine(result.Embeddings[0], embedding)
	}
	return logits, nil
}

// labelEmbeddings embeds the labels that were not seen before
func (s *CLIPScorer) labelEmbeddings(labels []string) ([][]float32, error) {
	missing := []string{}
	for _, label := range labels {
		if _, ok := s.labels.Get(label); !ok {
			missing = append(missing, label)
		}
	}

	if len(missing) > 0 {
		result, err := s.text.RunPipeline(missing)
		if err != nil {
			return nil, fmt.Errorf("failed to embed labels: %w", err)
		}
		if len(result.Embeddings) != len(missing) {
			return nil, fmt.Errorf("embedding count mismatch: got %d embeddings for %d labels", len(result.Embeddings), len(missing))
		}
		for i, label := range missing {
			s.labels.Set(label, result.Embeddings[i], cache.NoExpiration)
		}
	}

	embeddings := make([][]float32, len(labels))
	for i, label := range labels {
		cached, _ := s.labels.Get(label)
		embeddings[i] = cached.([]float32)
	}
	return embeddings, nil
}

// Close releases the hugot session
func (s *CLIPScorer) Close() error {
	return s.session.Destroy()
}

func (s *CLIPScorer) destroy(err error) error {
	if destroyErr := s.session.Destroy(); destroyErr != nil {
		return fmt.Errorf("%w (cleanup error: %v)", err, destroyErr)
	}
	return err
}

func cosine(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range min(len(a), len(b)) {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
