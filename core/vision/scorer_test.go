package vision

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/siherrmann/handbot/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScorer returns fixed logits and records the labels it got
type fakeScorer struct {
	logits []float32
	err    error
	labels []string
}

func (f *fakeScorer) Logits(ctx context.Context, img image.Image, labels []string) ([]float32, error) {
	f.labels = labels
	if f.err != nil {
		return nil, f.err
	}
	return f.logits, nil
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 4, 4))
}

func TestSoftmax(t *testing.T) {
	t.Run("Probabilities sum to one and keep the order of the logits", func(t *testing.T) {
		probs := Softmax([]float32{1, 3, 2})

		require.Len(t, probs, 3)
		assert.InDelta(t, 1.0, probs[0]+probs[1]+probs[2], 1e-6)
		assert.Greater(t, probs[1], probs[2])
		assert.Greater(t, probs[2], probs[0])
	})

	t.Run("Equal logits give equal probabilities", func(t *testing.T) {
		probs := Softmax([]float32{5, 5, 5, 5})

		for _, p := range probs {
			assert.InDelta(t, 0.25, p, 1e-6)
		}
	})

	t.Run("Large logits do not overflow", func(t *testing.T) {
		probs := Softmax([]float32{1000, 1000})

		assert.InDelta(t, 0.5, probs[0], 1e-6)
		assert.InDelta(t, 0.5, probs[1], 1e-6)
	})

	t.Run("No logits give no probabilities", func(t *testing.T) {
		assert.Empty(t, Softmax(nil))
	})
}

func TestDescribe(t *testing.T) {
	ctx := context.Background()

	t.Run("The most probable label wins", func(t *testing.T) {
		scorer := &fakeScorer{logits: []float32{20, 21, 28, 22, 19, 18}}

		description, err := Describe(ctx, scorer, testImage(), AdLabels)

		require.NoError(t, err)
		assert.Equal(t, "an image with vibrant colors", description.Label)
		assert.Equal(t, AdLabels, scorer.labels, "Expected the six ad labels to be scored")
		require.Len(t, description.Scores, len(AdLabels))

		sum := float32(0)
		for i, score := range description.Scores {
			assert.Equal(t, AdLabels[i], score.Label, "Expected scores in label order")
			sum += score.Score
		}
		assert.InDelta(t, 1.0, sum, 1e-5)
	})

	t.Run("Ties go to the first label", func(t *testing.T) {
		scorer := &fakeScorer{logits: []float32{1, 4, 4}}

		description, err := Describe(ctx, scorer, testImage(), []string{"a", "b", "c"})

		require.NoError(t, err)
		assert.Equal(t, "b", description.Label)
	})

	t.Run("Scorer errors are returned", func(t *testing.T) {
		scorer := &fakeScorer{err: errors.New("model not loaded")}

		_, err := Describe(ctx, scorer, testImage(), AdLabels)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "model not loaded")
	})

	t.Run("A logit count different from the label count is an error", func(t *testing.T) {
		scorer := &fakeScorer{logits: []float32{1, 2}}

		_, err := Describe(ctx, scorer, testImage(), AdLabels)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "logit count mismatch")
	})

	t.Run("Describing without labels is an error", func(t *testing.T) {
		_, err := Describe(ctx, &fakeScorer{}, testImage(), nil)

		assert.ErrorIs(t, err, ErrNoLabels)
	})
}

func TestCLIPScorer(t *testing.T) {
	t.Run("Scores an image against the ad labels", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping CLIPScorer test in short mode (requires model download)")
		}

		scorer, err := NewCLIPScorer(helper.DefaultConfiguration().Vision)
		require.NoError(t, err)
		defer scorer.Close()

		logits, err := scorer.Logits(context.Background(), testImage(), AdLabels)

		require.NoError(t, err)
		require.Len(t, logits, len(AdLabels))
		for _, logit := range logits {
			assert.InDelta(t, 0, logit, clipLogitScale+0.01, "Expected scaled cosine similarities")
		}

		again, err := scorer.Logits(context.Background(), testImage(), AdLabels)
		require.NoError(t, err)
		assert.InDeltaSlice(t, logits, again, 1e-4, "Expected cached label embeddings to give the same logits")
	})
}

func TestCosine(t *testing.T) {
	t.Run("Parallel vectors have similarity one", func(t *testing.T) {
		assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-6)
	})

	t.Run("Orthogonal vectors have similarity zero", func(t *testing.T) {
		assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 3}), 1e-6)
	})

	t.Run("Zero vectors have similarity zero", func(t *testing.T) {
		assert.Equal(t, float32(0), cosine([]float32{0, 0}, []float32{1, 1}))
	})
}
