package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/siherrmann/handbot/model"
)

// AdLabels are the descriptions an advertising image is scored against
var AdLabels = []string{
	"an image of a smiling person",
	"an image with a lot of text",
	"an image with vibrant colors",
	"an image with product packaging",
	"an emotional photo",
	"a boring or empty image",
}

// ErrNoLabels is returned when an image is described without labels
var ErrNoLabels = errors.New("no labels to score against")

// Scorer compares an image with text labels and returns one logit per label
type Scorer interface {
	Logits(ctx context.Context, img image.Image, labels []string) ([]float32, error)
}

// Describe scores img against the labels. The label with the highest
// probability wins, ties go to the first label.
func Describe(ctx context.Context, scorer Scorer, img image.Image, labels []string) (*model.AdDescription, error) {
	if len(labels) == 0 {
		return nil, ErrNoLabels
	}

	logits, err := scorer.Logits(ctx, img, labels)
	if err != nil {
		return nil, fmt.Errorf("failed to score image: %w", err)
	}
	if len(logits) != len(labels) {
		return nil, fmt.Errorf("logit count mismatch: got %d logits for %d labels", len(logits), len(labels))
	}

	probs := Softmax(logits)
	description := &model.AdDescription{Scores: make([]model.LabelScore, len(labels))}
	best := 0
	for i, label := range labels {
		description.Scores[i] = model.LabelScore{Label: label, Score: probs[i]}
		if probs[i] > probs[best] {
			best = i
		}
	}
	description.Label = labels[best]

	return description, nil
}

// Softmax turns logits into probabilities summing to one
func Softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return []float32{}
	}

	maxLogit := logits[0]
	for _, l := range logits[1:] {
		maxLogit = max(maxLogit, l)
	}

	exps := make([]float64, len(logits))
	sum := 0.0
	for i, l := range logits {
		exps[i] = math.Exp(float64(l - maxLogit))
		sum += exps[i]
	}

	probs := make([]float32, len(logits))
	for i, e := range exps {
		probs[i] = float32(e / sum)
	}
	return probs
}
