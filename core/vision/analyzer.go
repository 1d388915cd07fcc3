package vision

import (
	"context"
	"image"
	"log/slog"

	"github.com/siherrmann/handbot/core/llm"
	"github.com/siherrmann/handbot/core/prompt"
	"github.com/siherrmann/handbot/model"
)

// Analyzer classifies advertising images and asks the model backend to
// score them
type Analyzer struct {
	scorer    Scorer
	generator llm.Generator
	assembler *prompt.Assembler
	labels    []string
	log       *slog.Logger
}

// NewAnalyzer creates an analyzer scoring images against AdLabels
func NewAnalyzer(scorer Scorer, generator llm.Generator, assembler *prompt.Assembler, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		scorer:    scorer,
		generator: generator,
		assembler: assembler,
		labels:    AdLabels,
		log:       logger,
	}
}

// Describe classifies the image without calling the model backend
func (a *Analyzer) Describe(ctx context.Context, img image.Image) (*model.AdDescription, error) {
	return Describe(ctx, a.scorer, img, a.labels)
}

// Analyze classifies the image and returns the score and recommendation of the model
func (a *Analyzer) Analyze(ctx context.Context, img image.Image) (*model.AdAnalysis, error) {
	description, err := a.Describe(ctx, img)
	if err != nil {
		return nil, err
	}
	a.log.Debug("Classified ad image", "label", description.Label)

	p, _ := a.assembler.Assemble(prompt.AdAnalysis, prompt.Input{Description: description.String()})
	analysis, err := a.generator.Generate(ctx, p)
	if err != nil {
		return nil, err
	}

	return &model.AdAnalysis{AdDescription: *description, Analysis: analysis}, nil
}
