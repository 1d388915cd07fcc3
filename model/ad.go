package model

import (
	"fmt"
	"strings"
)

// LabelScore is the probability of one description of an image
type LabelScore struct {
	Label string  `json:"label"`
	Score float32 `json:"score"`
}

// AdDescription is the classification of an advertising image.
// Scores are in the order of the labels and sum to one.
type AdDescription struct {
	Label  string       `json:"label"`
	Scores []LabelScore `json:"scores"`
}

// String renders the description sent to the model
func (d AdDescription) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "La imagen fue clasificada como: %s.\n", d.Label)
	for _, s := range d.Scores {
		fmt.Fprintf(&b, "- %s: %.2f%%\n", s.Label, s.Score*100)
	}
	return b.String()
}

// AdAnalysis is the scored description of an advertising image
type AdAnalysis struct {
	AdDescription
	Analysis string `json:"analysis"`
}
