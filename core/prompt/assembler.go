package prompt

import (
	"strings"

	"github.com/siherrmann/handbot/model"
)

// DefaultMaxChars is the prompt budget used by the chatbots
const DefaultMaxChars = 12000

// Input holds the values substituted into a template.
// Chunks are ordered nearest first.
type Input struct {
	Question    string
	Company     string
	History     []model.Turn
	Idea        string
	// Description is the classification of an ad image
	Description string
	Chunks      []string
}

// Assembler renders templates within a character budget
type Assembler struct {
	// MaxChars is the maximum prompt length in runes, 0 disables the limit
	MaxChars int
}

// NewAssembler creates an assembler with the given budget
func NewAssembler(maxChars int) *Assembler {
	return &Assembler{MaxChars: maxChars}
}

// Assemble renders the template and returns the prompt together with the
// number of chunks dropped to fit the budget. The farthest chunks are
// dropped first. The question is never shortened, so a prompt can still
// exceed the budget once all chunks are gone.
func (a *Assembler) Assemble(t Template, in Input) (model.Prompt, int) {
	chunks := in.Chunks
	for {
		p := render(t, in, chunks)
		if a.MaxChars <= 0 || p.Len() <= a.MaxChars || len(chunks) == 0 {
			return p, len(in.Chunks) - len(chunks)
		}
		chunks = chunks[:len(chunks)-1]
	}
}

func render(t Template, in Input, chunks []string) model.Prompt {
	replacer := strings.NewReplacer(
		"{context}", strings.Join(chunks, "\n"),
		"{question}", in.Question,
		"{company}", in.Company,
		"{history}", formatHistory(in.History),
		"{idea}", in.Idea,
		"{description}", in.Description,
	)

	return model.Prompt{
		System: replacer.Replace(t.System),
		User:   replacer.Replace(t.User),
	}
}

func formatHistory(turns []model.Turn) string {
	if len(turns) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Chat History:\n")
	for _, turn := range turns {
		b.WriteString("Human: ")
		b.WriteString(turn.Question)
		b.WriteString("\nAssistant: ")
		b.WriteString(turn.Answer)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}
