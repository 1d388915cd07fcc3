package handbot

import (
	"context"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/siherrmann/handbot/core/llm"
	"github.com/siherrmann/handbot/core/prompt"
	"github.com/siherrmann/handbot/core/router"
	"github.com/siherrmann/handbot/helper"
	"github.com/siherrmann/handbot/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCredentials = "my id number is 0801199012345 and my employee code is 12345"

var testEmployees = []helper.EmployeeCredentials{
	{EmployeeID: "E100", IDNumber: "0801199012345", EmployeeCode: "12345", HireDate: "2015-03-09", Department: "Operaciones"},
}

// testEmbedder maps texts onto three topic axes
func testEmbedder(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		v := []float32{0.1, 0.1, 0.1}
		if strings.Contains(lower, "seguro") || strings.Contains(lower, "insurance") {
			v[0] = 1
		}
		if strings.Contains(lower, "horario") || strings.Contains(lower, "hours") {
			v[1] = 1
		}
		if strings.Contains(lower, "uniforme") || strings.Contains(lower, "dress") {
			v[2] = 1
		}
		embeddings[i] = v
	}
	return embeddings, nil
}

type testGenerator struct {
	mu      sync.Mutex
	prompts []model.Prompt
}

func (g *testGenerator) Generate(ctx context.Context, p model.Prompt) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, p)
	return "Respuesta generada a partir del manual de empleados.", nil
}

func (g *testGenerator) Backend() string {
	return llm.BackendOpenAI
}

func (g *testGenerator) last() model.Prompt {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompts[len(g.prompts)-1]
}

func writeTestDocuments(t *testing.T) string {
	dir := t.TempDir()
	manual := "El seguro médico cubre al empleado y a su familia.\nEl horario de oficina es de 8:00 a 17:00 horas.\ncorto\n\fEl uniforme es obligatorio de lunes a jueves."
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manual.txt"), []byte(manual), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pdf"), []byte("this is not a pdf"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.docx"), []byte("ignored"), 0o644))
	return dir
}

func testConfiguration(t *testing.T, documents string) *helper.Configuration {
	config := helper.DefaultConfiguration()
	config.Documents.Path = documents
	config.Retrieval.TopK = 2
	config.RequestLog.Path = filepath.Join(t.TempDir(), "request_log.jsonl")
	config.Identity.Backend = "static"
	config.Identity.Employees = testEmployees
	return config
}

func newTestHandbot(t *testing.T, config *helper.Configuration, opts ...Option) (*Handbot, *testGenerator) {
	generator := &testGenerator{}
	opts = append([]Option{
		WithEmbedder(testEmbedder, 3),
		WithGenerator(generator),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	h, err := New(context.Background(), config, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h, generator
}

func TestIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("Ingests supported documents and reports broken ones", func(t *testing.T) {
		h, _ := newTestHandbot(t, testConfiguration(t, writeTestDocuments(t)))

		result, err := h.Ingest(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Documents)
		assert.Equal(t, 3, result.Chunks, "Three manual lines and no sentinel")
		require.Len(t, result.Failed, 1)
		assert.Equal(t, "broken.pdf", filepath.Base(result.Failed[0]))

		retrieved, err := h.Retriever.Retrieve(ctx, "¿Qué cubre el seguro?", 1)
		require.NoError(t, err)
		assert.Equal(t, "El seguro médico cubre al empleado y a su familia.", retrieved)

		all, err := h.Retriever.Retrieve(ctx, "anything", 10)
		require.NoError(t, err)
		assert.NotContains(t, all, model.SentinelChunkText, "Expected no sentinel next to real chunks")
	})

	t.Run("Missing documents path leaves one sentinel chunk", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "missing")
		h, _ := newTestHandbot(t, testConfiguration(t, missing))

		result, err := h.Ingest(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Documents)
		assert.Equal(t, 1, result.Chunks)
		assert.Equal(t, []string{missing}, result.Failed)

		retrieved, err := h.Retriever.Retrieve(ctx, "anything", 4)
		require.NoError(t, err)
		assert.Equal(t, model.SentinelChunkText, retrieved)
	})

	t.Run("Only broken documents leave one sentinel chunk", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("not a pdf"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pdf"), []byte("neither"), 0o644))
		h, _ := newTestHandbot(t, testConfiguration(t, dir))

		result, err := h.Ingest(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Chunks)
		assert.Len(t, result.Failed, 2, "Expected each broken file to be reported once")

		retrieved, err := h.Retriever.Retrieve(ctx, "anything", 4)
		require.NoError(t, err)
		assert.Equal(t, model.SentinelChunkText, retrieved)
	})

	t.Run("Re-ingestion replaces the corpus", func(t *testing.T) {
		dir := writeTestDocuments(t)
		h, _ := newTestHandbot(t, testConfiguration(t, dir))

		_, err := h.Ingest(ctx)
		require.NoError(t, err)

		extra := "El seguro dental se solicita en recursos humanos."
		require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.txt"), []byte(extra), 0o644))
		require.NoError(t, os.Remove(filepath.Join(dir, "broken.pdf")))
		result, err := h.Ingest(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, result.Chunks)
		assert.Empty(t, result.Failed)

		count, err := h.Retriever.Store().Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, count)
	})

	t.Run("Character chunker", func(t *testing.T) {
		config := testConfiguration(t, writeTestDocuments(t))
		config.Documents.Chunker = "character"
		config.Documents.ChunkSize = 60
		config.Documents.ChunkOverlap = 10
		h, _ := newTestHandbot(t, config)

		result, err := h.Ingest(ctx)
		require.NoError(t, err)
		assert.Greater(t, result.Chunks, 1)
	})
}

func TestAsk(t *testing.T) {
	ctx := context.Background()
	h, generator := newTestHandbot(t, testConfiguration(t, writeTestDocuments(t)))
	_, err := h.Ingest(ctx)
	require.NoError(t, err)

	reply := h.Ask(ctx, "alice", "hola")
	assert.Equal(t, router.CategoryWelcomeIdentity, reply.Category)

	reply = h.Ask(ctx, "alice", testCredentials)
	assert.Equal(t, router.CategoryVerificationSuccess, reply.Category)

	reply = h.Ask(ctx, "alice", "I need a work letter")
	assert.Equal(t, router.CategoryWorkLetter, reply.Category)

	reply = h.Ask(ctx, "alice", "¿Qué cubre el seguro médico?")
	assert.Equal(t, "OpenAI - General", reply.Category)
	assert.Contains(t, generator.last().User, "El seguro médico cubre")

	history, err := h.History(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "hola", history[0].Question)
	assert.Equal(t, "¿Qué cubre el seguro médico?", history[3].Question)

	history, err = h.History(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "I need a work letter", history[0].Question)

	counts, err := h.CategoryCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[router.CategoryWorkLetter])
	assert.Equal(t, 1, counts["OpenAI - General"])
}

func TestChat(t *testing.T) {
	ctx := context.Background()
	h, generator := newTestHandbot(t, testConfiguration(t, writeTestDocuments(t)))
	_, err := h.Ingest(ctx)
	require.NoError(t, err)

	t.Run("Answers with sources", func(t *testing.T) {
		answer, err := h.Chat(ctx, "bob", "What are the office hours?")
		require.NoError(t, err)
		assert.Equal(t, "Respuesta generada a partir del manual de empleados.", answer.Response)
		require.Len(t, answer.Sources, 2)
		assert.Contains(t, answer.Sources[0].Content, "horario")
		assert.LessOrEqual(t, answer.Sources[0].Distance, answer.Sources[1].Distance)

		p := generator.last()
		assert.Contains(t, p.System, "Use the following pieces of context")
		assert.NotContains(t, p.User, "Chat History:")
	})

	t.Run("Follow up questions include the history", func(t *testing.T) {
		_, err := h.Chat(ctx, "bob", "And the dress code?")
		require.NoError(t, err)

		p := generator.last()
		assert.Contains(t, p.User, "Chat History:\nHuman: What are the office hours?\nAssistant: Respuesta generada")
		assert.Contains(t, p.User, "Question: And the dress code?")
	})

	t.Run("Sources never include the sentinel", func(t *testing.T) {
		answer, err := h.Chat(ctx, "dora", "What are the office hours?")
		require.NoError(t, err)
		for _, source := range answer.Sources {
			assert.NotEqual(t, model.SentinelChunkText, source.Content)
		}
	})

	t.Run("Chunks dropped from the prompt are not sources", func(t *testing.T) {
		question := "What are the office hours?"
		single, _ := prompt.NewAssembler(0).Assemble(prompt.DocumentQA, prompt.Input{
			Question: question,
			Chunks:   []string{"El horario de oficina es de 8:00 a 17:00 horas."},
		})
		budget := h.Assembler.MaxChars
		t.Cleanup(func() { h.Assembler.MaxChars = budget })
		h.Assembler.MaxChars = single.Len()

		answer, err := h.Chat(ctx, "carol", question)
		require.NoError(t, err)
		require.Len(t, answer.Sources, 1, "Expected only the nearest chunk to fit")
		assert.Contains(t, answer.Sources[0].Content, "horario")
		assert.Contains(t, generator.last().User, answer.Sources[0].Content)

		h.Assembler.MaxChars = 1
		answer, err = h.Chat(ctx, "erin", question)
		require.NoError(t, err)
		assert.Empty(t, answer.Sources, "Expected no sources when no chunk fits")
	})

	t.Run("Chat does not write the request log", func(t *testing.T) {
		history, err := h.History(ctx, "bob", 0)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestMarketing(t *testing.T) {
	ctx := context.Background()
	h, generator := newTestHandbot(t, testConfiguration(t, writeTestDocuments(t)))

	result, err := h.Marketing(ctx, "una app de ahorro")
	require.NoError(t, err)
	assert.NotEmpty(t, result)
	assert.Contains(t, generator.last().User, `"una app de ahorro"`)
}

// testScorer prefers the label about vibrant colors
type testScorer struct {
	calls  int
	closed bool
}

func (s *testScorer) Logits(ctx context.Context, img image.Image, labels []string) ([]float32, error) {
	s.calls++
	logits := make([]float32, len(labels))
	for i, label := range labels {
		if strings.Contains(label, "vibrant") {
			logits[i] = 3
		}
	}
	return logits, nil
}

func (s *testScorer) Close() error {
	s.closed = true
	return nil
}

func TestAnalyzeAd(t *testing.T) {
	ctx := context.Background()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))

	t.Run("Scores the image and asks the model for a recommendation", func(t *testing.T) {
		scorer := &testScorer{}
		h, generator := newTestHandbot(t, testConfiguration(t, writeTestDocuments(t)), WithScorer(scorer))

		analysis, err := h.AnalyzeAd(ctx, img)
		require.NoError(t, err)
		assert.Equal(t, "an image with vibrant colors", analysis.Label)
		assert.Len(t, analysis.Scores, 6)
		assert.Equal(t, "Respuesta generada a partir del manual de empleados.", analysis.Analysis)
		assert.Contains(t, generator.last().User, "La imagen fue clasificada como: an image with vibrant colors.")
		assert.Contains(t, generator.last().User, "Dame una puntuación del 0 al 100")

		_, err = h.AnalyzeAd(ctx, img)
		require.NoError(t, err)
		assert.Equal(t, 2, scorer.calls, "Expected the analyzer to be reused")
	})

	t.Run("Unavailable backend does not score the image", func(t *testing.T) {
		scorer := &testScorer{}
		h, _ := newTestHandbot(t, testConfiguration(t, writeTestDocuments(t)), WithScorer(scorer))
		h.Backend.Available = false

		_, err := h.AnalyzeAd(ctx, img)
		assert.ErrorIs(t, err, ErrBackendUnavailable)
		assert.Zero(t, scorer.calls)
	})

	t.Run("Close releases the scorer", func(t *testing.T) {
		scorer := &testScorer{}
		h, _ := newTestHandbot(t, testConfiguration(t, writeTestDocuments(t)), WithScorer(scorer))

		require.NoError(t, h.Close())
		assert.True(t, scorer.closed)
	})
}

func TestUnavailableBackend(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHandbot(t, testConfiguration(t, writeTestDocuments(t)))
	h.Backend.Available = false

	_, err := h.Chat(ctx, "bob", "What are the office hours?")
	var backendErr *llm.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	_, err = h.Marketing(ctx, "idea")
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	health := h.Health(ctx)
	assert.Equal(t, "degraded", health.Status)
	assert.False(t, health.BackendAvailable)
}

func TestHealth(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHandbot(t, testConfiguration(t, writeTestDocuments(t)))

	health := h.Health(ctx)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 0, health.Chunks)

	_, err := h.Ingest(ctx)
	require.NoError(t, err)
	h.Ask(ctx, "carol", "hola")

	health = h.Health(ctx)
	assert.Equal(t, 3, health.Chunks)
	assert.Equal(t, 1, health.Sessions, "Expected the unverified sender to have a session")
	assert.Equal(t, "openai", health.Backend)
}

func TestPostgresHandbot(t *testing.T) {
	ctx := context.Background()
	helper.SetTestDatabaseConfigEnvs(t, dbPort)

	config := testConfiguration(t, writeTestDocuments(t))
	config.Retrieval.Store = "postgres"
	config.RequestLog.Backend = "postgres"
	config.Identity.Backend = "postgres"

	h, generator := newTestHandbot(t, config)
	require.NotNil(t, h.DB)
	require.NotNil(t, h.Chunks)

	t.Run("Ingest into pgvector", func(t *testing.T) {
		result, err := h.Ingest(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Chunks)

		retrieved, err := h.Retriever.Retrieve(ctx, "¿Qué cubre el seguro?", 1)
		require.NoError(t, err)
		assert.Equal(t, "El seguro médico cubre al empleado y a su familia.", retrieved)
	})

	t.Run("Verify against the employees table and log to postgres", func(t *testing.T) {
		reply := h.Ask(ctx, "pg-sender", testCredentials)
		require.Equal(t, router.CategoryVerificationSuccess, reply.Category)

		reply = h.Ask(ctx, "pg-sender", "quiero vacaciones")
		assert.Equal(t, router.CategoryVacation, reply.Category)
		assert.Contains(t, reply.Answer, "el 09 de marzo de 2015")

		reply = h.Ask(ctx, "pg-sender", "¿Qué cubre el seguro médico?")
		assert.Equal(t, "OpenAI - General", reply.Category)
		assert.Contains(t, generator.last().User, "El seguro médico cubre")

		history, err := h.History(ctx, "pg-sender", 0)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, router.CategoryVacation, history[1].Category)
	})

	t.Run("Change index type", func(t *testing.T) {
		err := h.ChangeIndexType(ctx, "hnsw", map[string]interface{}{"m": 8})
		require.NoError(t, err)

		retrieved, err := h.Retriever.Retrieve(ctx, "office hours", 1)
		require.NoError(t, err)
		assert.Contains(t, retrieved, "horario")
	})
}
