package router

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/siherrmann/handbot/core/llm"
	"github.com/siherrmann/handbot/core/prompt"
	"github.com/siherrmann/handbot/core/requestlog"
	"github.com/siherrmann/handbot/core/retrieval"
	"github.com/siherrmann/handbot/core/session"
	"github.com/siherrmann/handbot/helper"
	"github.com/siherrmann/handbot/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSender   = "whatsapp:+50499990000"
	testIDNumber = "0801199012345"
	testCode     = "12345"
	credentials  = "my id number is 0801199012345 and my employee code is 12345"
)

// fakeGenerator returns a fixed answer and records the prompts it got
type fakeGenerator struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []model.Prompt
}

func (g *fakeGenerator) Generate(ctx context.Context, p model.Prompt) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, p)
	return g.answer, g.err
}

func (g *fakeGenerator) Backend() string {
	return llm.BackendOpenAI
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// embedByKeyword maps texts to axes by the first keyword they contain
func embedByKeyword(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "seguro"):
			embeddings[i] = []float32{1, 0, 0}
		case strings.Contains(lower, "horario"):
			embeddings[i] = []float32{0, 1, 0}
		default:
			embeddings[i] = []float32{0, 0, 1}
		}
	}
	return embeddings, nil
}

type testRouter struct {
	router    *Router
	generator *fakeGenerator
	sessions  *session.Store
	log       requestlog.Log
}

func newTestRouter(t *testing.T, backend *llm.Backend, withCorpus bool) *testRouter {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := retrieval.NewMemoryStore(3)
	if withCorpus {
		doc := model.NewDocument("docs/manual.pdf", nil, nil)
		texts := []string{
			"El seguro médico cubre al empleado y a su familia.",
			"El horario de oficina es de 8:00 a 17:00.",
			"El código de vestimenta es formal de lunes a jueves.",
		}
		embeddings, err := embedByKeyword(context.Background(), texts)
		require.NoError(t, err)
		chunks := make([]*model.Chunk, len(texts))
		for i, text := range texts {
			chunks[i] = &model.Chunk{DocumentRID: doc.RID, Source: doc.Source, Content: text, Position: i, Embedding: embeddings[i]}
		}
		require.NoError(t, store.Replace(context.Background(), []*model.Document{doc}, chunks))
	}

	directory, err := NewStaticDirectory([]helper.EmployeeCredentials{
		{EmployeeID: "E100", IDNumber: testIDNumber, EmployeeCode: testCode, HireDate: "2015-03-09", Department: "Operaciones"},
		{EmployeeID: "E200", IDNumber: "0801198800001", EmployeeCode: "777"},
	})
	require.NoError(t, err)

	requestLog, err := requestlog.OpenFileLog(filepath.Join(t.TempDir(), "log.jsonl"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { requestLog.Close() })

	generator := &fakeGenerator{answer: "Según el manual, el seguro médico cubre al empleado y a su familia directa."}
	if backend == nil {
		backend = &llm.Backend{Generator: generator, Profile: llm.ProfileFor(llm.BackendOpenAI), Available: true}
	}

	sessions := session.NewStore(0, 0)
	router, err := NewRouter(
		helper.CompanyConfiguration{Name: "Aetheria Bank", BotName: "Aria"},
		2,
		Dependencies{
			Sessions:  sessions,
			Directory: directory,
			Retriever: retrieval.NewRetriever(store, embedByKeyword, model.DefaultQueryConfig()),
			Assembler: prompt.NewAssembler(prompt.DefaultMaxChars),
			Backend:   backend,
			Log:       requestLog,
		},
		logger,
	)
	require.NoError(t, err)

	return &testRouter{router: router, generator: generator, sessions: sessions, log: requestLog}
}

func (tr *testRouter) verify(t *testing.T) {
	reply := tr.router.Handle(context.Background(), testSender, credentials)
	require.Equal(t, CategoryVerificationSuccess, reply.Category)
}

func TestRouterVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("Sessions start unverified and get the identity prompt", func(t *testing.T) {
		tr := newTestRouter(t, nil, true)

		reply := tr.router.Handle(ctx, testSender, "Hola, necesito ayuda")
		assert.Equal(t, CategoryWelcomeIdentity, reply.Category)
		assert.Contains(t, reply.Answer, "Aria")
		assert.Contains(t, reply.Answer, "verificar tu identidad")

		s, ok := tr.sessions.Get(testSender)
		require.True(t, ok, "Expected the first message to create a session")
		assert.False(t, s.Verified)
		assert.Equal(t, 1, tr.sessions.Count())
		assert.Equal(t, 0, tr.generator.calls(), "Unverified senders never reach the model")
	})

	t.Run("Keywords without values get the verification prompt", func(t *testing.T) {
		tr := newTestRouter(t, nil, true)

		reply := tr.router.Handle(ctx, testSender, "What is my employee id and employee code?")
		assert.Equal(t, CategoryVerificationPrompt, reply.Category)

		s, _ := tr.sessions.Get(testSender)
		assert.False(t, s.Verified)
	})

	t.Run("Wrong code fails verification", func(t *testing.T) {
		tr := newTestRouter(t, nil, true)

		reply := tr.router.Handle(ctx, testSender, "my id number is 0801199012345 and my employee code is 99999")
		assert.Equal(t, CategoryVerificationFailed, reply.Category)

		s, _ := tr.sessions.Get(testSender)
		assert.False(t, s.Verified)
	})

	t.Run("Valid credentials verify exactly once", func(t *testing.T) {
		tr := newTestRouter(t, nil, true)

		reply := tr.router.Handle(ctx, testSender, "My ID Number is 0801199012345 and my Employee Code is 12345")
		assert.Equal(t, CategoryVerificationSuccess, reply.Category)

		s, ok := tr.sessions.Get(testSender)
		require.True(t, ok)
		assert.True(t, s.Verified)
		assert.Equal(t, "E100", s.EmployeeID)

		// Credentials of another employee do not reassign the session
		reply = tr.router.Handle(ctx, testSender, "my id number is 0801198800001 and my employee code is 777")
		assert.NotEqual(t, CategoryVerificationSuccess, reply.Category)

		s, _ = tr.sessions.Get(testSender)
		assert.Equal(t, "E100", s.EmployeeID)
	})

	t.Run("Verification is per sender", func(t *testing.T) {
		tr := newTestRouter(t, nil, true)
		tr.verify(t)

		reply := tr.router.Handle(ctx, "other-sender", "I need a work letter")
		assert.Equal(t, CategoryWelcomeIdentity, reply.Category)
	})
}

func TestRouterIntents(t *testing.T) {
	ctx := context.Background()

	t.Run("Work letter is answered without retrieval", func(t *testing.T) {
		tr := newTestRouter(t, nil, false)
		tr.verify(t)

		reply := tr.router.Handle(ctx, testSender, "I need a work letter")
		assert.Equal(t, CategoryWorkLetter, reply.Category)
		assert.Equal(t, workLetterText, reply.Answer)
		assert.Equal(t, 0, tr.generator.calls())
	})

	tests := []struct {
		name     string
		question string
		category string
		contains string
	}{
		{"Greeting", "hi there", CategoryWelcome, "¿En qué puedo ayudarte hoy?"},
		{"Spanish work letter", "Necesito una carta de trabajo", CategoryWorkLetter, "Solicitudes Internas"},
		{"Vacation pay", "When is my vacation pay?", CategoryVacationPay, "RECLAMO PAGO DE VACACIONES"},
		{"Spanish vacation pay", "consulta sobre el pago de vacaciones", CategoryVacationPay, "Mis Pagos"},
		{"Vacation with hire date", "Quiero tomar vacaciones", CategoryVacation, "Tienes derecho a vacaciones el 09 de marzo de 2015."},
		{"Loan", "how do I get a loan", CategoryLoan, "préstamo personal"},
		{"Spanish loan with accent", "quiero un préstamo", CategoryLoan, "Solicitudes Financieras"},
		{"Bonus", "cuando pagan el bono", CategoryBonus, "segundo trimestre"},
		{"Work letter wins over vacation", "work letter for my vacation visa", CategoryWorkLetter, "Carta de Trabajo"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tr := newTestRouter(t, nil, true)
			tr.verify(t)

			reply := tr.router.Handle(ctx, testSender, test.question)
			assert.Equal(t, test.category, reply.Category)
			assert.Contains(t, reply.Answer, test.contains)
			assert.Equal(t, 0, tr.generator.calls())
		})
	}

	t.Run("Greeting keywords only match whole words", func(t *testing.T) {
		tr := newTestRouter(t, nil, true)
		tr.verify(t)

		reply := tr.router.Handle(ctx, testSender, "which insurance does this cover")
		assert.Equal(t, "OpenAI - General", reply.Category)
		assert.Equal(t, 1, tr.generator.calls())
	})

	t.Run("Vacation without hire date", func(t *testing.T) {
		tr := newTestRouter(t, nil, true)
		reply := tr.router.Handle(ctx, testSender, "my id number is 0801198800001 and my employee code is 777")
		require.Equal(t, CategoryVerificationSuccess, reply.Category)

		reply = tr.router.Handle(ctx, testSender, "vacaciones")
		assert.Equal(t, CategoryVacation, reply.Category)
		assert.True(t, strings.HasPrefix(reply.Answer, "Tienes derecho a vacaciones. "))
	})
}

func TestRouterGeneration(t *testing.T) {
	ctx := context.Background()

	t.Run("Unmatched question is answered from retrieved chunks", func(t *testing.T) {
		tr := newTestRouter(t, nil, true)
		tr.verify(t)

		question := "¿Qué cubre el seguro médico?"
		reply := tr.router.Handle(ctx, testSender, question)
		assert.Equal(t, "OpenAI - General", reply.Category)
		assert.Equal(t, tr.generator.answer, reply.Answer)

		require.Equal(t, 1, tr.generator.calls())
		p := tr.generator.prompts[0]
		assert.Contains(t, p.User, "Aetheria Bank")
		assert.Contains(t, p.User, "El seguro médico cubre al empleado y a su familia.")
		assert.Contains(t, p.User, "Pregunta: "+question)
		assert.NotContains(t, p.User, "vestimenta", "Only the top k chunks are sent")
	})

	t.Run("Empty corpus sends the no information text", func(t *testing.T) {
		tr := newTestRouter(t, nil, false)
		tr.verify(t)

		tr.router.Handle(ctx, testSender, "¿Qué cubre el seguro médico?")
		require.Equal(t, 1, tr.generator.calls())
		assert.Contains(t, tr.generator.prompts[0].User, retrieval.NoInformationText)
	})

	t.Run("Short answers are replaced by the referral", func(t *testing.T) {
		tr := newTestRouter(t, nil, true)
		tr.generator.answer = "No sé."
		tr.verify(t)

		reply := tr.router.Handle(ctx, testSender, "¿Qué cubre el seguro médico?")
		assert.Equal(t, "OpenAI - Referral", reply.Category)
		assert.Equal(t, llm.ProfileFor(llm.BackendOpenAI).Referral, reply.Answer)
	})

	t.Run("Chunks dropped to fit the prompt are logged as a warning", func(t *testing.T) {
		tr := newTestRouter(t, nil, true)
		tr.verify(t)
		var buf bytes.Buffer
		tr.router.log = slog.New(slog.NewTextHandler(&buf, nil))
		tr.router.assembler.MaxChars = 1

		reply := tr.router.Handle(ctx, testSender, "¿Qué cubre el seguro médico?")
		assert.Equal(t, "OpenAI - General", reply.Category)
		assert.Contains(t, buf.String(), "level=WARN")
		assert.Contains(t, buf.String(), `msg="Dropped chunks to fit prompt" dropped=2 kept=0`)
	})

	t.Run("Network error yields the apology and an error log entry", func(t *testing.T) {
		server := httptest.NewServer(nil)
		baseURL := server.URL
		server.Close()

		generator := llm.WithTimeout(llm.NewOpenAIGenerator(helper.OpenAIConfiguration{
			APIKey:  "test",
			BaseURL: baseURL,
			Model:   "gpt-3.5-turbo",
		}), 5*time.Second)
		backend := &llm.Backend{Generator: generator, Profile: llm.ProfileFor(llm.BackendOpenAI), Available: true}

		tr := newTestRouter(t, backend, true)
		tr.verify(t)

		reply := tr.router.Handle(ctx, testSender, "¿Qué cubre el seguro médico?")
		assert.Equal(t, llm.ProfileFor(llm.BackendOpenAI).Apology, reply.Answer)
		assert.True(t, strings.HasSuffix(reply.Category, "Error"))

		entries, err := tr.log.Query(ctx, requestlog.Filter{SenderID: testSender, Category: reply.Category})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, reply.Answer, entries[0].Answer)
		assert.Equal(t, "E100", entries[0].EmployeeID)
	})

	t.Run("Unavailable local backend", func(t *testing.T) {
		generator := &fakeGenerator{answer: "never used"}
		backend := &llm.Backend{Generator: generator, Profile: llm.ProfileFor(llm.BackendLocal), Available: false}

		tr := newTestRouter(t, backend, true)
		tr.verify(t)

		reply := tr.router.Handle(ctx, testSender, "¿Qué cubre el seguro médico?")
		assert.Equal(t, "LLM Local - Unavailable", reply.Category)
		assert.Equal(t, llm.ProfileFor(llm.BackendLocal).Unavailable, reply.Answer)
		assert.Equal(t, 0, generator.calls())
	})
}

func TestRouterRequestLog(t *testing.T) {
	ctx := context.Background()
	tr := newTestRouter(t, nil, true)

	questions := []string{"hola", credentials, "I need a work letter", "bono"}
	for _, q := range questions {
		tr.router.Handle(ctx, testSender, q)
	}
	tr.router.Handle(ctx, "someone-else", "hola")

	entries, err := tr.log.Query(ctx, requestlog.Filter{SenderID: testSender})
	require.NoError(t, err)
	require.Len(t, entries, len(questions))
	for i, entry := range entries {
		assert.Equal(t, questions[i], entry.Question, fmt.Sprintf("entry %d", i))
	}
	assert.Equal(t, CategoryWelcomeIdentity, entries[0].Category)
	assert.Empty(t, entries[1].EmployeeID, "The verifying message is logged before the session is known")
	assert.Equal(t, "E100", entries[2].EmployeeID)
	assert.Equal(t, CategoryBonus, entries[3].Category)
}

func TestNewRouter(t *testing.T) {
	t.Run("Missing dependencies", func(t *testing.T) {
		_, err := NewRouter(helper.CompanyConfiguration{}, 4, Dependencies{}, slog.Default())
		assert.Error(t, err)
	})
}
