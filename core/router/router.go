package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/siherrmann/handbot/core/llm"
	"github.com/siherrmann/handbot/core/prompt"
	"github.com/siherrmann/handbot/core/requestlog"
	"github.com/siherrmann/handbot/core/retrieval"
	"github.com/siherrmann/handbot/core/session"
	"github.com/siherrmann/handbot/database"
	"github.com/siherrmann/handbot/helper"
	"github.com/siherrmann/handbot/model"
)

// Category kinds of answers produced by the model backend
const (
	KindGeneral     = "General"
	KindReferral    = "Referral"
	KindError       = "Error"
	KindUnavailable = "Unavailable"
)

// Reply is the answer to one message
type Reply struct {
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

// Dependencies are the components used by the router
type Dependencies struct {
	Sessions  *session.Store
	Directory Directory
	Retriever *retrieval.Retriever
	Assembler *prompt.Assembler
	Backend   *llm.Backend
	Log       requestlog.Log
}

// Router answers chatbot messages. Unverified senders go through identity
// verification, verified senders get keyword answers or a retrieval answer.
type Router struct {
	company   string
	botName   string
	topK      int
	rules     []Rule
	sessions  *session.Store
	directory Directory
	retriever *retrieval.Retriever
	assembler *prompt.Assembler
	backend   *llm.Backend
	requests  requestlog.Log
	log       *slog.Logger
}

// NewRouter creates a router with the default keyword rules
func NewRouter(company helper.CompanyConfiguration, topK int, deps Dependencies, logger *slog.Logger) (*Router, error) {
	if deps.Sessions == nil || deps.Directory == nil || deps.Retriever == nil || deps.Backend == nil || deps.Log == nil {
		return nil, fmt.Errorf("router requires sessions, directory, retriever, backend and request log")
	}
	if deps.Assembler == nil {
		deps.Assembler = prompt.NewAssembler(prompt.DefaultMaxChars)
	}
	if topK <= 0 {
		topK = model.DefaultTopK
	}

	return &Router{
		company:   company.Name,
		botName:   company.BotName,
		topK:      topK,
		rules:     DefaultRules,
		sessions:  deps.Sessions,
		directory: deps.Directory,
		retriever: deps.Retriever,
		assembler: deps.Assembler,
		backend:   deps.Backend,
		requests:  deps.Log,
		log:       logger,
	}, nil
}

// Handle answers the question of a sender and writes the request log entry.
// It never fails, backend errors are answered with the backend apology.
func (r *Router) Handle(ctx context.Context, sender string, question string) Reply {
	lower := strings.ToLower(strings.TrimSpace(question))

	var reply Reply
	current := r.sessions.Start(sender)
	if current.Verified {
		reply = r.answer(ctx, current.EmployeeID, question, lower)
	} else {
		reply = r.verify(ctx, sender, lower)
	}

	// The employee id is logged as known before this message
	entry := &model.LogEntry{
		SenderID:   sender,
		EmployeeID: current.EmployeeID,
		Question:   question,
		Answer:     reply.Answer,
		Category:   reply.Category,
	}
	if err := r.requests.Append(ctx, entry); err != nil {
		r.log.Error("Failed to write request log", "sender", sender, "error", err)
	}

	return reply
}

func (r *Router) verify(ctx context.Context, sender string, lower string) Reply {
	if !HasCredentialKeywords(lower) {
		return Reply{Answer: fmt.Sprintf(identityPromptText, r.botName), Category: CategoryWelcomeIdentity}
	}

	credentials, ok := ParseCredentials(lower)
	if !ok {
		return Reply{Answer: verificationPromptText, Category: CategoryVerificationPrompt}
	}

	employeeID, ok, err := r.directory.VerifyEmployee(ctx, credentials.IDNumber, credentials.Code)
	if err != nil {
		r.log.Error("Failed to verify employee", "sender", sender, "error", err)
		ok = false
	}
	if !ok {
		r.log.Info("Identity verification failed", "sender", sender)
		return Reply{Answer: verificationFailedText, Category: CategoryVerificationFailed}
	}

	r.sessions.Verify(sender, employeeID)
	r.log.Info("Identity verified", "sender", sender, "employee_id", employeeID)
	return Reply{Answer: verificationSuccessText, Category: CategoryVerificationSuccess}
}

func (r *Router) answer(ctx context.Context, employeeID string, question string, lower string) Reply {
	for _, rule := range r.rules {
		if rule.Matches(lower) {
			return Reply{Answer: rule.answer(ctx, r, employeeID), Category: rule.Category}
		}
	}
	return r.generate(ctx, question)
}

// generate answers from the retrieved manual chunks through the model backend
func (r *Router) generate(ctx context.Context, question string) Reply {
	profile := r.backend.Profile
	if !r.backend.Available {
		return Reply{Answer: profile.Unavailable, Category: profile.Category(KindUnavailable)}
	}

	results, err := r.retriever.Search(ctx, question, r.topK)
	if err != nil {
		r.log.Error("Failed to retrieve context", "error", err)
		return Reply{Answer: profile.Apology, Category: profile.Category(KindError)}
	}

	chunks := retrieval.Texts(results)
	if len(chunks) == 0 {
		chunks = []string{retrieval.NoInformationText}
	}

	p, dropped := r.assembler.Assemble(profile.Template, prompt.Input{
		Question: question,
		Company:  r.company,
		Chunks:   chunks,
	})
	if dropped > 0 {
		r.log.Warn("Dropped chunks to fit prompt", "dropped", dropped, "kept", len(chunks)-dropped, "max_chars", r.assembler.MaxChars)
	}

	text, err := r.backend.Generator.Generate(ctx, p)
	if err != nil {
		var backendErr *llm.BackendError
		if errors.As(err, &backendErr) {
			r.log.Error("Model backend failed", "backend", backendErr.Backend, "error", backendErr.Err)
		} else {
			r.log.Error("Model backend failed", "error", err)
		}
		return Reply{Answer: profile.Apology, Category: profile.Category(KindError)}
	}

	text, referred := llm.Gate(text, profile)
	if referred {
		return Reply{Answer: text, Category: profile.Category(KindReferral)}
	}
	return Reply{Answer: text, Category: profile.Category(KindGeneral)}
}

// hireDateSuffix returns " el <date>" or an empty string if the hire date is unknown
func (r *Router) hireDateSuffix(ctx context.Context, employeeID string) string {
	employee, err := r.directory.SelectEmployee(ctx, employeeID)
	if err != nil {
		if !errors.Is(err, database.ErrEmployeeNotFound) {
			r.log.Warn("Failed to load employee", "employee_id", employeeID, "error", err)
		}
		return ""
	}
	if employee.HireDate == nil {
		return ""
	}
	return " el " + FormatSpanishDate(*employee.HireDate)
}
