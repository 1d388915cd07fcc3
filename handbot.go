package handbot

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/siherrmann/handbot/core/llm"
	"github.com/siherrmann/handbot/core/pipeline"
	"github.com/siherrmann/handbot/core/prompt"
	"github.com/siherrmann/handbot/core/requestlog"
	"github.com/siherrmann/handbot/core/retrieval"
	"github.com/siherrmann/handbot/core/router"
	"github.com/siherrmann/handbot/core/session"
	"github.com/siherrmann/handbot/core/vision"
	"github.com/siherrmann/handbot/database"
	"github.com/siherrmann/handbot/helper"
	"github.com/siherrmann/handbot/model"
	loadSql "github.com/siherrmann/handbot/sql"
)

// ErrBackendUnavailable is returned when the model backend did not answer at startup
var ErrBackendUnavailable = errors.New("model backend is not available")

// Handbot wires the retrieval pipeline, the model backend and the chatbots
type Handbot struct {
	Config    *helper.Configuration
	DB        *helper.Database // nil unless a component uses postgres
	Pipeline  *pipeline.Pipeline
	Retriever *retrieval.Retriever
	Assembler *prompt.Assembler
	Backend   *llm.Backend
	Sessions  *session.Store
	Requests  requestlog.Log
	Directory router.Directory
	Router    *router.Router
	// Chunks is set when the corpus is stored in postgres
	Chunks *database.ChunksDBHandler

	ingestMu sync.Mutex
	adsMu    sync.Mutex
	scorer   vision.Scorer // created on the first ad analysis unless injected
	ads      *vision.Analyzer
	log      *slog.Logger
}

type options struct {
	embedder  pipeline.EmbedFunc
	dimension int
	generator llm.Generator
	directory router.Directory
	scorer    vision.Scorer
	db        *helper.Database
	logger    *slog.Logger
}

// Option replaces a component that is otherwise built from the configuration
type Option func(*options)

// WithEmbedder uses embed instead of the configured embedding backend
func WithEmbedder(embed pipeline.EmbedFunc, dimension int) Option {
	return func(o *options) {
		o.embedder = embed
		o.dimension = dimension
	}
}

// WithGenerator uses g instead of the configured model backend
func WithGenerator(g llm.Generator) Option {
	return func(o *options) {
		o.generator = g
	}
}

// WithDirectory uses d instead of the configured identity store
func WithDirectory(d router.Directory) Option {
	return func(o *options) {
		o.directory = d
	}
}

// WithScorer uses s instead of loading the configured CLIP model
func WithScorer(s vision.Scorer) Option {
	return func(o *options) {
		o.scorer = s
	}
}

// WithDatabase uses an already connected database instead of the DB_* environment
func WithDatabase(db *helper.Database) Option {
	return func(o *options) {
		o.db = db
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates all components from the configuration. The corpus is empty
// until Ingest is called.
func New(ctx context.Context, config *helper.Configuration, opts ...Option) (*Handbot, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// Logger
	logger := o.logger
	if logger == nil {
		handlerOpts := helper.PrettyHandlerOptions{
			SlogOpts: slog.HandlerOptions{
				Level: slog.LevelInfo,
			},
		}
		logger = slog.New(helper.NewPrettyHandler(os.Stdout, handlerOpts))
	}

	h := &Handbot{
		Config:    config,
		Assembler: prompt.NewAssembler(config.Retrieval.MaxPromptChars),
		Sessions:  session.NewStore(config.Session.TTL, config.Session.ChatTurns),
		scorer:    o.scorer,
		log:       logger,
	}

	err := h.initDatabase(o)
	if err != nil {
		return nil, err
	}

	// Embedding and chunking
	embedder, dimension, err := h.newEmbedder(ctx, o)
	if err != nil {
		h.Close()
		return nil, helper.NewError("create embedder", err)
	}
	h.Pipeline = pipeline.NewPipeline(newChunker(config.Documents), embedder)

	// Retrieval corpus
	store, err := h.newStore(dimension)
	if err != nil {
		h.Close()
		return nil, helper.NewError("create corpus store", err)
	}
	h.Retriever = retrieval.NewRetriever(store, embedder, model.QueryConfig{TopK: config.Retrieval.TopK})

	// Model backend
	if o.generator != nil {
		h.Backend = &llm.Backend{
			Generator: llm.WithTimeout(o.generator, config.LLM.Timeout),
			Profile:   llm.ProfileFor(o.generator.Backend()),
			Available: true,
		}
	} else {
		h.Backend, err = llm.NewBackend(ctx, config.LLM, logger)
		if err != nil {
			h.Close()
			return nil, helper.NewError("create model backend", err)
		}
	}

	// Identity store
	h.Directory = o.directory
	if h.Directory == nil {
		h.Directory, err = h.newDirectory(ctx)
		if err != nil {
			h.Close()
			return nil, helper.NewError("create identity store", err)
		}
	}

	// Request log
	h.Requests, err = requestlog.Open(config.RequestLog, h.DB, logger)
	if err != nil {
		h.Close()
		return nil, helper.NewError("open request log", err)
	}

	h.Router, err = router.NewRouter(config.Company, config.Retrieval.TopK, router.Dependencies{
		Sessions:  h.Sessions,
		Directory: h.Directory,
		Retriever: h.Retriever,
		Assembler: h.Assembler,
		Backend:   h.Backend,
		Log:       h.Requests,
	}, logger)
	if err != nil {
		h.Close()
		return nil, helper.NewError("create router", err)
	}

	return h, nil
}

// usesPostgres reports whether any component is configured to use postgres
func usesPostgres(config *helper.Configuration) bool {
	return config.Retrieval.Store == "postgres" ||
		config.RequestLog.Backend == "postgres" ||
		config.Identity.Backend == "postgres"
}

func (h *Handbot) initDatabase(o *options) error {
	if !usesPostgres(h.Config) {
		return nil
	}

	db := o.db
	if db == nil {
		dbConfig, err := helper.NewDatabaseConfiguration()
		if err != nil {
			return helper.NewError("database configuration", err)
		}
		db, err = helper.ConnectDatabase("handbot", dbConfig, h.log)
		if err != nil {
			return err
		}
	}

	err := loadSql.Init(db.Instance)
	if err != nil {
		db.Close()
		return helper.NewError("initialize database extensions", err)
	}

	h.DB = db
	return nil
}

func (h *Handbot) newEmbedder(ctx context.Context, o *options) (pipeline.EmbedFunc, int, error) {
	if o.embedder != nil {
		return o.embedder, o.dimension, nil
	}

	config := h.Config.Embedding
	var embedder pipeline.EmbedFunc
	dimension := 0
	switch config.Backend {
	case "", "hugot":
		modelName := config.Model
		if modelName == "" || modelName == pipeline.DefaultEmbeddingModel {
			modelName = pipeline.DefaultEmbeddingModel
			dimension = pipeline.DefaultEmbeddingDimension
		}
		var err error
		embedder, err = pipeline.HugotEmbedder(modelName)
		if err != nil {
			return nil, 0, err
		}
	case "openai":
		client := llm.NewOpenAIClient(h.Config.LLM.OpenAI.APIKey, h.Config.LLM.OpenAI.BaseURL)
		if config.Model == "" || config.Model == pipeline.DefaultOpenAIEmbeddingModel {
			dimension = pipeline.DefaultOpenAIEmbeddingDimension
		}
		embedder = pipeline.OpenAIEmbedder(client, config.Model)
	default:
		return nil, 0, fmt.Errorf("unknown embedding backend %q", config.Backend)
	}

	// Unknown models report their dimension by embedding a sample text
	if dimension == 0 {
		sample, err := embedder(ctx, []string{"dimension sample"})
		if err != nil {
			return nil, 0, helper.NewError("detect embedding dimension", err)
		}
		if len(sample) != 1 || len(sample[0]) == 0 {
			return nil, 0, fmt.Errorf("embedding sample returned no vector")
		}
		dimension = len(sample[0])
	}

	return embedder, dimension, nil
}

func newChunker(config helper.DocumentsConfiguration) pipeline.ChunkFunc {
	if config.Chunker == "character" {
		return pipeline.CharacterChunker(config.ChunkSize, config.ChunkOverlap)
	}
	return pipeline.LineChunker(config.MinLineLength)
}

func (h *Handbot) newStore(dimension int) (retrieval.Store, error) {
	switch h.Config.Retrieval.Store {
	case "", "memory":
		return retrieval.NewMemoryStore(dimension), nil
	case "postgres":
		// Documents first, chunks reference them
		documents, err := database.NewDocumentsDBHandler(h.DB, false)
		if err != nil {
			return nil, helper.NewError("create documents handler", err)
		}
		chunks, err := database.NewChunksDBHandler(h.DB, dimension, false)
		if err != nil {
			return nil, helper.NewError("create chunks handler", err)
		}
		h.Chunks = chunks
		return retrieval.NewPostgresStore(documents, chunks), nil
	default:
		return nil, fmt.Errorf("unknown store %q", h.Config.Retrieval.Store)
	}
}

// newDirectory creates the identity store. Configured employees are upserted
// into postgres so a fresh database can be used right away.
func (h *Handbot) newDirectory(ctx context.Context) (router.Directory, error) {
	config := h.Config.Identity
	switch config.Backend {
	case "static":
		return router.NewStaticDirectory(config.Employees)
	case "", "postgres":
		employees, err := database.NewEmployeesDBHandler(h.DB, false)
		if err != nil {
			return nil, err
		}

		static, err := router.NewStaticDirectory(config.Employees)
		if err != nil {
			return nil, err
		}
		for _, c := range config.Employees {
			employee, err := static.SelectEmployee(ctx, c.EmployeeID)
			if err != nil {
				return nil, err
			}
			err = employees.InsertEmployee(ctx, employee)
			if err != nil {
				return nil, helper.NewError(fmt.Sprintf("insert employee %s", c.EmployeeID), err)
			}
		}
		return employees, nil
	default:
		return nil, fmt.Errorf("unknown identity backend %q", config.Backend)
	}
}

// Close closes the request log, the CLIP model and the database connection
func (h *Handbot) Close() error {
	var errs []error
	if closer, ok := h.scorer.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if h.Requests != nil {
		errs = append(errs, h.Requests.Close())
	}
	if h.DB != nil {
		errs = append(errs, h.DB.Close())
	}
	return errors.Join(errs...)
}

// Ingest rebuilds the corpus from the configured documents path.
// Documents that cannot be extracted are left out and reported as failed. If
// the corpus ends up without any chunk it holds a single sentinel chunk.
func (h *Handbot) Ingest(ctx context.Context) (*model.IngestResult, error) {
	h.ingestMu.Lock()
	defer h.ingestMu.Unlock()

	path := h.Config.Documents.Path
	result := &model.IngestResult{}

	extract := func(source string) (*model.Document, error) {
		doc, err := h.Pipeline.Extractor(source)
		if err == nil {
			h.log.Debug("Extracted document", "source", source, "format", doc.Metadata.String(model.MetadataFormat), "pages", doc.PageCount)
			return doc, nil
		}
		if errors.Is(err, pipeline.ErrUnsupportedFormat) {
			return nil, err
		}
		h.log.Warn("Could not extract document, leaving it out", "source", source, "error", err)
		result.Failed = append(result.Failed, source)
		return nil, fmt.Errorf("%w: %v", pipeline.ErrSkipDocument, err)
	}

	docs, err := pipeline.LoadDocuments(path, extract)
	if err != nil {
		h.log.Warn("Could not load documents", "path", path, "error", err)
		if len(result.Failed) == 0 {
			result.Failed = append(result.Failed, path)
		}
		docs = nil
	}

	docs, chunks, err := h.Pipeline.ProcessCorpus(ctx, path, docs)
	if err != nil {
		return nil, helper.NewError("process documents", err)
	}
	if len(chunks) == 1 && chunks[0].IsSentinel() {
		h.log.Warn("No text extracted, corpus holds the sentinel chunk", "path", path)
	}

	err = h.Retriever.Store().Replace(ctx, docs, chunks)
	if err != nil {
		return nil, helper.NewError("replace corpus", err)
	}

	result.Documents = len(docs)
	result.Chunks = len(chunks)
	h.log.Info("Ingested documents", "path", path, "documents", result.Documents, "chunks", result.Chunks, "failed", len(result.Failed))

	return result, nil
}

// Ask answers the bank chatbot, see router.Router.Handle
func (h *Handbot) Ask(ctx context.Context, sender string, question string) router.Reply {
	return h.Router.Handle(ctx, sender, question)
}

// Chat answers a question about the documents using the recent history of the sender
func (h *Handbot) Chat(ctx context.Context, sender string, question string) (*model.ChatAnswer, error) {
	if !h.Backend.Available {
		return nil, &llm.BackendError{Backend: h.Backend.Generator.Backend(), Err: ErrBackendUnavailable}
	}

	results, err := h.Retriever.Search(ctx, question, h.Config.Retrieval.TopK)
	if err != nil {
		return nil, helper.NewError("retrieve context", err)
	}

	p, dropped := h.Assembler.Assemble(prompt.DocumentQA, prompt.Input{
		Question: question,
		History:  h.Sessions.History(sender),
		Chunks:   retrieval.Texts(results),
	})
	if dropped > 0 {
		h.log.Warn("Dropped chunks to fit prompt", "dropped", dropped, "kept", len(results)-dropped, "max_chars", h.Assembler.MaxChars)
		// Only chunks the model saw are sources
		results = results[:len(results)-dropped]
	}

	answer, err := h.Backend.Generator.Generate(ctx, p)
	if err != nil {
		return nil, err
	}

	h.Sessions.AppendTurn(sender, model.Turn{Question: question, Answer: answer})

	sources := make([]model.Source, len(results))
	for i, result := range results {
		sources[i] = model.Source{
			Source:   result.Chunk.Source,
			Page:     result.Chunk.Page,
			Content:  result.Chunk.Content,
			Distance: result.Distance,
		}
	}

	return &model.ChatAnswer{Response: answer, Sources: sources}, nil
}

// Marketing turns a product idea into marketing copy
func (h *Handbot) Marketing(ctx context.Context, idea string) (string, error) {
	if !h.Backend.Available {
		return "", &llm.BackendError{Backend: h.Backend.Generator.Backend(), Err: ErrBackendUnavailable}
	}

	p, _ := h.Assembler.Assemble(prompt.Marketing, prompt.Input{Idea: idea})
	return h.Backend.Generator.Generate(ctx, p)
}

// AnalyzeAd classifies an advertising image with CLIP and asks the model
// backend for a score and a recommendation
func (h *Handbot) AnalyzeAd(ctx context.Context, img image.Image) (*model.AdAnalysis, error) {
	if !h.Backend.Available {
		return nil, &llm.BackendError{Backend: h.Backend.Generator.Backend(), Err: ErrBackendUnavailable}
	}

	analyzer, err := h.adAnalyzer()
	if err != nil {
		return nil, err
	}

	analysis, err := analyzer.Analyze(ctx, img)
	if err != nil {
		return nil, err
	}
	h.log.Info("Analyzed ad image", "label", analysis.Label)

	return analysis, nil
}

// adAnalyzer loads the CLIP model on first use. A failed load is retried on the next call.
func (h *Handbot) adAnalyzer() (*vision.Analyzer, error) {
	h.adsMu.Lock()
	defer h.adsMu.Unlock()

	if h.ads != nil {
		return h.ads, nil
	}

	if h.scorer == nil {
		h.log.Info("Loading CLIP model", "model", h.Config.Vision.Model)
		scorer, err := vision.NewCLIPScorer(h.Config.Vision)
		if err != nil {
			return nil, helper.NewError("load CLIP model", err)
		}
		h.scorer = scorer
	}

	h.ads = vision.NewAnalyzer(h.scorer, h.Backend.Generator, h.Assembler, h.log)
	return h.ads, nil
}

// History returns the most recent log entries of a sender in append order
func (h *Handbot) History(ctx context.Context, sender string, limit int) ([]*model.LogEntry, error) {
	return h.Requests.Query(ctx, requestlog.Filter{SenderID: sender, Limit: limit})
}

// CategoryCounts counts the log entries per category
func (h *Handbot) CategoryCounts(ctx context.Context) (map[string]int, error) {
	return h.Requests.CountByCategory(ctx)
}

// Health reports the corpus size and the backend state
func (h *Handbot) Health(ctx context.Context) model.Health {
	health := model.Health{
		Status:           "ok",
		Sessions:         h.Sessions.Count(),
		Backend:          h.Config.LLM.Backend,
		BackendAvailable: h.Backend.Available,
	}

	chunks, err := h.Retriever.Store().Count(ctx)
	if err != nil {
		h.log.Warn("Failed to count chunks", "error", err)
		health.Status = "degraded"
	}
	health.Chunks = chunks

	if !h.Backend.Available {
		health.Status = "degraded"
	}

	return health
}

// ChangeIndexType changes the vector index of the postgres corpus
func (h *Handbot) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	if h.Chunks == nil {
		return fmt.Errorf("index type can only be changed for the postgres store")
	}
	return h.Chunks.ChangeIndexType(ctx, indexType, params)
}
