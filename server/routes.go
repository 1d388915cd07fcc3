package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/siherrmann/handbot/core/llm"
)

const (
	defaultSender   = "unknown_sender"
	missingQuestion = "Please ask a question."
)

// QuestionRequest is the body of /ask and /chat
type QuestionRequest struct {
	Question string `json:"question" validate:"required"`
	Sender   string `json:"sender" validate:"omitempty,max=256"`
}

// MarketingRequest is the body of /marketing
type MarketingRequest struct {
	Idea string `json:"idea" validate:"required"`
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /marketing", s.handleMarketing)
	mux.HandleFunc("POST /analyze-ad", s.handleAnalyzeAd)
	mux.HandleFunc("GET /history/{sender}", s.handleHistory)
	mux.HandleFunc("GET /stats/categories", s.handleCategoryStats)
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Gatherer(), promhttp.HandlerOpts{}))

	return mux
}

// readQuestion decodes and validates a question body, the question is trimmed
func (s *Server) readQuestion(w http.ResponseWriter, r *http.Request) (*QuestionRequest, error) {
	request := &QuestionRequest{}
	if err := decodeJSON(w, r, request); err != nil {
		return nil, err
	}
	request.Question = strings.TrimSpace(request.Question)
	request.Sender = strings.TrimSpace(request.Sender)
	if err := s.validate.Struct(request); err != nil {
		return nil, err
	}
	if request.Sender == "" {
		request.Sender = defaultSender
	}
	return request, nil
}

// handleAsk answers the bank chatbot. It answers 200 even when the model fails.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	request, err := s.readQuestion(w, r)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"answer": missingQuestion})
		return
	}

	reply := s.service.Ask(r.Context(), request.Sender, request.Question)
	s.metrics.AnswersTotal.WithLabelValues(reply.Category).Inc()

	WriteJSON(w, http.StatusOK, map[string]string{"answer": reply.Answer})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	request, err := s.readQuestion(w, r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, missingQuestion)
		return
	}

	answer, err := s.service.Chat(r.Context(), request.Sender, request.Question)
	if err != nil {
		s.log.Error("Chat failed", "sender", request.Sender, "error", err)
		WriteError(w, backendStatus(err), "could not answer the question")
		return
	}

	WriteJSON(w, http.StatusOK, answer)
}

func (s *Server) handleMarketing(w http.ResponseWriter, r *http.Request) {
	request := &MarketingRequest{}
	if err := decodeJSON(w, r, request); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	request.Idea = strings.TrimSpace(request.Idea)
	if err := s.validate.Struct(request); err != nil {
		WriteError(w, http.StatusBadRequest, "Please describe a product idea.")
		return
	}

	result, err := s.service.Marketing(r.Context(), request.Idea)
	if err != nil {
		s.log.Error("Marketing generation failed", "error", err)
		WriteError(w, backendStatus(err), "could not generate the marketing content")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"result": result})
}

// handleAnalyzeAd accepts the image as the "image" field of a multipart form or as the raw body
func (s *Server) handleAnalyzeAd(w http.ResponseWriter, r *http.Request) {
	img, err := readImage(w, r)
	if err != nil {
		s.log.Debug("Rejected ad image", "error", err)
		WriteError(w, http.StatusBadRequest, "Please upload a JPEG or PNG image.")
		return
	}

	analysis, err := s.service.AnalyzeAd(r.Context(), img)
	if err != nil {
		s.log.Error("Ad analysis failed", "error", err)
		WriteError(w, backendStatus(err), "could not analyze the image")
		return
	}

	s.metrics.AdLabelsTotal.WithLabelValues(analysis.Label).Inc()
	WriteJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	// Without a limit every entry of the sender is returned
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.service.History(r.Context(), r.PathValue("sender"), limit)
	if err != nil {
		s.log.Error("Failed to read history", "error", err)
		WriteError(w, http.StatusInternalServerError, "could not read the history")
		return
	}

	WriteJSON(w, http.StatusOK, entries)
}

func (s *Server) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.service.CategoryCounts(r.Context())
	if err != nil {
		s.log.Error("Failed to count categories", "error", err)
		WriteError(w, http.StatusInternalServerError, "could not count categories")
		return
	}

	WriteJSON(w, http.StatusOK, counts)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Ingest(r.Context())
	if err != nil {
		s.log.Error("Ingestion failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "could not ingest the documents")
		return
	}

	s.metrics.CorpusChunks.Set(float64(result.Chunks))
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.service.Health(r.Context())
	s.metrics.CorpusChunks.Set(float64(health.Chunks))

	WriteJSON(w, http.StatusOK, health)
}

// backendStatus is 502 for model backend failures and 500 otherwise
func backendStatus(err error) int {
	var backendErr *llm.BackendError
	if errors.As(err, &backendErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
