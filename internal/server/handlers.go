package server

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tablechat-io/tablechat/internal/agent"
	"github.com/tablechat-io/tablechat/internal/dataset"
	"github.com/tablechat-io/tablechat/internal/metrics"
	"github.com/tablechat-io/tablechat/internal/render"
	"github.com/tablechat-io/tablechat/internal/schema"
	"github.com/tablechat-io/tablechat/internal/session"
)

//go:embed index.html
var indexHTML []byte

const sessionCookie = "tablechat_session"

// sessionFor returns the caller's session, minting the cookie on first
// contact.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) *session.Session {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		id = c.Value
	} else {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s.store.Get(id)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	sess.Reset()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)

	file, header, err := r.FormFile("file")
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file part"})
		return
	}
	defer file.Close()

	if header.Filename == "" {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No selected file"})
		return
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Only .csv files are supported"})
		return
	}

	ds, err := dataset.Load(file, header.Filename)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		s.log.Error("upload parse failed", "file", header.Filename, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	prof := schema.Build(ds)
	sess.SetDataset(ds, prof)

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	s.log.Info("dataset loaded",
		"session", sess.ID,
		"file", header.Filename,
		"rows", ds.NumRows(),
		"cols", ds.NumCols())
	writeJSON(w, http.StatusOK, map[string]string{
		"success": fmt.Sprintf("File %q ready.", header.Filename),
	})
}

type chatRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Question is required"})
		return
	}

	ds, prof := sess.Dataset()
	if ds == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Please upload a file first."})
		return
	}

	if s.agent == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Translator is not configured. Set ANTHROPIC_API_KEY and restart.",
		})
		return
	}

	history := sess.HistoryWindow(s.historyWindow)
	outcome, err := s.agent.Ask(r.Context(), req.Question, ds, prof, history)
	if err != nil {
		var ex *agent.ExhaustedError
		if errors.As(err, &ex) {
			writeJSON(w, http.StatusOK, map[string]string{"answer": exhaustedAnswer(ex)})
			return
		}
		// The agent classifies everything; anything else is a programming error.
		s.log.Error("unclassified chat failure", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Unexpected failure"})
		return
	}

	answer := render.HTML(outcome.Result, outcome.Query, ds)
	sess.RecordExchange(req.Question, outcome.Expression)

	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// exhaustedAnswer formats the aggregated failure: the user always sees what
// was attempted and why it failed.
func exhaustedAnswer(ex *agent.ExhaustedError) string {
	expr := ex.Expression
	if expr == "" {
		expr = "(no expression produced)"
	}
	return fmt.Sprintf(
		"The agent tried %d times but could not answer this question.<br>Last expression: <code>%s</code><br>Error: <code>%s</code>",
		ex.Attempts, render.Escape(expr), render.Escape(errString(ex)))
}

func errString(ex *agent.ExhaustedError) string {
	if ex.Err == nil {
		return "unknown error"
	}
	return ex.Err.Error()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
