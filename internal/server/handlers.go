package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docsmith-io/docsmith/internal/history"
	"github.com/docsmith-io/docsmith/internal/job"
	"github.com/docsmith-io/docsmith/internal/model"
	"github.com/docsmith-io/docsmith/internal/service"
)

// maxTemplateBytes bounds the multipart upload, templates are small
// markdown files.
const maxTemplateBytes = 10 << 20

type submitResponse struct {
	JobID  uuid.UUID    `json:"job_id"`
	Status model.Status `json:"status"`
}

type jobResponse struct {
	model.Job
	Result *model.CompletionResult `json:"result,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxTemplateBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parsing multipart form: %w", err))
		return
	}

	file, _, err := r.FormFile("template")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("template file is required"))
		return
	}
	defer file.Close()
	template, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("reading template: %w", err))
		return
	}

	req := job.Request{
		Template:     template,
		Section:      r.FormValue("section"),
		Collection:   r.FormValue("collection"),
		Instructions: r.FormValue("instructions"),
		Style:        r.FormValue("style"),
	}
	if raw := r.FormValue("top_k"); raw != "" {
		topK, err := strconv.Atoi(raw)
		if err != nil || topK < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("top_k must be a positive integer"))
			return
		}
		req.TopK = topK
	}

	snapshot, err := s.sup.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrShuttingDown) {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{JobID: snapshot.ID, Status: snapshot.Status})
}

// handleHistory lists recorded jobs, newest first. Without a configured
// history the list is always empty.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a positive integer"))
			return
		}
		limit = n
	}

	entries, err := s.sup.History(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	snapshot, err := s.sup.Job(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	resp := jobResponse{Job: snapshot}
	if snapshot.Status.Terminal() {
		resp.Result, _ = s.sup.Result(id)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEvents streams every message of one job as server-sent events.
// Late subscribers to a terminal job get a single replayed frame. A
// client disconnect ends the stream but never the job.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	msgs, cancel, err := s.sup.Subscribe(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	defer cancel()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, open := <-msgs:
			if !open {
				return
			}
			frame, err := json.Marshal(msg)
			if err != nil {
				slog.ErrorContext(r.Context(), "marshaling event frame has failed", "job_id", id, "error", err)
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		}
	}
}

func jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("malformed job id"))
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response has failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
