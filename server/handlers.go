package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/docfold/docfold/breaks"
	"github.com/docfold/docfold/document"
	"github.com/docfold/docfold/session"
)

// maxDocumentBytes caps PUT /api/document bodies.
const maxDocumentBytes = 16 << 20

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

type blockDTO struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Text      string `json:"text,omitempty"`
	Source    string `json:"source,omitempty"`
	Level     int    `json:"level,omitempty"`
	Continued bool   `json:"continued,omitempty"`
}

type pageDTO struct {
	Number               int        `json:"number"`
	Blocks               []blockDTO `json:"blocks"`
	HasManualBreakBefore bool       `json:"has_manual_break_before"`
	BreakIndex           int        `json:"break_index"`
	ContentHeight        float64    `json:"content_height"`
}

type insertBreakRequest struct {
	TargetID string `json:"target_id"`
	// Optional content fingerprint so a stale ID can still match the
	// structurally equal block.
	Kind   string `json:"kind,omitempty"`
	Text   string `json:"text,omitempty"`
	Source string `json:"source,omitempty"`
}

// handlePages returns the published page list.
func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	pages := s.session.Pages()
	out := make([]pageDTO, 0, len(pages))
	for i, p := range pages {
		dto := pageDTO{
			Number:               i + 1,
			Blocks:               make([]blockDTO, 0, len(p.Blocks)),
			HasManualBreakBefore: p.HasManualBreakBefore,
			BreakIndex:           p.BreakIndex,
			ContentHeight:        p.ContentHeight,
		}
		for _, b := range p.Blocks {
			dto.Blocks = append(dto.Blocks, blockDTO{
				ID:        b.ID,
				Kind:      string(b.Kind),
				Text:      b.Text,
				Source:    b.Source,
				Level:     b.Level,
				Continued: b.Continued,
			})
		}
		out = append(out, dto)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"pages":       out,
		"total_pages": s.session.TotalPages(),
		"break_count": s.session.BreakCount(),
		"state":       s.session.State().String(),
	})
}

// handleState returns a small status snapshot for polling.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"state":       s.session.State().String(),
		"total_pages": s.session.TotalPages(),
		"break_count": s.session.BreakCount(),
		"can_undo":    s.session.CanUndo(),
	})
}

// handleReport returns the metrics of the last published run.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep := s.session.Report()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"generation":       rep.Generation,
		"blocks":           rep.Blocks,
		"breaks":           rep.Breaks,
		"pages":            rep.Pages,
		"splits":           rep.Splits,
		"oversized_blocks": rep.OversizedBlocks,
		"degraded":         rep.Degraded,
		"degraded_reason":  rep.DegradedReason,
		"measure_ms":       rep.MeasureDuration.Milliseconds(),
		"pack_ms":          rep.PackDuration.Milliseconds(),
		"total_ms":         rep.TotalDuration.Milliseconds(),
	})
}

// handleSetDocument replaces the session's document. The body format is
// selected by Content-Type: a JSON tree, markdown, HTML, or a docx file.
func (s *Server) handleSetDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, "failed to read body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctype := r.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ctype); err == nil {
		ctype = mt
	}

	var tree *document.Tree
	switch ctype {
	case "application/json":
		tree, err = document.Unmarshal(body)
	case "text/markdown", "text/x-markdown":
		tree, err = document.FromMarkdown(body)
	case "text/html":
		tree, err = document.FromHTML(body)
	case docxContentType:
		tree, err = document.FromDocx(bytes.NewReader(body))
	default:
		jsonError(w, fmt.Sprintf("unsupported content type %q", ctype), http.StatusUnsupportedMediaType)
		return
	}
	if err != nil {
		jsonError(w, "failed to parse document: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.session.SetDocument(r.Context(), tree); err != nil {
		s.writeRunError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"state":       s.session.State().String(),
		"title":       tree.Title,
		"blocks":      tree.Len(),
		"total_pages": s.session.TotalPages(),
	})
}

// handleInsertBreak places a manual break before the referenced block.
func (s *Server) handleInsertBreak(w http.ResponseWriter, r *http.Request) {
	var req insertBreakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.TargetID == "" && req.Text == "" && req.Source == "" {
		jsonError(w, "target_id is required", http.StatusBadRequest)
		return
	}

	target := &document.BlockNode{
		ID:     req.TargetID,
		Kind:   document.Kind(req.Kind),
		Text:   req.Text,
		Source: req.Source,
	}
	if err := s.session.InsertBreak(r.Context(), target); err != nil {
		if errors.Is(err, breaks.ErrTargetNotFound) {
			jsonError(w, "break target not found, no change made", http.StatusNotFound)
			return
		}
		s.writeRunError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"break_count": s.session.BreakCount(),
		"total_pages": s.session.TotalPages(),
	})
}

// handleRemoveBreak removes the break marker at {index}. An index that
// names no marker is reported as removed=false rather than an error.
func (s *Server) handleRemoveBreak(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		jsonError(w, "break index must be an integer", http.StatusBadRequest)
		return
	}

	removed, err := s.session.RemoveBreak(r.Context(), idx)
	if err != nil {
		s.writeRunError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"removed":     removed,
		"break_count": s.session.BreakCount(),
		"total_pages": s.session.TotalPages(),
	})
}

// handleUndoBreak reverts the last break edit.
func (s *Server) handleUndoBreak(w http.ResponseWriter, r *http.Request) {
	if err := s.session.UndoBreakEdit(r.Context()); err != nil {
		if errors.Is(err, breaks.ErrNothingToUndo) {
			jsonError(w, "nothing to undo", http.StatusConflict)
			return
		}
		s.writeRunError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"break_count": s.session.BreakCount(),
		"total_pages": s.session.TotalPages(),
	})
}

// writeRunError maps pagination run failures to HTTP statuses.
func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrSuperseded) {
		jsonError(w, "superseded by a newer change", http.StatusConflict)
		return
	}
	jsonError(w, "pagination failed: "+err.Error(), http.StatusInternalServerError)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
