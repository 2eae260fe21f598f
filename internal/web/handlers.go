package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sqlscript/internal/core"
	"github.com/JonMunkholm/sqlscript/internal/logging"
	"github.com/JonMunkholm/sqlscript/internal/web/templates"
)

// GenerateResponse is the JSON body returned by POST /api/generate.
type GenerateResponse struct {
	ID              string    `json:"id"`
	FileName        string    `json:"file_name"`
	TableName       string    `json:"table_name"`
	Mode            core.Mode `json:"mode"`
	TotalStatements int       `json:"total_statements"`
	Preview         []string  `json:"preview"`
	DownloadURL     string    `json:"download_url"`
	DurationMS      int64     `json:"duration_ms"`
}

// handleHealth reports liveness and conversion slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"conversions": s.service.LimiterStatus(),
	})
}

// handleIndex renders the upload form.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, r, s.defaultForm(), nil, http.StatusOK)
}

// handleGenerateForm converts an upload submitted from the HTML form and
// renders the result page. Errors re-render the form with the coded message.
func (s *Server) handleGenerateForm(w http.ResponseWriter, r *http.Request) {
	req, form, cleanup, err := s.parseConvertRequest(w, r)
	defer cleanup()
	if err != nil {
		s.renderFormError(w, r, form, err)
		return
	}

	result, err := s.convert(r.Context(), req)
	if err != nil {
		s.renderFormError(w, r, form, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = templates.Result(templates.ResultData{
		Result:      result,
		DownloadURL: templates.DownloadURL(result.Artifact.Name),
	}).Render(r.Context(), w)
	if err != nil {
		logging.FromContext(r.Context()).Error("render result page", "error", err)
	}
}

// handleGenerateAPI converts a multipart upload and returns JSON.
func (s *Server) handleGenerateAPI(w http.ResponseWriter, r *http.Request) {
	req, _, cleanup, err := s.parseConvertRequest(w, r)
	defer cleanup()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.convert(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{
		ID:              result.Artifact.ID,
		FileName:        result.Artifact.Name,
		TableName:       result.Artifact.TableName,
		Mode:            result.Artifact.Mode,
		TotalStatements: result.Total,
		Preview:         result.Preview,
		DownloadURL:     templates.DownloadURL(result.Artifact.Name),
		DurationMS:      result.Duration.Milliseconds(),
	})
}

// handleDownload streams a stored script as an attachment.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	rc, artifact, err := s.service.Open(r.Context(), name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/sql; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Name))
	if artifact.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(artifact.Size, 10))
	}

	if _, err := io.Copy(w, rc); err != nil {
		logging.FromContext(r.Context()).Warn("download interrupted", "artifact", name, "error", err)
	}
}

// handleListScripts returns the most recent scripts as JSON.
func (s *Server) handleListScripts(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", s.cfg.Script.RecentLimit)

	artifacts, err := s.service.Recent(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if artifacts == nil {
		artifacts = []core.Artifact{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scripts": artifacts,
		"count":   len(artifacts),
	})
}

// convert runs the conversion under the configured timeout.
func (s *Server) convert(ctx context.Context, req core.Request) (*core.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Convert.Timeout)
	defer cancel()
	return s.service.Convert(ctx, req)
}

func (s *Server) defaultForm() templates.FormData {
	return templates.FormData{
		Mode:      string(s.cfg.Convert.Mode()),
		BatchSize: strconv.Itoa(s.cfg.Convert.BatchSize),
	}
}

func (s *Server) renderFormError(w http.ResponseWriter, r *http.Request, form templates.FormData, err error) {
	userMsg := core.MapError(err)
	status := statusFor(err)

	logging.FromContext(r.Context()).Info("conversion rejected",
		"status", status,
		"code", userMsg.Code,
		"error", err,
	)
	s.renderIndex(w, r, form, &userMsg, status)
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, form templates.FormData, userMsg *core.UserMessage, status int) {
	ctx := r.Context()

	recent, err := s.service.Recent(ctx, s.cfg.Script.RecentLimit)
	if err != nil {
		// The form is still usable without the history table.
		logging.FromContext(ctx).Warn("list recent scripts", "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	err = templates.Index(templates.IndexData{
		Form:   form,
		Error:  userMsg,
		Recent: recent,
	}).Render(ctx, w)
	if err != nil {
		logging.FromContext(ctx).Error("render index page", "error", err)
	}
}
