package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/paperbase/paperbase/internal/kb"
	"github.com/paperbase/paperbase/internal/markdown"
)

// maxBodySize caps request bodies. Saved knowledge is paper-sized text,
// not file uploads.
const maxBodySize = 2 << 20

// knowledgeHandler serves the knowledge base endpoints.
type knowledgeHandler struct {
	service *kb.Service
	logger  *slog.Logger
}

type queryRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode,omitempty"`
}

// query handles POST /api/v1/query.
func (h *knowledgeHandler) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.Query(r.Context(), req.Query, req.Mode)
	switch {
	case errors.Is(err, kb.ErrEmptyQuery), errors.Is(err, kb.ErrInvalidMode):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	case errors.Is(err, kb.ErrGraphUnavailable):
		writeError(w, http.StatusBadGateway, "backend_unavailable", "knowledge graph unavailable")
		return
	case err != nil:
		h.logger.Error("query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query_failed", "query failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type saveRequest struct {
	Text     string `json:"text"`
	Team     string `json:"team,omitempty"`
	Feature  string `json:"feature,omitempty"`
	Kind     string `json:"kind,omitempty"`
	SourceID string `json:"source_id,omitempty"`
}

// save handles POST /api/v1/knowledge.
func (h *knowledgeHandler) save(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.Save(r.Context(), kb.SaveRequest{
		Text:     req.Text,
		Team:     req.Team,
		Feature:  req.Feature,
		Kind:     req.Kind,
		SourceID: req.SourceID,
	})
	switch {
	case errors.Is(err, kb.ErrEmptyText),
		errors.Is(err, kb.ErrInvalidKind),
		errors.Is(err, markdown.ErrInvalidFeature):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	case errors.Is(err, kb.ErrGraphUnavailable):
		writeError(w, http.StatusBadGateway, "backend_unavailable", "knowledge graph unavailable")
		return
	case err != nil:
		h.logger.Error("save failed", "error", err)
		writeError(w, http.StatusInternalServerError, "save_failed", "save failed")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// listFeatures handles GET /api/v1/features.
func (h *knowledgeHandler) listFeatures(w http.ResponseWriter, r *http.Request) {
	features, err := h.service.ListFeatures()
	if err != nil {
		h.logger.Error("listing features failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "listing features failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"features": features})
}

type markdownResponse struct {
	Feature string `json:"feature"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// getMarkdown handles GET /api/v1/markdown?feature=...&kind=...
func (h *knowledgeHandler) getMarkdown(w http.ResponseWriter, r *http.Request) {
	feature := r.URL.Query().Get("feature")
	kind := r.URL.Query().Get("kind")

	content, err := h.service.GetMarkdown(feature, kind)
	switch {
	case errors.Is(err, kb.ErrInvalidKind):
		writeError(w, http.StatusBadRequest, "invalid_kind", err.Error())
		return
	case errors.Is(err, markdown.ErrInvalidFeature):
		writeError(w, http.StatusBadRequest, "invalid_feature", err.Error())
		return
	case errors.Is(err, markdown.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "markdown knowledge not found")
		return
	case err != nil:
		h.logger.Error("reading markdown failed", "error", err)
		writeError(w, http.StatusInternalServerError, "read_failed", "reading markdown failed")
		return
	}
	writeJSON(w, http.StatusOK, markdownResponse{Feature: feature, Kind: kind, Content: content})
}

type saveMarkdownRequest struct {
	Feature  string `json:"feature"`
	Kind     string `json:"kind"`
	SourceID string `json:"source_id,omitempty"`
	Content  string `json:"content"`
}

// saveMarkdown handles POST /api/v1/markdown.
func (h *knowledgeHandler) saveMarkdown(w http.ResponseWriter, r *http.Request) {
	var req saveMarkdownRequest
	if !decodeBody(w, r, &req) {
		return
	}

	path, err := h.service.SaveMarkdown(req.Feature, req.Kind, req.SourceID, req.Content)
	switch {
	case errors.Is(err, kb.ErrInvalidKind),
		errors.Is(err, markdown.ErrInvalidFeature),
		errors.Is(err, markdown.ErrEmptyContent):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	case err != nil:
		h.logger.Error("saving markdown failed", "error", err)
		writeError(w, http.StatusInternalServerError, "save_failed", "saving markdown failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

// deleteMarkdown handles DELETE /api/v1/markdown?feature=...&kind=...
func (h *knowledgeHandler) deleteMarkdown(w http.ResponseWriter, r *http.Request) {
	feature := r.URL.Query().Get("feature")
	kind := r.URL.Query().Get("kind")

	err := h.service.DeleteMarkdown(feature, kind)
	switch {
	case errors.Is(err, kb.ErrInvalidKind), errors.Is(err, markdown.ErrInvalidFeature):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	case errors.Is(err, markdown.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "markdown knowledge not found")
		return
	case err != nil:
		h.logger.Error("deleting markdown failed", "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "deleting markdown failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getFeaturesList handles GET /api/v1/features-list.
func (h *knowledgeHandler) getFeaturesList(w http.ResponseWriter, r *http.Request) {
	content, err := h.service.GetFeaturesList()
	if err != nil {
		h.logger.Error("reading features list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "read_failed", "reading features list failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

type updateFeaturesRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parent      string `json:"parent,omitempty"`
}

// updateFeaturesList handles POST /api/v1/features-list.
func (h *knowledgeHandler) updateFeaturesList(w http.ResponseWriter, r *http.Request) {
	var req updateFeaturesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	diagram, err := h.service.UpdateFeaturesList(r.Context(), req.Name, req.Description, req.Parent)
	switch {
	case errors.Is(err, kb.ErrEmptyFeature), errors.Is(err, kb.ErrEmptyDescription):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	case err != nil:
		h.logger.Error("updating features list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "update_failed", "updating features list failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": diagram})
}

// decodeBody decodes a JSON request body, writing a 400 response and
// returning false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return false
	}
	return true
}
