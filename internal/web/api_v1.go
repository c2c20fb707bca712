package web

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rook-computer/inkpanel/internal/app"
	"github.com/rook-computer/inkpanel/internal/atomicfile"
	"github.com/rook-computer/inkpanel/internal/config"
	"github.com/rook-computer/inkpanel/internal/photo"
	"github.com/rook-computer/inkpanel/internal/plugins"
	"github.com/rook-computer/inkpanel/internal/render/layout"
)

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type configResponse struct {
	OK       bool            `json:"ok"`
	Warnings []string        `json:"warnings"`
	Document config.Document `json:"document"`
}

type tileResponse struct {
	Index  int      `json:"index"`
	Plugin string   `json:"plugin"`
	Status string   `json:"status"`
	Rect   rectJSON `json:"rect"`
	Error  string   `json:"error,omitempty"`
}

// rectJSON is an inclusive tile rectangle in canvas pixels.
type rectJSON struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

type previewResponse struct {
	Image string         `json:"image"`
	Tiles []tileResponse `json:"tiles"`
}

type applyResponse struct {
	JobID string `json:"jobId"`
}

type applyConflict struct {
	apiError
	JobID string `json:"jobId"`
}

type pluginsResponse struct {
	Names        []string                  `json:"names"`
	DisplayNames map[string]string         `json:"displayNames"`
	Defaults     map[string]map[string]any `json:"defaults"`
	Schemas      map[string]plugins.Schema `json:"schemas"`
}

type presetResponse struct {
	Name string `json:"name"`
}

func apiV1Router(deps APIV1Deps) http.Handler {
	deps = deps.withDefaults()
	h := &apiHandlers{deps: deps}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, okResponse{OK: true})
	})
	r.Get("/config", h.getConfig)
	r.Post("/config", h.postConfig)
	r.Post("/preview", h.postPreview)
	r.Get("/preview.png", h.getPreviewPNG)
	r.Post("/apply", h.postApply)
	r.Get("/apply/status", h.getApplyStatus)
	r.Get("/apply/stream", h.streamApplyStatus)
	r.Get("/plugins", h.getPlugins)
	r.Get("/presets", h.listPresets)
	r.Post("/presets/{name}", h.savePreset)
	r.Delete("/presets/{name}", h.deletePreset)
	r.Post("/presets/{name}/activate", h.activatePreset)
	r.Get("/photos", h.listPhotos)
	r.Post("/photos/{name}", h.uploadPhoto)
	r.Get("/safe-area", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.SafeArea)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusNotFound, "not_found", "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}

type apiHandlers struct {
	deps APIV1Deps
}

func (h *apiHandlers) getConfig(w http.ResponseWriter, r *http.Request) {
	doc, err := h.deps.Dashboard.Document()
	if err != nil {
		// The store already fell back to the default document.
		h.deps.Logger.Errorf("web", "load document: %v", err)
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *apiHandlers) postConfig(w http.ResponseWriter, r *http.Request) {
	doc, ok := decodeDocument(w, r, false)
	if !ok {
		return
	}
	warnings, err := h.deps.Dashboard.SaveDocument(*doc)
	if err != nil {
		writeDocumentError(w, err, "save_failed")
		return
	}
	if warnings == nil {
		warnings = []string{}
	}
	stored, _ := h.deps.Dashboard.Document()
	writeJSON(w, http.StatusOK, configResponse{OK: true, Warnings: warnings, Document: stored})
}

func (h *apiHandlers) postPreview(w http.ResponseWriter, r *http.Request) {
	doc, ok := decodeDocument(w, r, true)
	if !ok {
		return
	}
	canvas, err := h.deps.Dashboard.Preview(r.Context(), doc)
	if err != nil {
		writeDocumentError(w, err, "preview_failed")
		return
	}
	data, err := canvas.PNG()
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, "encode_failed", err.Error())
		return
	}
	resp := previewResponse{
		Image: "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
		Tiles: make([]tileResponse, 0, len(canvas.Tiles)),
	}
	for _, t := range canvas.Tiles {
		tr := tileResponse{Index: t.Index, Plugin: t.Plugin, Status: t.Status.String(),
			Rect: rectJSON{Left: t.Rect.Left, Top: t.Rect.Top, Right: t.Rect.Right, Bottom: t.Rect.Bottom}}
		if t.Err != nil {
			tr.Error = t.Err.Error()
		}
		resp.Tiles = append(resp.Tiles, tr)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *apiHandlers) getPreviewPNG(w http.ResponseWriter, r *http.Request) {
	canvas, err := h.deps.Dashboard.Preview(r.Context(), nil)
	if err != nil {
		writeDocumentError(w, err, "preview_failed")
		return
	}
	var buf bytes.Buffer
	if err := canvas.EncodePNG(&buf); err != nil {
		writeAPIError(w, http.StatusInternalServerError, "encode_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (h *apiHandlers) postApply(w http.ResponseWriter, r *http.Request) {
	doc, ok := decodeDocument(w, r, true)
	if !ok {
		return
	}
	id, err := h.deps.Dashboard.Apply(r.Context(), doc)
	if errors.Is(err, app.ErrApplyRunning) {
		writeJSON(w, http.StatusConflict, applyConflict{
			apiError: apiError{Error: "apply_running", Message: "a refresh is already running"},
			JobID:    id,
		})
		return
	}
	if err != nil {
		writeDocumentError(w, err, "apply_failed")
		return
	}
	h.deps.Logger.Infof("web", "apply job %s accepted", id)
	writeJSON(w, http.StatusAccepted, applyResponse{JobID: id})
}

func (h *apiHandlers) getApplyStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Status.Snapshot())
}

func (h *apiHandlers) getPlugins(w http.ResponseWriter, r *http.Request) {
	c := h.deps.Catalog
	writeJSON(w, http.StatusOK, pluginsResponse{
		Names:        c.Names(),
		DisplayNames: c.DisplayNames(),
		Defaults:     c.Defaults(),
		Schemas:      c.Schemas(),
	})
}

func (h *apiHandlers) listPresets(w http.ResponseWriter, r *http.Request) {
	names, err := h.deps.Presets.Presets()
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// savePreset stores the posted document, or the live one for an empty body.
func (h *apiHandlers) savePreset(w http.ResponseWriter, r *http.Request) {
	doc, ok := decodeDocument(w, r, true)
	if !ok {
		return
	}
	if doc == nil {
		current, _ := h.deps.Dashboard.Document()
		doc = &current
	}
	if err := doc.ValidateFor(h.deps.SafeArea.Margins); err != nil {
		writeDocumentError(w, err, "save_failed")
		return
	}
	name, err := h.deps.Presets.SavePreset(chi.URLParam(r, "name"), *doc)
	if err != nil {
		writePresetError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, presetResponse{Name: name})
}

func (h *apiHandlers) deletePreset(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Presets.DeletePreset(chi.URLParam(r, "name")); err != nil {
		writePresetError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *apiHandlers) activatePreset(w http.ResponseWriter, r *http.Request) {
	doc, err := h.deps.Dashboard.ActivatePreset(chi.URLParam(r, "name"))
	if err != nil {
		writePresetError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *apiHandlers) listPhotos(w http.ResponseWriter, r *http.Request) {
	names, err := photo.List(h.deps.PhotosDir)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *apiHandlers) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	if h.deps.PhotosDir == "" {
		writeAPIError(w, http.StatusNotImplemented, "not_implemented", "photo uploads not configured")
		return
	}
	name := chi.URLParam(r, "name")
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || !photo.IsPhotoName(name) {
		writeAPIError(w, http.StatusBadRequest, "invalid_name", "name must be a .png, .jpg, .jpeg or .bmp file name")
		return
	}
	if err := requireContentLength(r); err != nil {
		writeAPIError(w, http.StatusLengthRequired, "length_required", err.Error())
		return
	}
	if r.ContentLength > h.deps.MaxPhotoBytes {
		writeAPIError(w, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("photos are limited to %d bytes", h.deps.MaxPhotoBytes))
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.deps.MaxPhotoBytes))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "upload_failed", err.Error())
		return
	}
	if int64(len(data)) != r.ContentLength {
		writeAPIError(w, http.StatusBadRequest, "upload_failed", fmt.Sprintf("received %d of %d bytes", len(data), r.ContentLength))
		return
	}
	if err := atomicfile.Write(filepath.Join(h.deps.PhotosDir, name), data, 0o644); err != nil {
		writeAPIError(w, http.StatusInternalServerError, "upload_failed", err.Error())
		return
	}
	h.deps.Logger.Infof("web", "photo %s uploaded (%d bytes)", name, len(data))
	writeJSON(w, http.StatusCreated, presetResponse{Name: name})
}

// decodeDocument reads a document body. With optional set, an empty body
// yields nil; the caller then uses the stored document.
func decodeDocument(w http.ResponseWriter, r *http.Request, optional bool) (*config.Document, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return nil, false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if optional {
			return nil, true
		}
		writeAPIError(w, http.StatusBadRequest, "invalid_body", "a document is required")
		return nil, false
	}
	var doc config.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return nil, false
	}
	return &doc, true
}

func writeDocumentError(w http.ResponseWriter, err error, code string) {
	switch {
	case errors.Is(err, config.ErrInvalidDocument), errors.Is(err, layout.ErrInvalidLayout):
		writeAPIError(w, http.StatusBadRequest, "invalid_document", err.Error())
	case errors.Is(err, errNotConfigured):
		writeAPIError(w, http.StatusNotImplemented, "not_implemented", err.Error())
	default:
		writeAPIError(w, http.StatusInternalServerError, code, err.Error())
	}
}

func writePresetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, config.ErrPresetNotFound):
		writeAPIError(w, http.StatusNotFound, "preset_not_found", err.Error())
	case errors.Is(err, config.ErrInvalidName):
		writeAPIError(w, http.StatusBadRequest, "invalid_name", err.Error())
	default:
		writeDocumentError(w, err, "preset_failed")
	}
}

func requireContentLength(r *http.Request) error {
	// Reject chunked/unknown length so uploads can be bounded up front.
	if r.ContentLength <= 0 {
		return errLengthRequired
	}
	return nil
}

var errLengthRequired = errors.New("content-length header is required")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: code, Message: message})
}
