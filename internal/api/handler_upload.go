package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Akansha-Mulchandani/GAIA/internal/client"
	"github.com/Akansha-Mulchandani/GAIA/internal/core"
	"github.com/Akansha-Mulchandani/GAIA/internal/metrics"
)

const (
	maxUploadMemory = 32 << 20
	uploadTimeout   = 60 * time.Second
)

// UploadHandler forwards multipart image uploads to the backend classifiers.
type UploadHandler struct {
	client *client.Client
	logger *slog.Logger
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(c *client.Client, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{client: c, logger: logger}
}

// uploadRoute describes one forwarding endpoint.
type uploadRoute struct {
	endpoint string
	// fallback is the error message when the backend gives no detail.
	fallback func(resp *core.APIError) string
	// shape builds the success envelope from the backend's JSON object.
	shape func(data map[string]any) map[string]any
}

var (
	classifyRoute = uploadRoute{
		endpoint: "/butterfly/classify",
		fallback: func(e *core.APIError) string {
			return "Backend error: " + http.StatusText(e.Status)
		},
		shape: func(data map[string]any) map[string]any {
			out := make(map[string]any, len(data)+1)
			for k, v := range data {
				out[k] = v
			}
			out["success"] = true
			return out
		},
	}

	geminiClassifyRoute = uploadRoute{
		endpoint: "/gemini/classify",
		fallback: func(*core.APIError) string { return "Gemini classify failed" },
		shape: func(data map[string]any) map[string]any {
			return map[string]any{"success": true, "predictions": predictionsOf(data)}
		},
	}

	geminiUpsertRoute = uploadRoute{
		endpoint: "/gemini/classify-upsert",
		fallback: func(*core.APIError) string { return "Failed to classify image" },
		shape: func(data map[string]any) map[string]any {
			return map[string]any{
				"success":     true,
				"predictions": predictionsOf(data),
				"upsert":      data["upsert"],
			}
		},
	}
)

func predictionsOf(data map[string]any) any {
	if p, ok := data["predictions"]; ok && p != nil {
		return p
	}
	return []any{}
}

// Classify handles POST /api/butterfly/classify
func (h *UploadHandler) Classify(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, classifyRoute, nil)
}

// GeminiClassify handles POST /api/gemini/classify
func (h *UploadHandler) GeminiClassify(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, geminiClassifyRoute, nil)
}

// GeminiUpsert handles POST /api/butterfly/gemini?species_hint=
func (h *UploadHandler) GeminiUpsert(w http.ResponseWriter, r *http.Request) {
	var fields map[string]string
	if hint := r.URL.Query().Get("species_hint"); hint != "" {
		fields = map[string]string{"species_hint": hint}
	}
	h.forward(w, r, geminiUpsertRoute, fields)
}

func (h *UploadHandler) forward(w http.ResponseWriter, r *http.Request, route uploadRoute, fields map[string]string) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.logger.Warn("invalid upload form", "endpoint", route.endpoint, "error", err)
		WriteError(w, http.StatusBadRequest, "No file provided")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	body, contentType, err := buildUpload(file, header, fields)
	if err != nil {
		h.logger.Error("failed to build upload", "endpoint", route.endpoint, "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	req := &client.Request{
		Method: http.MethodPost,
		Header: http.Header{"Content-Type": {contentType}},
		Body:   body,
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		req.Header.Set(client.RequestIDHeader, id)
	}

	h.logger.Info("forwarding upload", "endpoint", route.endpoint, "filename", header.Filename, "size", header.Size)
	resp, err := h.client.Execute(r.Context(), route.endpoint, req, uploadTimeout)
	if err != nil {
		h.writeBackendError(w, route, err)
		return
	}
	metrics.UploadsForwarded.WithLabelValues(route.endpoint, strconv.Itoa(resp.Status)).Inc()

	var data map[string]any
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		h.logger.Error("backend returned invalid JSON", "endpoint", route.endpoint, "error", err)
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Success: false,
			Error:   "Failed to forward request to backend: invalid JSON response",
			Status:  http.StatusInternalServerError,
		})
		return
	}
	WriteJSON(w, http.StatusOK, route.shape(data))
}

func (h *UploadHandler) writeBackendError(w http.ResponseWriter, route uploadRoute, err error) {
	var apiErr *core.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != core.KindHTTP {
		metrics.UploadsForwarded.WithLabelValues(route.endpoint, "error").Inc()
		h.logger.Error("failed to forward upload", "endpoint", route.endpoint, "error", err)
		msg := err.Error()
		if apiErr != nil {
			msg = apiErr.Message
		}
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Success: false,
			Error:   "Failed to forward request to backend: " + msg,
			Status:  http.StatusInternalServerError,
		})
		return
	}

	metrics.UploadsForwarded.WithLabelValues(route.endpoint, strconv.Itoa(apiErr.Status)).Inc()
	h.logger.Warn("backend rejected upload", "endpoint", route.endpoint, "status", apiErr.Status, "error", apiErr.Message)

	var raw any
	if err := json.Unmarshal(apiErr.Body, &raw); err != nil {
		raw = map[string]any{"detail": string(apiErr.Body)}
	}
	msg := route.fallback(apiErr)
	if obj, ok := raw.(map[string]any); ok {
		if detail, ok := obj["detail"].(string); ok && detail != "" {
			msg = detail
		}
	}
	WriteJSON(w, apiErr.Status, ErrorResponse{
		Success:  false,
		Error:    msg,
		Status:   apiErr.Status,
		RawError: raw,
	})
}

// buildUpload re-encodes the uploaded file (plus extra fields) as a fresh
// multipart body.
func buildUpload(file multipart.File, header *multipart.FileHeader, fields map[string]string) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, header.Filename))
	ct := header.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	partHeader.Set("Content-Type", ct)

	part, err := mw.CreatePart(partHeader)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("copy file: %w", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
