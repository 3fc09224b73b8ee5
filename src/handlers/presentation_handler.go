// backend/src/handlers/presentation_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/ssnreport/backend/src/config"
	"github.com/username/ssnreport/backend/src/database"
	"github.com/username/ssnreport/backend/src/logger"
	"github.com/username/ssnreport/backend/src/models"
	"github.com/username/ssnreport/backend/src/services"
	"github.com/username/ssnreport/backend/src/ssn"
	"github.com/username/ssnreport/backend/src/utils"
)

type PresentationHandler struct {
	presentationService services.PresentationService
}

func NewPresentationHandler(service services.PresentationService) *PresentationHandler {
	return &PresentationHandler{
		presentationService: service,
	}
}

// presentationID extracts the {id} path value.
func presentationID(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid presentation id %q", idStr)
	}
	return id, nil
}

// sendServiceError maps the service sentinels onto HTTP statuses. Remote
// failures surface as 502 so the caller knows retrying is safe.
func sendServiceError(w http.ResponseWriter, err error) {
	var remoteErr *ssn.RemoteError
	var transportErr *ssn.TransportError
	var authErr *ssn.AuthError

	switch {
	case errors.Is(err, services.ErrPresentationNotFound):
		utils.SendJSONError(w, "Presentation not found", http.StatusNotFound)
	case errors.Is(err, services.ErrPresentationBlocked):
		utils.SendJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrInvalidState):
		utils.SendJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrParsingFailed):
		utils.SendJSONError(w, fmt.Sprintf("Error parsing spreadsheet: %v", err), http.StatusBadRequest)
	case errors.As(err, &remoteErr), errors.As(err, &transportErr), errors.As(err, &authErr):
		utils.SendJSONError(w, fmt.Sprintf("Regulator API call failed: %v", err), http.StatusBadGateway)
	default:
		logger.L.Error("Internal error handling presentation request", "error", err)
		utils.SendJSONError(w, "An internal error occurred. Please try again later.", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("Error encoding JSON response", "error", err)
	}
}

// HandleUpload receives a multipart spreadsheet and loads it into the
// editable version of the (cronograma, kind) identity.
func (h *PresentationHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	cronograma := strings.TrimSpace(r.FormValue("cronograma"))
	deliveryKind := strings.TrimSpace(r.FormValue("tipoEntrega"))
	if cronograma == "" {
		utils.SendJSONError(w, "Field 'cronograma' is required.", http.StatusBadRequest)
		return
	}
	if deliveryKind != models.KindWeekly && deliveryKind != models.KindMonthly {
		utils.SendJSONError(w, fmt.Sprintf("Field 'tipoEntrega' must be %q or %q.", models.KindWeekly, models.KindMonthly), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		logger.L.Warn("Uploaded file header reports size too large", "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB (header check)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	logger.L.Info("Processing upload request", "filename", fileHeader.Filename, "cronograma", cronograma, "tipoEntrega", deliveryKind)
	outcome, err := h.presentationService.ProcessUpload(file, cronograma, deliveryKind)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// HandleSubmit posts the loaded presentation to the regulator.
func (h *PresentationHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := presentationID(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	presentation, err := h.presentationService.Submit(r.Context(), id)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, presentation)
}

// HandleConfirm closes a submitted delivery with the regulator.
func (h *PresentationHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	id, err := presentationID(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	presentation, err := h.presentationService.Confirm(r.Context(), id)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, presentation)
}

// HandleRequestRectification asks the regulator to reopen a submitted
// delivery. The optional reason travels in the JSON body.
func (h *PresentationHandler) HandleRequestRectification(w http.ResponseWriter, r *http.Request) {
	id, err := presentationID(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var body struct {
		Reason string `json:"motivo"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			utils.SendJSONError(w, "Invalid JSON request body.", http.StatusBadRequest)
			return
		}
	}

	presentation, err := h.presentationService.RequestRectification(r.Context(), id, body.Reason)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, presentation)
}

// HandleOpenVersion derives a fresh version from a granted rectification.
func (h *PresentationHandler) HandleOpenVersion(w http.ResponseWriter, r *http.Request) {
	id, err := presentationID(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	presentation, err := h.presentationService.OpenRectifiedVersion(id)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, presentation)
}

// HandleGetPresentation returns a single presentation.
func (h *PresentationHandler) HandleGetPresentation(w http.ResponseWriter, r *http.Request) {
	id, err := presentationID(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	presentation, err := h.presentationService.GetPresentation(id)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, presentation)
}

// HandleGetRecords returns the stored rows of a presentation plus the row
// rejections recorded at upload time.
func (h *PresentationHandler) HandleGetRecords(w http.ResponseWriter, r *http.Request) {
	id, err := presentationID(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	records, err := h.presentationService.GetRecords(id)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleListPresentations returns every presentation of the company with
// ETag support so the frontend can poll cheaply.
func (h *PresentationHandler) HandleListPresentations(w http.ResponseWriter, r *http.Request) {
	presentations, err := h.presentationService.ListPresentations()
	if err != nil {
		sendServiceError(w, err)
		return
	}
	if presentations == nil {
		presentations = []*models.Presentation{}
	}

	currentETag, etagErr := utils.GenerateETag(presentations)
	if etagErr != nil {
		logger.L.Error("Failed to generate ETag for presentation list", "error", etagErr)
	}

	w.Header().Set("Cache-Control", "no-cache, private")
	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		clientETag := r.Header.Get("If-None-Match")
		for _, cETag := range strings.Split(clientETag, ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				logger.L.Debug("ETag match for presentation list", "etag", currentETag)
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	writeJSON(w, http.StatusOK, presentations)
}

// HandleListPollerRuns returns the recent rectification-poller audit records.
func (h *PresentationHandler) HandleListPollerRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 || parsed > 500 {
			utils.SendJSONError(w, "Query parameter 'limit' must be an integer between 1 and 500.", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := models.ListPollerRuns(database.DB, limit)
	if err != nil {
		logger.L.Error("Failed to list poller runs", "error", err)
		utils.SendJSONError(w, "An internal error occurred. Please try again later.", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []models.PollerRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}
