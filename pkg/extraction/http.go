package extraction

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/phenoxtract/pkg/common/logger"
)

// HTTPHandler exposes extraction runs under the router it is registered on.
type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	runs := router.PathPrefix("/extractions").Subrouter()
	runs.HandleFunc("", h.submit).Methods(http.MethodPost)
	runs.HandleFunc("/{id}", h.status).Methods(http.MethodGet)
}

func (h *HTTPHandler) submit(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	if h.maxBody > 0 {
		body = http.MaxBytesReader(w, body, h.maxBody)
	}
	var req RequestWrapper
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid extraction payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Submit(r.Context(), req.ToModel())
	switch {
	case IsRequestError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		serverError(w, err, "failed to submit extraction")
	default:
		w.Header().Set("Location", r.URL.Path+"/"+resp.ID)
		writeJSON(w, http.StatusAccepted, resp)
	}
}

func (h *HTTPHandler) status(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Status(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "extraction not found", http.StatusNotFound)
		return
	}
	if err != nil {
		serverError(w, err, "failed to fetch extraction status")
		return
	}

	view, err := run.View()
	if err != nil {
		serverError(w, err, "failed to render extraction status")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Warn("failed to write response")
	}
}

func serverError(w http.ResponseWriter, err error, msg string) {
	logger.Log.WithError(err).Error(msg)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
