package serials_api

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BearBump/RIDBox/internal/models"
	"github.com/BearBump/RIDBox/internal/services/resolver"
	"github.com/go-chi/chi/v5"
)

// SwaggerJSON documents the routes mounted by Register.
//
//go:embed swagger.json
var SwaggerJSON []byte

type Service interface {
	Lookup(ctx context.Context, serial string, opts resolver.Options) (models.LookupResult, error)
	Stats(ctx context.Context) (models.StoreStats, error)
}

type SerialsAPI struct {
	svc Service
}

func New(svc Service) *SerialsAPI {
	return &SerialsAPI{svc: svc}
}

func (a *SerialsAPI) Register(r chi.Router) {
	r.Get("/v1/serials/{serial}", a.GetSerial)
	r.Get("/v1/stats", a.GetStats)
}

// GetSerial resolves one serial. A miss is a 200 with found=false.
func (a *SerialsAPI) GetSerial(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	allowAPI, err := boolParam(q.Get("api"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "api: "+err.Error())
		return
	}
	cacheResult, err := boolParam(q.Get("cache"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cache: "+err.Error())
		return
	}

	res, err := a.svc.Lookup(r.Context(), chi.URLParam(r, "serial"), resolver.Options{
		AllowRemoteFallback: allowAPI,
		CacheRemoteResult:   cacheResult,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *SerialsAPI) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func boolParam(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, models.ErrRemoteUnavailable), errors.Is(err, models.ErrMalformedPayload):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		slog.Error("request failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
