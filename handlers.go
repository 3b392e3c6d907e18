package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const defaultSearchLimit = 10

// server holds the HTTP surface over the search and admin operations.
type server struct {
	store    Store
	searcher *Searcher
	admin    *TokenAdmin
	packs    *PackPlanner
	suggest  *suggestIndex
	validate *validator.Validate
	log      *zap.SugaredLogger
}

func newServer(store Store, suggest *suggestIndex, log *zap.SugaredLogger) *server {
	searcher := NewSearcher(store)
	admin := NewTokenAdmin(store)
	return &server{
		store:    store,
		searcher: searcher,
		admin:    admin,
		packs:    NewPackPlanner(store, searcher, admin),
		suggest:  suggest,
		validate: validator.New(),
		log:      log,
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/search", s.handleSearch)
	r.Get("/suggest", s.handleSuggest)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/tokens", s.handleAddToken)
		r.Get("/tokens", s.handleListTokens)
		r.Post("/aliases", s.handleAddAlias)
		r.Delete("/aliases/{aliasID}", s.handleDeactivateAlias)
		r.Get("/packs", s.handleListPacks)
		r.Post("/packs/{packID}/plan", s.handlePlanPack)
		r.Post("/packs/{packID}/apply", s.handleApplyPack)
		r.Get("/stats", s.handleStats)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"ok": false, "error": msg})
}

// writeFailure maps the error taxonomy onto status codes: validation is the
// caller's fault, unavailable means the backing store is down. Anything else
// is a bug and logged as such.
func (s *server) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case IsUnavailable(err):
		s.log.Errorw("backing store unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.Errorw("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	kind := r.URL.Query().Get("kind")

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	results, err := s.searcher.Search(r.Context(), q, kind, limit)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	normKind, _ := parseKind(kind)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"q":       q,
		"kind":    normKind,
		"results": results,
		"count":   len(results),
	})
}

func (s *server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	kind, err := parseKind(r.URL.Query().Get("kind"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= minSearchLimit && n <= maxSearchLimit {
			limit = n
		}
	}

	// Sub-two-character queries are a cheap no-op, same as the search box
	// behaves client side.
	if len(normalizeToken(q)) < 2 {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok": true, "q": q, "results": []Suggestion{},
		})
		return
	}

	suggestions, err := s.suggest.Suggest(q, kind, limit)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok": true, "q": q, "results": suggestions,
	})
}

type addTokenRequest struct {
	TokenRaw          string `json:"token_raw" validate:"required"`
	TargetSubstanceID string `json:"target_substance_id" validate:"required"`
}

func (s *server) handleAddToken(w http.ResponseWriter, r *http.Request) {
	var req addTokenRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.admin.AddToken(r.Context(), req.TokenRaw, req.TargetSubstanceID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	status := http.StatusOK
	if result.Status == StatusConflict {
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}

func (s *server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	substanceID := r.URL.Query().Get("substance_id")
	if substanceID == "" {
		writeError(w, http.StatusBadRequest, "substance_id is required")
		return
	}

	tokens, err := s.store.TokensForSubstance(r.Context(), substanceID)
	if err != nil {
		s.writeFailure(w, unavailable("token list", err))
		return
	}
	if tokens == nil {
		tokens = []Token{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok": true, "substance_id": substanceID, "tokens": tokens,
	})
}

type addAliasRequest struct {
	BrandName   string `json:"brand_name" validate:"required"`
	SubstanceID string `json:"substance_id" validate:"required"`
	Notes       string `json:"notes"`
}

func (s *server) handleAddAlias(w http.ResponseWriter, r *http.Request) {
	var req addAliasRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.admin.AddAlias(r.Context(), req.BrandName, req.SubstanceID, req.Notes)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	status := http.StatusOK
	if result.Status == StatusConflict {
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}

func (s *server) handleDeactivateAlias(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.DeactivateAlias(r.Context(), chi.URLParam(r, "aliasID")); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (s *server) handleListPacks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok": true, "packs": BuildPresetPacks(),
	})
}

func (s *server) handlePlanPack(w http.ResponseWriter, r *http.Request) {
	pack, ok := FindPresetPack(chi.URLParam(r, "packID"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pack")
		return
	}

	plan, err := s.packs.Plan(r.Context(), pack)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok": true, "pack_id": pack.ID, "plan": plan,
	})
}

type applyPackRequest struct {
	Confirm bool `json:"confirm" validate:"required"`
}

func (s *server) handleApplyPack(w http.ResponseWriter, r *http.Request) {
	pack, ok := FindPresetPack(chi.URLParam(r, "packID"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pack")
		return
	}

	// Apply requires an explicit confirmation in the body.
	var req applyPackRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	plan, err := s.packs.Plan(r.Context(), pack)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	report, err := s.packs.Apply(r.Context(), plan)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok": true, "pack_id": pack.ID, "report": report,
	})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeFailure(w, unavailable("coverage stats", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "stats": stats})
}

// decodeBody decodes and validates a JSON request body, writing the 400 itself
// when the body is unusable.
func (s *server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
