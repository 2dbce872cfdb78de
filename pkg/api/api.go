package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/alexbrdn/wingmate-api/pkg/auth"
	"github.com/alexbrdn/wingmate-api/pkg/domain"
	"github.com/alexbrdn/wingmate-api/pkg/repository/accounts"
	"github.com/alexbrdn/wingmate-api/pkg/service/generate"
)

type Handler struct {
	service  *generate.Service
	accounts accounts.Store
	verifier auth.Verifier

	adminToken      string
	startingBalance int
	log             zerolog.Logger
}

type Option func(*Handler)

// WithAdminToken enables the /admin routes, guarded by the given shared
// secret. Without it the admin routes reject every request.
func WithAdminToken(token string) Option {
	return func(h *Handler) { h.adminToken = token }
}

// WithStartingBalance sets the token balance granted to newly created
// accounts.
func WithStartingBalance(n int) Option {
	return func(h *Handler) { h.startingBalance = n }
}

func NewHandler(service *generate.Service, store accounts.Store, verifier auth.Verifier, log zerolog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:         service,
		accounts:        store,
		verifier:        verifier,
		startingBalance: 10,
		log:             log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/healthz", h.HandleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Post("/auth", h.HandleAuth)
			r.Post("/generate", h.HandleGenerate)
			r.Post("/debit", h.HandleDebit)
			r.Get("/me", h.HandleMe)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)

			r.Post("/grant", h.HandleGrant)
			r.Post("/config", h.HandleUpdateConfig)
		})
	})

	return r
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"stats":  h.service.Stats(),
	})
}

func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())

	var req domain.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, domain.CodeInvalidArgument, "invalid request body")
		return
	}

	result, err := h.service.Generate(r.Context(), ident.UserID, req)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleDebit(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())

	newBalance, err := h.service.Debit(r.Context(), ident.UserID)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]int{"new_balance": newBalance})
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())

	acct, err := h.accounts.Get(r.Context(), ident.UserID)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			respondWithError(w, http.StatusNotFound, domain.CodeNotFound, "user not found")
			return
		}
		h.respondWithDomainError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, acct)
}

// HandleAuth resolves the verified identity to an account, creating one with
// the starting balance on first sight.
func (h *Handler) HandleAuth(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())

	acct, err := h.accounts.Get(r.Context(), ident.UserID)
	if err == nil {
		respondWithJSON(w, http.StatusOK, acct)
		return
	}
	if !errors.Is(err, accounts.ErrAccountNotFound) {
		h.respondWithDomainError(w, r, err)
		return
	}

	acct, err = h.accounts.Create(r.Context(), ident.UserID, ident.Email, h.startingBalance)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountExists) {
			// Raced with a concurrent first request for the same user.
			if acct, err = h.accounts.Get(r.Context(), ident.UserID); err == nil {
				respondWithJSON(w, http.StatusOK, acct)
				return
			}
		}
		h.log.Error().Err(err).Str("user_id", ident.UserID).Msg("failed to create account")
		respondWithError(w, http.StatusInternalServerError, domain.CodeInternal, "failed to create account")
		return
	}

	respondWithJSON(w, http.StatusCreated, acct)
}

type GrantRequest struct {
	UserID  string `json:"user_id"`
	Tokens  int    `json:"tokens"`
	Premium *bool  `json:"premium,omitempty"`
}

func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, domain.CodeInvalidArgument, "invalid request body")
		return
	}

	if req.UserID == "" {
		respondWithError(w, http.StatusBadRequest, domain.CodeInvalidArgument, "user_id is required")
		return
	}

	newBalance := 0
	if req.Tokens != 0 {
		var err error
		newBalance, err = h.accounts.AddTokens(r.Context(), req.UserID, req.Tokens)
		if err != nil {
			if errors.Is(err, accounts.ErrAccountNotFound) {
				respondWithError(w, http.StatusNotFound, domain.CodeNotFound, "user not found")
				return
			}
			h.respondWithDomainError(w, r, err)
			return
		}
	}

	if req.Premium != nil {
		if err := h.accounts.SetPremium(r.Context(), req.UserID, *req.Premium); err != nil {
			if errors.Is(err, accounts.ErrAccountNotFound) {
				respondWithError(w, http.StatusNotFound, domain.CodeNotFound, "user not found")
				return
			}
			h.respondWithDomainError(w, r, err)
			return
		}
	}

	if req.Tokens == 0 {
		acct, err := h.accounts.Get(r.Context(), req.UserID)
		if err != nil {
			if errors.Is(err, accounts.ErrAccountNotFound) {
				respondWithError(w, http.StatusNotFound, domain.CodeNotFound, "user not found")
				return
			}
			h.respondWithDomainError(w, r, err)
			return
		}
		newBalance = acct.Balance
	}

	respondWithJSON(w, http.StatusOK, map[string]int{"new_balance": newBalance})
}

type UpdateConfigRequest struct {
	PrimaryModel     string  `json:"primary_model"`
	FallbackModel    string  `json:"fallback_model"`
	MaxTokens        int     `json:"max_tokens"`
	Temperature      float32 `json:"temperature"`
	TopP             float32 `json:"top_p"`
	FrequencyPenalty float32 `json:"frequency_penalty"`
	PresencePenalty  float32 `json:"presence_penalty"`
}

func (h *Handler) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, domain.CodeInvalidArgument, "invalid request body")
		return
	}

	h.service.UpdateConfig(generate.Config{
		PrimaryModel:  req.PrimaryModel,
		FallbackModel: req.FallbackModel,
		Sampling: generate.Sampling{
			MaxTokens:        req.MaxTokens,
			Temperature:      req.Temperature,
			TopP:             req.TopP,
			FrequencyPenalty: req.FrequencyPenalty,
			PresencePenalty:  req.PresencePenalty,
		},
	})

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "config updated"})
}
