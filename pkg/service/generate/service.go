// Package generate implements the token-metered generation backend: it
// validates requests, calls the text-generation provider (with a one-shot
// fallback model), and debits the caller's balance atomically, exactly once
// per delivered generation.
package generate

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/atomic"

	"github.com/alexbrdn/wingmate-api/pkg/domain"
	"github.com/alexbrdn/wingmate-api/pkg/repository/accounts"
)

// Upper bound on a single provider call, so a hung upstream cannot hold a
// request open indefinitely.
const providerCallTimeout = 90 * time.Second

// Config carries the model choices and sampling policy. It can be swapped
// at runtime through UpdateConfig.
type Config struct {
	PrimaryModel  string
	FallbackModel string
	Sampling      Sampling
}

func DefaultConfig() Config {
	return Config{
		PrimaryModel:  openai.GPT4oMini,
		FallbackModel: openai.GPT3Dot5Turbo,
		Sampling: Sampling{
			MaxTokens:        800,
			Temperature:      0.8,
			TopP:             0.9,
			FrequencyPenalty: 0.3,
			PresencePenalty:  0.3,
		},
	}
}

// Stats is a snapshot of the service counters.
type Stats struct {
	Generations  int64 `json:"generations"`
	Fallbacks    int64 `json:"fallbacks"`
	DebitsDenied int64 `json:"debits_denied"`
}

type Service struct {
	provider Provider
	accounts accounts.Store
	log      zerolog.Logger

	cfg atomic.Pointer[Config]

	generations  atomic.Int64
	fallbacks    atomic.Int64
	debitsDenied atomic.Int64
}

func NewService(provider Provider, store accounts.Store, log zerolog.Logger) *Service {
	s := &Service{
		provider: provider,
		accounts: store,
		log:      log,
	}

	cfg := DefaultConfig()
	s.cfg.Store(&cfg)
	return s
}

// UpdateConfig replaces the model/sampling policy for subsequent requests.
// In-flight requests keep the config they loaded.
func (s *Service) UpdateConfig(cfg Config) {
	def := DefaultConfig()
	if cfg.PrimaryModel == "" {
		cfg.PrimaryModel = def.PrimaryModel
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = def.FallbackModel
	}
	if cfg.Sampling.MaxTokens == 0 {
		cfg.Sampling.MaxTokens = def.Sampling.MaxTokens
	}
	s.cfg.Store(&cfg)
}

func (s *Service) Config() Config {
	return *s.cfg.Load()
}

func (s *Service) Stats() Stats {
	return Stats{
		Generations:  s.generations.Load(),
		Fallbacks:    s.fallbacks.Load(),
		DebitsDenied: s.debitsDenied.Load(),
	}
}

// Generate runs one metered generation for userID. The flow is: validate,
// advisory balance check, provider call (with fallback), transactional
// debit, result. No in-process lock is held across the provider call; the
// store's debit transaction is the sole serialization point, so the account
// is never billed for an undelivered generation and never delivered to
// without being billed.
func (s *Service) Generate(ctx context.Context, userID string, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	acct, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	// Advisory only: it avoids a wasted provider call when the balance is
	// already exhausted, but the authoritative check happens inside the
	// debit transaction below.
	if acct.Balance <= 0 {
		s.debitsDenied.Inc()
		return nil, domain.E(domain.CodeFailedPrecondition, "insufficient balance")
	}

	cfg := s.Config()
	prompt := BuildPrompt(req)

	text, modelUsed, err := s.complete(ctx, cfg, prompt)
	if err != nil {
		return nil, err
	}

	// The debit is the last thing that happens before the result is
	// returned. A commit failure re-surfaces as an error rather than a
	// silently undebited success.
	newBalance, err := s.accounts.TryDebit(ctx, userID)
	if err != nil {
		if errors.Is(err, accounts.ErrInsufficientBalance) {
			// Lost the race to a concurrent request; the generated text is
			// discarded rather than delivered unbilled.
			s.debitsDenied.Inc()
			s.log.Warn().Str("user_id", userID).Msg("debit lost race to concurrent request")
		}
		return nil, mapStoreError(err)
	}

	s.generations.Inc()
	s.log.Info().
		Str("user_id", userID).
		Str("model", modelUsed).
		Int("balance_remaining", newBalance).
		Msg("generation delivered")

	return &domain.GenerationResult{
		Text:             text,
		ModelUsed:        modelUsed,
		BalanceRemaining: newBalance,
	}, nil
}

// complete invokes the primary model and, only when the failure is a
// model-access error, retries once against the fallback model with the
// identical prompt. Transient failures are surfaced directly: retrying a
// different model is the only retry known to change the outcome.
func (s *Service) complete(ctx context.Context, cfg Config, prompt Prompt) (text, modelUsed string, err error) {
	callCtx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	text, err = s.provider.Complete(callCtx, cfg.PrimaryModel, prompt, cfg.Sampling)
	if err == nil {
		return text, cfg.PrimaryModel, nil
	}

	if !IsModelAccessError(err) {
		s.log.Error().Err(err).Str("model", cfg.PrimaryModel).Msg("provider call failed")
		return "", "", domain.Wrap(domain.CodeInternal, "error generating message", err)
	}

	s.log.Warn().Err(err).
		Str("model", cfg.PrimaryModel).
		Str("fallback", cfg.FallbackModel).
		Msg("primary model unavailable, trying fallback")
	s.fallbacks.Inc()

	text, fallbackErr := s.provider.Complete(callCtx, cfg.FallbackModel, prompt, cfg.Sampling)
	if fallbackErr != nil {
		s.log.Error().Err(fallbackErr).Str("model", cfg.FallbackModel).Msg("fallback model failed")
		return "", "", domain.Wrap(domain.CodeInternal, "error generating message with both models", fallbackErr)
	}

	return text, cfg.FallbackModel, nil
}

// Debit decrements the caller's balance by one with the same non-negative
// guard and transaction discipline as Generate, without a provider call.
// Used by diagnostic and manual flows.
func (s *Service) Debit(ctx context.Context, userID string) (int, error) {
	newBalance, err := s.accounts.TryDebit(ctx, userID)
	if err != nil {
		if errors.Is(err, accounts.ErrInsufficientBalance) {
			s.debitsDenied.Inc()
		}
		return 0, mapStoreError(err)
	}
	return newBalance, nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, accounts.ErrAccountNotFound):
		return domain.Wrap(domain.CodeNotFound, "user not found", err)
	case errors.Is(err, accounts.ErrInsufficientBalance):
		return domain.Wrap(domain.CodeFailedPrecondition, "insufficient balance", err)
	default:
		return domain.Wrap(domain.CodeInternal, "balance store failure", err)
	}
}
