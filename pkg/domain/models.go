package domain

import (
	"time"
)

type MessageType string

const (
	MessageTypeReply  MessageType = "reply"
	MessageTypeOpener MessageType = "opener"
	MessageTypeAdvice MessageType = "advice"
)

func (m MessageType) Valid() bool {
	switch m {
	case MessageTypeReply, MessageTypeOpener, MessageTypeAdvice:
		return true
	}
	return false
}

type Tone string

const (
	ToneCheerful      Tone = "cheerful"
	ToneUnderstanding Tone = "understanding"
	ToneDirect        Tone = "direct"
	TonePlayful       Tone = "playful"
	ToneConfident     Tone = "confident"
	ToneRomantic      Tone = "romantic"
	ToneCasual        Tone = "casual"
)

func (t Tone) Valid() bool {
	switch t {
	case ToneCheerful, ToneUnderstanding, ToneDirect, TonePlayful, ToneConfident, ToneRomantic, ToneCasual:
		return true
	}
	return false
}

// Account is the persisted per-user record. Balance is the number of
// generations the user may still perform and is only ever mutated through
// the store's debit/grant operations.
type Account struct {
	ID         string    `json:"id" db:"id"`
	Email      string    `json:"email" db:"email"`
	Balance    int       `json:"token_balance" db:"token_balance"`
	IsPremium  bool      `json:"is_premium" db:"is_premium"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	LastUsedAt time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}

// GenerationRequest is built from client input, validated, turned into a
// provider prompt and then discarded. It is never persisted.
type GenerationRequest struct {
	ConversationContext string      `json:"conversation_context"`
	MessageType         MessageType `json:"message_type"`
	Tone                Tone        `json:"tone,omitempty"`
	BioInfo             string      `json:"bio_info,omitempty"`
	Platform            string      `json:"platform,omitempty"`
	AdditionalContext   string      `json:"additional_context,omitempty"`
}

// Validate fails fast, before any network call is made on behalf of the
// request.
func (r GenerationRequest) Validate() error {
	if r.ConversationContext == "" {
		return E(CodeInvalidArgument, "conversation_context is required")
	}
	if !r.MessageType.Valid() {
		return E(CodeInvalidArgument, "message_type must be one of reply, opener, advice")
	}
	if r.Tone != "" && !r.Tone.Valid() {
		return E(CodeInvalidArgument, "unknown tone")
	}
	return nil
}

type GenerationResult struct {
	Text             string `json:"text"`
	ModelUsed        string `json:"model_used"`
	BalanceRemaining int    `json:"balance_remaining"`
}
