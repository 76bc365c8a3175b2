package model

import "strings"

// Mode is the classified purpose of a generation request.
type Mode string

const (
	ModeText  Mode = "text"
	ModeImage Mode = "image"
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}

// IsValid checks if the mode is known.
func (m Mode) IsValid() bool {
	switch m {
	case ModeText, ModeImage:
		return true
	}
	return false
}

// ParseMode parses an optional mode override. Empty or unknown values return nil.
func ParseMode(s string) *Mode {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return nil
	}
	return &m
}

// GenerationRequest is a single inbound generation call.
type GenerationRequest struct {
	Message string `json:"message"`
	Mode    *Mode  `json:"mode,omitempty"`
}

// Subject is the authenticated caller a request is charged to.
type Subject struct {
	ID   string   `json:"id"`
	Tier PlanTier `json:"tier"`
}

// ImagePayload is the raw output of an image provider.
type ImagePayload struct {
	Data     []byte
	MimeType string
}

// FailureKind tags why a generation did not produce a result.
type FailureKind string

const (
	FailureValidation     FailureKind = "validation"
	FailureQuotaDenied    FailureKind = "quota_denied"
	FailureChainExhausted FailureKind = "chain_exhausted"
	FailureNoProvider     FailureKind = "no_provider"
	FailureStorage        FailureKind = "storage"
	FailureUnavailable    FailureKind = "unavailable"
)

// Failure describes a failed generation.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Attempt records one adapter invocation inside a chain.
type Attempt struct {
	Provider  string `json:"provider"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// GenerationResult is the normalized outcome of a generation call.
type GenerationResult struct {
	OK       bool      `json:"ok"`
	Mode     Mode      `json:"mode"`
	Reply    string    `json:"reply,omitempty"`
	ImageURL string    `json:"imageUrl,omitempty"`
	Engine   string    `json:"engine,omitempty"`
	Failure  *Failure  `json:"-"`
	Attempts []Attempt `json:"-"`
}

// FailureKindOf returns the failure kind, or an empty string on success.
func (r *GenerationResult) FailureKindOf() FailureKind {
	if r == nil || r.Failure == nil {
		return ""
	}
	return r.Failure.Kind
}

// InvokeOptions carries per-call hints for provider adapters.
type InvokeOptions struct {
	SystemPrompt string
	ImageSize    string
}
