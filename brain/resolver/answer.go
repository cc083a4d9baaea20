// Package resolver turns classified questions into formatted Russian
// answers. One resolver per intent tag; the dispatcher tries them in a
// documented order and records a trace of every attempt.
package resolver

import (
	"github.com/hrygo/cleanbrain/brain"
	"github.com/hrygo/cleanbrain/brain/intent"
)

// Failure codes returned in Answer.Error. The HTTP layer maps them to
// user-facing hints.
const (
	ErrNoAddress           = "no_address"
	ErrNoMonth             = "no_month"
	ErrElderNotFound       = "elder_not_found"
	ErrHouseNotFound       = "house_not_found"
	ErrCleaningNotFound    = "cleaning_not_found"
	ErrContractorNotFound  = "contractor_not_found"
	ErrNoTasks             = "no_tasks"
	ErrNoTransactions      = "no_transactions"
	ErrAddressRequired     = "address_required"
	ErrBrigadeNotSpecified = "brigade_not_specified"
	ErrNoMatch             = "no_match"
)

// Attempt statuses recorded in the trace.
const (
	StatusHit  = "hit"
	StatusMiss = "miss"
)

// TraceEntry records one resolver attempt.
type TraceEntry struct {
	Rule      intent.Tag `json:"rule"`
	Status    string     `json:"status"`
	ElapsedMs int64      `json:"elapsed_ms"`
}

// Debug is the envelope attached when the caller asks for it.
type Debug struct {
	MatchedRule  *intent.Tag  `json:"matched_rule"`
	MatchedRules []intent.Tag `json:"matched_rules"`
	ElapsedMs    int64        `json:"elapsed_ms"`
	Trace        []TraceEntry `json:"trace"`
}

// Answer is the terminal result of one question.
type Answer struct {
	Success bool                        `json:"success"`
	Answer  string                      `json:"answer,omitempty"`
	Data    any                         `json:"data,omitempty"`
	Rule    intent.Tag                  `json:"rule,omitempty"`
	Sources map[string]brain.SourceMeta `json:"sources,omitempty"`
	Error   string                      `json:"error,omitempty"`
	Hints   []string                    `json:"hints,omitempty"`
	Debug   *Debug                      `json:"debug,omitempty"`
}

func success(answer string, data any, sources map[string]brain.SourceMeta) *Answer {
	return &Answer{Success: true, Answer: answer, Data: data, Sources: sources}
}

func failure(code string) *Answer {
	return &Answer{Success: false, Error: code}
}
