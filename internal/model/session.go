package model

import "time"

// Role identifies the author of a turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Failed    bool      `json:"failed,omitempty"`    // Synthetic explanation of a failed request
	LatencyMS int64     `json:"latencyMs,omitempty"` // Round-trip time for assistant turns
}

// Session is one conversation: a stable id and its ordered turns
type Session struct {
	ID    string `json:"sessionId"`
	Turns []Turn `json:"turns"`
}

// Recent returns at most n of the newest turns, oldest first
func (s Session) Recent(n int) []Turn {
	if n <= 0 || len(s.Turns) == 0 {
		return []Turn{}
	}
	start := len(s.Turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(s.Turns)-start)
	copy(out, s.Turns[start:])
	return out
}

// TermFilterConfig controls the current-term filter.
// It is persisted and only changed by an explicit user toggle.
type TermFilterConfig struct {
	CurrentTermOnly     bool `json:"currentTermOnly" yaml:"current_term_only" mapstructure:"current_term_only"`
	LookbackWindowDays  int  `json:"lookbackWindowDays" yaml:"lookback_days" mapstructure:"lookback_days"`
	LookaheadWindowDays int  `json:"lookaheadWindowDays" yaml:"lookahead_days" mapstructure:"lookahead_days"`
}

// DefaultTermFilter returns the filter used on first run
func DefaultTermFilter() TermFilterConfig {
	return TermFilterConfig{
		CurrentTermOnly:     true,
		LookbackWindowDays:  120,
		LookaheadWindowDays: 30,
	}
}
