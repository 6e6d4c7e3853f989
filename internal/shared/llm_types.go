package shared

import (
	"time"
)

// TokenUsage tracks the tokens consumed by a single model call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// AgentMeta holds operational metadata for one agent execution so callers
// can persist usage without caring which model served the request.
type AgentMeta struct {
	AgentName string
	Usage     TokenUsage
	Latency   time.Duration
}

// Merge folds usage from a follow-up call (e.g. a repair round) into m.
func (m *AgentMeta) Merge(other AgentMeta) {
	m.Usage.PromptTokens += other.Usage.PromptTokens
	m.Usage.CompletionTokens += other.Usage.CompletionTokens
	m.Usage.TotalTokens += other.Usage.TotalTokens
	m.Latency += other.Latency
	if m.Usage.Model == "" {
		m.Usage.Model = other.Usage.Model
	}
}
