package agent

import (
	"encoding/json"
	"sync"
	"time"

	"atlas-of-us/backend/internal/constants"
	"atlas-of-us/backend/internal/metrics"
	"atlas-of-us/backend/pkg/logger"

	"go.uber.org/zap"
)

// Event is one progress notification on a run's stream. Every event encodes
// as a JSON object tagged with "type".
type Event interface {
	EventType() string
}

type Started struct {
	DomainName  string `json:"domainName"`
	TotalAgents int    `json:"totalAgents"`
}

type DomainExists struct {
	RequestedName string `json:"requestedName"`
	ExistingName  string `json:"existingName"`
}

type AgentStarted struct {
	Agent       AgentType `json:"agent"`
	AgentNumber int       `json:"agentNumber"`
	AgentName   string    `json:"agentName"`
}

type StepProgress struct {
	Agent   AgentType `json:"agent"`
	Message string    `json:"message"`
}

type SimilarityCheck struct {
	Agent        AgentType `json:"agent"`
	Concept      string    `json:"concept"`
	SimilarFound int       `json:"similarFound"`
	TopScore     *float64  `json:"topScore,omitempty"`
}

type VerificationResult struct {
	Agent         AgentType `json:"agent"`
	Concept       string    `json:"concept"`
	Decision      string    `json:"decision"`
	GeneralizesTo string    `json:"generalizesTo,omitempty"`
}

type NodeCreated struct {
	Agent     AgentType `json:"agent"`
	NodeName  string    `json:"nodeName"`
	Label     string    `json:"label"`
	WasReused bool      `json:"wasReused"`
}

type AgentCompleted struct {
	Agent        AgentType `json:"agent"`
	NodesCreated int       `json:"nodesCreated"`
	NodesReused  int       `json:"nodesReused"`
}

type AgentFailed struct {
	Agent AgentType `json:"agent"`
	Error string    `json:"error"`
}

type Completed struct {
	DomainName string     `json:"domainName"`
	Statistics Statistics `json:"statistics"`
}

// Failed carries the registry as it stood when the run stopped
type Failed struct {
	Error         string               `json:"error"`
	LastAgent     AgentType            `json:"lastAgent,omitempty"`
	PartialResult *DomainGraphRegistry `json:"partialResult,omitempty"`
}

func (Started) EventType() string            { return "started" }
func (DomainExists) EventType() string       { return "domain_exists" }
func (AgentStarted) EventType() string       { return "agent_started" }
func (StepProgress) EventType() string       { return "step_progress" }
func (SimilarityCheck) EventType() string    { return "similarity_check" }
func (VerificationResult) EventType() string { return "verification_result" }
func (NodeCreated) EventType() string        { return "node_created" }
func (AgentCompleted) EventType() string     { return "agent_completed" }
func (AgentFailed) EventType() string        { return "agent_failed" }
func (Completed) EventType() string          { return "completed" }
func (Failed) EventType() string             { return "failed" }

func (e Started) MarshalJSON() ([]byte, error) {
	type alias Started
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{e.EventType(), alias(e)})
}

func (e DomainExists) MarshalJSON() ([]byte, error) {
	type alias DomainExists
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{e.EventType(), alias(e)})
}

func (e AgentStarted) MarshalJSON() ([]byte, error) {
	type alias AgentStarted
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{e.EventType(), alias(e)})
}

func (e StepProgress) MarshalJSON() ([]byte, error) {
	type alias StepProgress
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{e.EventType(), alias(e)})
}

func (e SimilarityCheck) MarshalJSON() ([]byte, error) {
	type alias SimilarityCheck
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{e.EventType(), alias(e)})
}

func (e VerificationResult) MarshalJSON() ([]byte, error) {
	type alias VerificationResult
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{e.EventType(), alias(e)})
}

func (e NodeCreated) MarshalJSON() ([]byte, error) {
	type alias NodeCreated
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{e.EventType(), alias(e)})
}

func (e AgentCompleted) MarshalJSON() ([]byte, error) {
	type alias AgentCompleted
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{e.EventType(), alias(e)})
}

func (e AgentFailed) MarshalJSON() ([]byte, error) {
	type alias AgentFailed
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{e.EventType(), alias(e)})
}

func (e Completed) MarshalJSON() ([]byte, error) {
	type alias Completed
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{e.EventType(), alias(e)})
}

func (e Failed) MarshalJSON() ([]byte, error) {
	type alias Failed
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{e.EventType(), alias(e)})
}

// ============================================================================
// Sink
// ============================================================================

// Emitter accepts events from a running pipeline
type Emitter interface {
	Emit(Event)
}

// EventSink is a bounded single-producer channel between a run and its
// consumer. Progress events are dropped when the buffer is full or the sink is
// closed. Outcome events (completed, failed, domain_exists) wait up to
// terminalWait for room before they are dropped.
type EventSink struct {
	mu           sync.RWMutex
	ch           chan Event
	closed       bool
	terminalWait time.Duration
	metrics      *metrics.Collector
	logger       *zap.Logger
}

// NewEventSink creates a sink buffering up to size events
func NewEventSink(size int, m *metrics.Collector) *EventSink {
	return &EventSink{
		ch:           make(chan Event, size),
		terminalWait: constants.TerminalEventWait,
		metrics:      m,
		logger:       logger.Get(),
	}
}

// Emit queues an event. Only outcome events may block, and only briefly.
func (s *EventSink) Emit(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.drop(e, "sink closed")
		return
	}

	select {
	case s.ch <- e:
		return
	default:
	}

	if !isOutcome(e) {
		s.drop(e, "buffer full")
		return
	}

	timer := time.NewTimer(s.terminalWait)
	defer timer.Stop()
	select {
	case s.ch <- e:
	case <-timer.C:
		s.drop(e, "buffer full")
	}
}

func isOutcome(e Event) bool {
	switch e.(type) {
	case Completed, Failed, DomainExists:
		return true
	}
	return false
}

func (s *EventSink) drop(e Event, reason string) {
	s.metrics.EventDropped()
	s.logger.Warn("Dropping pipeline event",
		zap.String("event", e.EventType()),
		zap.String("reason", reason),
	)
}

// Events is the consumer side of the sink
func (s *EventSink) Events() <-chan Event {
	return s.ch
}

// Close ends the stream. Later emits are dropped.
func (s *EventSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
