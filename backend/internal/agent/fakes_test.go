package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"atlas-of-us/backend/internal/adapter"
	"atlas-of-us/backend/internal/graph"
	"atlas-of-us/backend/pkg/config"

	"go.uber.org/zap"
)

// fakeLLM answers through generateFunc and records every prompt
type fakeLLM struct {
	mu           sync.Mutex
	generateFunc func(system, prompt string) (string, error)
	prompts      []string
	healthErr    error
}

func (f *fakeLLM) Generate(ctx context.Context, systemPrompt, userPrompt string, cfg adapter.GenerationConfig) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, userPrompt)
	f.mu.Unlock()
	if f.generateFunc == nil {
		return "", errors.New("no response configured")
	}
	return f.generateFunc(systemPrompt, userPrompt)
}

func (f *fakeLLM) HealthCheck(ctx context.Context) error {
	return f.healthErr
}

type nodeCall struct {
	id     string
	labels []string
	props  map[string]interface{}
}

type edgeCall struct {
	source  string
	target  string
	relType string
	props   map[string]interface{}
}

// fakeStore records writes in order and serves similarity results from
// similarFunc. ops keeps a single ordered log of node and edge writes.
type fakeStore struct {
	mu          sync.Mutex
	next        int
	nodes       []nodeCall
	edges       []edgeCall
	ops         []string
	similarFunc func(text, label string, limit int) ([]graph.SimilarNode, error)
	stored      map[string]string // "Label/name" -> id, nodes written before the run
	lookupErr   error
	lookups     []string
	nodeErr     func(labels []string, props map[string]interface{}) error
	edgeErr     func(relType string) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{}
}

func (s *fakeStore) CreateNode(ctx context.Context, labels []string, props map[string]interface{}) (*graph.CreatedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nodeErr != nil {
		if err := s.nodeErr(labels, props); err != nil {
			return nil, err
		}
	}

	s.next++
	id := fmt.Sprintf("%s-%d", strings.ToLower(labels[0]), s.next)
	name, _ := props["name"].(string)
	s.nodes = append(s.nodes, nodeCall{id: id, labels: labels, props: props})
	s.ops = append(s.ops, "node:"+name)
	return &graph.CreatedRecord{ID: id, Name: name}, nil
}

func (s *fakeStore) CreateEdge(ctx context.Context, sourceID, targetID, relType string, props map[string]interface{}) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.edgeErr != nil {
		if err := s.edgeErr(relType); err != nil {
			return "", err
		}
	}

	s.edges = append(s.edges, edgeCall{source: sourceID, target: targetID, relType: relType, props: props})
	s.ops = append(s.ops, fmt.Sprintf("edge:%s:%s->%s", relType, sourceID, targetID))
	return fmt.Sprintf("rel-%d", len(s.edges)), nil
}

func (s *fakeStore) FindNodeByName(ctx context.Context, name, label string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups = append(s.lookups, label+"/"+name)
	if s.lookupErr != nil {
		return "", false, s.lookupErr
	}
	if id, ok := s.stored[label+"/"+name]; ok {
		return id, true, nil
	}
	for _, n := range s.nodes {
		if n.props["name"] == name && n.labels[0] == label {
			return n.id, true, nil
		}
	}
	return "", false, nil
}

func (s *fakeStore) FindSimilar(ctx context.Context, text, label string, limit int) ([]graph.SimilarNode, error) {
	if s.similarFunc == nil {
		return nil, nil
	}
	return s.similarFunc(text, label, limit)
}

func (s *fakeStore) nodeByName(name string) (nodeCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.nodes {
		if n.props["name"] == name {
			return n, true
		}
	}
	return nodeCall{}, false
}

func (s *fakeStore) edgesOfType(relType string) []edgeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []edgeCall
	for _, e := range s.edges {
		if e.relType == relType {
			out = append(out, e)
		}
	}
	return out
}

// recorder is an Emitter that keeps every event
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

func eventsOf[T Event](r *recorder) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []T
	for _, e := range r.events {
		if typed, ok := e.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

func testDeps(llm *fakeLLM, store *fakeStore) Dependencies {
	return Dependencies{
		LLM:    llm,
		Store:  store,
		Policy: config.DefaultSimilarityPolicy(),
		Logger: zap.NewNop(),
	}
}

// knowledgeResponder serves a Knowledge pass: the concept list, verifier
// answers keyed by concept, and properties echoing the requested name
func knowledgeResponder(concepts string, verdicts map[string]string) func(system, prompt string) (string, error) {
	return func(system, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "I found these similar"):
			for concept, verdict := range verdicts {
				if strings.Contains(prompt, fmt.Sprintf("%q", concept)) {
					return verdict, nil
				}
			}
			return `{"decision": "create_new"}`, nil
		case strings.Contains(prompt, "Generate properties for a GENERIC"),
			strings.Contains(prompt, "Generate full properties"):
			return propertiesFor(prompt), nil
		default:
			return concepts, nil
		}
	}
}

// propertiesFor answers a properties prompt with the quoted concept name
func propertiesFor(prompt string) string {
	start := strings.Index(prompt, `"`)
	end := strings.Index(prompt[start+1:], `"`)
	name := prompt[start+1 : start+1+end]
	return fmt.Sprintf(`{"name": %q, "description": "About %s"}`, name, name)
}
