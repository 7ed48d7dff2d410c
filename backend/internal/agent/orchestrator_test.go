package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"atlas-of-us/backend/internal/graph"
	apperrors "atlas-of-us/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chessResponder plays every step of a Chess run against an empty store
func chessResponder(system, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Generate properties for a GENERIC"),
		strings.Contains(prompt, "Generate full properties"):
		return propertiesFor(prompt), nil
	case strings.Contains(prompt, "Assign components to domain levels"):
		return `{"level_assignments": [
			{"component": "Opening Theory", "component_type": "Knowledge", "level": 1, "proficiency": "Remember"},
			{"component": "Calculation", "component_type": "Skill", "level": 2, "proficiency": "Advanced Beginner"},
			{"component": "Patience", "component_type": "Trait", "level": 2, "proficiency": "40"},
			{"component": "First Tournament", "component_type": "Milestone", "level": 3}
		]}`, nil
	case strings.Contains(prompt, "Analyze the prerequisite relationships"):
		return `{"prerequisites": [
			{"component": "Endgame Theory", "component_type": "Knowledge", "requires": [{"name": "Opening Theory", "type": "Knowledge"}]}
		]}`, nil
	}

	switch system {
	case SystemKnowledgeExpert:
		return `["Opening Theory", "Endgame Theory"]`, nil
	case SystemSkillExpert:
		return `["Calculation"]`, nil
	case SystemTraitAnalyst:
		return `["Patience"]`, nil
	case SystemMilestoneDesign:
		return `["First Tournament"]`, nil
	}
	return "", errors.New("unexpected prompt")
}

// stubStep runs fn in place of a real step
type stubStep struct {
	agent AgentType
	fn    func(ctx context.Context, gc *GenerationContext) error
	ran   bool
}

func (s *stubStep) Type() AgentType { return s.agent }

func (s *stubStep) Execute(ctx context.Context, gc *GenerationContext) error {
	s.ran = true
	if s.fn == nil {
		return nil
	}
	return s.fn(ctx, gc)
}

func stubPipeline(steps ...*stubStep) func(Dependencies, Emitter) []Step {
	return func(Dependencies, Emitter) []Step {
		out := make([]Step, len(steps))
		for i, s := range steps {
			out[i] = s
		}
		return out
	}
}

func allStubs() []*stubStep {
	agents := []AgentType{
		AgentDomainArchitect, AgentKnowledgeGenerator, AgentSkillGenerator, AgentTraitGenerator,
		AgentMilestoneGenerator, AgentLevelDistributor, AgentPrerequisiteMapper,
	}
	steps := make([]*stubStep, len(agents))
	for i, a := range agents {
		steps[i] = &stubStep{agent: a}
	}
	return steps
}

func TestOrchestrator_ChessRun(t *testing.T) {
	store := newFakeStore()
	events := &recorder{}
	o := NewOrchestrator(testDeps(&fakeLLM{generateFunc: chessResponder}, store), Options{})

	result, err := o.Run(context.Background(), "run-1", "Chess", "", events)
	require.NoError(t, err)

	types := events.types()
	assert.Equal(t, "started", types[0])
	assert.Equal(t, "completed", types[len(types)-1])
	assert.NotContains(t, types, "failed")

	started := eventsOf[AgentStarted](events)
	require.Len(t, started, 7)
	for i, s := range started {
		assert.Equal(t, i+1, s.AgentNumber)
		assert.Equal(t, s.Agent.DisplayName(), s.AgentName)
	}

	completed := eventsOf[AgentCompleted](events)
	require.Len(t, completed, 7)
	assert.Equal(t, AgentCompleted{Agent: AgentDomainArchitect, NodesCreated: 6}, completed[0])
	assert.Equal(t, AgentCompleted{Agent: AgentKnowledgeGenerator, NodesCreated: 2}, completed[1])
	assert.Equal(t, AgentCompleted{Agent: AgentLevelDistributor}, completed[5])

	require.NotNil(t, result)
	assert.Equal(t, "run-1", result.RunID)
	assert.NotEmpty(t, result.DomainID)
	stats := result.Statistics
	assert.Equal(t, 5, stats.DomainLevelsCreated)
	assert.Equal(t, 2, stats.KnowledgeCreated)
	assert.Equal(t, 1, stats.SkillsCreated)
	assert.Equal(t, 1, stats.TraitsCreated)
	assert.Equal(t, 1, stats.MilestonesCreated)
	assert.Equal(t, 5, stats.RelationshipsCreated)
	assert.Equal(t, 0, stats.NodesReused)

	final := eventsOf[Completed](events)
	require.Len(t, final, 1)
	assert.Equal(t, stats, final[0].Statistics)
	assert.NoError(t, result.Registry.Validate())
}

func TestOrchestrator_DomainExistsAbortsRun(t *testing.T) {
	store := newFakeStore()
	store.similarFunc = func(text, label string, limit int) ([]graph.SimilarNode, error) {
		if label == LabelDomain {
			return []graph.SimilarNode{{Name: "Chess", ID: "d-7", Score: 0.91}}, nil
		}
		return nil, nil
	}
	events := &recorder{}
	llm := &fakeLLM{generateFunc: chessResponder}
	o := NewOrchestrator(testDeps(llm, store), Options{})

	result, err := o.Run(context.Background(), "run-2", "chess", "", events)
	assert.Nil(t, result)

	var exists *DomainExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "Chess", exists.Existing)

	require.Len(t, events.events, 1)
	assert.Equal(t, DomainExists{RequestedName: "chess", ExistingName: "Chess"}, events.events[0])
	assert.Empty(t, store.nodes)
	assert.Empty(t, llm.prompts)
}

func TestOrchestrator_SimilarDomainBelowThresholdProceeds(t *testing.T) {
	store := newFakeStore()
	store.similarFunc = func(text, label string, limit int) ([]graph.SimilarNode, error) {
		if label == LabelDomain {
			return []graph.SimilarNode{{Name: "Checkers", ID: "d-3", Score: 0.84}}, nil
		}
		return nil, nil
	}
	o := NewOrchestrator(testDeps(&fakeLLM{}, store), Options{})
	o.newSteps = stubPipeline(allStubs()...)

	events := &recorder{}
	_, err := o.Run(context.Background(), "run-3", "Chess", "", events)
	require.NoError(t, err)
	assert.Equal(t, "started", events.types()[0])
}

func TestOrchestrator_PreCheckFailureEmitsFailed(t *testing.T) {
	store := newFakeStore()
	store.similarFunc = func(text, label string, limit int) ([]graph.SimilarNode, error) {
		return nil, errors.New("vector index missing")
	}
	events := &recorder{}
	o := NewOrchestrator(testDeps(&fakeLLM{}, store), Options{})

	_, err := o.Run(context.Background(), "run-4", "Chess", "", events)
	require.Error(t, err)
	assert.Equal(t, []string{"failed"}, events.types())
}

func TestOrchestrator_FailFast(t *testing.T) {
	steps := allStubs()
	steps[0].fn = func(ctx context.Context, gc *GenerationContext) error {
		gc.Registry.SetDomain(CreatedNode{Name: "Chess", StoreID: "d-1", Label: LabelDomain})
		return nil
	}
	steps[2].fn = func(ctx context.Context, gc *GenerationContext) error {
		return errors.New("model returned garbage")
	}

	o := NewOrchestrator(testDeps(&fakeLLM{}, newFakeStore()), Options{})
	o.newSteps = stubPipeline(steps...)
	events := &recorder{}

	result, err := o.Run(context.Background(), "run-5", "Chess", "", events)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeStep))

	for i, s := range steps {
		assert.Equal(t, i <= 2, s.ran, "step %d", i+1)
	}

	assert.Equal(t, []string{
		"started",
		"agent_started", "agent_completed",
		"agent_started", "agent_completed",
		"agent_started", "agent_failed", "failed",
	}, events.types())

	failed := eventsOf[Failed](events)
	require.Len(t, failed, 1)
	assert.Equal(t, "model returned garbage", failed[0].Error)
	assert.Equal(t, AgentSkillGenerator, failed[0].LastAgent)
	require.NotNil(t, failed[0].PartialResult)
	assert.Equal(t, "d-1", failed[0].PartialResult.Domain.StoreID)
}

func TestOrchestrator_ExpiredRunReportsTimeout(t *testing.T) {
	steps := allStubs()
	steps[1].fn = func(ctx context.Context, gc *GenerationContext) error {
		<-ctx.Done()
		return fmt.Errorf("failed to generate concepts: %w", ctx.Err())
	}

	o := NewOrchestrator(testDeps(&fakeLLM{}, newFakeStore()), Options{})
	o.newSteps = stubPipeline(steps...)
	events := &recorder{}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result, err := o.Run(ctx, "run-6", "Chess", "", events)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeStep))
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeContext))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var timeoutErr *apperrors.ErrContextTimeout
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "generate domain", timeoutErr.Operation)

	failed := eventsOf[Failed](events)
	require.Len(t, failed, 1)
	assert.Equal(t, AgentKnowledgeGenerator, failed[0].LastAgent)
	assert.Contains(t, failed[0].Error, "context timeout")
	assert.False(t, steps[2].ran)
}

func TestOrchestrator_StepErrorWithoutDeadlineIsNotTimeout(t *testing.T) {
	steps := allStubs()
	steps[0].fn = func(ctx context.Context, gc *GenerationContext) error {
		return errors.New("write conflict")
	}

	o := NewOrchestrator(testDeps(&fakeLLM{}, newFakeStore()), Options{})
	o.newSteps = stubPipeline(steps...)

	_, err := o.Run(context.Background(), "run-7", "Chess", "", &recorder{})
	require.Error(t, err)
	assert.False(t, apperrors.IsErrorType(err, apperrors.ErrorTypeContext))
}

func TestOrchestrator_StartStreamsUntilClosed(t *testing.T) {
	o := NewOrchestrator(testDeps(&fakeLLM{}, newFakeStore()), Options{MaxConcurrentRuns: 1, RunTimeout: time.Minute})
	o.newSteps = stubPipeline(allStubs()...)

	stream, runID, err := o.Start("Chess", "")
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	var types []string
	for e := range stream {
		types = append(types, e.EventType())
	}
	require.NotEmpty(t, types)
	assert.Equal(t, "started", types[0])
	assert.Equal(t, "completed", types[len(types)-1])
}

func TestOrchestrator_StartRejectsWhenAtCapacity(t *testing.T) {
	release := make(chan struct{})
	steps := allStubs()
	steps[0].fn = func(ctx context.Context, gc *GenerationContext) error {
		<-release
		return nil
	}

	o := NewOrchestrator(testDeps(&fakeLLM{}, newFakeStore()), Options{MaxConcurrentRuns: 1, RunTimeout: time.Minute})
	o.newSteps = stubPipeline(steps...)

	stream, _, err := o.Start("Chess", "")
	require.NoError(t, err)

	_, _, err = o.Start("Go", "")
	assert.ErrorIs(t, err, ErrTooManyRuns)

	close(release)
	for range stream {
	}

	// the slot is released just after the stream closes
	assert.Eventually(t, func() bool {
		s, _, err := o.Start("Go", "")
		if err != nil {
			return false
		}
		for range s {
		}
		return true
	}, time.Second, 10*time.Millisecond)
}

func TestOrchestrator_HealthCheck(t *testing.T) {
	o := NewOrchestrator(testDeps(&fakeLLM{healthErr: errors.New("down")}, newFakeStore()), Options{})
	assert.EqualError(t, o.HealthCheck(context.Background()), "down")
}
