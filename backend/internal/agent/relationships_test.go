package agent

import (
	"context"
	"errors"
	"testing"

	apperrors "atlas-of-us/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chessRegistry has five levels and one node per category
func chessRegistry() *GenerationContext {
	gc := NewGenerationContext("Chess", "")
	gc.Registry.SetDomain(CreatedNode{Name: "Chess", StoreID: "d-1", Label: LabelDomain})
	for i, spec := range LevelStructure("Chess") {
		gc.Registry.AddDomainLevel(CreatedNode{Name: spec.Name, StoreID: []string{"l-1", "l-2", "l-3", "l-4", "l-5"}[i], Label: LabelDomainLevel})
	}
	gc.Registry.Add(CategoryKnowledge, CreatedNode{Name: "Opening Theory", StoreID: "k-1", Label: "Knowledge"})
	gc.Registry.Add(CategoryKnowledge, CreatedNode{Name: "Endgame Theory", StoreID: "k-2", Label: "Knowledge"})
	gc.Registry.Add(CategorySkill, CreatedNode{Name: "Calculation", StoreID: "s-1", Label: "Skill"})
	gc.Registry.Add(CategoryTrait, CreatedNode{Name: "Patience", StoreID: "t-1", Label: "Trait", WasReused: true})
	gc.Registry.Add(CategoryMilestone, CreatedNode{Name: "First Tournament", StoreID: "m-1", Label: "Milestone"})
	return gc
}

func respondWith(body string) *fakeLLM {
	return &fakeLLM{generateFunc: func(system, prompt string) (string, error) { return body, nil }}
}

func TestResolveLevel(t *testing.T) {
	levels := chessRegistry().Registry.DomainLevels

	level, ok := ResolveLevel(levels, 3)
	require.True(t, ok)
	assert.Equal(t, "l-3", level.StoreID)

	// positional fallback when names were changed
	renamed := []CreatedNode{{Name: "Tier A", StoreID: "a"}, {Name: "Tier B", StoreID: "b"}}
	level, ok = ResolveLevel(renamed, 2)
	require.True(t, ok)
	assert.Equal(t, "b", level.StoreID)

	_, ok = ResolveLevel(levels, 0)
	assert.False(t, ok)
	_, ok = ResolveLevel(levels, 6)
	assert.False(t, ok)
	_, ok = ResolveLevel(renamed, 4)
	assert.False(t, ok)
}

func TestLevelEdgeProperties(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"bloom_level": "Apply"}, levelEdgeProperties(CategoryKnowledge, "Apply"))
	assert.Equal(t, map[string]interface{}{"dreyfus_level": "Competent"}, levelEdgeProperties(CategorySkill, " Competent "))
	assert.Equal(t, map[string]interface{}{"min_score": 60}, levelEdgeProperties(CategoryTrait, "60"))
	assert.Equal(t, map[string]interface{}{"min_score": 72}, levelEdgeProperties(CategoryTrait, "72.5"))
	assert.Nil(t, levelEdgeProperties(CategoryTrait, "high"))
	assert.Nil(t, levelEdgeProperties(CategoryMilestone, "anything"))
	assert.Nil(t, levelEdgeProperties(CategoryKnowledge, ""))
}

func TestLevelDistributor_WritesResolvedAssignments(t *testing.T) {
	llm := respondWith(`{"level_assignments": [
		{"component": "Opening Theory", "component_type": "Knowledge", "level": 1, "proficiency": "Remember"},
		{"component": "calculation", "component_type": "Skill", "level": "3", "proficiency": "Competent"},
		{"component": "Patience", "component_type": "Trait", "level": 2, "proficiency": 40},
		{"component": "First Tournament", "component_type": "Milestone", "level": 2},
		{"component": "Ghost Concept", "component_type": "Knowledge", "level": 1},
		{"component": "Endgame Theory", "component_type": "Recipe", "level": 1},
		{"component": "Endgame Theory", "component_type": "Knowledge", "level": 9}
	]}`)
	store := newFakeStore()
	gc := chessRegistry()

	err := NewLevelDistributor(testDeps(llm, store), &recorder{}).Execute(context.Background(), gc)
	require.NoError(t, err)

	require.Len(t, store.edges, 4)
	assert.Equal(t, edgeCall{source: "l-1", target: "k-1", relType: "REQUIRES_KNOWLEDGE", props: map[string]interface{}{"bloom_level": "Remember"}}, store.edges[0])
	assert.Equal(t, edgeCall{source: "l-3", target: "s-1", relType: "REQUIRES_SKILL", props: map[string]interface{}{"dreyfus_level": "Competent"}}, store.edges[1])
	assert.Equal(t, edgeCall{source: "l-2", target: "t-1", relType: "REQUIRES_TRAIT", props: map[string]interface{}{"min_score": 40}}, store.edges[2])
	assert.Equal(t, "REQUIRES_MILESTONE", store.edges[3].relType)
	assert.Nil(t, store.edges[3].props)

	require.Len(t, gc.Registry.LevelRequirements, 4)
	assert.Equal(t, "Calculation", gc.Registry.LevelRequirements[1].ComponentName)
	assert.Equal(t, "Skill", gc.Registry.LevelRequirements[1].ComponentType)
	assert.NoError(t, gc.Registry.Validate())
}

func TestLevelDistributor_SkipsFailedEdges(t *testing.T) {
	llm := respondWith(`{"level_assignments": [
		{"component": "Opening Theory", "component_type": "Knowledge", "level": 1},
		{"component": "Calculation", "component_type": "Skill", "level": 2}
	]}`)
	store := newFakeStore()
	store.edgeErr = func(relType string) error {
		if relType == "REQUIRES_KNOWLEDGE" {
			return errors.New("write conflict")
		}
		return nil
	}
	gc := chessRegistry()

	require.NoError(t, NewLevelDistributor(testDeps(llm, store), &recorder{}).Execute(context.Background(), gc))
	require.Len(t, gc.Registry.LevelRequirements, 1)
	assert.Equal(t, "s-1", gc.Registry.LevelRequirements[0].ComponentID)
}

func TestLevelDistributor_PromptCarriesContext(t *testing.T) {
	llm := respondWith(`{"level_assignments": []}`)
	gc := chessRegistry()

	require.NoError(t, NewLevelDistributor(testDeps(llm, newFakeStore()), &recorder{}).Execute(context.Background(), gc))
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "- Chess Competent (ID: l-3)")
	assert.Contains(t, llm.prompts[0], "- Calculation (ID: s-1)")
}

func TestLevelDistributor_UnparseableResponseFails(t *testing.T) {
	err := NewLevelDistributor(testDeps(respondWith("no idea"), newFakeStore()), &recorder{}).Execute(context.Background(), chessRegistry())
	assert.Error(t, err)
}

func TestLevelDistributor_MissingAssignmentsFails(t *testing.T) {
	for _, body := range []string{
		`{"error": "I cannot assign levels"}`,
		`{"level_assignments": null}`,
		`{"level_assignments": "none"}`,
	} {
		store := newFakeStore()
		gc := chessRegistry()

		err := NewLevelDistributor(testDeps(respondWith(body), store), &recorder{}).Execute(context.Background(), gc)
		require.Error(t, err, body)
		assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeParse), body)
		assert.Empty(t, store.edges)
		assert.Empty(t, gc.Registry.LevelRequirements)
	}
}

func TestLevelDistributor_SkipsExampleObjectInProse(t *testing.T) {
	llm := respondWith(`Each entry looks like {"component": "X", "level": 1}. Here is the result:
{"level_assignments": [{"component": "Calculation", "component_type": "Skill", "level": 2}]}`)
	store := newFakeStore()
	gc := chessRegistry()

	require.NoError(t, NewLevelDistributor(testDeps(llm, store), &recorder{}).Execute(context.Background(), gc))
	require.Len(t, store.edges, 1)
	assert.Equal(t, "l-2", store.edges[0].source)
	assert.Equal(t, "s-1", store.edges[0].target)
}

func TestPrerequisiteMapper_WritesResolvedPairs(t *testing.T) {
	llm := respondWith("```json\n" + `{"prerequisites": [
		{"component": "Endgame Theory", "component_type": "Knowledge", "requires": [
			{"name": "Opening Theory", "type": "Knowledge"},
			{"name": "Endgame Theory", "type": "Knowledge"}
		]},
		{"component": "Calculation", "component_type": "Skill", "requires": [
			{"name": "Patience", "type": "Trait"},
			{"name": "Unknown", "type": "Knowledge"},
			{"name": "Opening Theory", "type": "Trait"}
		]},
		{"component": "First Tournament", "component_type": "Milestone", "requires": [
			{"name": "calculation", "type": "Skill"}
		]},
		{"component": "Nobody", "component_type": "Skill", "requires": [
			{"name": "Opening Theory", "type": "Knowledge"}
		]}
	]}` + "\n```")
	store := newFakeStore()
	gc := chessRegistry()

	require.NoError(t, NewPrerequisiteMapper(testDeps(llm, store), &recorder{}).Execute(context.Background(), gc))

	require.Len(t, store.edges, 3)
	assert.Equal(t, edgeCall{source: "k-2", target: "k-1", relType: "REQUIRES_KNOWLEDGE"}, store.edges[0])
	assert.Equal(t, edgeCall{source: "s-1", target: "t-1", relType: "REQUIRES_TRAIT"}, store.edges[1])
	assert.Equal(t, edgeCall{source: "m-1", target: "s-1", relType: "REQUIRES_SKILL"}, store.edges[2])

	require.Len(t, gc.Registry.Prerequisites, 3)
	assert.Equal(t, "Endgame Theory", gc.Registry.Prerequisites[0].SourceName)
	assert.Equal(t, "Opening Theory", gc.Registry.Prerequisites[0].TargetName)
	assert.NoError(t, gc.Registry.Validate())
}

func TestPrerequisiteMapper_LLMFailureFails(t *testing.T) {
	llm := &fakeLLM{generateFunc: func(system, prompt string) (string, error) {
		return "", errors.New("model unavailable")
	}}
	err := NewPrerequisiteMapper(testDeps(llm, newFakeStore()), &recorder{}).Execute(context.Background(), chessRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestPrerequisiteMapper_MissingPrerequisitesFails(t *testing.T) {
	for _, body := range []string{`{"reason": "none"}`, `{"prerequisites": null}`, "no json at all"} {
		store := newFakeStore()
		gc := chessRegistry()

		err := NewPrerequisiteMapper(testDeps(respondWith(body), store), &recorder{}).Execute(context.Background(), gc)
		require.Error(t, err, body)
		assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeParse), body)
		assert.Empty(t, store.edges)
		assert.Empty(t, gc.Registry.Prerequisites)
	}
}

func TestPrerequisiteMapper_EmptyListSucceeds(t *testing.T) {
	store := newFakeStore()
	gc := chessRegistry()

	require.NoError(t, NewPrerequisiteMapper(testDeps(respondWith(`{"prerequisites": []}`), store), &recorder{}).Execute(context.Background(), gc))
	assert.Empty(t, store.edges)
}
