package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populatedRegistry() *DomainGraphRegistry {
	r := NewDomainGraphRegistry()
	r.SetDomain(CreatedNode{Name: "Chess", StoreID: "d-1", Label: LabelDomain})
	for i, name := range []string{"Chess Novice", "Chess Developing"} {
		r.AddDomainLevel(CreatedNode{Name: name, StoreID: []string{"l-1", "l-2"}[i], Label: LabelDomainLevel})
	}
	r.Add(CategoryKnowledge, CreatedNode{Name: "Opening Theory", StoreID: "k-1", Label: "Knowledge"})
	r.Add(CategoryKnowledge, CreatedNode{Name: "Endgame Theory", StoreID: "k-2", Label: "Knowledge", WasReused: true})
	r.Add(CategorySkill, CreatedNode{Name: "Calculation", StoreID: "s-1", Label: "Skill"})
	r.Add(CategoryTrait, CreatedNode{Name: "Patience", StoreID: "t-1", Label: "Trait", WasReused: true})
	return r
}

func TestRegistry_CountsAndStatistics(t *testing.T) {
	r := populatedRegistry()
	r.AddLevelRequirement(LevelRequirement{LevelID: "l-1", ComponentID: "k-1"})
	r.AddPrerequisite(Prerequisite{SourceID: "s-1", TargetID: "k-1", RelationshipType: "REQUIRES_KNOWLEDGE"})

	created, reused := r.CountCategory(CategoryKnowledge)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, reused)

	assert.Equal(t, 5, r.CountCreated())
	assert.Equal(t, 2, r.CountReused())

	stats := r.Statistics()
	assert.Equal(t, 2, stats.DomainLevelsCreated)
	assert.Equal(t, 1, stats.KnowledgeCreated)
	assert.Equal(t, 1, stats.SkillsCreated)
	assert.Equal(t, 0, stats.TraitsCreated)
	assert.Equal(t, 2, stats.RelationshipsCreated)
	assert.Equal(t, 2, stats.NodesReused)
}

func TestRegistry_DeduplicateIsIdempotent(t *testing.T) {
	r := populatedRegistry()
	r.Add(CategoryKnowledge, CreatedNode{Name: "Opening Theory (again)", StoreID: "k-1", Label: "Knowledge"})
	r.AddDomainLevel(CreatedNode{Name: "Chess Novice", StoreID: "l-1", Label: LabelDomainLevel})

	r.Deduplicate()
	require.Len(t, r.Knowledge, 2)
	assert.Equal(t, "Opening Theory", r.Knowledge[0].Name)
	assert.Len(t, r.DomainLevels, 2)

	before := r.Snapshot()
	r.Deduplicate()
	assert.Equal(t, before, r.Snapshot())
}

func TestRegistry_FindInCategory(t *testing.T) {
	r := populatedRegistry()

	node, ok := r.FindInCategory(CategoryKnowledge, "opening theory")
	require.True(t, ok)
	assert.Equal(t, "k-1", node.StoreID)

	_, ok = r.FindInCategory(CategorySkill, "Opening Theory")
	assert.False(t, ok)

	node, ok = r.FindByName("Patience")
	require.True(t, ok)
	assert.Equal(t, "t-1", node.StoreID)
}

func TestRegistry_FindPrefersExactMatch(t *testing.T) {
	r := NewDomainGraphRegistry()
	r.Add(CategoryKnowledge, CreatedNode{Name: "tempo", StoreID: "k-1"})
	r.Add(CategoryKnowledge, CreatedNode{Name: "Tempo", StoreID: "k-2"})

	node, ok := r.FindInCategory(CategoryKnowledge, "Tempo")
	require.True(t, ok)
	assert.Equal(t, "k-2", node.StoreID)
}

func TestRegistry_Validate(t *testing.T) {
	r := populatedRegistry()
	r.AddLevelRequirement(LevelRequirement{LevelID: "l-1", ComponentID: "k-1", ComponentName: "Opening Theory"})
	r.AddGeneralization(Generalization{SpecificID: "k-1", GeneralID: "k-store-only"})
	r.AddPrerequisite(Prerequisite{SourceID: "s-1", TargetID: "k-2"})
	assert.NoError(t, r.Validate())

	r.AddPrerequisite(Prerequisite{SourceID: "s-1", TargetID: "missing", SourceName: "Calculation", TargetName: "Ghost"})
	assert.Error(t, r.Validate())

	r = populatedRegistry()
	r.AddLevelRequirement(LevelRequirement{LevelID: "l-9", ComponentID: "k-1"})
	assert.Error(t, r.Validate())

	r = populatedRegistry()
	r.AddGeneralization(Generalization{SpecificID: "k-1"})
	assert.Error(t, r.Validate())
}

func TestRegistry_SnapshotIsIndependent(t *testing.T) {
	r := populatedRegistry()
	snap := r.Snapshot()

	r.Add(CategoryMilestone, CreatedNode{Name: "First Tournament", StoreID: "m-1"})
	r.Domain.Name = "Changed"
	r.Knowledge[0].Name = "Changed"

	assert.Empty(t, snap.Milestones)
	assert.Equal(t, "Chess", snap.Domain.Name)
	assert.Equal(t, "Opening Theory", snap.Knowledge[0].Name)
}

func TestRegistry_ContextSummary(t *testing.T) {
	summary := populatedRegistry().ContextSummary("Chess")

	assert.Contains(t, summary, "Domain: Chess\n\nDomain Levels:\n- Chess Novice (ID: l-1)\n- Chess Developing (ID: l-2)\n")
	assert.Contains(t, summary, "\nKnowledge Nodes:\n- Opening Theory (ID: k-1)\n- Endgame Theory (ID: k-2)\n")
	assert.Contains(t, summary, "\nSkill Nodes:\n- Calculation (ID: s-1)\n")
	assert.Contains(t, summary, "\nMilestone Nodes:\n")
}

func TestRegistry_JSONUsesEmptyArrays(t *testing.T) {
	data, err := json.Marshal(NewDomainGraphRegistry())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.NotContains(t, decoded, "domain")
	assert.Equal(t, []interface{}{}, decoded["knowledge"])
	assert.Equal(t, []interface{}{}, decoded["prerequisites"])
}
