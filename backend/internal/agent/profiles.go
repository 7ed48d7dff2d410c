package agent

import (
	"atlas-of-us/backend/internal/adapter"
	"atlas-of-us/backend/internal/graph"
	"atlas-of-us/backend/pkg/config"
)

// conceptProfile is everything category-specific about a concept generator
type conceptProfile struct {
	category Category
	agent    AgentType
	noun     string // plural, for progress messages
	system   string

	listConfig       adapter.GenerationConfig
	propertiesConfig adapter.GenerationConfig

	conceptsPrompt   func(gc *GenerationContext) string
	verifyPrompt     func(concept, domain string, nodes []graph.SimilarNode) string
	propertiesPrompt func(domain, concept, generalizesTo string) string
	// genericPrompt is nil for categories that never generalize
	genericPrompt func(concept string) string

	fields []string
}

func (p conceptProfile) generalizes() bool {
	return p.genericPrompt != nil
}

func (p conceptProfile) thresholds(policy config.SimilarityPolicy) config.Thresholds {
	if p.category == CategoryTrait {
		return policy.Trait
	}
	return policy.General
}

var knowledgeProfile = conceptProfile{
	category:         CategoryKnowledge,
	agent:            AgentKnowledgeGenerator,
	noun:             "knowledge concepts",
	system:           SystemKnowledgeExpert,
	listConfig:       conceptListConfig,
	propertiesConfig: propertiesConfig,
	conceptsPrompt:   knowledgeConceptsPrompt,
	verifyPrompt:     knowledgeVerifyPrompt,
	propertiesPrompt: knowledgePropertiesPrompt,
	genericPrompt:    genericKnowledgePropertiesPrompt,
	fields: []string{
		"description", "how_to_learn",
		"remember_level", "understand_level", "apply_level",
		"analyze_level", "evaluate_level", "create_level",
	},
}

var skillProfile = conceptProfile{
	category:         CategorySkill,
	agent:            AgentSkillGenerator,
	noun:             "skills",
	system:           SystemSkillExpert,
	listConfig:       conceptListConfig,
	propertiesConfig: propertiesConfig,
	conceptsPrompt:   skillConceptsPrompt,
	verifyPrompt:     skillVerifyPrompt,
	propertiesPrompt: skillPropertiesPrompt,
	genericPrompt:    genericSkillPropertiesPrompt,
	fields: []string{
		"description", "how_to_develop",
		"novice_level", "advanced_beginner_level", "competent_level",
		"proficient_level", "expert_level",
	},
}

var traitProfile = conceptProfile{
	category:         CategoryTrait,
	agent:            AgentTraitGenerator,
	noun:             "traits",
	system:           SystemTraitAnalyst,
	listConfig:       traitListConfig,
	propertiesConfig: traitPropertiesConfig,
	conceptsPrompt:   traitConceptsPrompt,
	verifyPrompt:     traitVerifyPrompt,
	propertiesPrompt: traitPropertiesPrompt,
	fields:           []string{"description", "measurement_criteria"},
}

var milestoneProfile = conceptProfile{
	category:         CategoryMilestone,
	agent:            AgentMilestoneGenerator,
	noun:             "milestones",
	system:           SystemMilestoneDesign,
	listConfig:       conceptListConfig,
	propertiesConfig: propertiesConfig,
	conceptsPrompt:   milestoneConceptsPrompt,
	verifyPrompt:     milestoneVerifyPrompt,
	propertiesPrompt: milestonePropertiesPrompt,
	genericPrompt:    genericMilestonePropertiesPrompt,
	fields:           []string{"description", "how_to_achieve"},
}

// profileFor maps every category to its generator profile
func profileFor(c Category) conceptProfile {
	switch c {
	case CategoryKnowledge:
		return knowledgeProfile
	case CategorySkill:
		return skillProfile
	case CategoryTrait:
		return traitProfile
	case CategoryMilestone:
		return milestoneProfile
	default:
		panic("no generator profile for category " + c.String())
	}
}
