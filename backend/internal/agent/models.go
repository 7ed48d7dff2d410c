package agent

import (
	"strings"
)

// ============================================================================
// Categories
// ============================================================================

// Category is one of the four concept node types generated per domain
type Category int

const (
	CategoryKnowledge Category = iota
	CategorySkill
	CategoryTrait
	CategoryMilestone
)

// Categories lists every concept category in generation order
var Categories = []Category{CategoryKnowledge, CategorySkill, CategoryTrait, CategoryMilestone}

// Node labels and edge types outside the concept categories
const (
	LabelDomain      = "Domain"
	LabelDomainLevel = "Domain_Level"

	RelHasDomainLevel = "HAS_DOMAIN_LEVEL"
	RelGeneralizesTo  = "GENERALIZES_TO"
)

// Label returns the graph label for the category
func (c Category) Label() string {
	switch c {
	case CategoryKnowledge:
		return "Knowledge"
	case CategorySkill:
		return "Skill"
	case CategoryTrait:
		return "Trait"
	case CategoryMilestone:
		return "Milestone"
	default:
		return ""
	}
}

// RequiresEdge returns the edge type pointing at a node of this category
func (c Category) RequiresEdge() string {
	return "REQUIRES_" + strings.ToUpper(c.Label())
}

func (c Category) String() string {
	return c.Label()
}

// ParseCategory maps a model-supplied type name back to a Category
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if strings.EqualFold(strings.TrimSpace(s), c.Label()) {
			return c, true
		}
	}
	return 0, false
}

// ============================================================================
// Agents
// ============================================================================

// AgentType identifies a pipeline step on the event stream
type AgentType string

const (
	AgentDomainArchitect    AgentType = "domain_architect"
	AgentKnowledgeGenerator AgentType = "knowledge_generator"
	AgentSkillGenerator     AgentType = "skill_generator"
	AgentTraitGenerator     AgentType = "trait_generator"
	AgentMilestoneGenerator AgentType = "milestone_generator"
	AgentLevelDistributor   AgentType = "level_distributor"
	AgentPrerequisiteMapper AgentType = "prerequisite_mapper"
)

// DisplayName is the human-readable step name sent with AgentStarted
func (a AgentType) DisplayName() string {
	switch a {
	case AgentDomainArchitect:
		return "Domain Architect"
	case AgentKnowledgeGenerator:
		return "Knowledge Generator"
	case AgentSkillGenerator:
		return "Skill Generator"
	case AgentTraitGenerator:
		return "Trait Generator"
	case AgentMilestoneGenerator:
		return "Milestone Generator"
	case AgentLevelDistributor:
		return "Level Distributor"
	case AgentPrerequisiteMapper:
		return "Prerequisite Mapper"
	default:
		return string(a)
	}
}

// ============================================================================
// Created nodes and relationship records
// ============================================================================

// CreatedNode is a node written by this run or reused from the store
type CreatedNode struct {
	Name      string `json:"name"`
	StoreID   string `json:"elementId"`
	Label     string `json:"label"`
	WasReused bool   `json:"wasReused"`
}

// LevelRequirement records a Domain_Level -> concept REQUIRES_* edge
type LevelRequirement struct {
	LevelID       string `json:"levelId"`
	ComponentID   string `json:"componentId"`
	ComponentName string `json:"componentName"`
	ComponentType string `json:"componentType"`
	Proficiency   string `json:"proficiency,omitempty"`
}

// Generalization records a GENERALIZES_TO edge
type Generalization struct {
	SpecificID   string `json:"specificId"`
	SpecificName string `json:"specificName"`
	GeneralID    string `json:"generalId"`
	GeneralName  string `json:"generalName"`
	NodeType     string `json:"nodeType"`
}

// Prerequisite records a concept -> concept REQUIRES_* edge
type Prerequisite struct {
	SourceID         string `json:"sourceId"`
	SourceName       string `json:"sourceName"`
	TargetID         string `json:"targetId"`
	TargetName       string `json:"targetName"`
	RelationshipType string `json:"relationshipType"`
}

// ============================================================================
// Verification outcomes
// ============================================================================

// ConceptAction is what to do with a candidate concept after triage
type ConceptAction interface {
	// Decision is the wire name reported in VerificationResult
	Decision() string
	isConceptAction()
}

// CreateNew mints a new node
type CreateNew struct{}

// UseExisting reuses a stored node and writes nothing
type UseExisting struct {
	StoreID string
	Name    string
}

// CreateAndGeneralize mints a domain-specific node linked to a broader one.
// NeedsCreation is set while GeneralID is still unresolved.
type CreateAndGeneralize struct {
	GeneralID     string
	GeneralName   string
	NeedsCreation bool
}

func (CreateNew) Decision() string           { return "create_new" }
func (UseExisting) Decision() string         { return "use_existing" }
func (CreateAndGeneralize) Decision() string { return "create_and_generalize" }

func (CreateNew) isConceptAction()           {}
func (UseExisting) isConceptAction()         {}
func (CreateAndGeneralize) isConceptAction() {}

// VerifiedConcept pairs a candidate name with its resolved action
type VerifiedConcept struct {
	Name   string
	Action ConceptAction
}

// GeneralizesTo returns the target name for CreateAndGeneralize actions
func (v VerifiedConcept) GeneralizesTo() string {
	if g, ok := v.Action.(CreateAndGeneralize); ok {
		return g.GeneralName
	}
	return ""
}

// ============================================================================
// Run state
// ============================================================================

// GenerationContext is threaded through every step of one run
type GenerationContext struct {
	DomainName  string
	Description string
	DomainID    string
	Registry    *DomainGraphRegistry
}

// NewGenerationContext creates the context for a fresh run
func NewGenerationContext(domainName, description string) *GenerationContext {
	return &GenerationContext{
		DomainName:  domainName,
		Description: description,
		Registry:    NewDomainGraphRegistry(),
	}
}

// Statistics summarises a completed run
type Statistics struct {
	DomainLevelsCreated  int   `json:"domainLevelsCreated"`
	KnowledgeCreated     int   `json:"knowledgeCreated"`
	SkillsCreated        int   `json:"skillsCreated"`
	TraitsCreated        int   `json:"traitsCreated"`
	MilestonesCreated    int   `json:"milestonesCreated"`
	RelationshipsCreated int   `json:"relationshipsCreated"`
	NodesReused          int   `json:"nodesReused"`
	GenerationTimeMs     int64 `json:"generationTimeMs"`
}

// Result is what a finished run hands back to its caller
type Result struct {
	RunID      string               `json:"runId"`
	DomainName string               `json:"domainName"`
	DomainID   string               `json:"domainElementId"`
	Registry   *DomainGraphRegistry `json:"createdNodes"`
	Statistics Statistics           `json:"statistics"`
}

// Category returns the concept category an agent generates, if any
func (a AgentType) Category() (Category, bool) {
	switch a {
	case AgentKnowledgeGenerator:
		return CategoryKnowledge, true
	case AgentSkillGenerator:
		return CategorySkill, true
	case AgentTraitGenerator:
		return CategoryTrait, true
	case AgentMilestoneGenerator:
		return CategoryMilestone, true
	default:
		return 0, false
	}
}
