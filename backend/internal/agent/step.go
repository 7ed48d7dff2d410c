package agent

import (
	"context"

	"atlas-of-us/backend/internal/adapter"
	"atlas-of-us/backend/internal/graph"
	"atlas-of-us/backend/internal/metrics"
	"atlas-of-us/backend/pkg/config"
	"atlas-of-us/backend/pkg/logger"

	"go.uber.org/zap"
)

// TextGenerator produces model completions
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, cfg adapter.GenerationConfig) (string, error)
	HealthCheck(ctx context.Context) error
}

// GraphStore is the subset of the graph repository the pipeline writes through
type GraphStore interface {
	CreateNode(ctx context.Context, labels []string, props map[string]interface{}) (*graph.CreatedRecord, error)
	CreateEdge(ctx context.Context, sourceID, targetID, relType string, props map[string]interface{}) (string, error)
	FindNodeByName(ctx context.Context, name, label string) (string, bool, error)
	FindSimilar(ctx context.Context, text, label string, limit int) ([]graph.SimilarNode, error)
}

// AvatarGenerator renders and stores a domain avatar, returning its URL
type AvatarGenerator interface {
	CreateDomainAvatar(ctx context.Context, domainName string) (string, error)
}

// Step is one stage of the fixed generation pipeline
type Step interface {
	Type() AgentType
	Execute(ctx context.Context, gc *GenerationContext) error
}

// Dependencies are the collaborators shared by every step of a run
type Dependencies struct {
	LLM     TextGenerator
	Store   GraphStore
	Avatars AvatarGenerator // optional
	Policy  config.SimilarityPolicy
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

func (d Dependencies) logger() *zap.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return logger.Get()
}

// Generation parameters per call family
var (
	conceptListConfig      = adapter.GenerationConfig{MaxTokens: 2048, Temperature: 0.5}
	traitListConfig        = adapter.GenerationConfig{MaxTokens: 1024, Temperature: 0.5}
	verificationConfig     = adapter.GenerationConfig{MaxTokens: 512, Temperature: 0.2}
	propertiesConfig       = adapter.GenerationConfig{MaxTokens: 2048, Temperature: 0.3}
	traitPropertiesConfig  = adapter.GenerationConfig{MaxTokens: 1024, Temperature: 0.3}
	relationshipStepConfig = adapter.GenerationConfig{MaxTokens: 4096, Temperature: 0.3}
)

// NewPipeline builds the seven steps in execution order
func NewPipeline(deps Dependencies, events Emitter) []Step {
	return []Step{
		NewDomainArchitect(deps, events),
		NewConceptGenerator(CategoryKnowledge, deps, events),
		NewConceptGenerator(CategorySkill, deps, events),
		NewConceptGenerator(CategoryTrait, deps, events),
		NewConceptGenerator(CategoryMilestone, deps, events),
		NewLevelDistributor(deps, events),
		NewPrerequisiteMapper(deps, events),
	}
}
