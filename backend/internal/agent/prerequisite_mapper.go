package agent

import (
	"context"
	"fmt"

	"atlas-of-us/backend/internal/metrics"

	"go.uber.org/zap"
)

// PrerequisiteMapper writes REQUIRES_* edges between concepts
type PrerequisiteMapper struct {
	llm     TextGenerator
	store   GraphStore
	events  Emitter
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewPrerequisiteMapper(deps Dependencies, events Emitter) *PrerequisiteMapper {
	return &PrerequisiteMapper{
		llm:     deps.LLM,
		store:   deps.Store,
		events:  events,
		metrics: deps.Metrics,
		logger:  deps.logger().With(zap.String("agent", string(AgentPrerequisiteMapper))),
	}
}

func (p *PrerequisiteMapper) Type() AgentType {
	return AgentPrerequisiteMapper
}

type prerequisiteRef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type prerequisiteEntry struct {
	Component     string            `json:"component"`
	ComponentType string            `json:"component_type"`
	Requires      []prerequisiteRef `json:"requires"`
}

type prerequisiteResponse struct {
	Prerequisites *[]prerequisiteEntry `json:"prerequisites"`
}

type resolvedPrerequisite struct {
	source  CreatedNode
	target  CreatedNode
	relType string
}

func (p *PrerequisiteMapper) Execute(ctx context.Context, gc *GenerationContext) error {
	p.progress("Analyzing prerequisite relationships...")

	summary := gc.Registry.ContextSummary(gc.DomainName)
	response, err := p.llm.Generate(ctx, SystemRelationships, prerequisiteAnalysisPrompt(gc.DomainName, summary), relationshipStepConfig)
	if err != nil {
		return fmt.Errorf("failed to generate prerequisites: %w", err)
	}

	var parsed prerequisiteResponse
	err = decodeObjectWith(response, "prerequisites", "missing prerequisites array", &parsed, func() bool {
		return parsed.Prerequisites != nil
	})
	if err != nil {
		return err
	}

	pairs := p.resolve(gc.Registry, *parsed.Prerequisites)
	p.progress(fmt.Sprintf("Identified %d prerequisite relationships", len(pairs)))

	p.progress("Creating prerequisite relationships in database...")
	count := 0
	for _, pair := range pairs {
		if _, err := p.store.CreateEdge(ctx, pair.source.StoreID, pair.target.StoreID, pair.relType, nil); err != nil {
			p.logger.Warn("Failed to create prerequisite",
				zap.String("source", pair.source.Name),
				zap.String("target", pair.target.Name),
				zap.Error(err),
			)
			continue
		}
		p.metrics.EdgeWritten(pair.relType)
		count++

		gc.Registry.AddPrerequisite(Prerequisite{
			SourceID:         pair.source.StoreID,
			SourceName:       pair.source.Name,
			TargetID:         pair.target.StoreID,
			TargetName:       pair.target.Name,
			RelationshipType: pair.relType,
		})
	}

	p.progress(fmt.Sprintf("Created %d prerequisite relationships", count))
	return nil
}

// resolve drops pairs where either end is unknown, and self-references
func (p *PrerequisiteMapper) resolve(registry *DomainGraphRegistry, entries []prerequisiteEntry) []resolvedPrerequisite {
	var pairs []resolvedPrerequisite

	for _, entry := range entries {
		sourceCategory, ok := ParseCategory(entry.ComponentType)
		if !ok {
			continue
		}
		source, ok := registry.FindInCategory(sourceCategory, entry.Component)
		if !ok {
			p.logger.Debug("Dropping prerequisites for unknown component", zap.String("component", entry.Component))
			continue
		}

		for _, req := range entry.Requires {
			targetCategory, ok := ParseCategory(req.Type)
			if !ok {
				continue
			}
			target, ok := registry.FindInCategory(targetCategory, req.Name)
			if !ok || target.StoreID == source.StoreID {
				continue
			}
			pairs = append(pairs, resolvedPrerequisite{
				source:  source,
				target:  target,
				relType: targetCategory.RequiresEdge(),
			})
		}
	}
	return pairs
}

func (p *PrerequisiteMapper) progress(message string) {
	p.events.Emit(StepProgress{Agent: AgentPrerequisiteMapper, Message: message})
}
