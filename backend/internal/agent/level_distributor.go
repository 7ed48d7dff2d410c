package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"atlas-of-us/backend/internal/metrics"

	"go.uber.org/zap"
)

// LevelDistributor links every concept to the level that requires it
type LevelDistributor struct {
	llm     TextGenerator
	store   GraphStore
	events  Emitter
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewLevelDistributor(deps Dependencies, events Emitter) *LevelDistributor {
	return &LevelDistributor{
		llm:     deps.LLM,
		store:   deps.Store,
		events:  events,
		metrics: deps.Metrics,
		logger:  deps.logger().With(zap.String("agent", string(AgentLevelDistributor))),
	}
}

func (l *LevelDistributor) Type() AgentType {
	return AgentLevelDistributor
}

type levelAssignment struct {
	Component     string         `json:"component"`
	ComponentType string         `json:"component_type"`
	Level         flexibleInt    `json:"level"`
	Proficiency   flexibleString `json:"proficiency"`
}

type levelAssignmentResponse struct {
	LevelAssignments *[]levelAssignment `json:"level_assignments"`
}

// resolvedAssignment is an assignment whose level and component both exist
type resolvedAssignment struct {
	level     CreatedNode
	component CreatedNode
	category  Category
	raw       levelAssignment
}

func (l *LevelDistributor) Execute(ctx context.Context, gc *GenerationContext) error {
	l.progress("Assigning components to domain levels...")

	summary := gc.Registry.ContextSummary(gc.DomainName)
	response, err := l.llm.Generate(ctx, SystemRelationships, levelAssignmentPrompt(gc.DomainName, summary), relationshipStepConfig)
	if err != nil {
		return fmt.Errorf("failed to generate level assignments: %w", err)
	}

	var parsed levelAssignmentResponse
	err = decodeObjectWith(response, "level assignments", "missing level_assignments array", &parsed, func() bool {
		return parsed.LevelAssignments != nil
	})
	if err != nil {
		return err
	}

	assignments := l.resolve(gc.Registry, *parsed.LevelAssignments)
	l.progress(fmt.Sprintf("Identified %d level assignments", len(assignments)))

	l.progress("Creating level relationships in database...")
	count := 0
	for _, a := range assignments {
		relType := a.category.RequiresEdge()
		props := levelEdgeProperties(a.category, string(a.raw.Proficiency))

		if _, err := l.store.CreateEdge(ctx, a.level.StoreID, a.component.StoreID, relType, props); err != nil {
			l.logger.Warn("Failed to create level requirement",
				zap.String("level", a.level.Name),
				zap.String("component", a.component.Name),
				zap.Error(err),
			)
			continue
		}
		l.metrics.EdgeWritten(relType)
		count++

		gc.Registry.AddLevelRequirement(LevelRequirement{
			LevelID:       a.level.StoreID,
			ComponentID:   a.component.StoreID,
			ComponentName: a.component.Name,
			ComponentType: a.category.Label(),
			Proficiency:   strings.TrimSpace(string(a.raw.Proficiency)),
		})
	}

	l.progress(fmt.Sprintf("Created %d level relationships", count))
	return nil
}

// resolve drops assignments whose component or level cannot be found
func (l *LevelDistributor) resolve(registry *DomainGraphRegistry, raw []levelAssignment) []resolvedAssignment {
	var resolved []resolvedAssignment

	for _, a := range raw {
		category, ok := ParseCategory(a.ComponentType)
		if !ok {
			l.logger.Debug("Dropping assignment with unknown type", zap.String("type", a.ComponentType))
			continue
		}
		component, ok := registry.FindInCategory(category, a.Component)
		if !ok {
			l.logger.Debug("Dropping assignment for unknown component", zap.String("component", a.Component))
			continue
		}
		if !a.Level.Valid {
			continue
		}
		level, ok := ResolveLevel(registry.DomainLevels, a.Level.Value)
		if !ok {
			l.logger.Debug("Dropping assignment for unknown level", zap.Int("level", a.Level.Value))
			continue
		}

		resolved = append(resolved, resolvedAssignment{
			level:     level,
			component: component,
			category:  category,
			raw:       a,
		})
	}
	return resolved
}

// ResolveLevel finds the level node for a 1-based level number by its
// canonical name suffix, falling back to position in the level list.
func ResolveLevel(levels []CreatedNode, number int) (CreatedNode, bool) {
	if number < 1 || number > len(levelSuffixes) {
		return CreatedNode{}, false
	}

	suffix := " " + levelSuffixes[number-1]
	for _, level := range levels {
		if strings.HasSuffix(level.Name, suffix) {
			return level, true
		}
	}

	if number <= len(levels) {
		return levels[number-1], true
	}
	return CreatedNode{}, false
}

// levelEdgeProperties maps a proficiency marker onto the category's edge
// property. Milestones carry none; unparseable trait scores are omitted.
func levelEdgeProperties(category Category, proficiency string) map[string]interface{} {
	proficiency = strings.TrimSpace(proficiency)
	if proficiency == "" {
		return nil
	}

	switch category {
	case CategoryKnowledge:
		return map[string]interface{}{"bloom_level": proficiency}
	case CategorySkill:
		return map[string]interface{}{"dreyfus_level": proficiency}
	case CategoryTrait:
		if score, err := strconv.Atoi(proficiency); err == nil {
			return map[string]interface{}{"min_score": score}
		}
		if score, err := strconv.ParseFloat(proficiency, 64); err == nil {
			return map[string]interface{}{"min_score": int(score)}
		}
	}
	return nil
}

func (l *LevelDistributor) progress(message string) {
	l.events.Emit(StepProgress{Agent: AgentLevelDistributor, Message: message})
}
