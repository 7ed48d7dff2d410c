package agent

import (
	"context"
	"fmt"

	"atlas-of-us/backend/internal/metrics"

	"go.uber.org/zap"
)

// LevelSpec describes one fixed mastery level
type LevelSpec struct {
	Level               int
	Name                string
	Description         string
	TotalPointsRequired int
}

// levelSuffixes are the canonical level name suffixes, lowest first
var levelSuffixes = []string{"Novice", "Developing", "Competent", "Advanced", "Master"}

// LevelStructure returns the five levels every domain gets
func LevelStructure(domainName string) []LevelSpec {
	descriptions := []string{
		"Beginning your journey in %s",
		"Building foundational skills in %s",
		"Demonstrating solid competence in %s",
		"Achieving advanced mastery in %s",
		"Expert-level mastery of %s",
	}
	points := []int{100, 200, 400, 700, 1000}

	levels := make([]LevelSpec, len(levelSuffixes))
	for i, suffix := range levelSuffixes {
		levels[i] = LevelSpec{
			Level:               i + 1,
			Name:                domainName + " " + suffix,
			Description:         fmt.Sprintf(descriptions[i], domainName),
			TotalPointsRequired: points[i],
		}
	}
	return levels
}

// DomainArchitect creates the Domain node and its levels
type DomainArchitect struct {
	store   GraphStore
	avatars AvatarGenerator
	events  Emitter
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewDomainArchitect(deps Dependencies, events Emitter) *DomainArchitect {
	return &DomainArchitect{
		store:   deps.Store,
		avatars: deps.Avatars,
		events:  events,
		metrics: deps.Metrics,
		logger:  deps.logger().With(zap.String("agent", string(AgentDomainArchitect))),
	}
}

func (d *DomainArchitect) Type() AgentType {
	return AgentDomainArchitect
}

func (d *DomainArchitect) Execute(ctx context.Context, gc *GenerationContext) error {
	avatarURL := d.generateAvatar(ctx, gc.DomainName)

	d.progress("Creating domain node...")
	props := map[string]interface{}{
		"name":        gc.DomainName,
		"description": gc.Description,
	}
	if avatarURL != "" {
		props["avatar_url"] = avatarURL
	}

	record, err := d.store.CreateNode(ctx, []string{LabelDomain}, props)
	if err != nil {
		return fmt.Errorf("failed to create domain node: %w", err)
	}

	domain := CreatedNode{Name: gc.DomainName, StoreID: record.ID, Label: LabelDomain}
	gc.Registry.SetDomain(domain)
	gc.DomainID = record.ID
	d.announce(domain)

	levels := LevelStructure(gc.DomainName)
	d.progress(fmt.Sprintf("Creating %d domain levels...", len(levels)))

	for _, spec := range levels {
		levelRecord, err := d.store.CreateNode(ctx, []string{LabelDomainLevel}, map[string]interface{}{
			"name":                  spec.Name,
			"description":           spec.Description,
			"level":                 spec.Level,
			"total_points_required": spec.TotalPointsRequired,
		})
		if err != nil {
			return fmt.Errorf("failed to create level %q: %w", spec.Name, err)
		}

		if _, err := d.store.CreateEdge(ctx, record.ID, levelRecord.ID, RelHasDomainLevel, nil); err != nil {
			return fmt.Errorf("failed to link level %q: %w", spec.Name, err)
		}
		d.metrics.EdgeWritten(RelHasDomainLevel)

		level := CreatedNode{Name: spec.Name, StoreID: levelRecord.ID, Label: LabelDomainLevel}
		gc.Registry.AddDomainLevel(level)
		d.announce(level)
	}

	return nil
}

// generateAvatar returns "" when avatars are disabled or generation fails
func (d *DomainArchitect) generateAvatar(ctx context.Context, domainName string) string {
	if d.avatars == nil {
		return ""
	}

	d.progress("Generating domain avatar...")
	url, err := d.avatars.CreateDomainAvatar(ctx, domainName)
	if err != nil {
		d.logger.Warn("Avatar generation failed, continuing without one", zap.Error(err))
		return ""
	}

	d.progress("Domain avatar created")
	return url
}

func (d *DomainArchitect) announce(node CreatedNode) {
	d.metrics.NodeWritten(node.Label, false)
	d.events.Emit(NodeCreated{
		Agent:    AgentDomainArchitect,
		NodeName: node.Name,
		Label:    node.Label,
	})
}

func (d *DomainArchitect) progress(message string) {
	d.events.Emit(StepProgress{Agent: AgentDomainArchitect, Message: message})
}
