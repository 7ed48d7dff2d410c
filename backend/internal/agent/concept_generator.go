package agent

import (
	"context"
	"fmt"
	"strings"

	"atlas-of-us/backend/internal/graph"
	"atlas-of-us/backend/internal/metrics"
	"atlas-of-us/backend/pkg/config"

	"go.uber.org/zap"
)

// ConceptGenerator populates one concept category. Each pass finishes for
// every candidate before the next pass starts:
//
//	conceptualize -> similarity search -> triage/verify -> materialize
//	generalization targets -> properties -> create nodes -> GENERALIZES_TO
//	edges -> registry
type ConceptGenerator struct {
	profile conceptProfile
	llm     TextGenerator
	store   GraphStore
	events  Emitter
	policy  config.SimilarityPolicy
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewConceptGenerator creates the generator step for a category
func NewConceptGenerator(category Category, deps Dependencies, events Emitter) *ConceptGenerator {
	profile := profileFor(category)
	return &ConceptGenerator{
		profile: profile,
		llm:     deps.LLM,
		store:   deps.Store,
		events:  events,
		policy:  deps.Policy,
		metrics: deps.Metrics,
		logger:  deps.logger().With(zap.String("agent", string(profile.agent))),
	}
}

func (g *ConceptGenerator) Type() AgentType {
	return g.profile.agent
}

type candidateMatches struct {
	name    string
	similar []graph.SimilarNode
}

func (g *ConceptGenerator) Execute(ctx context.Context, gc *GenerationContext) error {
	label := g.profile.category.Label()

	g.progress(fmt.Sprintf("Identifying %s...", g.profile.noun))
	concepts, err := g.conceptualize(ctx, gc)
	if err != nil {
		return err
	}
	g.progress(fmt.Sprintf("Found %d %s", len(concepts), g.profile.noun))

	g.progress("Searching for similar existing nodes...")
	matches, err := g.searchSimilar(ctx, concepts)
	if err != nil {
		return err
	}

	g.progress("Verifying node matches...")
	verified, err := g.triage(ctx, gc, matches)
	if err != nil {
		return err
	}

	if g.profile.generalizes() {
		if err := g.materializeTargets(ctx, gc, verified); err != nil {
			return err
		}
	}

	g.progress(fmt.Sprintf("Generating %s properties...", strings.ToLower(label)))
	props, err := g.generateProperties(ctx, gc, verified)
	if err != nil {
		return err
	}

	g.progress("Creating nodes in database...")
	nodes, err := g.createNodes(ctx, verified, props)
	if err != nil {
		return err
	}

	generalizations := g.linkGeneralizations(ctx, verified, nodes)

	for _, node := range nodes {
		g.record(gc, node)
	}
	for _, rec := range generalizations {
		gc.Registry.AddGeneralization(rec)
	}
	gc.Registry.Deduplicate()

	return nil
}

// Pass 1
func (g *ConceptGenerator) conceptualize(ctx context.Context, gc *GenerationContext) ([]string, error) {
	response, err := g.llm.Generate(ctx, g.profile.system, g.profile.conceptsPrompt(gc), g.profile.listConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", g.profile.noun, err)
	}

	concepts, err := ParseCandidateList(response)
	if err != nil {
		g.logger.Warn("Unparseable concept list", zap.String("response", response))
		return nil, err
	}
	return concepts, nil
}

// Pass 2
func (g *ConceptGenerator) searchSimilar(ctx context.Context, concepts []string) ([]candidateMatches, error) {
	label := g.profile.category.Label()
	matches := make([]candidateMatches, 0, len(concepts))

	for _, concept := range concepts {
		similar, err := g.store.FindSimilar(ctx, concept, label, g.policy.TopK)
		if err != nil {
			return nil, fmt.Errorf("similarity search for %q failed: %w", concept, err)
		}
		matches = append(matches, candidateMatches{name: concept, similar: similar})
	}
	return matches, nil
}

// Pass 3
func (g *ConceptGenerator) triage(ctx context.Context, gc *GenerationContext, matches []candidateMatches) ([]VerifiedConcept, error) {
	thresholds := g.profile.thresholds(g.policy)
	verified := make([]VerifiedConcept, 0, len(matches))

	for _, m := range matches {
		check := SimilarityCheck{Agent: g.Type(), Concept: m.name, SimilarFound: len(m.similar)}
		if len(m.similar) > 0 {
			top := m.similar[0].Score
			check.TopScore = &top
		}
		g.events.Emit(check)

		decision := TriageByScore(m.name, m.similar, thresholds)
		source := "score"
		if decision == nil {
			v, err := g.verify(ctx, gc, m)
			if err != nil {
				return nil, err
			}
			decision = &v
			source = "model"
		}

		g.metrics.Triage(decision.Action.Decision(), source)
		g.events.Emit(VerificationResult{
			Agent:         g.Type(),
			Concept:       m.name,
			Decision:      decision.Action.Decision(),
			GeneralizesTo: decision.GeneralizesTo(),
		})
		verified = append(verified, *decision)
	}
	return verified, nil
}

func (g *ConceptGenerator) verify(ctx context.Context, gc *GenerationContext, m candidateMatches) (VerifiedConcept, error) {
	prompt := g.profile.verifyPrompt(m.name, gc.DomainName, m.similar)
	response, err := g.llm.Generate(ctx, g.profile.system, prompt, verificationConfig)
	if err != nil {
		return VerifiedConcept{}, fmt.Errorf("verification of %q failed: %w", m.name, err)
	}

	if !g.profile.generalizes() {
		return ParseTraitDecision(response, m.name, m.similar)
	}

	v, err := ParseVerificationDecision(response, m.name)
	if err != nil {
		return VerifiedConcept{}, err
	}

	switch action := v.Action.(type) {
	case UseExisting:
		chosen := m.similar[0]
		if match, ok := candidateByName(m.similar, action.Name); ok {
			chosen = match
		}
		v.Action = UseExisting{StoreID: chosen.ID, Name: chosen.Name}
	case CreateAndGeneralize:
		if strings.EqualFold(action.GeneralName, m.name) {
			v.Action = CreateNew{}
			break
		}
		resolved, err := g.resolveGeneralization(ctx, action, m.similar)
		if err != nil {
			return VerifiedConcept{}, err
		}
		v.Action = resolved
	}
	return v, nil
}

// resolveGeneralization finds the store id of a generalization target: first
// among the concept's own candidates, then by exact name in the store, then
// with a fresh single-result search. Unresolved targets are marked NeedsCreation.
func (g *ConceptGenerator) resolveGeneralization(ctx context.Context, action CreateAndGeneralize, candidates []graph.SimilarNode) (CreateAndGeneralize, error) {
	if match, ok := candidateByName(candidates, action.GeneralName); ok {
		return CreateAndGeneralize{GeneralID: match.ID, GeneralName: match.Name}, nil
	}

	label := g.profile.category.Label()
	id, ok, err := g.store.FindNodeByName(ctx, action.GeneralName, label)
	if err != nil {
		return action, fmt.Errorf("name lookup for generalization target %q failed: %w", action.GeneralName, err)
	}
	if ok {
		return CreateAndGeneralize{GeneralID: id, GeneralName: action.GeneralName}, nil
	}

	found, err := g.store.FindSimilar(ctx, action.GeneralName, label, 1)
	if err != nil {
		return action, fmt.Errorf("similarity search for generalization target %q failed: %w", action.GeneralName, err)
	}
	if len(found) > 0 && (found[0].Score >= g.policy.GeneralizationMatch || found[0].Name == action.GeneralName) {
		return CreateAndGeneralize{GeneralID: found[0].ID, GeneralName: found[0].Name}, nil
	}

	return CreateAndGeneralize{GeneralName: action.GeneralName, NeedsCreation: true}, nil
}

// Pass 4. Targets shared by several concepts are created once.
func (g *ConceptGenerator) materializeTargets(ctx context.Context, gc *GenerationContext, verified []VerifiedConcept) error {
	created := make(map[string]string)

	for i := range verified {
		action, ok := verified[i].Action.(CreateAndGeneralize)
		if !ok || !action.NeedsCreation {
			continue
		}

		key := strings.ToLower(action.GeneralName)
		id, done := created[key]
		if !done {
			g.progress(fmt.Sprintf("Creating general %s %q...", strings.ToLower(g.profile.category.Label()), action.GeneralName))
			node, err := g.createGenericNode(ctx, action.GeneralName)
			if err != nil {
				return err
			}
			g.record(gc, node)
			id = node.StoreID
			created[key] = id
		}

		verified[i].Action = CreateAndGeneralize{GeneralID: id, GeneralName: action.GeneralName}
	}
	return nil
}

func (g *ConceptGenerator) createGenericNode(ctx context.Context, name string) (CreatedNode, error) {
	response, err := g.llm.Generate(ctx, g.profile.system, g.profile.genericPrompt(name), g.profile.propertiesConfig)
	if err != nil {
		return CreatedNode{}, fmt.Errorf("failed to generate properties for %q: %w", name, err)
	}

	props, err := ParseProperties(response, name, g.profile.fields)
	if err != nil {
		return CreatedNode{}, err
	}
	props["name"] = name

	return g.writeNode(ctx, props)
}

// Pass 5. The result is aligned with verified; reused concepts get nil.
func (g *ConceptGenerator) generateProperties(ctx context.Context, gc *GenerationContext, verified []VerifiedConcept) ([]map[string]interface{}, error) {
	props := make([]map[string]interface{}, len(verified))

	for i, v := range verified {
		if _, reused := v.Action.(UseExisting); reused {
			continue
		}

		prompt := g.profile.propertiesPrompt(gc.DomainName, v.Name, v.GeneralizesTo())
		response, err := g.llm.Generate(ctx, g.profile.system, prompt, g.profile.propertiesConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to generate properties for %q: %w", v.Name, err)
		}

		p, err := ParseProperties(response, v.Name, g.profile.fields)
		if err != nil {
			return nil, err
		}
		props[i] = p
	}
	return props, nil
}

// Pass 6. The result is aligned with verified.
func (g *ConceptGenerator) createNodes(ctx context.Context, verified []VerifiedConcept, props []map[string]interface{}) ([]CreatedNode, error) {
	nodes := make([]CreatedNode, len(verified))

	for i, v := range verified {
		if existing, reused := v.Action.(UseExisting); reused {
			name := existing.Name
			if name == "" {
				name = v.Name
			}
			nodes[i] = CreatedNode{
				Name:      name,
				StoreID:   existing.StoreID,
				Label:     g.profile.category.Label(),
				WasReused: true,
			}
			continue
		}

		node, err := g.writeNode(ctx, props[i])
		if err != nil {
			return nil, err
		}
		nodes[i] = node
	}
	return nodes, nil
}

func (g *ConceptGenerator) writeNode(ctx context.Context, props map[string]interface{}) (CreatedNode, error) {
	label := g.profile.category.Label()

	record, err := g.store.CreateNode(ctx, []string{label}, props)
	if err != nil {
		return CreatedNode{}, fmt.Errorf("failed to create %s node %q: %w", label, props["name"], err)
	}

	name := record.Name
	if name == "" {
		name, _ = props["name"].(string)
	}
	return CreatedNode{Name: name, StoreID: record.ID, Label: label}, nil
}

// Pass 7. Failed edge writes are logged and skipped.
func (g *ConceptGenerator) linkGeneralizations(ctx context.Context, verified []VerifiedConcept, nodes []CreatedNode) []Generalization {
	var records []Generalization

	for i, v := range verified {
		action, ok := v.Action.(CreateAndGeneralize)
		if !ok {
			continue
		}
		if action.GeneralID == "" {
			g.logger.Warn("Skipping generalization with unresolved target",
				zap.String("concept", v.Name),
				zap.String("target", action.GeneralName),
			)
			continue
		}

		if _, err := g.store.CreateEdge(ctx, nodes[i].StoreID, action.GeneralID, RelGeneralizesTo, nil); err != nil {
			g.logger.Warn("Failed to create generalization edge",
				zap.String("concept", v.Name),
				zap.String("target", action.GeneralName),
				zap.Error(err),
			)
			continue
		}
		g.metrics.EdgeWritten(RelGeneralizesTo)

		records = append(records, Generalization{
			SpecificID:   nodes[i].StoreID,
			SpecificName: nodes[i].Name,
			GeneralID:    action.GeneralID,
			GeneralName:  action.GeneralName,
			NodeType:     g.profile.category.Label(),
		})
	}
	return records
}

// record appends a node to the registry and announces it
func (g *ConceptGenerator) record(gc *GenerationContext, node CreatedNode) {
	gc.Registry.Add(g.profile.category, node)
	g.metrics.NodeWritten(node.Label, node.WasReused)
	g.events.Emit(NodeCreated{
		Agent:     g.Type(),
		NodeName:  node.Name,
		Label:     node.Label,
		WasReused: node.WasReused,
	})
}

func (g *ConceptGenerator) progress(message string) {
	g.events.Emit(StepProgress{Agent: g.Type(), Message: message})
}
