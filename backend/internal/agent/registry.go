package agent

import (
	"fmt"
	"strings"
)

// DomainGraphRegistry accumulates every node and relationship produced by one
// run. It is owned by a single run and is append-only.
type DomainGraphRegistry struct {
	Domain       *CreatedNode  `json:"domain,omitempty"`
	DomainLevels []CreatedNode `json:"domainLevels"`
	Knowledge    []CreatedNode `json:"knowledge"`
	Skills       []CreatedNode `json:"skills"`
	Traits       []CreatedNode `json:"traits"`
	Milestones   []CreatedNode `json:"milestones"`

	LevelRequirements []LevelRequirement `json:"levelRequirements"`
	Generalizations   []Generalization   `json:"generalizations"`
	Prerequisites     []Prerequisite     `json:"prerequisites"`
}

// NewDomainGraphRegistry returns an empty registry
func NewDomainGraphRegistry() *DomainGraphRegistry {
	return &DomainGraphRegistry{
		DomainLevels:      []CreatedNode{},
		Knowledge:         []CreatedNode{},
		Skills:            []CreatedNode{},
		Traits:            []CreatedNode{},
		Milestones:        []CreatedNode{},
		LevelRequirements: []LevelRequirement{},
		Generalizations:   []Generalization{},
		Prerequisites:     []Prerequisite{},
	}
}

func (r *DomainGraphRegistry) collection(c Category) *[]CreatedNode {
	switch c {
	case CategoryKnowledge:
		return &r.Knowledge
	case CategorySkill:
		return &r.Skills
	case CategoryTrait:
		return &r.Traits
	case CategoryMilestone:
		return &r.Milestones
	default:
		panic(fmt.Sprintf("unknown category %d", c))
	}
}

// Collection returns the nodes recorded for a category
func (r *DomainGraphRegistry) Collection(c Category) []CreatedNode {
	return *r.collection(c)
}

// SetDomain records the domain root node
func (r *DomainGraphRegistry) SetDomain(node CreatedNode) {
	r.Domain = &node
}

// AddDomainLevel appends a level; levels are kept in creation order
func (r *DomainGraphRegistry) AddDomainLevel(node CreatedNode) {
	r.DomainLevels = append(r.DomainLevels, node)
}

// Add appends a concept node to its category's collection
func (r *DomainGraphRegistry) Add(c Category, node CreatedNode) {
	col := r.collection(c)
	*col = append(*col, node)
}

func (r *DomainGraphRegistry) AddLevelRequirement(rec LevelRequirement) {
	r.LevelRequirements = append(r.LevelRequirements, rec)
}

func (r *DomainGraphRegistry) AddGeneralization(rec Generalization) {
	r.Generalizations = append(r.Generalizations, rec)
}

func (r *DomainGraphRegistry) AddPrerequisite(rec Prerequisite) {
	r.Prerequisites = append(r.Prerequisites, rec)
}

// Deduplicate collapses nodes sharing a store id within each collection,
// keeping the first occurrence. Running it again changes nothing.
func (r *DomainGraphRegistry) Deduplicate() {
	r.DomainLevels = dedupeByID(r.DomainLevels)
	for _, c := range Categories {
		col := r.collection(c)
		*col = dedupeByID(*col)
	}
}

func dedupeByID(nodes []CreatedNode) []CreatedNode {
	seen := make(map[string]bool, len(nodes))
	out := make([]CreatedNode, 0, len(nodes))
	for _, n := range nodes {
		if seen[n.StoreID] {
			continue
		}
		seen[n.StoreID] = true
		out = append(out, n)
	}
	return out
}

// FindByName looks a node up by name across levels and all concept
// collections. Exact matches win over case-insensitive ones.
func (r *DomainGraphRegistry) FindByName(name string) (CreatedNode, bool) {
	var pools [][]CreatedNode
	for _, c := range Categories {
		pools = append(pools, r.Collection(c))
	}
	pools = append(pools, r.DomainLevels)
	return findInPools(name, pools...)
}

// FindInCategory looks a node up by name within one category
func (r *DomainGraphRegistry) FindInCategory(c Category, name string) (CreatedNode, bool) {
	return findInPools(name, r.Collection(c))
}

func findInPools(name string, pools ...[]CreatedNode) (CreatedNode, bool) {
	name = strings.TrimSpace(name)
	for _, pool := range pools {
		for _, n := range pool {
			if n.Name == name {
				return n, true
			}
		}
	}
	for _, pool := range pools {
		for _, n := range pool {
			if strings.EqualFold(n.Name, name) {
				return n, true
			}
		}
	}
	return CreatedNode{}, false
}

// AllNodes returns every node in a flat list, domain first
func (r *DomainGraphRegistry) AllNodes() []CreatedNode {
	var nodes []CreatedNode
	if r.Domain != nil {
		nodes = append(nodes, *r.Domain)
	}
	nodes = append(nodes, r.DomainLevels...)
	for _, c := range Categories {
		nodes = append(nodes, r.Collection(c)...)
	}
	return nodes
}

// HasNode reports whether a store id is recorded anywhere in the registry
func (r *DomainGraphRegistry) HasNode(id string) bool {
	for _, n := range r.AllNodes() {
		if n.StoreID == id {
			return true
		}
	}
	return false
}

// CountCreated counts nodes written by this run
func (r *DomainGraphRegistry) CountCreated() int {
	count := 0
	for _, n := range r.AllNodes() {
		if !n.WasReused {
			count++
		}
	}
	return count
}

// CountReused counts nodes matched to existing store nodes
func (r *DomainGraphRegistry) CountReused() int {
	count := 0
	for _, n := range r.AllNodes() {
		if n.WasReused {
			count++
		}
	}
	return count
}

// CountCategory returns created and reused counts for one category
func (r *DomainGraphRegistry) CountCategory(c Category) (created, reused int) {
	for _, n := range r.Collection(c) {
		if n.WasReused {
			reused++
		} else {
			created++
		}
	}
	return created, reused
}

// RelationshipCount is the number of relationship records in the registry
func (r *DomainGraphRegistry) RelationshipCount() int {
	return len(r.LevelRequirements) + len(r.Generalizations) + len(r.Prerequisites)
}

// Validate checks that every relationship record points at nodes recorded in
// the registry. Generalization targets may live only in the store.
func (r *DomainGraphRegistry) Validate() error {
	for _, rec := range r.LevelRequirements {
		if !r.HasNode(rec.LevelID) || !r.HasNode(rec.ComponentID) {
			return fmt.Errorf("level requirement %q references an unknown node", rec.ComponentName)
		}
	}
	for _, rec := range r.Generalizations {
		if !r.HasNode(rec.SpecificID) || rec.GeneralID == "" {
			return fmt.Errorf("generalization %q -> %q references an unknown node", rec.SpecificName, rec.GeneralName)
		}
	}
	for _, rec := range r.Prerequisites {
		if !r.HasNode(rec.SourceID) || !r.HasNode(rec.TargetID) {
			return fmt.Errorf("prerequisite %q -> %q references an unknown node", rec.SourceName, rec.TargetName)
		}
	}
	return nil
}

// Snapshot returns a deep copy suitable for attaching to an event
func (r *DomainGraphRegistry) Snapshot() *DomainGraphRegistry {
	cp := &DomainGraphRegistry{
		DomainLevels:      append([]CreatedNode{}, r.DomainLevels...),
		Knowledge:         append([]CreatedNode{}, r.Knowledge...),
		Skills:            append([]CreatedNode{}, r.Skills...),
		Traits:            append([]CreatedNode{}, r.Traits...),
		Milestones:        append([]CreatedNode{}, r.Milestones...),
		LevelRequirements: append([]LevelRequirement{}, r.LevelRequirements...),
		Generalizations:   append([]Generalization{}, r.Generalizations...),
		Prerequisites:     append([]Prerequisite{}, r.Prerequisites...),
	}
	if r.Domain != nil {
		d := *r.Domain
		cp.Domain = &d
	}
	return cp
}

// Statistics derives run statistics from the registry
func (r *DomainGraphRegistry) Statistics() Statistics {
	knowledge, _ := r.CountCategory(CategoryKnowledge)
	skills, _ := r.CountCategory(CategorySkill)
	traits, _ := r.CountCategory(CategoryTrait)
	milestones, _ := r.CountCategory(CategoryMilestone)
	return Statistics{
		DomainLevelsCreated:  len(r.DomainLevels),
		KnowledgeCreated:     knowledge,
		SkillsCreated:        skills,
		TraitsCreated:        traits,
		MilestonesCreated:    milestones,
		RelationshipsCreated: r.RelationshipCount(),
		NodesReused:          r.CountReused(),
	}
}

// ContextSummary renders levels and concepts with their ids for relationship prompts
func (r *DomainGraphRegistry) ContextSummary(domainName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Domain: %s\n\n", domainName)

	b.WriteString("Domain Levels:\n")
	writeNodeList(&b, r.DomainLevels)

	headings := map[Category]string{
		CategoryKnowledge: "Knowledge Nodes",
		CategorySkill:     "Skill Nodes",
		CategoryTrait:     "Trait Nodes",
		CategoryMilestone: "Milestone Nodes",
	}
	for _, c := range Categories {
		fmt.Fprintf(&b, "\n%s:\n", headings[c])
		writeNodeList(&b, r.Collection(c))
	}
	return b.String()
}

func writeNodeList(b *strings.Builder, nodes []CreatedNode) {
	for _, n := range nodes {
		fmt.Fprintf(b, "- %s (ID: %s)\n", n.Name, n.StoreID)
	}
}

// Names returns the names recorded for a category
func (r *DomainGraphRegistry) Names(c Category) []string {
	col := r.Collection(c)
	names := make([]string, 0, len(col))
	for _, n := range col {
		names = append(names, n.Name)
	}
	return names
}
