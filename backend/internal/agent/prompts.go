package agent

import (
	"fmt"
	"strings"

	"atlas-of-us/backend/internal/graph"
)

// System prompts per step family
const (
	SystemKnowledgeExpert = "You are an expert in knowledge organization and Bloom's Taxonomy. Your role is to identify and structure knowledge components. You output only valid JSON."
	SystemSkillExpert     = "You are an expert in skill development and the Dreyfus model of skill acquisition. Your role is to identify and structure skill components. You output only valid JSON."
	SystemTraitAnalyst    = "You are an expert in human traits and aptitudes. Your role is to identify inherent traits relevant to domain success. You output only valid JSON."
	SystemMilestoneDesign = "You are an expert in achievement and milestone design. Your role is to create meaningful, measurable achievements. You output only valid JSON."
	SystemRelationships   = "You are an expert in curriculum design and prerequisite mapping. Your role is to create logical learning pathways. You output only valid JSON."
)

func descriptionSection(description string) string {
	if description == "" {
		return ""
	}
	return "\nDomain description: " + description
}

func generalizationNote(generalizesTo string) string {
	if generalizesTo == "" {
		return ""
	}
	return fmt.Sprintf("\nNote: This is a domain-specific version that generalizes to '%s'.", generalizesTo)
}

func similarList(nodes []graph.SimilarNode) string {
	lines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		desc := n.Description
		if desc == "" {
			desc = "No description"
		}
		lines = append(lines, fmt.Sprintf("- %s (similarity: %.2f): %s", n.Name, n.Score, desc))
	}
	return strings.Join(lines, "\n")
}

// ========== Concept lists ==========

func knowledgeConceptsPrompt(gc *GenerationContext) string {
	d := gc.DomainName
	return fmt.Sprintf(`For the domain "%[1]s", identify the essential knowledge concepts someone would need to master.
%[2]s

Consider knowledge at all levels from novice to master. Focus on:
- Foundational theoretical knowledge
- Technical/specialized knowledge
- Contextual/cultural knowledge
- Safety and best practices knowledge

CRITICAL RULES:
1. ATOMIC: Each concept must be a SINGLE concept. Never combine with "and".
   BAD: "Variables and Data Types" → GOOD: "Variables", "Data Types"
   BAD: "Opening Principles and Strategies" → GOOD: "Opening Principles", "Opening Strategies"

2. DOMAIN-SPECIFIC NAMING: Prefix concepts with the domain name "%[1]s".
   Example: "%[1]s Opening Principles", "%[1]s Tactics"
   NOT: "Opening Principles", "Tactics"

   Only omit prefix for universal concepts identical across all domains:
   - "Boolean Algebra", "Newton's Laws" (exact same content everywhere)

Output ONLY a JSON array of concept names (10-20 items), no explanation:
["Concept 1", "Concept 2", "Concept 3", ...]`, d, descriptionSection(gc.Description))
}

func skillConceptsPrompt(gc *GenerationContext) string {
	knowledge := ""
	if names := gc.Registry.Names(CategoryKnowledge); len(names) > 0 {
		knowledge = "\nExisting knowledge in this domain: " + strings.Join(names, ", ")
	}
	return fmt.Sprintf(`For the domain "%[1]s", identify the essential skills someone would need to develop.
%[2]s%[3]s

Consider skills at all levels from novice to expert. Focus on:
- Physical/technical skills
- Cognitive/analytical skills
- Social/communication skills
- Decision-making skills

CRITICAL RULES:
1. ATOMIC: Each skill must be a SINGLE ability. Never combine with "and".
   BAD: "Debugging and Testing" → GOOD: "Debugging", "Testing"
   BAD: "Planning and Execution" → GOOD: "Planning", "Execution"

2. DOMAIN-SPECIFIC NAMING: Prefix skills with the domain name "%[1]s".
   Example: "%[1]s Tactical Calculation", "%[1]s Position Evaluation"
   NOT: "Tactical Calculation", "Position Evaluation"

   Only omit prefix for universal skills that work identically across domains:
   - "Problem Solving", "Time Management", "Decision Making" (same practice everywhere)

Output ONLY a JSON array of skill names (8-15 items), no explanation:
["Skill 1", "Skill 2", "Skill 3", ...]`, gc.DomainName, descriptionSection(gc.Description), knowledge)
}

func traitConceptsPrompt(gc *GenerationContext) string {
	return fmt.Sprintf(`For the domain "%[1]s", identify inherent traits that contribute to success.
%[2]s

Traits are inherent characteristics (not teachable skills or learnable knowledge):
- Physical traits (strength, endurance, flexibility)
- Cognitive traits (spatial reasoning, pattern recognition)
- Personality traits (risk tolerance, persistence, competitive drive)
- Temperament traits (patience, emotional stability)

CRITICAL RULES:
1. ATOMIC: Each trait must be a SINGLE characteristic. Never combine with "and".
   BAD: "Patience and Perseverance" → GOOD: "Patience", "Perseverance"
   BAD: "Logical and Analytical Thinking" → GOOD: "Logical Thinking", "Analytical Thinking"

2. GENERIC NAMING: Traits should NOT have domain prefixes.
   Traits are fundamental cognitive/personality characteristics that manifest across ALL domains.

   CORRECT: "Pattern Recognition", "Logical Thinking", "Focus", "Mental Endurance", "Risk Tolerance"
   WRONG: "%[1]s Pattern Recognition", "%[1]s Focus"

   If you're tempted to add a domain prefix, it's probably a SKILL, not a trait.

Only include traits that are genuinely relevant to this domain.

Output ONLY a JSON array of trait names (3-8 items), no explanation:
["Trait 1", "Trait 2", "Trait 3", ...]`, gc.DomainName, descriptionSection(gc.Description))
}

func milestoneConceptsPrompt(gc *GenerationContext) string {
	r := gc.Registry
	existing := fmt.Sprintf("Existing components:\n- Knowledge: %s\n- Skills: %s\n- Traits: %s",
		strings.Join(r.Names(CategoryKnowledge), ", "),
		strings.Join(r.Names(CategorySkill), ", "),
		strings.Join(r.Names(CategoryTrait), ", "),
	)
	return fmt.Sprintf(`For the domain "%[1]s", identify concrete milestones/achievements across all mastery levels.
%[2]s

%[3]s

Milestones should be:
- Binary (achieved or not achieved)
- Concrete and measurable
- Distributed across all 5 levels (novice to master)
- Types: performance, achievement, participation, creation, recognition

CRITICAL RULES:
1. ATOMIC: Each milestone must be a SINGLE achievement. Never combine with "and".
   BAD: "Win Tournament and Reach 2000 ELO" → GOOD: "Win Tournament", "Reach 2000 ELO"
   BAD: "Complete Project and Deploy" → GOOD: "Complete Project", "Deploy to Production"

2. DOMAIN-SPECIFIC: Milestones are achievements within this domain.
   Use clear, measurable descriptions specific to "%[1]s".

Output ONLY a JSON array of milestone names (12-20 items), no explanation:
["Milestone 1", "Milestone 2", "Milestone 3", ...]`, gc.DomainName, descriptionSection(gc.Description), existing)
}

// ========== Verification ==========

// generalizingVerifyPrompt builds the three-way verification prompt. noun is
// "knowledge"/"skill"/"milestone" and example is a domain-specific sample name.
func generalizingVerifyPrompt(noun, example, contentWord, concept, domain string, nodes []graph.SimilarNode) string {
	return fmt.Sprintf(`I'm creating %[1]s nodes for the domain "%[2]s".

For the %[1]s "%[3]s", I found these similar existing nodes:
%[4]s

Decision guide:
1. "use_existing" - The existing node represents essentially the same %[1]s
2. "create_new" - This is a distinct %[1]s, no good match exists
3. "create_and_generalize" - Create a domain-specific %[1]s that links to a broader one:
   - Use when your %[1]s is domain-specific but relates to a general concept
   - Example: "%[2]s %[5]s" → GENERALIZES_TO → "%[5]s"
   - The domain-specific version has DIFFERENT %[6]s than the general version
   - If the general %[1]s exists in the list above, use "existing_node_name"
   - If the general %[1]s doesn't exist, suggest it in "suggested_target"

Output ONLY a JSON object:
{
    "decision": "use_existing" | "create_new" | "create_and_generalize",
    "existing_node_name": "Name from list above (for use_existing, or if generalizing to a listed node)",
    "suggested_target": "Name of a new general %[1]s to generalize to (only if not in list above, null otherwise)",
    "reason": "Brief explanation"
}`, noun, domain, concept, similarList(nodes), example, contentWord)
}

func knowledgeVerifyPrompt(concept, domain string, nodes []graph.SimilarNode) string {
	return generalizingVerifyPrompt("knowledge", "Opening Principles", "actual content", concept, domain, nodes)
}

func skillVerifyPrompt(concept, domain string, nodes []graph.SimilarNode) string {
	return generalizingVerifyPrompt("skill", "Tactical Calculation", "practice methods", concept, domain, nodes)
}

func milestoneVerifyPrompt(concept, domain string, nodes []graph.SimilarNode) string {
	return generalizingVerifyPrompt("milestone", "Tournament Victory", "success criteria", concept, domain, nodes)
}

func traitVerifyPrompt(concept, domain string, nodes []graph.SimilarNode) string {
	return fmt.Sprintf(`I'm identifying relevant traits for the domain "%s".

For the trait "%s", I found these similar existing trait nodes:
%s

Traits should be generic (shared across domains), not domain-specific.

Should I:
1. "use_existing" - Use one of the existing trait nodes
2. "create_new" - Create a new generic trait (only if truly distinct)

Output ONLY a JSON object:
{
    "decision": "use_existing" | "create_new",
    "existing_node_name": "Name of existing node (null if create_new)",
    "reason": "Brief explanation"
}`, domain, concept, similarList(nodes))
}

// ========== Properties ==========

func knowledgePropertiesPrompt(domain, concept, generalizesTo string) string {
	return fmt.Sprintf(`Generate full properties for the knowledge concept "%[1]s" in the domain "%[2]s".%[3]s

Output ONLY a JSON object with these fields:
{
    "name": "%[1]s",
    "description": "Clear, concise description of what this knowledge encompasses",
    "how_to_learn": "Practical guidance on how to acquire this knowledge",
    "remember_level": "What to memorize/recall at Remember level (Bloom's)",
    "understand_level": "What to comprehend at Understand level",
    "apply_level": "How to apply this knowledge practically",
    "analyze_level": "How to break down and examine this knowledge",
    "evaluate_level": "How to judge and assess using this knowledge",
    "create_level": "How to synthesize and create with this knowledge"
}`, concept, domain, generalizationNote(generalizesTo))
}

func genericKnowledgePropertiesPrompt(concept string) string {
	return fmt.Sprintf(`Generate properties for a GENERIC knowledge concept "%[1]s".

This is a general-purpose knowledge node that is NOT domain-specific. It should be applicable across multiple domains.

Output ONLY a JSON object with these fields:
{
    "name": "%[1]s",
    "description": "Clear, concise description of what this general knowledge encompasses",
    "how_to_learn": "General guidance on how to acquire this knowledge",
    "remember_level": "What to memorize/recall at Remember level (Bloom's)",
    "understand_level": "What to comprehend at Understand level",
    "apply_level": "How to apply this knowledge practically",
    "analyze_level": "How to break down and examine this knowledge",
    "evaluate_level": "How to judge and assess using this knowledge",
    "create_level": "How to synthesize and create with this knowledge"
}`, concept)
}

func skillPropertiesPrompt(domain, concept, generalizesTo string) string {
	return fmt.Sprintf(`Generate full properties for the skill "%[1]s" in the domain "%[2]s".%[3]s

Output ONLY a JSON object with these fields:
{
    "name": "%[1]s",
    "description": "Clear description of this skill and what it enables",
    "how_to_develop": "Practical guidance on developing this skill",
    "novice_level": "What novice performance looks like (Dreyfus model)",
    "advanced_beginner_level": "What advanced beginner performance looks like",
    "competent_level": "What competent performance looks like",
    "proficient_level": "What proficient performance looks like",
    "expert_level": "What expert performance looks like"
}`, concept, domain, generalizationNote(generalizesTo))
}

func genericSkillPropertiesPrompt(concept string) string {
	return fmt.Sprintf(`Generate properties for a GENERIC skill "%[1]s".

This is a general-purpose skill that is NOT domain-specific. It should be applicable across multiple domains.

Output ONLY a JSON object with these fields:
{
    "name": "%[1]s",
    "description": "Clear description of this general skill and what it enables",
    "how_to_develop": "General guidance on developing this skill",
    "novice_level": "What novice performance looks like (Dreyfus model)",
    "advanced_beginner_level": "What advanced beginner performance looks like",
    "competent_level": "What competent performance looks like",
    "proficient_level": "What proficient performance looks like",
    "expert_level": "What expert performance looks like"
}`, concept)
}

func traitPropertiesPrompt(_, concept, _ string) string {
	return fmt.Sprintf(`Generate full properties for the trait "%[1]s".

Note: Traits are generic (not domain-specific) and measured on a 0-100 scale.

Measurement bands to describe in measurement_criteria:
- 0-25 (Low): Significant challenges or minimal natural ability
- 26-50 (Moderate): Average or developing capability
- 51-75 (High): Strong natural ability or well-developed capacity
- 76-100 (Exceptional): Outstanding or rare capability

Output ONLY a JSON object with these fields:
{
    "name": "%[1]s",
    "description": "Clear description of this inherent trait",
    "measurement_criteria": "How this trait is assessed, with descriptions for Low (0-25), Moderate (26-50), High (51-75), and Exceptional (76-100) ranges"
}`, concept)
}

func milestonePropertiesPrompt(domain, concept, generalizesTo string) string {
	return fmt.Sprintf(`Generate full properties for the milestone "%[1]s" in the domain "%[2]s".%[3]s

Output ONLY a JSON object with these fields:
{
    "name": "%[1]s",
    "description": "Clear description of this achievement",
    "how_to_achieve": "Practical guidance on how to achieve this milestone"
}`, concept, domain, generalizationNote(generalizesTo))
}

func genericMilestonePropertiesPrompt(concept string) string {
	return fmt.Sprintf(`Generate properties for a GENERIC milestone "%[1]s".

This is a general-purpose achievement that is NOT domain-specific. It should be recognisable across multiple domains.

Output ONLY a JSON object with these fields:
{
    "name": "%[1]s",
    "description": "Clear description of this general achievement",
    "how_to_achieve": "General guidance on how to achieve this milestone"
}`, concept)
}

// ========== Relationships ==========

func levelAssignmentPrompt(domain, context string) string {
	return fmt.Sprintf(`Assign components to domain levels for "%s".

%s

For each component, determine:
1. Which level (1-5) it should be required at
2. The proficiency level required:
   - For Knowledge: bloom_level = "Remember" | "Understand" | "Apply" | "Analyze" | "Evaluate" | "Create"
   - For Skills: dreyfus_level = "Novice" | "Advanced Beginner" | "Competent" | "Proficient" | "Expert"
   - For Traits: min_score = integer 0-100 (e.g., 40, 60, 75)
   - For Milestones: no proficiency needed, just level assignment

Level distribution guidelines:
- Level 1 (Novice): Basic knowledge at Remember, skills at Novice, no trait requirements
- Level 2 (Developing): Knowledge at Understand, skills at Advanced Beginner, traits ~40
- Level 3 (Competent): Knowledge at Apply, skills at Competent, traits ~50-60
- Level 4 (Advanced): Knowledge at Analyze, skills at Proficient, traits ~70-75
- Level 5 (Master): Knowledge at Evaluate/Create, skills at Expert, traits ~85+

Output a JSON object:
{
    "level_assignments": [
        {
            "component": "Component Name",
            "component_type": "Knowledge" | "Skill" | "Trait" | "Milestone",
            "level": 1-5,
            "proficiency": "bloom/dreyfus level string or min_score integer"
        }
    ]
}`, domain, context)
}

func prerequisiteAnalysisPrompt(domain, context string) string {
	return fmt.Sprintf(`Analyze the prerequisite relationships for the domain "%s".

%s

For each Knowledge, Skill, and Milestone, identify what prerequisites it requires:
- Knowledge can require other Knowledge
- Skills can require Knowledge, other Skills, or Traits
- Milestones can require Knowledge, Skills, Traits, or other Milestones

Output a JSON object mapping component names to their prerequisites:
{
    "prerequisites": [
        {
            "component": "Component Name",
            "component_type": "Knowledge" | "Skill" | "Milestone",
            "requires": [
                {"name": "Prerequisite Name", "type": "Knowledge" | "Skill" | "Trait" | "Milestone"}
            ]
        }
    ]
}`, domain, context)
}
