package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"atlas-of-us/backend/internal/graph"
	"atlas-of-us/backend/pkg/config"
	apperrors "atlas-of-us/backend/pkg/errors"
)

// ============================================================================
// JSON extraction
// ============================================================================

// stripCodeFences removes a surrounding ``` block if the model added one
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	var body []string
	inBlock := false
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inBlock = !inBlock
			continue
		}
		if inBlock {
			body = append(body, line)
		}
	}
	return strings.Join(body, "\n")
}

// decodeFirst decodes the first value starting at an opener ('[' or '{') that
// unmarshals cleanly into v and passes accept. The decoder stops at the end of
// that value, so trailing prose or a second JSON value does not break parsing.
// A well-formed value that is rejected is skipped whole, nested values included.
func decodeFirst(text string, opener byte, v interface{}, accept func() bool) error {
	text = stripCodeFences(text)

	var lastErr error
	for i := 0; i < len(text); i++ {
		if text[i] != opener {
			continue
		}
		var raw json.RawMessage
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		if err := dec.Decode(&raw); err != nil {
			lastErr = err
			continue
		}
		end := i + int(dec.InputOffset()) - 1

		if err := json.Unmarshal(raw, v); err != nil {
			lastErr = err
			i = end
			continue
		}
		if accept == nil || accept() {
			return nil
		}
		lastErr = errors.New("JSON value does not have the expected shape")
		i = end
	}

	if lastErr == nil {
		lastErr = errors.New("no matching JSON value found")
	}
	return lastErr
}

// decodeObject decodes the first well-formed JSON object in text into v
func decodeObject(text, expected string, v interface{}) error {
	if err := decodeFirst(text, '{', v, nil); err != nil {
		return apperrors.NewParseFailed(expected, "no JSON object found", err)
	}
	return nil
}

// decodeObjectWith decodes the first JSON object in text that accept approves.
// missing describes the failure when objects exist but none has the right shape.
func decodeObjectWith(text, expected, missing string, v interface{}, accept func() bool) error {
	if err := decodeFirst(text, '{', v, accept); err != nil {
		return apperrors.NewParseFailed(expected, missing, err)
	}
	return nil
}

// flexibleInt accepts a JSON number or a numeric string
type flexibleInt struct {
	Value int
	Valid bool
}

func (f *flexibleInt) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if i, err := strconv.Atoi(n.String()); err == nil {
			f.Value, f.Valid = i, true
		} else if fl, err := n.Float64(); err == nil {
			f.Value, f.Valid = int(fl), true
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			f.Value, f.Valid = i, true
		}
	}
	return nil
}

// flexibleString accepts a JSON string or number and keeps its text form
type flexibleString string

func (f *flexibleString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexibleString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexibleString(n.String())
	}
	return nil
}

// optional treats empty strings and the literal "null" as absent
func optional(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return ""
	}
	return s
}

// ============================================================================
// Candidate lists and decisions
// ============================================================================

// ParseCandidateList extracts the first JSON array of strings from model
// output. Blank entries are dropped; duplicates are kept.
func ParseCandidateList(text string) ([]string, error) {
	var raw []string
	var names []string
	err := decodeFirst(text, '[', &raw, func() bool {
		names = names[:0]
		for _, s := range raw {
			if s = strings.TrimSpace(s); s != "" {
				names = append(names, s)
			}
		}
		return len(names) > 0
	})
	if err != nil {
		return nil, apperrors.NewParseFailed("candidate list", "no non-empty JSON array of strings found", err)
	}
	return names, nil
}

type verificationPayload struct {
	Decision         string `json:"decision"`
	ExistingNodeName string `json:"existing_node_name"`
	SuggestedTarget  string `json:"suggested_target"`
	Reason           string `json:"reason"`
}

// ParseVerificationDecision parses a verifier response for concept. Store ids
// are never filled in here; UseExisting carries only the chosen name and
// CreateAndGeneralize only the target name.
func ParseVerificationDecision(text, concept string) (VerifiedConcept, error) {
	var payload verificationPayload
	if err := decodeObject(text, "verification decision", &payload); err != nil {
		return VerifiedConcept{}, err
	}

	existing := optional(payload.ExistingNodeName)
	suggested := optional(payload.SuggestedTarget)

	switch strings.TrimSpace(payload.Decision) {
	case "use_existing":
		if existing == "" {
			return VerifiedConcept{}, apperrors.NewParseFailed("verification decision", "use_existing without existing_node_name", nil)
		}
		return VerifiedConcept{Name: concept, Action: UseExisting{Name: existing}}, nil
	case "create_new":
		return VerifiedConcept{Name: concept, Action: CreateNew{}}, nil
	case "create_and_generalize":
		target := suggested
		if target == "" {
			target = existing
		}
		if target == "" {
			return VerifiedConcept{}, apperrors.NewParseFailed("verification decision", "create_and_generalize without a target", nil)
		}
		return VerifiedConcept{Name: concept, Action: CreateAndGeneralize{GeneralName: target}}, nil
	case "":
		return VerifiedConcept{}, apperrors.NewParseFailed("verification decision", "missing decision field", nil)
	default:
		return VerifiedConcept{}, apperrors.NewParseFailed("verification decision", fmt.Sprintf("unknown decision %q", payload.Decision), nil)
	}
}

// ParseTraitDecision parses a trait verifier response. Traits are never
// generalized: anything other than use_existing becomes create_new, and
// use_existing resolves against candidates, falling back to the top one.
func ParseTraitDecision(text, concept string, candidates []graph.SimilarNode) (VerifiedConcept, error) {
	var payload verificationPayload
	if err := decodeObject(text, "trait decision", &payload); err != nil {
		return VerifiedConcept{}, err
	}
	if strings.TrimSpace(payload.Decision) == "" {
		return VerifiedConcept{}, apperrors.NewParseFailed("trait decision", "missing decision field", nil)
	}

	if strings.TrimSpace(payload.Decision) != "use_existing" || len(candidates) == 0 {
		return VerifiedConcept{Name: concept, Action: CreateNew{}}, nil
	}

	chosen := candidates[0]
	if name := optional(payload.ExistingNodeName); name != "" {
		if match, ok := candidateByName(candidates, name); ok {
			chosen = match
		}
	}
	return VerifiedConcept{Name: concept, Action: UseExisting{StoreID: chosen.ID, Name: chosen.Name}}, nil
}

// TriageByScore applies the LOW/HIGH threshold policy to ranked candidates.
// A nil result means the model has to break the tie.
func TriageByScore(concept string, ranked []graph.SimilarNode, t config.Thresholds) *VerifiedConcept {
	if len(ranked) == 0 || ranked[0].Score < t.Low {
		return &VerifiedConcept{Name: concept, Action: CreateNew{}}
	}
	if ranked[0].Score >= t.High {
		return &VerifiedConcept{Name: concept, Action: UseExisting{StoreID: ranked[0].ID, Name: ranked[0].Name}}
	}
	return nil
}

func candidateByName(candidates []graph.SimilarNode, name string) (graph.SimilarNode, bool) {
	for _, c := range candidates {
		if c.Name == name {
			return c, true
		}
	}
	return graph.SimilarNode{}, false
}

// ============================================================================
// Properties
// ============================================================================

// ParseProperties extracts the named string fields from a JSON object.
// Missing or non-string fields become "" and name defaults to concept.
func ParseProperties(text, concept string, fields []string) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := decodeObject(text, "node properties", &raw); err != nil {
		return nil, err
	}

	props := make(map[string]interface{}, len(fields)+1)
	for _, field := range fields {
		value, _ := raw[field].(string)
		props[field] = value
	}

	name, _ := raw["name"].(string)
	if strings.TrimSpace(name) == "" {
		name = concept
	}
	props["name"] = name
	return props, nil
}
