package graph

// ============================================================================
// Graph Store Types
// ============================================================================

// CreatedRecord is the identity of a freshly written node
type CreatedRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SimilarNode is one ranked hit from the vector index. Score is the index's
// normalized similarity in [0,1].
type SimilarNode struct {
	Name        string  `json:"name"`
	ID          string  `json:"id"`
	Description string  `json:"description,omitempty"`
	Score       float64 `json:"score"`
}

// ErrNodeNotFound is returned when an edge endpoint does not exist
type ErrNodeNotFound struct {
	SourceID string
	TargetID string
}

func (e ErrNodeNotFound) Error() string {
	return "edge endpoints not found: " + e.SourceID + " -> " + e.TargetID
}
