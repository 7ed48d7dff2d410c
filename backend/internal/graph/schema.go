package graph

import (
	"context"
	"fmt"
	"strings"

	"atlas-of-us/backend/internal/constants"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// NodeLabels lists every label the generation pipeline writes
var NodeLabels = []string{"Domain", "Domain_Level", "Knowledge", "Skill", "Trait", "Milestone"}

// EnsureSchema creates the name indexes used by FindNodeByName and the vector
// index used by FindSimilar. Every statement is IF NOT EXISTS, so reruns are safe.
func (r *Repository) EnsureSchema(ctx context.Context, dimensions int, similarity string) error {
	if dimensions < 1 {
		return fmt.Errorf("vector dimensions must be positive, got %d", dimensions)
	}
	if similarity != "cosine" && similarity != "euclidean" {
		return fmt.Errorf("vector similarity must be cosine or euclidean, got %q", similarity)
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	statements := make([]string, 0, len(NodeLabels)+1)
	for _, label := range NodeLabels {
		statements = append(statements, fmt.Sprintf(
			"CREATE INDEX %s_name IF NOT EXISTS FOR (n:%s) ON (n.name)", strings.ToLower(label), label,
		))
	}
	statements = append(statements, fmt.Sprintf(
		"CREATE VECTOR INDEX %s IF NOT EXISTS FOR (n:%s) ON (n.embedding) "+
			"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: '%s'}}",
		constants.VectorIndexName, constants.EmbeddingLabel, dimensions, similarity,
	))

	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("failed to apply schema statement %q: %w", stmt, err)
		}
		r.logger.Info("Schema statement applied", zap.String("statement", stmt))
	}
	return nil
}
