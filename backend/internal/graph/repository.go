package graph

import (
	"context"
	"fmt"
	"strings"

	"atlas-of-us/backend/internal/constants"
	apperrors "atlas-of-us/backend/pkg/errors"
	"atlas-of-us/backend/pkg/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Embedder turns text into the vector stored on each node
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Repository handles all Neo4j database operations
type Repository struct {
	driver     neo4j.DriverWithContext
	embedder   Embedder
	oversample int
	logger     *zap.Logger
}

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext, embedder Embedder) *Repository {
	return &Repository{
		driver:     driver,
		embedder:   embedder,
		oversample: constants.SimilarityOversample,
		logger:     logger.Get(),
	}
}

// Connect opens a driver and verifies the server is reachable. The driver is
// closed again when verification fails.
func Connect(ctx context.Context, uri, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, apperrors.NewGraphConnectionFailed(uri, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, apperrors.NewGraphConnectionFailed(uri, err)
	}
	return driver, nil
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

// CreateNode embeds the node's "name: description" text and writes the node
// with the given labels plus the shared embedding label.
func (r *Repository) CreateNode(ctx context.Context, labels []string, props map[string]interface{}) (*CreatedRecord, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("at least one label is required")
	}
	for _, label := range labels {
		if err := validateIdentifier("label", label); err != nil {
			return nil, err
		}
	}

	name := propertyString(props, "name")
	embedding, err := r.embedder.Embed(ctx, embeddingText(name, propertyString(props, "description")))
	if err != nil {
		return nil, fmt.Errorf("failed to embed node %q: %w", name, err)
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	allLabels := append(append([]string{}, labels...), constants.EmbeddingLabel)
	query := fmt.Sprintf(`
		CREATE (n:%s)
		SET n += $props,
		    n.embedding = $embedding,
		    n.created_at = datetime()
		RETURN elementId(n) as id, n.name as name
	`, strings.Join(allLabels, ":"))

	result, err := session.Run(ctx, query, map[string]interface{}{
		"props":     props,
		"embedding": embedding,
	})
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("create node", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("create node", err)
	}

	created := &CreatedRecord{
		ID:   getStringFromRecord(record, "id"),
		Name: getStringFromRecord(record, "name"),
	}

	r.logger.Debug("Node created",
		zap.String("id", created.ID),
		zap.String("name", created.Name),
		zap.Strings("labels", labels),
	)
	return created, nil
}

// CreateEdge writes a typed directed edge between two nodes. MERGE makes the
// call idempotent: repeating it leaves exactly one edge and refreshes props.
func (r *Repository) CreateEdge(ctx context.Context, sourceID, targetID, relType string, props map[string]interface{}) (string, error) {
	if err := validateIdentifier("relationship type", relType); err != nil {
		return "", err
	}
	if props == nil {
		props = map[string]interface{}{}
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (source), (target)
		WHERE elementId(source) = $sourceId AND elementId(target) = $targetId
		MERGE (source)-[r:%s]->(target)
		SET r += $props
		RETURN elementId(r) as id
	`, relType)

	result, err := session.Run(ctx, query, map[string]interface{}{
		"sourceId": sourceID,
		"targetId": targetID,
		"props":    props,
	})
	if err != nil {
		return "", apperrors.NewGraphQueryFailed("create edge", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return "", apperrors.NewGraphQueryFailed("create edge", err)
		}
		return "", ErrNodeNotFound{SourceID: sourceID, TargetID: targetID}
	}

	return getStringFromRecord(result.Record(), "id"), nil
}

// FindNodeByName returns the id of a node with an exact name, optionally
// restricted to a label.
func (r *Repository) FindNodeByName(ctx context.Context, name, label string) (string, bool, error) {
	match := "MATCH (n {name: $name})"
	if label != "" {
		if err := validateIdentifier("label", label); err != nil {
			return "", false, err
		}
		match = fmt.Sprintf("MATCH (n:%s {name: $name})", label)
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, match+" RETURN elementId(n) as id LIMIT 1", map[string]interface{}{
		"name": name,
	})
	if err != nil {
		return "", false, apperrors.NewGraphQueryFailed("find node by name", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return "", false, apperrors.NewGraphQueryFailed("find node by name", err)
		}
		return "", false, nil
	}
	return getStringFromRecord(result.Record(), "id"), true, nil
}

// FindSimilar embeds text and returns the closest nodes carrying label
func (r *Repository) FindSimilar(ctx context.Context, text, label string, limit int) ([]SimilarNode, error) {
	embedding, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed similarity query: %w", err)
	}
	return r.FindSimilarByEmbedding(ctx, embedding, label, limit)
}

// FindSimilarByEmbedding queries the vector index. The index spans every
// label, so it is asked for limit*oversample neighbours which are then
// filtered down to label.
func (r *Repository) FindSimilarByEmbedding(ctx context.Context, embedding []float64, label string, limit int) ([]SimilarNode, error) {
	if limit < 1 {
		limit = constants.SimilarityTopK
	}
	if label != "" {
		if err := validateIdentifier("label", label); err != nil {
			return nil, err
		}
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		CALL db.index.vector.queryNodes($index, $candidates, $embedding)
		YIELD node, score
		WHERE $label = '' OR $label IN labels(node)
		RETURN node.name as name, node.description as description, elementId(node) as id, score
		ORDER BY score DESC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"index":      constants.VectorIndexName,
		"candidates": limit * r.oversample,
		"embedding":  embedding,
		"label":      label,
		"limit":      limit,
	})
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("vector similarity", err)
	}

	similar := []SimilarNode{}
	for result.Next(ctx) {
		record := result.Record()
		similar = append(similar, SimilarNode{
			Name:        getStringFromRecord(record, "name"),
			ID:          getStringFromRecord(record, "id"),
			Description: getStringFromRecord(record, "description"),
			Score:       getFloat64FromRecord(record, "score"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewGraphQueryFailed("vector similarity", err)
	}

	return similar, nil
}
