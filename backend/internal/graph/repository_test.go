package graph

import (
	"context"
	"os"
	"testing"
	"time"

	apperrors "atlas-of-us/backend/pkg/errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedEmbedder maps known texts to vectors and everything else to a default
type fixedEmbedder struct {
	vectors  map[string][]float64
	fallback []float64
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.fallback, nil
}

func TestConnect_Failures(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, uri := range []string{"bolt://127.0.0.1:1", "ftp://localhost:7687"} {
		driver, err := Connect(ctx, uri, "neo4j", "password")
		assert.Nil(t, driver, uri)

		var connErr *apperrors.ErrGraphConnectionFailed
		require.ErrorAs(t, err, &connErr, uri)
		assert.Equal(t, uri, connErr.URI)
		assert.True(t, apperrors.IsRetryable(err))
	}
}

func TestValidateIdentifier(t *testing.T) {
	assert.NoError(t, validateIdentifier("label", "Domain_Level"))
	assert.NoError(t, validateIdentifier("relationship type", "REQUIRES_KNOWLEDGE"))
	assert.Error(t, validateIdentifier("label", ""))
	assert.Error(t, validateIdentifier("label", "Skill) DETACH DELETE (n"))
	assert.Error(t, validateIdentifier("label", "1Skill"))
}

func TestEmbeddingText(t *testing.T) {
	assert.Equal(t, "Chess: A board game", embeddingText("Chess", "A board game"))
	assert.Equal(t, "Chess", embeddingText("Chess", ""))
}

func TestCreateNode_RejectsBadLabels(t *testing.T) {
	repo := &Repository{embedder: &fixedEmbedder{fallback: []float64{1}}}

	_, err := repo.CreateNode(context.Background(), nil, map[string]interface{}{"name": "x"})
	assert.Error(t, err)

	_, err = repo.CreateNode(context.Background(), []string{"Bad Label"}, map[string]interface{}{"name": "x"})
	assert.Error(t, err)
}

func TestCreateEdge_RejectsBadType(t *testing.T) {
	repo := &Repository{}
	_, err := repo.CreateEdge(context.Background(), "a", "b", "REQUIRES-SKILL", nil)
	assert.Error(t, err)
}

// The tests below require a running Neo4j 5.x instance
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD environment variables

func TestRepository_CreateEdgeIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	require.NoError(t, err)
	defer driver.Close(ctx)

	repo := NewRepository(driver, &fixedEmbedder{fallback: []float64{0.1, 0.2, 0.3}})
	suffix := time.Now().Format("20060102150405")

	source, err := repo.CreateNode(ctx, []string{"Skill"}, map[string]interface{}{"name": "Test Skill " + suffix})
	require.NoError(t, err)
	target, err := repo.CreateNode(ctx, []string{"Knowledge"}, map[string]interface{}{"name": "Test Knowledge " + suffix})
	require.NoError(t, err)
	defer cleanupNodes(ctx, driver, source.ID, target.ID)

	first, err := repo.CreateEdge(ctx, source.ID, target.ID, "REQUIRES_KNOWLEDGE", nil)
	require.NoError(t, err)
	second, err := repo.CreateEdge(ctx, source.ID, target.ID, "REQUIRES_KNOWLEDGE", nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)
	result, err := session.Run(ctx, `
		MATCH (s)-[r:REQUIRES_KNOWLEDGE]->(t)
		WHERE elementId(s) = $s AND elementId(t) = $t
		RETURN count(r) as edges
	`, map[string]interface{}{"s": source.ID, "t": target.ID})
	require.NoError(t, err)
	record, err := result.Single(ctx)
	require.NoError(t, err)
	edges, _ := record.Get("edges")
	assert.Equal(t, int64(1), edges)
}

func TestRepository_FindNodeByName(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	require.NoError(t, err)
	defer driver.Close(ctx)

	repo := NewRepository(driver, &fixedEmbedder{fallback: []float64{0.1, 0.2, 0.3}})
	name := "Test Trait " + time.Now().Format("20060102150405")

	created, err := repo.CreateNode(ctx, []string{"Trait"}, map[string]interface{}{"name": name})
	require.NoError(t, err)
	defer cleanupNodes(ctx, driver, created.ID)

	id, found, err := repo.FindNodeByName(ctx, name, "Trait")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, created.ID, id)

	_, found, err = repo.FindNodeByName(ctx, name, "Skill")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRepository_CreateEdgeMissingEndpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	require.NoError(t, err)
	defer driver.Close(ctx)

	repo := NewRepository(driver, &fixedEmbedder{fallback: []float64{0.1}})
	_, err = repo.CreateEdge(ctx, "4:missing:1", "4:missing:2", "GENERALIZES_TO", nil)

	var notFound ErrNodeNotFound
	assert.ErrorAs(t, err, &notFound)
}

func cleanupNodes(ctx context.Context, driver neo4j.DriverWithContext, ids ...string) {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	_, _ = session.Run(ctx, "MATCH (n) WHERE elementId(n) IN $ids DETACH DELETE n", map[string]interface{}{"ids": ids})
}

func createTestDriver() (neo4j.DriverWithContext, error) {
	uri := getEnvOrDefault("NEO4J_URI", "bolt://localhost:7687")
	user := getEnvOrDefault("NEO4J_USER", "neo4j")
	password := getEnvOrDefault("NEO4J_PASSWORD", "password")

	return neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
