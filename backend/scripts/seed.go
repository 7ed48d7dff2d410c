package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"atlas-of-us/backend/internal/constants"
	"atlas-of-us/backend/internal/graph"
	"atlas-of-us/backend/pkg/config"
	"atlas-of-us/backend/pkg/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

func main() {
	dimensions := flag.Int("dimensions", constants.EmbeddingDimensions, "Vector size of the embedding model")
	similarity := flag.String("similarity", "cosine", "Vector similarity function (cosine or euclidean)")
	stats := flag.Bool("stats", false, "Print node counts per label after bootstrapping")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Bootstrapping graph schema...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer driver.Close(context.Background())

	// Schema statements never embed, so no embedder is needed
	repo := graph.NewRepository(driver, nil)

	if err := repo.EnsureSchema(ctx, *dimensions, *similarity); err != nil {
		log.Error("Failed to create schema", zap.Error(err))
		os.Exit(1)
	}

	log.Info("Schema ready",
		zap.String("vector_index", constants.VectorIndexName),
		zap.Int("dimensions", *dimensions),
		zap.String("similarity", *similarity),
	)

	if *stats {
		printStats(ctx, driver, log)
	}
}

// printStats logs how many nodes exist per pipeline label
func printStats(ctx context.Context, driver neo4j.DriverWithContext, log *zap.Logger) {
	for _, label := range graph.NodeLabels {
		result, err := neo4j.ExecuteQuery(ctx, driver,
			fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS count", label),
			nil, neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithReadersRouting(),
		)
		if err != nil {
			log.Warn("Failed to count nodes", zap.String("label", label), zap.Error(err))
			continue
		}

		var count int64
		if len(result.Records) > 0 {
			if v, ok := result.Records[0].Get("count"); ok {
				count, _ = v.(int64)
			}
		}
		log.Info("Nodes", zap.String("label", label), zap.Int64("count", count))
	}
}
