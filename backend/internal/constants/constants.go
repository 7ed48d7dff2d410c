package constants

import "time"

// Similarity triage constants
const (
	// SimilarityThresholdLow is the score below which a concept is always created new
	SimilarityThresholdLow = 0.70
	// SimilarityThresholdHigh is the score at or above which the top match is reused without verification
	SimilarityThresholdHigh = 0.95

	// Traits are shared across domains, so they reuse more eagerly
	TraitSimilarityThresholdLow  = 0.65
	TraitSimilarityThresholdHigh = 0.85

	// DomainExistsThreshold aborts a run when an existing Domain scores at or above it
	DomainExistsThreshold = 0.85

	// GeneralizationMatchThreshold accepts a re-queried generalization target
	GeneralizationMatchThreshold = 0.95

	// SimilarityTopK is the number of candidates fetched per concept
	SimilarityTopK = 3

	// SimilarityOversample widens the vector query before label filtering
	SimilarityOversample = 10
)

// Pipeline constants
const (
	// TotalAgents is the number of steps in a generation run
	TotalAgents = 7

	// EventBufferSize bounds the event channel between a run and its consumer
	EventBufferSize = 64

	// KeepAliveIntervalSeconds is how often an idle event stream sends a ping
	KeepAliveIntervalSeconds = 15

	// TerminalEventWait bounds how long a completed or failed event waits for buffer room
	TerminalEventWait = 5 * time.Second

	// DomainLevelCount is the number of mastery levels per domain
	DomainLevelCount = 5
)

// Request limits
const (
	MaxDomainNameLength  = 100
	MaxDescriptionLength = 500
)

// Graph constants
const (
	// VectorIndexName is the Neo4j vector index over node embeddings
	VectorIndexName = "nodeEmbeddings"

	// EmbeddingLabel is carried by every embedded node so one vector index covers all of them
	EmbeddingLabel = "Embeddable"

	// EmbeddingDimensions is the default vector size for the index
	EmbeddingDimensions = 768
)

// Avatar constants
const (
	AvatarImageSize      = 1024
	AvatarInferenceSteps = 8
	DefaultAWSRegion     = "us-east-2"
)
