package wire

import (
	"agentic-rag-api/internal/application/rag"
	"agentic-rag-api/internal/application/retrieval"
	"agentic-rag-api/internal/infrastructure/messaging"
)

// Worker 入库 worker 依赖
type Worker struct {
	Consumer *messaging.Consumer
	Ingest   *rag.IngestService
	Indexer  *retrieval.Indexer
}
