package router

import (
	"github.com/gin-gonic/gin"

	"agentic-rag-api/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册 v1 版本路由；askLimit 仅作用于问答接口
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	askLimit gin.HandlerFunc,
	askHandler *handler.AskHandler,
	runHandler *handler.RunHandler,
	ingestHandler *handler.IngestHandler,
) {
	ask := v1.Group("/ask", askLimit)
	{
		ask.POST("", askHandler.Ask)
		ask.POST("/stream", askHandler.AskStream)
	}

	if runHandler != nil {
		runs := v1.Group("/runs")
		{
			runs.GET("", runHandler.ListRuns)
			runs.GET("/:id", runHandler.GetRun)
		}
	}

	if ingestHandler != nil {
		ingest := v1.Group("/ingest")
		{
			ingest.POST("", ingestHandler.Enqueue)
			ingest.GET("/:id", ingestHandler.GetJob)
		}
	}
}
