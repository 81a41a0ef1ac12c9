package router

import (
	"github.com/gin-gonic/gin"
	"github.com/ctfradar/radar/server/internal/handler"
)

func registerFillRoutes(router *gin.RouterGroup, fillHandler *handler.FillHandler) {
	fills := router.Group("/fills")
	{
		fills.GET("/latest", fillHandler.GetLatest)
		fills.GET("/count", fillHandler.GetCount)
	}

	traders := router.Group("/traders")
	{
		traders.GET("/:trader/positions", fillHandler.GetPositions)
		traders.GET("/:trader/summary", fillHandler.GetTraderSummary)
		traders.GET("/:trader/fills", fillHandler.GetRecentFills)
	}

	assets := router.Group("/assets")
	{
		assets.GET("/:asset/summary", fillHandler.GetAssetSummary)
	}

	router.GET("/leaderboard", fillHandler.GetLeaderboard)
	router.GET("/stats", fillHandler.GetStats)
}
