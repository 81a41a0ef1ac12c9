package router

import (
	"github.com/gin-gonic/gin"
	"github.com/ctfradar/radar/server/internal/handler"
)

type Config struct {
	FillHandler *handler.FillHandler
}

func NewRouter(cfg *Config) *gin.Engine {
	router := gin.Default()

	api := router.Group("/v1/")
	registerFillRoutes(api, cfg.FillHandler)

	return router
}
