package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ctfradar/radar/server/internal/service"
)

type FillHandler struct {
	fillService *service.FillsService
}

func NewFillHandler(service *service.FillsService) *FillHandler {
	return &FillHandler{
		fillService: service,
	}
}

func queryInt(c *gin.Context, key string, defaultValue int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

func (h *FillHandler) GetLatest(c *gin.Context) {
	limit := queryInt(c, "limit", 10)
	if trader := c.Query("trader"); trader != "" {
		c.JSON(http.StatusOK, h.fillService.GetTraderFills(trader, limit))
		return
	}
	if asset := c.Query("asset"); asset != "" {
		c.JSON(http.StatusOK, h.fillService.GetAssetFills(asset, limit))
		return
	}
	c.JSON(http.StatusOK, h.fillService.GetLatestFills(limit))
}

func (h *FillHandler) GetCount(c *gin.Context) {
	trader := c.Query("trader")
	count := h.fillService.GetFillCount(trader)
	if trader != "" {
		c.JSON(http.StatusOK, gin.H{trader: count})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *FillHandler) GetPositions(c *gin.Context) {
	if !h.fillService.Live() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live engine not attached"})
		return
	}
	trader := c.Param("trader")

	if asset := c.Query("asset"); asset != "" {
		pos, ok := h.fillService.GetPosition(trader, asset)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no position for this trader and asset"})
			return
		}
		c.JSON(http.StatusOK, pos)
		return
	}
	c.JSON(http.StatusOK, h.fillService.GetPositions(trader))
}

func (h *FillHandler) GetTraderSummary(c *gin.Context) {
	if !h.fillService.Live() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live engine not attached"})
		return
	}
	trader := c.Param("trader")
	summary, ok := h.fillService.GetTraderSummary(trader)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no activity for this trader"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *FillHandler) GetRecentFills(c *gin.Context) {
	if !h.fillService.Live() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live engine not attached"})
		return
	}
	trader := c.Param("trader")
	limit := queryInt(c, "limit", 10)
	c.JSON(http.StatusOK, h.fillService.GetRecentFills(trader, limit))
}

func (h *FillHandler) GetAssetSummary(c *gin.Context) {
	if !h.fillService.Live() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live engine not attached"})
		return
	}
	asset := c.Param("asset")
	summary, ok := h.fillService.GetAssetSummary(asset)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no activity for this asset"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *FillHandler) GetLeaderboard(c *gin.Context) {
	n := queryInt(c, "n", 20)
	if c.Query("source") == "archive" || !h.fillService.Live() {
		c.JSON(http.StatusOK, h.fillService.GetArchiveTopTraders(n))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"traders": h.fillService.GetTopTraders(n),
		"assets":  h.fillService.GetTopAssets(n),
	})
}

func (h *FillHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.fillService.GetStats())
}
