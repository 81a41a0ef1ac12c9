package service

import (
	"github.com/ctfradar/radar/internal/engine"
	"github.com/ctfradar/radar/internal/leaderboard"
	"github.com/ctfradar/radar/internal/models"
	"github.com/ctfradar/radar/server/internal/model"
	"github.com/ctfradar/radar/server/internal/repository"
)

// FillsService serves two views of the fill stream: the ClickHouse
// archive through the repository, and the live in-memory engine fed
// from Kafka. The engine may be nil when the API runs archive-only.
type FillsService struct {
	repo   repository.FillRepository
	engine *engine.Engine
}

func NewFillsService(repo repository.FillRepository, eng *engine.Engine) *FillsService {
	return &FillsService{
		repo:   repo,
		engine: eng,
	}
}

func (fs *FillsService) GetLatestFills(limit int) []model.Fill {
	if limit <= 0 {
		limit = 10
	}
	return fs.repo.GetLatestFills(limit)
}

func (fs *FillsService) GetTraderFills(trader string, limit int) []model.Fill {
	if limit <= 0 {
		limit = 10
	}
	return fs.repo.GetFillsByTrader(trader, limit)
}

func (fs *FillsService) GetAssetFills(assetID string, limit int) []model.Fill {
	if limit <= 0 {
		limit = 10
	}
	return fs.repo.GetFillsByAsset(assetID, limit)
}

func (fs *FillsService) GetFillCount(trader string) int64 {
	return fs.repo.GetFillCount(trader)
}

func (fs *FillsService) GetArchiveTopTraders(limit int) map[string]float64 {
	if limit <= 0 {
		limit = 20
	}
	return fs.repo.GetVolumeGroupByTrader(limit)
}

// Live returns whether the in-memory engine is attached.
func (fs *FillsService) Live() bool {
	return fs.engine != nil
}

func (fs *FillsService) GetPosition(trader, assetID string) (models.Position, bool) {
	if fs.engine == nil {
		return models.Position{}, false
	}
	return fs.engine.Position(trader, assetID)
}

func (fs *FillsService) GetPositions(trader string) []models.Position {
	if fs.engine == nil {
		return nil
	}
	return fs.engine.Positions(trader)
}

func (fs *FillsService) GetTraderSummary(trader string) (models.TraderSummary, bool) {
	if fs.engine == nil {
		return models.TraderSummary{}, false
	}
	return fs.engine.TraderSummary(trader)
}

func (fs *FillsService) GetAssetSummary(assetID string) (models.AssetSummary, bool) {
	if fs.engine == nil {
		return models.AssetSummary{}, false
	}
	return fs.engine.AssetSummary(assetID)
}

func (fs *FillsService) GetRecentFills(trader string, limit int) []models.Trade {
	if fs.engine == nil {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}
	return fs.engine.RecentFills(trader, limit)
}

func (fs *FillsService) GetTopTraders(n int) []leaderboard.Entry {
	if fs.engine == nil {
		return nil
	}
	if n <= 0 {
		n = 20
	}
	return fs.engine.TopTraders(n)
}

func (fs *FillsService) GetTopAssets(n int) []leaderboard.Entry {
	if fs.engine == nil {
		return nil
	}
	if n <= 0 {
		n = 20
	}
	return fs.engine.TopAssets(n)
}

func (fs *FillsService) GetStats() engine.Stats {
	if fs.engine == nil {
		return engine.Stats{}
	}
	return fs.engine.Stats()
}
