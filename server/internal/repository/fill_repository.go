package repository

import (
	"log"

	"github.com/ctfradar/radar/server/internal/model"
	"gorm.io/gorm"
)

type FillRepository interface {
	GetLatestFills(limit int) []model.Fill
	GetFillsByTrader(trader string, limit int) []model.Fill
	GetFillsByAsset(assetID string, limit int) []model.Fill
	GetFillCount(trader string) int64
	GetVolumeGroupByTrader(limit int) map[string]float64
}

type gormFillRepository struct {
	db *gorm.DB
}

func NewGormFillRepository(db *gorm.DB) FillRepository {
	return &gormFillRepository{db: db}
}

func (gfr *gormFillRepository) GetLatestFills(limit int) []model.Fill {
	var fills []model.Fill
	err := gfr.db.Order("event_time desc").Limit(limit).Find(&fills).Error
	if err != nil {
		log.Printf("error occoured: %v", err)
		return []model.Fill{}
	}
	return fills
}

func (gfr *gormFillRepository) GetFillsByTrader(trader string, limit int) []model.Fill {
	var fills []model.Fill
	err := gfr.db.Where("trader = ?", trader).
		Order("event_time desc").Limit(limit).Find(&fills).Error
	if err != nil {
		log.Printf("error occoured: %v", err)
		return []model.Fill{}
	}
	return fills
}

func (gfr *gormFillRepository) GetFillsByAsset(assetID string, limit int) []model.Fill {
	var fills []model.Fill
	err := gfr.db.Where("asset_id = ?", assetID).
		Order("event_time desc").Limit(limit).Find(&fills).Error
	if err != nil {
		log.Printf("error occoured: %v", err)
		return []model.Fill{}
	}
	return fills
}

func (gfr *gormFillRepository) GetFillCount(trader string) int64 {
	var count int64
	query := gfr.db.Model(&model.Fill{})
	if trader != "" {
		query = query.Where("trader = ?", trader)
	}
	if err := query.Count(&count).Error; err != nil {
		log.Printf("error occoured: %v", err)
		return 0
	}
	return count
}

func (gfr *gormFillRepository) GetVolumeGroupByTrader(limit int) map[string]float64 {
	type traderVolume struct {
		Trader string
		Volume float64
	}
	var rows []traderVolume
	err := gfr.db.Model(&model.Fill{}).
		Select("trader, sum(usd_value) as volume").
		Group("trader").
		Order("volume desc").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		log.Printf("Error for query: %v", err)
		return make(map[string]float64)
	}
	result := make(map[string]float64, len(rows))
	for _, r := range rows {
		result[r.Trader] = r.Volume
	}
	return result
}
