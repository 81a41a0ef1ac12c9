// Package leaderboard ranks trader and asset summaries by traded volume.
package leaderboard

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ctfradar/radar/internal/models"
)

// Entry is one ranked row. ID is a trader address or an asset id
// depending on which ranking produced it.
type Entry struct {
	ID        string          `json:"id"`
	VolumeUSD decimal.Decimal `json:"volume_usd"`
}

// TopTraders ranks traders by total USD volume, highest first. Ties
// break on ascending id so equal volumes always rank the same way.
// n <= 0 returns an empty slice; n beyond the population returns all.
func TopTraders(summaries []models.TraderSummary, n int) []Entry {
	entries := make([]Entry, 0, len(summaries))
	for _, s := range summaries {
		entries = append(entries, Entry{ID: s.Trader, VolumeUSD: s.TotalVolumeUSD})
	}
	return rank(entries, n)
}

// TopAssets ranks assets by total USD volume, highest first, with the
// same tie-break and bounds as TopTraders.
func TopAssets(summaries []models.AssetSummary, n int) []Entry {
	entries := make([]Entry, 0, len(summaries))
	for _, s := range summaries {
		entries = append(entries, Entry{ID: s.AssetID, VolumeUSD: s.TotalVolumeUSD})
	}
	return rank(entries, n)
}

func rank(entries []Entry, n int) []Entry {
	if n <= 0 {
		return []Entry{}
	}
	sort.Slice(entries, func(i, j int) bool {
		cmp := entries[i].VolumeUSD.Cmp(entries[j].VolumeUSD)
		if cmp != 0 {
			return cmp > 0
		}
		return entries[i].ID < entries[j].ID
	})
	if n < len(entries) {
		entries = entries[:n]
	}
	return entries
}
