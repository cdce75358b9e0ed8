package watchlist

import (
	"math"
	"sort"
	"time"

	"github.com/Clark-Hu/moviewatch/internal/domain"
)

// Stats summarises a watchlist for display.
type Stats struct {
	Count         int        `json:"count"`
	AverageRating float64    `json:"averageRating"`
	LastAddedAt   *time.Time `json:"lastAddedAt"`
}

// Summarize computes Stats over entries in insertion order. The average is
// rounded to one decimal and is zero for an empty watchlist.
func Summarize(entries []domain.WatchlistEntry) Stats {
	stats := Stats{Count: len(entries)}
	if len(entries) == 0 {
		return stats
	}

	var sum float64
	for _, entry := range entries {
		sum += entry.VoteAverage
	}
	stats.AverageRating = roundToOneDecimal(sum / float64(len(entries)))

	last := entries[len(entries)-1].AddedAt
	stats.LastAddedAt = &last
	return stats
}

// SortByRecent returns a copy of entries ordered most recently added first.
// Entries added at the same instant keep their relative order.
func SortByRecent(entries []domain.WatchlistEntry) []domain.WatchlistEntry {
	out := make([]domain.WatchlistEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AddedAt.After(out[j].AddedAt)
	})
	return out
}

func roundToOneDecimal(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return math.Round(value*10) / 10.0
}
