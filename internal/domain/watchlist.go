package domain

import (
	"encoding/json"
	"time"
)

// WatchlistEntry is a bookmarked movie plus the time it was bookmarked.
type WatchlistEntry struct {
	Movie
	AddedAt time.Time `json:"addedAt"`

	// Extra holds persisted fields this build does not know about so they
	// survive a load/save cycle.
	Extra map[string]json.RawMessage `json:"-"`
}
