package watchlist

import (
	"encoding/json"
	"fmt"

	"github.com/Clark-Hu/moviewatch/internal/domain"
)

// knownFields lists the JSON keys produced by domain.WatchlistEntry. Any other
// key found in a persisted entry is kept in Extra and written back unchanged.
var knownFields = map[string]struct{}{
	"id":               {},
	"title":            {},
	"overview":         {},
	"releaseDate":      {},
	"voteAverage":      {},
	"voteCount":        {},
	"posterPath":       {},
	"backdropPath":     {},
	"genreIds":         {},
	"popularity":       {},
	"originalLanguage": {},
	"adult":            {},
	"addedAt":          {},
}

// Encode serializes entries in order as a JSON array.
func Encode(entries []domain.WatchlistEntry) ([]byte, error) {
	out := make([]json.RawMessage, 0, len(entries))
	for _, entry := range entries {
		raw, err := encodeEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("encode entry %d: %w", entry.ID, err)
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

// Decode parses a persisted watchlist. Entries without a positive id are
// dropped, and for repeated ids the first occurrence wins.
func Decode(data []byte) ([]domain.WatchlistEntry, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode watchlist: %w", err)
	}

	entries := make([]domain.WatchlistEntry, 0, len(raws))
	seen := make(map[int64]struct{}, len(raws))
	for i, raw := range raws {
		entry, err := decodeEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("decode entry %d: %w", i, err)
		}
		if entry.ID <= 0 {
			continue
		}
		if _, dup := seen[entry.ID]; dup {
			continue
		}
		seen[entry.ID] = struct{}{}
		entries = append(entries, entry)
	}
	return entries, nil
}

func encodeEntry(entry domain.WatchlistEntry) (json.RawMessage, error) {
	base, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	if len(entry.Extra) == 0 {
		return base, nil
	}

	fields := make(map[string]json.RawMessage, len(knownFields)+len(entry.Extra))
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for key, val := range entry.Extra {
		if _, known := fields[key]; known {
			continue
		}
		fields[key] = val
	}
	return json.Marshal(fields)
}

func decodeEntry(raw json.RawMessage) (domain.WatchlistEntry, error) {
	var entry domain.WatchlistEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return domain.WatchlistEntry{}, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.WatchlistEntry{}, err
	}
	for key, val := range fields {
		if _, known := knownFields[key]; known {
			continue
		}
		if entry.Extra == nil {
			entry.Extra = make(map[string]json.RawMessage)
		}
		entry.Extra[key] = val
	}
	return entry, nil
}
