package tmdb

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Image sizes accepted by the image CDN.
const (
	SizeW92      = "w92"
	SizeW185     = "w185"
	SizeW342     = "w342"
	SizeW500     = "w500"
	SizeW780     = "w780"
	SizeOriginal = "original"
)

// NoDescription is shown for movies without an overview.
const NoDescription = "No description available."

// CastPreviewLimit bounds how many cast members a detail view lists.
const CastPreviewLimit = 8

var validSizes = map[string]struct{}{
	SizeW92: {}, SizeW185: {}, SizeW342: {}, SizeW500: {}, SizeW780: {}, SizeOriginal: {},
}

// Images builds CDN URLs from path fragments. Nothing is fetched or validated.
type Images struct {
	BaseURL     string
	Placeholder string
}

// URL joins base, size and path. An empty path yields the placeholder; an
// unknown size falls back to w500.
func (i Images) URL(path, size string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return i.Placeholder
	}
	if _, ok := validSizes[size]; !ok {
		size = SizeW500
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(i.BaseURL, "/") + "/" + size + path
}

var printer = message.NewPrinter(language.English)

// FormatReleaseDate renders YYYY-MM-DD as "January 2, 2006", or "TBA".
func FormatReleaseDate(raw string) string {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return "TBA"
	}
	return t.Format("January 2, 2006")
}

// ReleaseYear returns the year part of a release date, or "".
func ReleaseYear(raw string) string {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return t.Format("2006")
}

// FormatRuntime renders minutes as "2h 28m"; unknown runtimes give "N/A".
func FormatRuntime(minutes *int) string {
	if minutes == nil || *minutes <= 0 {
		return "N/A"
	}
	h, m := *minutes/60, *minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}

// FormatCurrency renders whole US dollars with grouping, e.g. "$160,000,000".
func FormatCurrency(amount int64) string {
	if amount < 0 {
		return "-" + printer.Sprintf("$%d", -amount)
	}
	return printer.Sprintf("$%d", amount)
}

// FormatCount groups digits, e.g. 12345 -> "12,345".
func FormatCount(n int64) string {
	return printer.Sprintf("%d", n)
}

// FormatRating renders a vote average with one decimal.
func FormatRating(avg float64) string {
	return fmt.Sprintf("%.1f", avg)
}

// Overview returns text or the no-description placeholder.
func Overview(text string) string {
	if strings.TrimSpace(text) == "" {
		return NoDescription
	}
	return text
}
