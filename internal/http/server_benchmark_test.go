package httpserver

import (
	"fmt"
	"net/http"
	"testing"
)

func BenchmarkAddRemoveWatchlist(b *testing.B) {
	ts := buildTestServer(b, "")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := i%1000 + 1
		rec := ts.do(http.MethodPost, "/watchlist", fmt.Sprintf(`{"id":%d,"title":"Bench %d"}`, id, id), "")
		if rec.Code != http.StatusCreated {
			b.Fatalf("add status %d", rec.Code)
		}
		rec = ts.do(http.MethodDelete, fmt.Sprintf("/watchlist/%d", id), "", "")
		if rec.Code != http.StatusNoContent {
			b.Fatalf("remove status %d", rec.Code)
		}
	}
}
