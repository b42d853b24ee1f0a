package monitoring

import (
	"testing"
	"time"

	"ravenwatch/internal/database"
)

func at(minutes int) *time.Time {
	t := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(minutes) * time.Minute)
	return &t
}

func ids(monitors []database.Monitor) []string {
	out := make([]string, len(monitors))
	for i, m := range monitors {
		out[i] = m.ID
	}
	return out
}

func TestSelectDueOrdering(t *testing.T) {
	monitors := []database.Monitor{
		{ID: "c", URL: "http://c", LastCheckedAt: at(10)},
		{ID: "b", URL: "http://b"},
		{ID: "a", URL: "http://a", LastCheckedAt: at(5)},
		{ID: "e", URL: "", LastCheckedAt: nil},
		{ID: "d", URL: "http://d", LastCheckedAt: at(5)},
		{ID: "f", URL: "http://f"},
	}

	got := ids(SelectDue(monitors, 4))
	want := []string{"b", "f", "a", "d"}
	if len(got) != len(want) {
		t.Fatalf("SelectDue = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SelectDue = %v, want %v", got, want)
		}
	}
}

func TestSelectDueSkipsEmptyURL(t *testing.T) {
	monitors := []database.Monitor{
		{ID: "blank"},
		{ID: "ok", URL: "http://ok", LastCheckedAt: at(100)},
	}
	got := SelectDue(monitors, 5)
	if len(got) != 1 || got[0].ID != "ok" {
		t.Fatalf("SelectDue = %v, want [ok]", ids(got))
	}
}

func TestSelectDueDefaultsAndDuplicates(t *testing.T) {
	var monitors []database.Monitor
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		monitors = append(monitors, database.Monitor{ID: id, URL: "http://" + id})
	}
	monitors = append(monitors, database.Monitor{ID: "a", URL: "http://a"})

	got := SelectDue(monitors, 0)
	if len(got) != DefaultBatchSize {
		t.Fatalf("len = %d, want %d", len(got), DefaultBatchSize)
	}
	seen := map[string]bool{}
	for _, m := range got {
		if seen[m.ID] {
			t.Fatalf("duplicate monitor %s in %v", m.ID, ids(got))
		}
		seen[m.ID] = true
	}

	if got := SelectDue(monitors[:2], 5); len(got) != 2 {
		t.Fatalf("short input: got %d monitors, want 2", len(got))
	}
	if got := SelectDue(nil, 5); len(got) != 0 {
		t.Fatalf("empty input: got %v", ids(got))
	}
}
