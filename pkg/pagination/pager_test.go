package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/RaeedAhmed/twitch-py/pkg/helix"
)

// fakeGetter serves scripted pages keyed by the full params string and
// records every request it sees.
type fakeGetter struct {
	mu       sync.Mutex
	pages    map[string]helix.Page
	errs     map[string]error
	requests []string
}

func newFakeGetter() *fakeGetter {
	return &fakeGetter{
		pages: make(map[string]helix.Page),
		errs:  make(map[string]error),
	}
}

func (f *fakeGetter) GetPage(ctx context.Context, params string) (helix.Page, error) {
	f.mu.Lock()
	f.requests = append(f.requests, params)
	f.mu.Unlock()

	if err := f.errs[params]; err != nil {
		return helix.Page{}, err
	}
	return f.pages[params], nil
}

func (f *fakeGetter) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func records(ids ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(ids))
	for i, id := range ids {
		out[i] = json.RawMessage(`{"id":"` + id + `"}`)
	}
	return out
}

func TestCollectAll_FollowsCursorChain(t *testing.T) {
	getter := newFakeGetter()
	getter.pages["follows?first=100"] = helix.Page{Data: records("1", "2"), Cursor: "c1"}
	getter.pages["follows?after=c1&first=100"] = helix.Page{Data: records("3"), Cursor: "c2"}
	getter.pages["follows?after=c2&first=100"] = helix.Page{Data: records("4")}

	got, err := NewPager(getter).CollectAll(context.Background(), "follows?first=100")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(got) != 4 {
		t.Fatalf("Expected 4 records, got %d", len(got))
	}
	for i, want := range []string{"1", "2", "3", "4"} {
		if !strings.Contains(string(got[i]), `"`+want+`"`) {
			t.Errorf("Record %d = %s, want id %s", i, got[i], want)
		}
	}
	if getter.requestCount() != 3 {
		t.Errorf("Expected 3 requests, got %d", getter.requestCount())
	}
}

func TestCollectAll_StopsOnEmptyPage(t *testing.T) {
	getter := newFakeGetter()
	getter.pages["follows?first=100"] = helix.Page{Data: records("1"), Cursor: "c1"}
	// Cursor present but the next page is empty.
	getter.pages["follows?after=c1&first=100"] = helix.Page{Cursor: "c2"}

	got, err := NewPager(getter).CollectAll(context.Background(), "follows?first=100")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected 1 record, got %d", len(got))
	}
	if getter.requestCount() != 2 {
		t.Errorf("Expected 2 requests, got %d", getter.requestCount())
	}
}

func TestCollectAll_MidChainErrorDiscardsAll(t *testing.T) {
	getter := newFakeGetter()
	getter.pages["follows?first=100"] = helix.Page{Data: records("1", "2"), Cursor: "c1"}
	getter.errs["follows?after=c1&first=100"] = errors.New("boom")

	got, err := NewPager(getter).CollectAll(context.Background(), "follows?first=100")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if got != nil {
		t.Errorf("Expected no records on failure, got %d", len(got))
	}
}

func TestWithCursor(t *testing.T) {
	tests := []struct {
		name   string
		params string
		cursor string
		want   string
	}{
		{
			name:   "appends when absent",
			params: "follows?first=100",
			cursor: "abc",
			want:   "follows?after=abc&first=100",
		},
		{
			name:   "replaces when present",
			params: "follows?after=old&first=100",
			cursor: "new",
			want:   "follows?after=new&first=100",
		},
		{
			name:   "bare resource",
			params: "follows",
			cursor: "abc",
			want:   "follows?after=abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := withCursor(tt.params, tt.cursor); got != tt.want {
				t.Errorf("withCursor(%q, %q) = %q, want %q", tt.params, tt.cursor, got, tt.want)
			}
		})
	}
}
