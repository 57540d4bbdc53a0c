package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, target string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return FromContext(e.NewContext(req, rec))
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor(t, "/")
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := paramsFor(t, "/?limit=50&offset=10")
	if p.Limit != 50 || p.Offset != 10 {
		t.Errorf("got %+v", p)
	}
}

func TestFromContext_Page(t *testing.T) {
	p := paramsFor(t, "/?limit=10&page=3")
	if p.Offset != 20 {
		t.Errorf("expected offset 20 for page 3, got %d", p.Offset)
	}

	p = paramsFor(t, "/?limit=10&page=3&offset=5")
	if p.Offset != 5 {
		t.Errorf("explicit offset should win, got %d", p.Offset)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	if p := paramsFor(t, "/?limit=500"); p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeOffset(t *testing.T) {
	if p := paramsFor(t, "/?offset=-5"); p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestNewPage(t *testing.T) {
	p := Params{Limit: 10, Offset: 0}
	page := NewPage([]string{"a", "b"}, 25, p, "/api/v1/intake/sessions")
	if !page.HasMore {
		t.Error("expected HasMore")
	}
	if page.Next != "/api/v1/intake/sessions?limit=10&offset=10" {
		t.Errorf("Next = %q", page.Next)
	}

	last := NewPage([]string{"z"}, 25, Params{Limit: 10, Offset: 20}, "/x")
	if last.HasMore || last.Next != "" {
		t.Errorf("last page should have no next link: %+v", last)
	}
}

func TestNewPage_NilData(t *testing.T) {
	page := NewPage[int](nil, 0, Params{Limit: 20}, "")
	out, err := json.Marshal(page)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]json.RawMessage
	_ = json.Unmarshal(out, &m)
	if string(m["data"]) != "[]" {
		t.Errorf("expected empty array, got %s", m["data"])
	}
}

func TestParams_Navigation(t *testing.T) {
	tests := []struct {
		name     string
		p        Params
		total    int
		wantNext bool
		wantPrev bool
		nextOff  int
		prevOff  int
	}{
		{"first", Params{Limit: 10, Offset: 0}, 30, true, false, 10, 0},
		{"middle", Params{Limit: 10, Offset: 10}, 30, true, true, 20, 0},
		{"last", Params{Limit: 10, Offset: 20}, 30, false, true, 30, 10},
		{"short prev", Params{Limit: 10, Offset: 5}, 30, true, true, 15, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.HasNext(tt.total); got != tt.wantNext {
				t.Errorf("HasNext = %v", got)
			}
			if got := tt.p.HasPrevious(); got != tt.wantPrev {
				t.Errorf("HasPrevious = %v", got)
			}
			if got := tt.p.NextOffset(); got != tt.nextOff {
				t.Errorf("NextOffset = %d", got)
			}
			if got := tt.p.PreviousOffset(); got != tt.prevOff {
				t.Errorf("PreviousOffset = %d", got)
			}
		})
	}
}
