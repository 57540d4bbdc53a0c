package wizard

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/platform/draftstore"
)

type phone struct {
	Number string `json:"number"`
}

func TestDraftList_AddRemove(t *testing.T) {
	l := NewDraftList([]phone{{"+12015550123"}, {"+12015550124"}}, 3)
	if l.Dirty() {
		t.Fatal("fresh list should be clean")
	}

	pos, err := l.Add(phone{"+12015550125"})
	if err != nil || pos != 2 {
		t.Fatalf("Add = %d, %v", pos, err)
	}
	if !l.Dirty() {
		t.Error("expected dirty after add")
	}
	if _, err := l.Add(phone{"+12015550126"}); err != ErrListFull {
		t.Errorf("expected ErrListFull, got %v", err)
	}

	if err := l.Remove(0); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	want := []phone{{"+12015550124"}, {"+12015550125"}}
	if !reflect.DeepEqual(l.Values(), want) {
		t.Errorf("Values = %v, want %v", l.Values(), want)
	}
	if !l.Rows[0].Persisted || l.Rows[1].Persisted {
		t.Errorf("persisted flags wrong after reindex: %+v", l.Rows)
	}
	if err := l.Remove(5); err == nil {
		t.Error("expected out of range error")
	}

	l.MarkSaved()
	if l.Dirty() {
		t.Error("expected clean after MarkSaved")
	}
	for i, r := range l.Rows {
		if !r.Persisted || r.Dirty {
			t.Errorf("row %d = %+v", i, r)
		}
	}
}

func TestDraftList_RemovePersistedIsDirty(t *testing.T) {
	l := NewDraftList([]phone{{"+12015550123"}}, 0)
	_ = l.Remove(0)
	if !l.Dirty() {
		t.Error("removing a stored row should make the list dirty")
	}
}

func TestDraftList_Sync(t *testing.T) {
	l := NewDraftList([]phone{{"+12015550123"}, {"+12015550124"}, {"+12015550125"}}, 0)
	l.Sync([]phone{{"+12015550123"}, {"+12015550199"}})

	if l.Len() != 2 {
		t.Fatalf("Len = %d", l.Len())
	}
	if l.Rows[0].Dirty || !l.Rows[1].Dirty {
		t.Errorf("dirty flags wrong: %+v", l.Rows)
	}
	if want := []phone{{"+12015550125"}}; !reflect.DeepEqual(l.Removed, want) {
		t.Errorf("Removed = %v, want %v", l.Removed, want)
	}

	l.Sync([]phone{{"+12015550123"}, {"+12015550199"}, {"+12015550100"}})
	if l.Len() != 3 || !l.Rows[2].Dirty || l.Rows[2].Persisted {
		t.Errorf("appended row wrong: %+v", l.Rows)
	}
}

func TestDraftList_Update(t *testing.T) {
	l := NewDraftList([]phone{{"+12015550123"}}, 0)
	if err := l.Update(0, phone{"+12015550199"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !l.Rows[0].Dirty || !l.Rows[0].Persisted {
		t.Errorf("row = %+v", l.Rows[0])
	}
	if err := l.Update(1, phone{}); err == nil {
		t.Error("expected out of range error")
	}
}

func TestDraftStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := draftstore.NewMemoryStore(time.Hour)
	key := draftstore.Key{OrganizationID: uuid.New(), SessionID: uuid.New(), Step: "demographics"}

	if _, ok, err := LoadDraft[phone](ctx, store, key); ok || err != nil {
		t.Fatalf("expected no draft, got ok=%v err=%v", ok, err)
	}

	l := NewDraftList([]phone{{"+12015550123"}}, 5)
	_, _ = l.Add(phone{"+12015550124"})
	if err := SaveDraft(ctx, store, key, l); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	got, ok, err := LoadDraft[phone](ctx, store, key)
	if err != nil || !ok {
		t.Fatalf("LoadDraft: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, l) {
		t.Errorf("got %+v, want %+v", got, l)
	}
}
