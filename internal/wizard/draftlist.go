package wizard

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/ehr/intake/internal/platform/draftstore"
)

// Row is one entry of a dynamic list section. Persisted rows came from the
// database; Dirty rows were added or edited since the last save.
type Row[T any] struct {
	Value     T    `json:"value"`
	Dirty     bool `json:"dirty"`
	Persisted bool `json:"persisted"`
}

// DraftList is the in-progress state of a list section such as phones or
// medications. Positions are the row indices and are reassigned on removal.
// Removed keeps stored rows that were dropped so the save can delete them.
type DraftList[T any] struct {
	Rows    []Row[T] `json:"rows"`
	Removed []T      `json:"removed,omitempty"`
	Max     int      `json:"max,omitempty"`
}

var ErrListFull = errors.New("list is full")

// NewDraftList seeds a list with rows already stored.
func NewDraftList[T any](persisted []T, limit int) *DraftList[T] {
	l := &DraftList[T]{Max: limit, Rows: make([]Row[T], 0, len(persisted))}
	for _, v := range persisted {
		l.Rows = append(l.Rows, Row[T]{Value: v, Persisted: true})
	}
	return l
}

func (l *DraftList[T]) Len() int { return len(l.Rows) }

// Add appends an unsaved row and returns its position.
func (l *DraftList[T]) Add(v T) (int, error) {
	if l.Max > 0 && len(l.Rows) >= l.Max {
		return 0, ErrListFull
	}
	l.Rows = append(l.Rows, Row[T]{Value: v, Dirty: true})
	return len(l.Rows) - 1, nil
}

func (l *DraftList[T]) Update(i int, v T) error {
	if i < 0 || i >= len(l.Rows) {
		return fmt.Errorf("row %d out of range", i)
	}
	l.Rows[i].Value = v
	l.Rows[i].Dirty = true
	return nil
}

// Remove drops the row at i; later rows shift down one position.
func (l *DraftList[T]) Remove(i int) error {
	if i < 0 || i >= len(l.Rows) {
		return fmt.Errorf("row %d out of range", i)
	}
	if l.Rows[i].Persisted {
		l.Removed = append(l.Removed, l.Rows[i].Value)
	}
	l.Rows = append(l.Rows[:i], l.Rows[i+1:]...)
	return nil
}

// Sync applies the values posted by a form. Changed rows become dirty,
// extra values are added and missing trailing rows are removed.
func (l *DraftList[T]) Sync(values []T) {
	for i, v := range values {
		if i >= len(l.Rows) {
			l.Rows = append(l.Rows, Row[T]{Value: v, Dirty: true})
			continue
		}
		if !reflect.DeepEqual(l.Rows[i].Value, v) {
			l.Rows[i].Value = v
			l.Rows[i].Dirty = true
		}
	}
	for len(l.Rows) > len(values) {
		_ = l.Remove(len(l.Rows) - 1)
	}
}

// Dirty reports whether the list differs from what was last saved.
func (l *DraftList[T]) Dirty() bool {
	if len(l.Removed) > 0 {
		return true
	}
	for _, r := range l.Rows {
		if r.Dirty {
			return true
		}
	}
	return false
}

func (l *DraftList[T]) Values() []T {
	out := make([]T, len(l.Rows))
	for i, r := range l.Rows {
		out[i] = r.Value
	}
	return out
}

// MarkSaved records that every row now matches the database.
func (l *DraftList[T]) MarkSaved() {
	for i := range l.Rows {
		l.Rows[i] = Row[T]{Value: l.Rows[i].Value, Persisted: true}
	}
	l.Removed = nil
}

// LoadDraft returns the stored draft for key, or ok=false when none is
// stored or it has expired.
func LoadDraft[T any](ctx context.Context, store draftstore.Store, key draftstore.Key) (list *DraftList[T], ok bool, err error) {
	var l DraftList[T]
	if err := store.Get(ctx, key, &l); err != nil {
		if errors.Is(err, draftstore.ErrNoDraft) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &l, true, nil
}

func SaveDraft[T any](ctx context.Context, store draftstore.Store, key draftstore.Key, l *DraftList[T]) error {
	return store.Put(ctx, key, l)
}
