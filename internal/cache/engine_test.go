package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperstream/paperstream/internal/domain"
)

// fakeTimer and fakeClock let tests drive the debounce without real time.
type fakeTimer struct {
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeClock struct {
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(_ time.Duration, f func()) Timer {
	t := &fakeTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

// fire runs every armed timer that was neither stopped nor already fired.
func (c *fakeClock) fire() {
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			t.f()
		}
	}
}

// fakeStore records saved snapshots and returns queued errors in order.
type fakeStore struct {
	saves []map[string][]domain.Paper
	errs  []error
}

func (s *fakeStore) SaveCache(entries map[string][]domain.Paper) error {
	s.saves = append(s.saves, entries)
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func paper(id, title string, d int) domain.Paper {
	return domain.Paper{
		ID:        id,
		Title:     title,
		Published: time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC),
	}
}

func newTestEngine(store Flusher, clock Clock) *Engine {
	return NewEngine(store, Config{Clock: clock, PruneKeep: 2}, zerolog.Nop(), nil)
}

func TestMerge(t *testing.T) {
	t.Run("appends new papers by id", func(t *testing.T) {
		e := newTestEngine(&fakeStore{}, &fakeClock{})
		e.Merge("t1", []domain.Paper{paper("a", "A", 1), paper("b", "B", 2)}, false)
		entry := e.Merge("t1", []domain.Paper{paper("b", "B", 2), paper("c", "C", 3)}, false)

		require.Len(t, entry, 3)
		assert.Equal(t, []string{"a", "b", "c"},
			[]string{entry[0].ID, entry[1].ID, entry[2].ID})
	})

	t.Run("is idempotent under repeated identical input", func(t *testing.T) {
		e := newTestEngine(&fakeStore{}, &fakeClock{})
		batch := []domain.Paper{paper("a", "A", 1), paper("b", "B", 2)}

		once := e.Merge("t1", batch, false)
		twice := e.Merge("t1", batch, false)

		assert.Equal(t, once, twice)
	})

	t.Run("forceReplace discards the prior entry", func(t *testing.T) {
		e := newTestEngine(&fakeStore{}, &fakeClock{})
		e.Merge("t1", []domain.Paper{paper("a", "A", 1)}, false)
		entry := e.Merge("t1", []domain.Paper{paper("b", "B", 2)}, true)

		require.Len(t, entry, 1)
		assert.Equal(t, "b", entry[0].ID)
	})

	t.Run("preserves fetch order across merges without re-sorting", func(t *testing.T) {
		// Pages are date-sorted internally but the merged entry is a
		// concatenation in fetch order; a newer paper appended by a later
		// page stays at the end.
		e := newTestEngine(&fakeStore{}, &fakeClock{})
		e.Merge("t1", []domain.Paper{paper("a", "A", 5), paper("b", "B", 3)}, false)
		entry := e.Merge("t1", []domain.Paper{paper("c", "C", 9)}, false)

		require.Len(t, entry, 3)
		assert.Equal(t, []string{"a", "b", "c"},
			[]string{entry[0].ID, entry[1].ID, entry[2].ID})
	})
}

func TestGetHasDelete(t *testing.T) {
	e := newTestEngine(&fakeStore{}, &fakeClock{})

	// Absent key: never fetched.
	_, ok := e.Get("t1")
	assert.False(t, ok)
	assert.False(t, e.Has("t1"))

	// Present-but-empty entry means "fetched, no results" and must be
	// distinguishable from absence.
	e.Merge("t1", nil, false)
	papers, ok := e.Get("t1")
	assert.True(t, ok)
	assert.Empty(t, papers)
	assert.True(t, e.Has("t1"))

	e.Delete("t1")
	assert.False(t, e.Has("t1"))
}

func TestGetReturnsCopy(t *testing.T) {
	e := newTestEngine(&fakeStore{}, &fakeClock{})
	e.Merge("t1", []domain.Paper{paper("a", "A", 1)}, false)

	papers, _ := e.Get("t1")
	papers[0].Title = "mutated"

	fresh, _ := e.Get("t1")
	assert.Equal(t, "A", fresh[0].Title)
}

func TestDebouncedFlush(t *testing.T) {
	t.Run("coalesces rapid merges into one write", func(t *testing.T) {
		store := &fakeStore{}
		clock := &fakeClock{}
		e := newTestEngine(store, clock)

		e.Merge("t1", []domain.Paper{paper("a", "A", 1)}, false)
		e.Merge("t1", []domain.Paper{paper("b", "B", 2)}, false)
		e.Merge("t2", []domain.Paper{paper("c", "C", 3)}, false)

		assert.Empty(t, store.saves, "nothing written before the timer fires")

		clock.fire()

		require.Len(t, store.saves, 1)
		assert.Len(t, store.saves[0]["t1"], 2)
		assert.Len(t, store.saves[0]["t2"], 1)
	})

	t.Run("each mutation re-arms the timer", func(t *testing.T) {
		clock := &fakeClock{}
		e := newTestEngine(&fakeStore{}, clock)

		e.Merge("t1", []domain.Paper{paper("a", "A", 1)}, false)
		e.Merge("t1", []domain.Paper{paper("b", "B", 2)}, false)

		require.Len(t, clock.timers, 2)
		assert.True(t, clock.timers[0].stopped, "earlier timer cancelled")
		assert.False(t, clock.timers[1].stopped)
	})
}

func TestFlushPruneChain(t *testing.T) {
	t.Run("truncates to active entry on storage full", func(t *testing.T) {
		store := &fakeStore{errs: []error{domain.ErrStorageFull, nil}}
		e := newTestEngine(store, &fakeClock{})
		e.SetActiveKey("t1")

		e.Merge("t1", []domain.Paper{paper("a", "A", 1), paper("b", "B", 2), paper("c", "C", 3)}, false)
		e.Merge("t2", []domain.Paper{paper("d", "D", 4)}, false)

		require.NoError(t, e.Flush())

		require.Len(t, store.saves, 2)
		// Second save holds only the active entry, truncated to PruneKeep.
		pruned := store.saves[1]
		require.Len(t, pruned, 1)
		assert.Len(t, pruned["t1"], 2)
	})

	t.Run("drops the cache body when truncation is not enough", func(t *testing.T) {
		store := &fakeStore{errs: []error{domain.ErrStorageFull, domain.ErrStorageFull, nil}}
		e := newTestEngine(store, &fakeClock{})
		e.SetActiveKey("t1")
		e.Merge("t1", []domain.Paper{paper("a", "A", 1)}, false)

		require.NoError(t, e.Flush())

		require.Len(t, store.saves, 3)
		assert.Empty(t, store.saves[2])
	})

	t.Run("in-memory entries survive pruned persistence", func(t *testing.T) {
		store := &fakeStore{errs: []error{domain.ErrStorageFull, nil}}
		e := newTestEngine(store, &fakeClock{})
		e.SetActiveKey("t1")
		e.Merge("t1", []domain.Paper{paper("a", "A", 1), paper("b", "B", 2), paper("c", "C", 3)}, false)

		require.NoError(t, e.Flush())

		papers, ok := e.Get("t1")
		require.True(t, ok)
		assert.Len(t, papers, 3)
	})

	t.Run("non-quota errors propagate", func(t *testing.T) {
		boom := errors.New("disk detached")
		store := &fakeStore{errs: []error{boom}}
		e := newTestEngine(store, &fakeClock{})
		e.Merge("t1", []domain.Paper{paper("a", "A", 1)}, false)

		assert.ErrorIs(t, e.Flush(), boom)
	})
}

func TestRestoreAndClose(t *testing.T) {
	t.Run("restore does not mark dirty", func(t *testing.T) {
		store := &fakeStore{}
		e := newTestEngine(store, &fakeClock{})
		e.Restore(map[string][]domain.Paper{"t1": {paper("a", "A", 1)}})

		require.NoError(t, e.Close())
		assert.Empty(t, store.saves)

		papers, ok := e.Get("t1")
		assert.True(t, ok)
		assert.Len(t, papers, 1)
	})

	t.Run("close flushes pending changes", func(t *testing.T) {
		store := &fakeStore{}
		e := newTestEngine(store, &fakeClock{})
		e.Merge("t1", []domain.Paper{paper("a", "A", 1)}, false)

		require.NoError(t, e.Close())
		require.Len(t, store.saves, 1)
	})
}
