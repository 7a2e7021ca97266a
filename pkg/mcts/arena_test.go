package mcts

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type testMove int32

func (m testMove) ToInt() int32 { return int32(m) }

func TestArenaExpandPublishesChildrenAtomically(t *testing.T) {
	a := newArena[testMove](16)
	a.clear(0.5)

	descriptors := []ChildDescriptor[testMove]{
		{Move: 0}, {Move: 1}, {Move: 2},
	}
	require.NoError(t, a.expand(a.root(), descriptors, 0.5))
	require.True(t, a.root().hasChildren())

	kids := a.children(0)
	require.Len(t, kids, 3)
	for i, k := range kids {
		require.Equal(t, testMove(i), k.Move())
	}
}

func TestArenaAllocFailsWithoutCorruptingCapacity(t *testing.T) {
	a := newArena[testMove](4)
	a.clear(0.5)

	first, ok := a.alloc(10)
	require.False(t, ok)
	require.Equal(t, int32(0), first)
	require.Equal(t, int32(4), a.capacity)
}

func TestArenaFindNode(t *testing.T) {
	a := newArena[testMove](16)
	a.clear(0.5)
	require.NoError(t, a.expand(a.root(), []ChildDescriptor[testMove]{{Move: 5}, {Move: 9}}, 0.5))

	idx, found := a.findNode([]testMove{9})
	require.True(t, found)
	require.Equal(t, testMove(9), a.at(int32(idx)).Move())

	_, found = a.findNode([]testMove{42})
	require.False(t, found)
}

func TestArenaCopySubtreeFiltersByMinCount(t *testing.T) {
	a := newArena[testMove](16)
	a.clear(0.5)
	require.NoError(t, a.expand(a.root(), []ChildDescriptor[testMove]{{Move: 0}, {Move: 1}}, 0.5))
	a.addValue(a.at(1), 1.0) // child 0 now has 1 visit; child 1 (index 2) has 0

	dst := newArena[testMove](16)
	dst.clear(0.5)
	ok := a.copySubtree(dst, 0, 0, 1, nil)
	require.True(t, ok)

	kids := dst.children(0)
	require.Len(t, kids, 1)
	require.Equal(t, testMove(0), kids[0].Move())
}

func TestArenaCopySubtreeRetainsPartialOnAbort(t *testing.T) {
	a := newArena[testMove](16)
	a.clear(0.5)
	require.NoError(t, a.expand(a.root(), []ChildDescriptor[testMove]{{Move: 0}, {Move: 1}}, 0.5))

	dst := newArena[testMove](16)
	dst.clear(0.5)
	calls := 0
	abort := func() bool {
		calls++
		return calls > 1
	}
	ok := a.copySubtree(dst, 0, 0, 0, abort)
	require.False(t, ok)
	// dst must still be a well-formed, if partial, arena: no panic reading it.
	require.GreaterOrEqual(t, dst.nuNodes(), int32(1))
}

// Invariant 2 (publish-before-observe): a reader that observes a
// non-zero numChildren must also observe every child slot fully
// initialized. numChildren is the one release-equivalent store in the
// protocol (spec §5) -- expand() writes every child's move via reset()
// strictly before that store, so a reader must never see an unset
// (zero-value) move on a slot children() already reports as published.
func TestArenaExpandPublishesBeforeObserveUnderConcurrentReaders(t *testing.T) {
	const iterations = 500
	wantMoves := map[testMove]bool{1: true, 2: true, 3: true}

	for iter := 0; iter < iterations; iter++ {
		a := newArena[testMove](8)
		a.clear(0.5)

		var wg sync.WaitGroup
		var sawTornRead atomic.Bool
		done := make(chan struct{})

		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				kids := a.children(0)
				for i := range kids {
					if !wantMoves[kids[i].Move()] {
						sawTornRead.Store(true)
					}
				}
			}
		}()

		require.NoError(t, a.expand(a.root(), []ChildDescriptor[testMove]{{Move: 1}, {Move: 2}, {Move: 3}}, 0.5))
		close(done)
		wg.Wait()
		require.False(t, sawTornRead.Load(), "reader observed a published child with an uninitialized move")
	}
}

// Invariant 3 (monotone count under concurrency): DirtyStat.Count()
// never decreases while concurrent Add calls are in flight, even though
// individual increments may be lost to tearing.
func TestDirtyStatCountNeverDecreasesUnderConcurrentAdd(t *testing.T) {
	var s DirtyStat
	s.Clear(0.5)

	const goroutines = 8
	const addsPerGoroutine = 2000

	var wg sync.WaitGroup
	observed := make(chan Result, goroutines*addsPerGoroutine/10+1)
	stop := make(chan struct{})

	go func() {
		last := Result(0)
		for {
			select {
			case <-stop:
				return
			default:
			}
			c := s.Count()
			if c < last {
				observed <- c
			}
			last = c
		}
	}()

	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < addsPerGoroutine; i++ {
				s.Add(1)
			}
		}()
	}
	wg.Wait()
	close(stop)

	select {
	case bad := <-observed:
		t.Fatalf("Count() decreased to %v during concurrent Add", bad)
	default:
	}
}

func TestArenaSwapExchangesContents(t *testing.T) {
	a := newArena[testMove](8)
	a.clear(0.5)
	require.NoError(t, a.expand(a.root(), []ChildDescriptor[testMove]{{Move: 7}}, 0.5))

	b := newArena[testMove](8)
	b.clear(0.25)

	a.swap(b)
	require.Equal(t, int32(1), a.nuNodes())
	require.Equal(t, int32(2), b.nuNodes())
	require.Equal(t, testMove(7), b.children(0)[0].Move())
}
