package rc_test

import (
	"fmt"

	"github.com/wippyai/rcheap/heap"
	"github.com/wippyai/rcheap/rc"
)

func Example() {
	arena := heap.New()
	cells := rc.NewHeap(arena, arena)

	s, err := cells.NewString("hello, world")
	if err != nil {
		panic(err)
	}
	c := s.Clone()
	w := s.Downgrade()

	fmt.Println(string(c.Bytes()))
	fmt.Println("strong:", s.StrongCount())

	s.Drop()
	c.Drop() // value destroyed here

	if _, ok := w.Upgrade(); !ok {
		fmt.Println("value is gone")
	}
	w.Drop() // memory released here

	fmt.Println("leaked allocations:", arena.Live())
	// Output:
	// hello, world
	// strong: 2
	// value is gone
	// leaked allocations: 0
}
