package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/rcheap"
	"github.com/wippyai/rcheap/heap"
	"github.com/wippyai/rcheap/rc"
)

func main() {
	var (
		capacity    = flag.Uint("capacity", 64*1024, "Initial arena capacity in bytes")
		verbose     = flag.Bool("v", false, "Log allocator and cell activity")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(uint32(*capacity)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(uint32(*capacity), *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// tracker keeps the set of live blocks so they can be dumped with
// their current counters, read straight from the header.
type tracker struct {
	mem    rcheap.Memory
	blocks map[uint32]rc.Shape
	order  []uint32
}

func newTracker(mem rcheap.Memory) *tracker {
	return &tracker{
		mem:    mem,
		blocks: make(map[uint32]rc.Shape),
	}
}

func (t *tracker) OnCellEvent(e rc.Event) {
	switch e.Type {
	case rc.EventAllocated:
		t.blocks[e.Addr] = e.Shape
		t.order = append(t.order, e.Addr)
	case rc.EventBlockFreed:
		delete(t.blocks, e.Addr)
		for i, addr := range t.order {
			if addr == e.Addr {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}
}

type blockRow struct {
	shape  rc.Shape
	addr   uint32
	strong uint32
	weak   uint32
}

func (t *tracker) rows() []blockRow {
	rows := make([]blockRow, 0, len(t.order))
	for _, addr := range t.order {
		shape, ok := t.blocks[addr]
		if !ok {
			continue
		}
		strong, _ := t.mem.ReadU32(addr)
		weak, _ := t.mem.ReadU32(addr + 4)
		rows = append(rows, blockRow{shape: shape, addr: addr, strong: strong, weak: weak})
	}
	return rows
}

func run(capacity uint32, verbose bool) error {
	logger := zap.NewNop()
	if verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
	}

	arena := heap.New(heap.WithCapacity(capacity), heap.WithLogger(logger))
	track := newTracker(arena)
	cells := rc.NewHeap(arena, arena,
		rc.WithLogger(logger),
		rc.WithObserver(track),
		rc.WithObserver(rc.LogObserver{Logger: logger}))

	// A short scripted workload exercising every lifecycle edge.
	greeting, err := cells.NewString("hello, rcheap")
	if err != nil {
		return err
	}
	shared := greeting.Clone()
	observer := greeting.Downgrade()

	squares, err := cells.NewSeq(rc.U64, 4, func(i uint32, mem rcheap.Memory, addr uint32) error {
		return mem.WriteU64(addr, uint64(i)*uint64(i))
	})
	if err != nil {
		return err
	}

	pair, err := cells.New(rc.Opaque("pair", 16, 8), func(mem rcheap.Memory, addr uint32) error {
		if err := mem.WriteU64(addr, 2); err != nil {
			return err
		}
		return mem.WriteU64(addr+8, 3)
	})
	if err != nil {
		return err
	}
	words, err := pair.AsSeq(rc.U64, 2)
	if err != nil {
		return err
	}

	fmt.Println("live blocks after construction:")
	dump(track, arena)

	greeting.Drop()
	shared.Drop() // value destroyed here, block kept for the observer

	if _, ok := observer.Upgrade(); ok {
		return fmt.Errorf("upgrade succeeded on a dead value")
	}
	fmt.Println("\nafter dropping both strong handles (weak observer keeps the block):")
	dump(track, arena)

	observer.Drop()
	squares.Drop()
	words.Drop()

	fmt.Println("\nafter dropping everything:")
	dump(track, arena)
	return nil
}

func dump(track *tracker, arena *heap.Arena) {
	rows := track.rows()
	if len(rows) == 0 {
		fmt.Println("  (none)")
	}
	for _, r := range rows {
		fmt.Printf("  0x%06x  %-14s strong=%-3d weak=%-3d\n",
			r.addr, r.shape.Name(), r.strong, r.weak)
	}
	fmt.Printf("  arena: %s in use, %s total, %d allocs / %d frees\n",
		humanize.Bytes(uint64(arena.InUse())),
		humanize.Bytes(uint64(arena.Size())),
		arena.Allocs(), arena.Frees())
}
