package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/wippyai/rcheap"
	"github.com/wippyai/rcheap/heap"
	"github.com/wippyai/rcheap/rc"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	blockStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	deadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// cellModel drives the interactive inspector: a live table of blocks
// with their counters, plus keybindings that clone, drop, downgrade
// and upgrade handles while you watch.
type cellModel struct {
	arena    *heap.Arena
	cells    *rc.Heap
	track    *tracker
	strongs  map[uint32][]rc.Strong
	weaks    map[uint32][]rc.Weak
	input    textinput.Model
	status   string
	selected int
	entering bool
}

func newCellModel(capacity uint32) *cellModel {
	arena := heap.New(heap.WithCapacity(capacity))
	track := newTracker(arena)
	cells := rc.NewHeap(arena, arena, rc.WithObserver(track))

	input := textinput.New()
	input.Placeholder = "cell contents"
	input.CharLimit = 256

	return &cellModel{
		arena:   arena,
		cells:   cells,
		track:   track,
		strongs: make(map[uint32][]rc.Strong),
		weaks:   make(map[uint32][]rc.Weak),
		input:   input,
		status:  "press s to allocate a string cell",
	}
}

func runInteractive(capacity uint32) error {
	p := tea.NewProgram(newCellModel(capacity))
	_, err := p.Run()
	return err
}

func (m *cellModel) Init() tea.Cmd {
	return nil
}

func (m *cellModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.entering {
		switch key.String() {
		case "enter":
			m.entering = false
			m.input.Blur()
			m.newString(m.input.Value())
			m.input.SetValue("")
		case "esc":
			m.entering = false
			m.input.Blur()
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.track.rows())-1 {
			m.selected++
		}
	case "s":
		m.entering = true
		m.input.Focus()
	case "n":
		m.newSquares()
	case "c":
		m.withSelected(m.cloneStrong)
	case "d":
		m.withSelected(m.dropStrong)
	case "w":
		m.withSelected(m.downgrade)
	case "u":
		m.withSelected(m.upgrade)
	case "x":
		m.withSelected(m.dropWeak)
	}
	return m, nil
}

func (m *cellModel) withSelected(op func(addr uint32)) {
	rows := m.track.rows()
	if m.selected >= len(rows) {
		m.status = "no block selected"
		return
	}
	op(rows[m.selected].addr)
	if m.selected >= len(m.track.rows()) && m.selected > 0 {
		m.selected--
	}
}

func (m *cellModel) newString(v string) {
	s, err := m.cells.NewString(v)
	if err != nil {
		m.status = err.Error()
		return
	}
	m.strongs[s.Addr()] = append(m.strongs[s.Addr()], s)
	m.status = fmt.Sprintf("allocated %s at 0x%x", s.Shape().Name(), s.Addr())
}

func (m *cellModel) newSquares() {
	s, err := m.cells.NewSeq(rc.U64, 4, func(i uint32, mem rcheap.Memory, addr uint32) error {
		return mem.WriteU64(addr, uint64(i)*uint64(i))
	})
	if err != nil {
		m.status = err.Error()
		return
	}
	m.strongs[s.Addr()] = append(m.strongs[s.Addr()], s)
	m.status = fmt.Sprintf("allocated %s at 0x%x", s.Shape().Name(), s.Addr())
}

func (m *cellModel) cloneStrong(addr uint32) {
	hs := m.strongs[addr]
	if len(hs) == 0 {
		m.status = "no strong handle held here; upgrade first"
		return
	}
	m.strongs[addr] = append(hs, hs[len(hs)-1].Clone())
	m.status = fmt.Sprintf("cloned strong handle to 0x%x", addr)
}

func (m *cellModel) dropStrong(addr uint32) {
	hs := m.strongs[addr]
	if len(hs) == 0 {
		m.status = "no strong handle to drop"
		return
	}
	hs[len(hs)-1].Drop()
	m.strongs[addr] = hs[:len(hs)-1]
	m.status = fmt.Sprintf("dropped strong handle to 0x%x", addr)
	m.forget(addr)
}

func (m *cellModel) downgrade(addr uint32) {
	hs := m.strongs[addr]
	if len(hs) == 0 {
		m.status = "no strong handle to downgrade"
		return
	}
	m.weaks[addr] = append(m.weaks[addr], hs[len(hs)-1].Downgrade())
	m.status = fmt.Sprintf("downgraded: weak observer of 0x%x", addr)
}

func (m *cellModel) upgrade(addr uint32) {
	ws := m.weaks[addr]
	if len(ws) == 0 {
		m.status = "no weak handle to upgrade"
		return
	}
	s, ok := ws[len(ws)-1].Upgrade()
	if !ok {
		m.status = deadStyle.Render("upgrade failed: value already destroyed")
		return
	}
	m.strongs[addr] = append(m.strongs[addr], s)
	m.status = fmt.Sprintf("upgraded weak handle to 0x%x", addr)
}

func (m *cellModel) dropWeak(addr uint32) {
	ws := m.weaks[addr]
	if len(ws) == 0 {
		m.status = "no weak handle to drop"
		return
	}
	ws[len(ws)-1].Drop()
	m.weaks[addr] = ws[:len(ws)-1]
	m.status = fmt.Sprintf("dropped weak handle to 0x%x", addr)
	m.forget(addr)
}

// forget discards handle bookkeeping once the tracker saw the block
// get freed.
func (m *cellModel) forget(addr uint32) {
	if _, live := m.track.blocks[addr]; !live {
		delete(m.strongs, addr)
		delete(m.weaks, addr)
	}
}

func (m *cellModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("rcheap inspector"))
	b.WriteString("\n\n")

	rows := m.track.rows()
	if len(rows) == 0 {
		b.WriteString(helpStyle.Render("  no live blocks"))
		b.WriteString("\n")
	}
	for i, r := range rows {
		line := fmt.Sprintf("0x%06x  %-14s strong=%-3d weak=%-3d held: %dS/%dW",
			r.addr, r.shape.Name(), r.strong, r.weak,
			len(m.strongs[r.addr]), len(m.weaks[r.addr]))
		if r.strong == 0 {
			line += "  (value dead)"
		}
		if i == m.selected {
			b.WriteString(selectedStyle.Render("→ " + line))
		} else {
			b.WriteString(blockStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("arena: %s in use, %s total, %d allocs / %d frees\n",
		humanize.Bytes(uint64(m.arena.InUse())),
		humanize.Bytes(uint64(m.arena.Size())),
		m.arena.Allocs(), m.arena.Frees()))

	if m.entering {
		b.WriteString("\nnew string cell: ")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(
		"s: new string  n: new seq  c: clone  d: drop strong  w: downgrade  u: upgrade  x: drop weak  q: quit"))
	b.WriteString("\n")
	return b.String()
}
