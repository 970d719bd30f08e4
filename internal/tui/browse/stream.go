package browse

import (
	"iter"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/plugscan/internal/plugin"
)

type pluginMsg plugin.LoadedPlugin

type doneMsg struct{}

// Stream drains a plugin sequence on its own goroutine and hands plugins to
// the model one message at a time.
type Stream struct {
	ch   chan plugin.LoadedPlugin
	stop chan struct{}
	once sync.Once
}

// NewStream starts ranging over seq. Call Stop to abandon it early.
func NewStream(seq iter.Seq[plugin.LoadedPlugin]) *Stream {
	s := &Stream{
		ch:   make(chan plugin.LoadedPlugin),
		stop: make(chan struct{}),
	}
	go s.run(seq)
	return s
}

func (s *Stream) run(seq iter.Seq[plugin.LoadedPlugin]) {
	defer close(s.ch)
	for lp := range seq {
		select {
		case s.ch <- lp:
		case <-s.stop:
			return
		}
	}
}

// Next waits for the next plugin, or reports that the sequence ended.
func (s *Stream) Next() tea.Cmd {
	return func() tea.Msg {
		lp, ok := <-s.ch
		if !ok {
			return doneMsg{}
		}
		return pluginMsg(lp)
	}
}

// Stop abandons the sequence. Safe to call more than once.
func (s *Stream) Stop() {
	s.once.Do(func() { close(s.stop) })
}
