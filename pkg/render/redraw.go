package render

import (
	"io"
	"sync/atomic"

	"github.com/KevoDB/firstfit/pkg/common/log"
	"github.com/KevoDB/firstfit/pkg/simulator"
)

// Redrawer redraws the bar after every change to a session's table.
type Redrawer struct {
	out     io.Writer
	bar     Bar
	enabled atomic.Bool
	logger  log.Logger
}

var _ simulator.Observer = (*Redrawer)(nil)

// NewRedrawer creates an enabled Redrawer writing to out.
func NewRedrawer(out io.Writer, bar Bar, logger log.Logger) *Redrawer {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	r := &Redrawer{out: out, bar: bar, logger: logger.WithField("component", "render")}
	r.enabled.Store(true)
	return r
}

// SetEnabled turns redrawing on or off.
func (r *Redrawer) SetEnabled(on bool) {
	r.enabled.Store(on)
}

// Enabled reports whether redrawing is on.
func (r *Redrawer) Enabled() bool {
	return r.enabled.Load()
}

// OnTableChanged pulls a fresh snapshot from the session and draws it.
func (r *Redrawer) OnTableChanged(s *simulator.Session, change simulator.Change) {
	if !r.enabled.Load() {
		return
	}
	if err := r.bar.Write(r.out, s.Views(), s.TotalMemory()); err != nil {
		r.logger.Error("redraw after %s of block %d failed: %v", change.Kind, change.Index+1, err)
	}
}
