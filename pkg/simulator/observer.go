package simulator

// ChangeKind identifies which mutation produced a Change
type ChangeKind int

const (
	ChangeAllocated ChangeKind = iota
	ChangeDeallocated
)

// String returns the lowercase name of the change kind
func (k ChangeKind) String() string {
	switch k {
	case ChangeAllocated:
		return "allocated"
	case ChangeDeallocated:
		return "deallocated"
	default:
		return "unknown"
	}
}

// Change describes one successful mutation of the block table.
type Change struct {
	Kind      ChangeKind
	Owner     string
	Index     int
	Capacity  int
	Requested int // zero for deallocations
}

// Observer is notified after every successful Allocate or Deallocate.
// Observers run synchronously on the caller's goroutine after the table
// lock is released, so they may read the session freely. They must not
// mutate it.
type Observer interface {
	OnTableChanged(s *Session, change Change)
}

// ObserverFunc adapts a plain function to the Observer interface
type ObserverFunc func(s *Session, change Change)

// OnTableChanged calls f(s, change)
func (f ObserverFunc) OnTableChanged(s *Session, change Change) {
	f(s, change)
}
