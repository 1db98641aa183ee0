// Package quota counts outbound upstream calls against a daily ceiling.
//
// The counter is scoped to the current UTC calendar day and resets lazily:
// whenever a caller consults the guard and the stored day differs from the
// observed one, the state is replaced with a fresh snapshot for the new day.
// There are no timers and no persistence; a restart forfeits the count.
package quota

import (
	"sync"
	"time"
)

// DefaultDailyLimit is the ceiling applied when none is configured.
const DefaultDailyLimit = 99

const dayFormat = "2006-01-02"

// State is an immutable snapshot of one UTC day's consumption. Rollover
// replaces the snapshot wholesale rather than mutating fields in place.
type State struct {
	Day  string
	Used int
}

// Decision is the outcome of a single TryConsume call.
type Decision struct {
	Allowed   bool
	Remaining int
	Day       string
}

// Status is the read-only view returned by Peek.
type Status struct {
	Day       string
	Used      int
	Remaining int
}

type Guard struct {
	mu    sync.Mutex
	limit int
	now   func() time.Time
	state State
}

type Option interface {
	apply(g *Guard)
}

var _ Option = nowFuncOption(nil)

type nowFuncOption func() time.Time

func (o nowFuncOption) apply(g *Guard) {
	g.now = o
}

// WithNowFunc replaces the clock used for day rollover.
func WithNowFunc(now func() time.Time) nowFuncOption {
	return nowFuncOption(now)
}

func New(limit int, opts ...Option) *Guard {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	g := &Guard{
		limit: limit,
		now:   time.Now,
	}
	for _, o := range opts {
		o.apply(g)
	}
	g.state = State{Day: g.today(), Used: 0}
	return g
}

func (g *Guard) today() string {
	return g.now().UTC().Format(dayFormat)
}

// rollover must be called with g.mu held.
func (g *Guard) rollover() {
	if day := g.today(); g.state.Day != day {
		g.state = State{Day: day, Used: 0}
	}
}

// TryConsume reconciles the day state, then claims one quota unit.
// At the ceiling it denies without mutating the counter.
func (g *Guard) TryConsume() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover()
	if g.state.Used >= g.limit {
		return Decision{Allowed: false, Remaining: 0, Day: g.state.Day}
	}
	g.state = State{Day: g.state.Day, Used: g.state.Used + 1}
	return Decision{Allowed: true, Remaining: g.limit - g.state.Used, Day: g.state.Day}
}

// Peek reports consumption without claiming a unit. Like TryConsume it
// performs the lazy rollover, so the reported day is never stale.
func (g *Guard) Peek() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover()
	return Status{
		Day:       g.state.Day,
		Used:      g.state.Used,
		Remaining: g.limit - g.state.Used,
	}
}

// Limit returns the configured daily ceiling.
func (g *Guard) Limit() int {
	return g.limit
}
