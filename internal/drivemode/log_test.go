package drivemode_test

import (
	"fmt"
	"testing"
	"time"

	"codeberg.org/mutker/vehiclectl/internal/drivemode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func newClock() *clock { return &clock{t: time.Unix(1700000000, 0)} }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestLogEvictsOldestFirst(t *testing.T) {
	l := drivemode.NewLog(500, 0, nil)
	for i := 0; i < 501; i++ {
		l.Append(fmt.Sprintf("line %d", i))
	}

	require.Equal(t, 500, l.Len())
	lines := l.Lines()
	require.Len(t, lines, 500)
	assert.Equal(t, "line 1", lines[0])
	assert.Equal(t, "line 500", lines[499])
}

func TestLogWrapsRepeatedly(t *testing.T) {
	l := drivemode.NewLog(3, 0, nil)
	for i := 0; i < 10; i++ {
		l.Append(fmt.Sprintf("%d", i))
	}
	assert.Equal(t, []string{"7", "8", "9"}, l.Lines())
	assert.Equal(t, []string{"8", "9"}, l.Tail(2))
	assert.Equal(t, []string{"7", "8", "9"}, l.Tail(99))
}

func TestLogCollapsesWithinWindow(t *testing.T) {
	c := newClock()
	l := drivemode.NewLog(10, 2*time.Second, c.now)

	l.Append("Drive mode: Sport")
	c.advance(time.Second)
	l.Append("Drive mode: Sport")
	c.advance(time.Second)
	l.Append("Drive mode: Sport")
	assert.Equal(t, []string{"Drive mode: Sport (x3)"}, l.Lines())

	// the window restarts at the latest repeat
	c.advance(3 * time.Second)
	l.Append("Drive mode: Sport")
	assert.Equal(t, []string{"Drive mode: Sport (x3)", "Drive mode: Sport"}, l.Lines())

	// a different line breaks the run
	l.Append("Drive mode: Eco")
	l.Append("Drive mode: Sport")
	assert.Len(t, l.Lines(), 4)

	e := l.Entries(1)[0]
	assert.Equal(t, 1, e.Count)
}

func TestLogEmpty(t *testing.T) {
	l := drivemode.NewLog(0, time.Second, nil)
	assert.Equal(t, 1, l.Cap())
	assert.Empty(t, l.Lines())
	assert.Empty(t, l.Tail(5))
}
