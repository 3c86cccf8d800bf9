package drivemode

import (
	"fmt"
	"sync"
	"time"
)

// Entry is one log line. Count is greater than one when identical lines
// arrived within the collapse window.
type Entry struct {
	Line  string    `json:"line"`
	Count int       `json:"count"`
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
}

func (e Entry) String() string {
	if e.Count > 1 {
		return fmt.Sprintf("%s (x%d)", e.Line, e.Count)
	}
	return e.Line
}

// Log is a fixed-capacity ring of entries. Once full, every append evicts
// the oldest entry.
type Log struct {
	window time.Duration
	now    func() time.Time

	mu   sync.RWMutex
	buf  []Entry
	head int
	size int
}

// NewLog returns an empty log. A zero window disables collapsing.
func NewLog(capacity int, window time.Duration, now func() time.Time) *Log {
	if capacity < 1 {
		capacity = 1
	}
	if now == nil {
		now = time.Now
	}

	return &Log{
		window: window,
		now:    now,
		buf:    make([]Entry, capacity),
	}
}

// Append adds line, or bumps the count of the newest entry when it holds the
// same line and was last seen within the collapse window.
func (l *Log) Append(line string) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size > 0 && l.window > 0 {
		last := &l.buf[l.index(l.size-1)]
		if last.Line == line && now.Sub(last.Last) <= l.window {
			last.Count++
			last.Last = now
			return
		}
	}

	e := Entry{Line: line, Count: 1, First: now, Last: now}
	if l.size < len(l.buf) {
		l.buf[l.index(l.size)] = e
		l.size++
		return
	}
	l.buf[l.head] = e
	l.head = (l.head + 1) % len(l.buf)
}

func (l *Log) Appendf(format string, args ...any) {
	l.Append(fmt.Sprintf(format, args...))
}

func (l *Log) index(i int) int {
	return (l.head + i) % len(l.buf)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

func (l *Log) Cap() int {
	return len(l.buf)
}

// Entries returns the last n entries, oldest first. n <= 0 returns all.
func (l *Log) Entries(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > l.size {
		n = l.size
	}
	out := make([]Entry, 0, n)
	for i := l.size - n; i < l.size; i++ {
		out = append(out, l.buf[l.index(i)])
	}

	return out
}

// Tail renders the last n entries, oldest first.
func (l *Log) Tail(n int) []string {
	entries := l.Entries(n)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.String()
	}

	return out
}

// Lines renders every entry, oldest first.
func (l *Log) Lines() []string {
	return l.Tail(0)
}
