package tui

// logTail keeps the most recent progress lines, oldest first. It is
// copied along with the model, so add never mutates a shared array.
type logTail struct {
	lines []string
	max   int
}

func newLogTail(size int) logTail {
	if size < 1 {
		size = 1
	}
	return logTail{max: size}
}

// add returns a tail with line appended, evicting the oldest once full.
func (t logTail) add(line string) logTail {
	start := 0
	if len(t.lines) >= t.max {
		start = len(t.lines) - t.max + 1
	}
	next := make([]string, 0, t.max)
	next = append(next, t.lines[start:]...)
	t.lines = append(next, line)
	return t
}

func (t logTail) entries() []string {
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}
