package gpio

import "fmt"

// rpioLines is the number of GPIO lines on the BCM283x register block.
// rpio.Pin indexes registers directly, so larger numbers must never reach it.
const rpioLines = 54

type direction int

const (
	dirInput direction = iota + 1
	dirOutput
)

// lineTable tracks which lines a port has claimed and how.
// Not safe for concurrent use.
type lineTable struct {
	dirs     map[Line]direction
	released bool
	// lines bounds valid line numbers to [0, lines); zero means unbounded.
	lines Line
}

func newLineTable() lineTable {
	return lineTable{dirs: make(map[Line]direction)}
}

// newBoundedLineTable accepts only lines in [0, lines).
func newBoundedLineTable(lines Line) lineTable {
	t := newLineTable()
	t.lines = lines
	return t
}

func (t *lineTable) claim(line Line, dir direction) error {
	if t.released {
		return fmt.Errorf("configure line %d: port released: %w", line, ErrHardware)
	}
	if line < 0 || (t.lines > 0 && line >= t.lines) {
		return fmt.Errorf("configure line %d: out of range: %w", line, ErrHardware)
	}
	t.dirs[line] = dir
	return nil
}

func (t *lineTable) checkWrite(line Line, level Level) error {
	if t.released {
		return fmt.Errorf("write line %d: port released: %w", line, ErrHardware)
	}
	switch t.dirs[line] {
	case dirOutput:
	case dirInput:
		return fmt.Errorf("write line %d: configured as input: %w", line, ErrHardware)
	default:
		return fmt.Errorf("write line %d: not configured: %w", line, ErrHardware)
	}
	if level != Low && level != High {
		return fmt.Errorf("write line %d: invalid level %d: %w", line, level, ErrHardware)
	}
	return nil
}

func (t *lineTable) checkRead(line Line) error {
	if t.released {
		return fmt.Errorf("read line %d: port released: %w", line, ErrHardware)
	}
	if t.dirs[line] == 0 {
		return fmt.Errorf("read line %d: not configured: %w", line, ErrHardware)
	}
	return nil
}

func (t *lineTable) release() {
	t.released = true
	t.dirs = make(map[Line]direction)
}
