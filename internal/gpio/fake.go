package gpio

// FakePort is a test double that records line activity and returns
// scripted input levels.
type FakePort struct {
	// Inputs contains scripted levels per line. Each Read of the line
	// consumes the next level; once exhausted the last level repeats.
	// Unscripted lines read Low.
	Inputs map[Line][]Level

	// Ops records every successful Write and Read in call order.
	Ops []Op

	// Released tracks if ReleaseAll was called.
	Released bool

	// WriteError, if set, will be returned by Write.
	WriteError error

	// ReadError, if set, will be returned by Read.
	ReadError error

	lines  lineTable
	index  map[Line]int
	levels map[Line]Level
}

// OpKind distinguishes recorded operations.
type OpKind int

const (
	OpWrite OpKind = iota + 1
	OpRead
)

// Op is one recorded line access.
type Op struct {
	Kind  OpKind
	Line  Line
	Level Level
}

// NewFakePort creates a FakePort with the given input script.
func NewFakePort(inputs map[Line][]Level) *FakePort {
	if inputs == nil {
		inputs = make(map[Line][]Level)
	}
	return &FakePort{
		Inputs: inputs,
		lines:  newLineTable(),
		index:  make(map[Line]int),
		levels: make(map[Line]Level),
	}
}

// ConfigureOutput claims line as an output.
func (f *FakePort) ConfigureOutput(line Line) error {
	return f.lines.claim(line, dirOutput)
}

// ConfigureInput claims line as an input.
func (f *FakePort) ConfigureInput(line Line) error {
	return f.lines.claim(line, dirInput)
}

// Write records the level driven on line.
func (f *FakePort) Write(line Line, level Level) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	if err := f.lines.checkWrite(line, level); err != nil {
		return err
	}
	f.levels[line] = level
	f.Ops = append(f.Ops, Op{Kind: OpWrite, Line: line, Level: level})
	return nil
}

// Read returns the next scripted level for line.
func (f *FakePort) Read(line Line) (Level, error) {
	if f.ReadError != nil {
		return Low, f.ReadError
	}
	if err := f.lines.checkRead(line); err != nil {
		return Low, err
	}

	level := Low
	if script := f.Inputs[line]; len(script) > 0 {
		i := f.index[line]
		level = script[i]
		if i < len(script)-1 {
			f.index[line]++
		}
	} else if f.lines.dirs[line] == dirOutput {
		level = f.levels[line]
	}

	f.Ops = append(f.Ops, Op{Kind: OpRead, Line: line, Level: level})
	return level, nil
}

// ReleaseAll marks the port as released.
func (f *FakePort) ReleaseAll() error {
	f.lines.release()
	f.Released = true
	return nil
}

// Level returns the last level written to line.
func (f *FakePort) Level(line Line) Level {
	return f.levels[line]
}

// Direction reports whether line is configured, and as an output.
func (f *FakePort) Direction(line Line) (configured, output bool) {
	d := f.lines.dirs[line]
	return d != 0, d == dirOutput
}

// Writes returns the recorded writes to line, in order.
func (f *FakePort) Writes(line Line) []Level {
	var out []Level
	for _, op := range f.Ops {
		if op.Kind == OpWrite && op.Line == line {
			out = append(out, op.Level)
		}
	}
	return out
}

// Reset clears recorded operations and rewinds the input script.
func (f *FakePort) Reset() {
	f.Ops = nil
	f.index = make(map[Line]int)
}
