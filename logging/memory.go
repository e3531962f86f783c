package logging

import (
	"io"
	"sync"

	"go.uber.org/zap"
)

// LogsExporter writes buffered log lines to a writer
type LogsExporter interface {
	Export(io.Writer, bool) error
}

type logLine []byte

// ringSink keeps the last N log lines in memory
type ringSink struct {
	lock sync.Mutex

	lines []logLine
	next  int
	count int
}

func NewMemoryLogger(size int) zap.Sink {
	return &ringSink{
		lines: make([]logLine, size),
	}
}

func (m *ringSink) Write(p []byte) (n int, err error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	l := make(logLine, len(p))
	copy(l, p)
	m.lines[m.next] = l
	m.next = (m.next + 1) % len(m.lines)
	if m.count < len(m.lines) {
		m.count++
	}
	return len(p), nil
}

func (m *ringSink) Sync() error {
	return nil
}

func (m *ringSink) Close() error {
	return nil
}

func (m *ringSink) Export(w io.Writer, reverse bool) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	oldest := (m.next - m.count + len(m.lines)) % len(m.lines)
	for i := 0; i < m.count; i++ {
		offset := i
		if reverse {
			offset = m.count - 1 - i
		}
		if _, err := w.Write(m.lines[(oldest+offset)%len(m.lines)]); err != nil {
			return err
		}
	}
	return nil
}
