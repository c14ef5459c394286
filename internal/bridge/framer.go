package bridge

// DefaultLineCapacity is the line buffer capacity when none is
// configured. Matches the longest line Marlin emits with headroom.
const DefaultLineCapacity = 256

// LineFramer converts an unbounded serial byte stream into discrete
// lines. It normalises CRLF to LF, suppresses empty lines, and bounds
// memory: a line longer than capacity-1 bytes is silently truncated,
// never grown and never reported. Overflow is a documented lossy
// policy, not an error path.
//
// A LineFramer is owned by the bridge cycle and must not be shared
// across goroutines.
type LineFramer struct {
	buf      []byte
	capacity int
	dropped  uint64
}

// NewLineFramer creates a framer with the given buffer capacity.
// Capacities below 2 fall back to DefaultLineCapacity.
func NewLineFramer(capacity int) *LineFramer {
	if capacity < 2 {
		capacity = DefaultLineCapacity
	}
	return &LineFramer{
		buf:      make([]byte, 0, capacity-1),
		capacity: capacity,
	}
}

// Feed consumes one byte and reports a completed line when the byte
// terminates one.
//
//   - '\r' is dropped unconditionally (CRLF normalisation).
//   - '\n' completes the buffered line if non-empty; empty lines are
//     suppressed.
//   - Any other byte is appended while the buffer has room, and silently
//     dropped once the line reaches capacity-1 bytes.
//
// Returns:
//   - line: The completed line, without its terminator
//   - ok: true when a line was completed by this byte
func (f *LineFramer) Feed(b byte) (line string, ok bool) {
	switch b {
	case '\r':
		return "", false
	case '\n':
		if len(f.buf) == 0 {
			return "", false
		}
		line = string(f.buf)
		f.buf = f.buf[:0]
		return line, true
	default:
		if len(f.buf) < f.capacity-1 {
			f.buf = append(f.buf, b)
		} else {
			f.dropped++
		}
		return "", false
	}
}

// Len returns the number of bytes currently buffered.
func (f *LineFramer) Len() int {
	return len(f.buf)
}

// Dropped returns the count of bytes discarded by truncation since the
// framer was created. Exposed for telemetry.
func (f *LineFramer) Dropped() uint64 {
	return f.dropped
}

// Reset discards any partially accumulated line.
func (f *LineFramer) Reset() {
	f.buf = f.buf[:0]
}
