package shell

// outputBuffer accumulates one stream's output. The byte limit is supplied
// per append because a session's stdout and stderr share a single retention
// budget. Once the limit is exceeded the oldest bytes are dropped and the
// truncated flag sticks until the next drain. Not safe for concurrent use;
// callers hold the session lock.
type outputBuffer struct {
	buf       []byte
	truncated bool
}

func (b *outputBuffer) append(p []byte, limit int) {
	if limit < 0 {
		limit = 0
	}
	b.buf = append(b.buf, p...)
	if len(b.buf) > limit {
		b.buf = b.buf[len(b.buf)-limit:]
		b.truncated = true
	}
}

func (b *outputBuffer) len() int {
	return len(b.buf)
}

// snapshot returns the retained bytes without consuming them.
func (b *outputBuffer) snapshot() (string, bool) {
	return string(b.buf), b.truncated
}

// drain returns the retained bytes and resets the buffer.
func (b *outputBuffer) drain() (string, bool) {
	out, truncated := string(b.buf), b.truncated
	b.buf = nil
	b.truncated = false
	return out, truncated
}
