// Package stream converts the worker's raw byte output into classified
// telemetry events: a Reassembler cuts arbitrary chunks into complete
// lines, Classify recognizes the tagged-log grammar in them.
package stream

import "bytes"

// Reassembler turns arbitrary byte chunks from one physical stream into
// complete lines. It must never be shared between two streams, stdout
// and stderr need independent instances because the operating system
// offers no synchronization between them.
type Reassembler struct {
	pending []byte
}

func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed appends chunk to the pending buffer and returns every fully
// terminated line in arrival order, without terminators. The trailing
// unterminated remainder, possibly empty, is retained for the next
// call. Concatenating all chunks fed equals concatenating all emitted
// lines with terminators reinserted plus the final Flush.
func (r *Reassembler) Feed(chunk []byte) []string {
	r.pending = append(r.pending, chunk...)
	var lines []string
	for {
		i := bytes.IndexByte(r.pending, '\n')
		if i < 0 {
			return lines
		}
		lines = append(lines, string(r.pending[:i]))
		r.pending = r.pending[i+1:]
	}
}

// Flush emits the retained remainder as a final line when the source
// stream has ended without a terminator. It reports false when nothing
// was retained.
func (r *Reassembler) Flush() (string, bool) {
	if len(r.pending) == 0 {
		return "", false
	}
	line := string(r.pending)
	r.pending = nil
	return line, true
}
