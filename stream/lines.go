package stream

import (
	"bufio"
	"io"
	"iter"
)

// maxLineSize bounds a single line read by Lines. Records larger than this
// fail the sequence rather than silently truncating.
const maxLineSize = 16 * 1024 * 1024

// Lines yields the lines of r without their trailing newline, one at a time.
// Lines are read lazily: nothing is consumed from r until the sequence is
// pulled. A read failure ends the sequence with that error; clean EOF simply
// exhausts it.
func Lines(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			if !yield(scanner.Text(), nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", err)
		}
	}
}
