package htm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// textFormatVersion is the highest version WriteText emits. ReadText
// accepts any version <= textFormatVersion; version 1 payloads carry an
// extra destroyed flag before every segment's fields and after every
// synapse's fields, which
// version 2 dropped once destroyed entries stopped being serialized at
// all.
const textFormatVersion = 2

// WriteText serializes c in the whitespace-tokenized text format: a
// "Connections"/version marker, cell/segment/synapse counts and data
// in cell order, the iteration counter, and a closing "~Connections"
// marker.
func (c *Connections) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "Connections")
	fmt.Fprintln(bw, textFormatVersion)
	fmt.Fprintf(bw, "%d %d %d \n", len(c.cells), c.maxSegmentsPerCell, c.maxSynapsesPerSegment)

	for _, cd := range c.cells {
		fmt.Fprintf(bw, "%d ", len(cd.segments))
		for _, seg := range cd.segments {
			sd := c.segments[seg.flatIdx]
			fmt.Fprintf(bw, "%d ", sd.LastUsedIteration)
			fmt.Fprintf(bw, "%d ", len(sd.Synapses))
			for _, syn := range sd.Synapses {
				syd := c.synapses[syn.flatIdx]
				fmt.Fprintf(bw, "%d ", syd.PresynapticCell)
				fmt.Fprintf(bw, "%s ", formatPermanence(syd.Permanence))
			}
			fmt.Fprintln(bw)
		}
		fmt.Fprintln(bw)
	}
	fmt.Fprintln(bw)

	fmt.Fprintf(bw, "%d \n", c.iteration)
	fmt.Fprintln(bw, "~Connections")

	return bw.Flush()
}

// formatPermanence renders a permanence with the shortest representation
// that round-trips through strconv.ParseFloat, so text-format output is
// stable without pinning an arbitrary fixed precision. ReadText parses
// the value back to the same float32; it applies no tolerance of its own.
func formatPermanence(p float32) string {
	return strconv.FormatFloat(float64(p), 'g', -1, 32)
}

// textScanner adapts bufio.Scanner to the whitespace-token reads the
// original istream-based format relies on.
type textScanner struct {
	s   *bufio.Scanner
	err error
}

func newTextScanner(r io.Reader) *textScanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	s.Split(bufio.ScanWords)
	return &textScanner{s: s}
}

func (t *textScanner) token() string {
	if t.err != nil {
		return ""
	}
	if !t.s.Scan() {
		if err := t.s.Err(); err != nil {
			t.err = err
		} else {
			t.err = io.ErrUnexpectedEOF
		}
		return ""
	}
	return t.s.Text()
}

func (t *textScanner) int() int {
	v, err := strconv.Atoi(t.token())
	if err != nil && t.err == nil {
		t.err = err
	}
	return v
}

func (t *textScanner) float32() float32 {
	v, err := strconv.ParseFloat(t.token(), 32)
	if err != nil && t.err == nil {
		t.err = err
	}
	return float32(v)
}

func (t *textScanner) bool() bool {
	return t.int() != 0
}

func (t *textScanner) expect(literal string) {
	if tok := t.token(); tok != literal && t.err == nil {
		t.err = newError(FormatError, "expected %q, got %q", literal, tok)
	}
}

// ReadText parses the format WriteText produces, including version 1
// payloads that carry a destroyed flag before every segment's fields and
// after every synapse's fields; destroyed entries are skipped rather than materialized, since
// this format never persists tombstones going forward.
func ReadText(r io.Reader) (*Connections, error) {
	t := newTextScanner(r)

	t.expect("Connections")
	version := t.int()
	if t.err == nil && version > textFormatVersion {
		t.err = newError(InvalidState, "unsupported Connections text version %d", version)
	}

	numCells := t.int()
	maxSegmentsPerCell := t.int()
	maxSynapsesPerSegment := t.int()
	if t.err != nil {
		return nil, t.err
	}

	c, err := NewConnections(numCells, maxSegmentsPerCell, maxSynapsesPerSegment)
	if err != nil {
		return nil, err
	}

	for cell := 0; cell < numCells; cell++ {
		numSegments := t.int()
		for j := 0; j < numSegments; j++ {
			destroyedSegment := false
			if version < 2 {
				destroyedSegment = t.bool()
			}

			lastUsedIteration := t.int()
			var segment Segment
			haveSegment := !destroyedSegment
			if haveSegment {
				segment = c.appendRawSegment(cell, lastUsedIteration)
			}

			numSynapses := t.int()
			for k := 0; k < numSynapses; k++ {
				presynapticCell := t.int()
				permanence := t.float32()

				destroyedSynapse := false
				if version < 2 {
					destroyedSynapse = t.bool()
				}

				if haveSegment && !destroyedSynapse {
					c.appendRawSynapse(segment, presynapticCell, permanence)
				}
			}
		}
	}

	c.iteration = t.int()
	t.expect("~Connections")

	if t.err != nil {
		return nil, t.err
	}
	return c, nil
}
