package htm

import (
	"encoding/gob"
	"io"
)

// binaryFormatVersion is written into every proto envelope; ReadBinary
// rejects a payload whose version exceeds it.
const binaryFormatVersion = 2

// synapseProto mirrors one entry of the capnp SynapseProto schema. Destroyed
// is always false on write; ReadBinary still checks it, since the schema
// promises to skip destroyed entries regardless of who produced them.
type synapseProto struct {
	PresynapticCell CellIdx
	Permanence      float32
	Destroyed       bool
}

// segmentProto mirrors one entry of the capnp SegmentProto schema.
type segmentProto struct {
	LastUsedIteration int
	Destroyed         bool
	Synapses          []synapseProto
}

// cellProto mirrors one entry of the capnp CellProto schema.
type cellProto struct {
	Segments []segmentProto
}

// connectionsProto is the gob-encoded envelope for a whole Connections,
// structured the way the original's capnp ConnectionsProto schema lays
// its fields out.
type connectionsProto struct {
	Version               int
	Cells                 []cellProto
	MaxSegmentsPerCell    int
	MaxSynapsesPerSegment int
	Iteration             int
}

func (c *Connections) toProto() connectionsProto {
	proto := connectionsProto{
		Version:               binaryFormatVersion,
		Cells:                 make([]cellProto, len(c.cells)),
		MaxSegmentsPerCell:    c.maxSegmentsPerCell,
		MaxSynapsesPerSegment: c.maxSynapsesPerSegment,
		Iteration:             c.iteration,
	}
	for i, cd := range c.cells {
		segs := make([]segmentProto, len(cd.segments))
		for j, seg := range cd.segments {
			sd := c.segments[seg.flatIdx]
			syns := make([]synapseProto, len(sd.Synapses))
			for k, syn := range sd.Synapses {
				syd := c.synapses[syn.flatIdx]
				syns[k] = synapseProto{PresynapticCell: syd.PresynapticCell, Permanence: syd.Permanence}
			}
			segs[j] = segmentProto{LastUsedIteration: sd.LastUsedIteration, Synapses: syns}
		}
		proto.Cells[i] = cellProto{Segments: segs}
	}
	return proto
}

func connectionsFromProto(proto connectionsProto) (*Connections, error) {
	if proto.Version > binaryFormatVersion {
		return nil, newError(InvalidState, "unsupported Connections binary version %d", proto.Version)
	}
	c, err := NewConnections(len(proto.Cells), proto.MaxSegmentsPerCell, proto.MaxSynapsesPerSegment)
	if err != nil {
		return nil, err
	}
	for cell, cp := range proto.Cells {
		for _, sp := range cp.Segments {
			if sp.Destroyed {
				continue
			}
			segment := c.appendRawSegment(cell, sp.LastUsedIteration)
			for _, syp := range sp.Synapses {
				if syp.Destroyed {
					continue
				}
				c.appendRawSynapse(segment, syp.PresynapticCell, syp.Permanence)
			}
		}
	}
	c.iteration = proto.Iteration
	return c, nil
}

// WriteBinary gob-encodes c's full structure, suitable for storage
// alongside a TemporalMemory's own binary snapshot.
func (c *Connections) WriteBinary(w io.Writer) error {
	return gob.NewEncoder(w).Encode(c.toProto())
}

// ReadBinary decodes a Connections previously written by WriteBinary.
func ReadBinary(r io.Reader) (*Connections, error) {
	var proto connectionsProto
	if err := gob.NewDecoder(r).Decode(&proto); err != nil {
		return nil, err
	}
	return connectionsFromProto(proto)
}
