package htm

import (
	"encoding/gob"
	"io"
)

// temporalMemoryProto is the gob envelope for a whole TemporalMemory: its
// parameters, its Connections, the RNG's replay log, and the transient
// cell/segment lists left over from the most recent Compute. Segments are
// addressed by (cell, idxOnCell) rather than by flatIdx, since flatIdx is
// not stable across a Connections save/load round trip.
type temporalMemoryProto struct {
	Version int
	Params  TemporalMemoryParams
	Conn    connectionsProto
	RNGSeed int64
	RNGLog  []int

	PrevActiveCells []CellIdx
	ActiveCells     []CellIdx
	PrevWinnerCells []CellIdx
	WinnerCells     []CellIdx

	PrevActiveSegments   []segmentRef
	ActiveSegments       []segmentRef
	PrevMatchingSegments []segmentRef
	MatchingSegments     []segmentRef

	NumActiveConnectedSynapsesForSegment []int
	NumActivePotentialSynapsesForSegment []int

	PredictiveCells []CellIdx
}

// segmentRef identifies a segment by its position rather than its
// flatIdx handle, the same substitution Connections.Equal makes for
// structural comparison.
type segmentRef struct {
	Cell      CellIdx
	IdxOnCell int
}

func toSegmentRef(conn *Connections, seg Segment) segmentRef {
	data := conn.DataForSegment(seg)
	return segmentRef{Cell: data.Cell, IdxOnCell: data.IdxOnCell}
}

func fromSegmentRef(conn *Connections, ref segmentRef) Segment {
	return conn.GetSegment(ref.Cell, ref.IdxOnCell)
}

func toSegmentRefs(conn *Connections, segs []Segment) []segmentRef {
	refs := make([]segmentRef, len(segs))
	for i, s := range segs {
		refs[i] = toSegmentRef(conn, s)
	}
	return refs
}

func fromSegmentRefs(conn *Connections, refs []segmentRef) []Segment {
	segs := make([]Segment, len(refs))
	for i, r := range refs {
		segs[i] = fromSegmentRef(conn, r)
	}
	return segs
}

// WriteBinary gob-encodes tm's full state: parameters, connectivity, RNG
// replay log, and the active/winner/predictive cell and segment lists
// left over from the most recent Compute.
func (tm *TemporalMemory) WriteBinary(w io.Writer) error {
	conn := tm.connections
	proto := temporalMemoryProto{
		Version:         binaryFormatVersion,
		Params:          tm.params,
		Conn:            conn.toProto(),
		RNGSeed:         tm.rng.seed,
		RNGLog:          tm.rng.calls,
		PrevActiveCells: tm.prevActiveCells,
		ActiveCells:     tm.activeCells,
		PrevWinnerCells: tm.prevWinnerCells,
		WinnerCells:     tm.winnerCells,

		PrevActiveSegments:   toSegmentRefs(conn, tm.prevActiveSegments),
		ActiveSegments:       toSegmentRefs(conn, tm.activeSegments),
		PrevMatchingSegments: toSegmentRefs(conn, tm.prevMatchingSegments),
		MatchingSegments:     toSegmentRefs(conn, tm.matchingSegments),

		NumActiveConnectedSynapsesForSegment: tm.numActiveConnectedSynapsesForSegment,
		NumActivePotentialSynapsesForSegment: tm.numActivePotentialSynapsesForSegment,
		PredictiveCells:                      tm.predictiveCells,
	}
	return gob.NewEncoder(w).Encode(proto)
}

// ReadTemporalMemory decodes a TemporalMemory previously written by
// WriteBinary.
func ReadTemporalMemory(r io.Reader) (*TemporalMemory, error) {
	var proto temporalMemoryProto
	if err := gob.NewDecoder(r).Decode(&proto); err != nil {
		return nil, err
	}
	if proto.Version > binaryFormatVersion {
		return nil, newError(InvalidState, "unsupported TemporalMemory binary version %d", proto.Version)
	}

	conn, err := connectionsFromProto(proto.Conn)
	if err != nil {
		return nil, err
	}

	r2 := newRNG(int(proto.RNGSeed))
	r2.replay(proto.RNGLog)

	tm := &TemporalMemory{
		params:      proto.Params,
		numColumns:  proto.Params.ColumnDimensions[0],
		connections: conn,
		rng:         r2,

		prevActiveCells: proto.PrevActiveCells,
		activeCells:     proto.ActiveCells,
		prevWinnerCells: proto.PrevWinnerCells,
		winnerCells:     proto.WinnerCells,

		numActiveConnectedSynapsesForSegment: proto.NumActiveConnectedSynapsesForSegment,
		numActivePotentialSynapsesForSegment: proto.NumActivePotentialSynapsesForSegment,
		predictiveCells:                      proto.PredictiveCells,
	}
	tm.numColumns = conn.NumCells() / tm.params.CellsPerColumn
	tm.numCells = conn.NumCells()

	tm.prevActiveSegments = fromSegmentRefs(conn, proto.PrevActiveSegments)
	tm.activeSegments = fromSegmentRefs(conn, proto.ActiveSegments)
	tm.prevMatchingSegments = fromSegmentRefs(conn, proto.PrevMatchingSegments)
	tm.matchingSegments = fromSegmentRefs(conn, proto.MatchingSegments)

	return tm, nil
}
