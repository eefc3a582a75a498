package htm

// CellIdx is a dense, non-negative cell identifier in [0, numCells). The
// column a cell belongs to is CellIdx / cellsPerColumn.
type CellIdx = int

// Segment is an opaque handle to a distal dendrite owned by exactly one
// cell. Segment values are stable identifiers (flatIdx) reused in LIFO
// order from a free list once destroyed; compare segments with == and
// look up their data with Connections.DataForSegment.
type Segment struct {
	flatIdx int
}

// Synapse is an opaque handle to a potential connection from a
// presynaptic cell to a segment.
type Synapse struct {
	flatIdx int
}

// SegmentData is the record backing a live Segment.
type SegmentData struct {
	Cell              CellIdx
	Synapses          []Synapse
	LastUsedIteration int
	IdxOnCell         int
}

// SynapseData is the record backing a live Synapse.
type SynapseData struct {
	Segment        Segment
	PresynapticCell CellIdx
	Permanence     float32
	IdxOnSegment   int
}

type cellData struct {
	segments []Segment
}

// Connections is a mutable bipartite graph of cells, segments, and
// synapses. It owns segment and synapse records by value in dense arrays
// keyed by flatIdx, with free lists for identifier reuse, and maintains a
// reverse index from presynaptic cell to the synapses that reference it.
//
// Connections is not safe for concurrent mutation; concurrent read-only
// access to distinct instances is safe.
type Connections struct {
	cells                 []cellData
	segments              []SegmentData
	synapses              []SynapseData
	liveSegment           []bool
	liveSynapse           []bool
	destroyedSegments     []Segment
	destroyedSynapses     []Synapse
	synapsesForPresynapticCell map[CellIdx][]Synapse

	maxSegmentsPerCell    int
	maxSynapsesPerSegment int
	iteration             int

	subscribers    []subscriberEntry
	nextEventToken uint32
}

// NewConnections allocates a Connections with numCells cells and the given
// per-cell/per-segment capacity limits.
func NewConnections(numCells, maxSegmentsPerCell, maxSynapsesPerSegment int) (*Connections, error) {
	if numCells < 0 {
		return nil, newError(InvalidArgument, "numCells must be >= 0, got %d", numCells)
	}
	c := &Connections{
		cells:                      make([]cellData, numCells),
		synapsesForPresynapticCell: make(map[CellIdx][]Synapse),
		maxSegmentsPerCell:         maxSegmentsPerCell,
		maxSynapsesPerSegment:      maxSynapsesPerSegment,
	}
	return c, nil
}

func (c *Connections) checkCell(cell CellIdx) error {
	if cell < 0 || cell >= len(c.cells) {
		return newError(InvalidArgument, "cell %d out of range [0,%d)", cell, len(c.cells))
	}
	return nil
}

func (c *Connections) checkSegment(segment Segment) error {
	if segment.flatIdx < 0 || segment.flatIdx >= len(c.segments) || !c.liveSegment[segment.flatIdx] {
		return newError(InvalidArgument, "segment %d does not exist", segment.flatIdx)
	}
	return nil
}

func (c *Connections) checkSynapse(synapse Synapse) error {
	if synapse.flatIdx < 0 || synapse.flatIdx >= len(c.synapses) || !c.liveSynapse[synapse.flatIdx] {
		return newError(InvalidArgument, "synapse %d does not exist", synapse.flatIdx)
	}
	return nil
}

// CreateSegment creates a new segment on cell. If cell already has
// maxSegmentsPerCell segments, the least-recently-used one is destroyed
// first (ties broken by first-in-cell-order).
func (c *Connections) CreateSegment(cell CellIdx) (Segment, error) {
	if err := c.checkCell(cell); err != nil {
		return Segment{}, err
	}
	if c.maxSegmentsPerCell <= 0 {
		return Segment{}, newError(InvalidArgument, "maxSegmentsPerCell must be > 0, got %d", c.maxSegmentsPerCell)
	}
	for len(c.cells[cell].segments) >= c.maxSegmentsPerCell {
		if err := c.DestroySegment(c.leastRecentlyUsedSegment(cell)); err != nil {
			return Segment{}, err
		}
	}

	var segment Segment
	if n := len(c.destroyedSegments); n > 0 {
		segment = c.destroyedSegments[n-1]
		c.destroyedSegments = c.destroyedSegments[:n-1]
	} else {
		segment = Segment{flatIdx: len(c.segments)}
		c.segments = append(c.segments, SegmentData{})
		c.liveSegment = append(c.liveSegment, false)
	}
	c.liveSegment[segment.flatIdx] = true

	sd := &c.segments[segment.flatIdx]
	*sd = SegmentData{
		Cell:              cell,
		LastUsedIteration: c.iteration,
		IdxOnCell:         len(c.cells[cell].segments),
	}
	c.cells[cell].segments = append(c.cells[cell].segments, segment)

	c.notifyCreateSegment(segment)
	return segment, nil
}

// CreateSynapse creates a new synapse from presynapticCell to segment at
// the given permanence, which must be strictly positive. If segment
// already has maxSynapsesPerSegment synapses, the one with the minimum
// permanence is destroyed first.
func (c *Connections) CreateSynapse(segment Segment, presynapticCell CellIdx, permanence float32) (Synapse, error) {
	if err := c.checkSegment(segment); err != nil {
		return Synapse{}, err
	}
	if err := c.checkCell(presynapticCell); err != nil {
		return Synapse{}, err
	}
	if permanence <= 0 {
		return Synapse{}, newError(InvalidArgument, "permanence must be > 0, got %g", permanence)
	}
	if c.maxSynapsesPerSegment <= 0 {
		return Synapse{}, newError(InvalidArgument, "maxSynapsesPerSegment must be > 0, got %d", c.maxSynapsesPerSegment)
	}
	for len(c.segments[segment.flatIdx].Synapses) >= c.maxSynapsesPerSegment {
		if err := c.DestroySynapse(c.minPermanenceSynapse(segment)); err != nil {
			return Synapse{}, err
		}
	}

	var synapse Synapse
	if n := len(c.destroyedSynapses); n > 0 {
		synapse = c.destroyedSynapses[n-1]
		c.destroyedSynapses = c.destroyedSynapses[:n-1]
	} else {
		synapse = Synapse{flatIdx: len(c.synapses)}
		c.synapses = append(c.synapses, SynapseData{})
		c.liveSynapse = append(c.liveSynapse, false)
	}
	c.liveSynapse[synapse.flatIdx] = true

	sd := &c.segments[segment.flatIdx]
	syd := &c.synapses[synapse.flatIdx]
	*syd = SynapseData{
		Segment:         segment,
		PresynapticCell: presynapticCell,
		Permanence:      permanence,
		IdxOnSegment:    len(sd.Synapses),
	}
	sd.Synapses = append(sd.Synapses, synapse)
	c.synapsesForPresynapticCell[presynapticCell] = append(c.synapsesForPresynapticCell[presynapticCell], synapse)

	c.notifyCreateSynapse(synapse)
	return synapse, nil
}

func (c *Connections) removeSynapseFromPresynapticMap(synapse Synapse) {
	pre := c.synapses[synapse.flatIdx].PresynapticCell
	list := c.synapsesForPresynapticCell[pre]
	for i, s := range list {
		if s == synapse {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(c.synapsesForPresynapticCell, pre)
	} else {
		c.synapsesForPresynapticCell[pre] = list
	}
}

// DestroySegment removes segment and every synapse on it.
func (c *Connections) DestroySegment(segment Segment) error {
	if err := c.checkSegment(segment); err != nil {
		return err
	}
	c.notifyDestroySegment(segment)

	sd := &c.segments[segment.flatIdx]
	for _, syn := range sd.Synapses {
		c.removeSynapseFromPresynapticMap(syn)
		c.liveSynapse[syn.flatIdx] = false
		c.destroyedSynapses = append(c.destroyedSynapses, syn)
	}
	sd.Synapses = nil

	cell := sd.Cell
	cd := &c.cells[cell]
	idx := sd.IdxOnCell
	cd.segments = append(cd.segments[:idx], cd.segments[idx+1:]...)
	for i := idx; i < len(cd.segments); i++ {
		c.segments[cd.segments[i].flatIdx].IdxOnCell = i
	}

	c.liveSegment[segment.flatIdx] = false
	c.destroyedSegments = append(c.destroyedSegments, segment)
	return nil
}

// DestroySynapse removes synapse from its segment and from the reverse
// presynaptic index.
func (c *Connections) DestroySynapse(synapse Synapse) error {
	if err := c.checkSynapse(synapse); err != nil {
		return err
	}
	c.notifyDestroySynapse(synapse)

	c.removeSynapseFromPresynapticMap(synapse)

	syd := c.synapses[synapse.flatIdx]
	sd := &c.segments[syd.Segment.flatIdx]
	idx := syd.IdxOnSegment
	sd.Synapses = append(sd.Synapses[:idx], sd.Synapses[idx+1:]...)
	for i := idx; i < len(sd.Synapses); i++ {
		c.synapses[sd.Synapses[i].flatIdx].IdxOnSegment = i
	}

	c.liveSynapse[synapse.flatIdx] = false
	c.destroyedSynapses = append(c.destroyedSynapses, synapse)
	return nil
}

// UpdateSynapsePermanence sets synapse's permanence to the given value.
// It does not enforce positivity: callers that may drive permanence to
// zero or below (as TemporalMemory's adaptSegment does) are responsible
// for destroying the synapse afterward.
func (c *Connections) UpdateSynapsePermanence(synapse Synapse, permanence float32) error {
	if err := c.checkSynapse(synapse); err != nil {
		return err
	}
	c.notifyUpdateSynapsePermanence(synapse, permanence)
	c.synapses[synapse.flatIdx].Permanence = permanence
	return nil
}

func (c *Connections) leastRecentlyUsedSegment(cell CellIdx) Segment {
	segs := c.cells[cell].segments
	lru := segs[0]
	lruIteration := c.segments[lru.flatIdx].LastUsedIteration
	for _, s := range segs[1:] {
		it := c.segments[s.flatIdx].LastUsedIteration
		if it < lruIteration {
			lru = s
			lruIteration = it
		}
	}
	return lru
}

// minPermanenceSynapse returns the synapse on segment with the minimum
// permanence, using the ε-tolerant comparison so the choice is stable
// across floating-point environments. Only called when segment already
// holds at least maxSynapsesPerSegment (>0) synapses.
func (c *Connections) minPermanenceSynapse(segment Segment) Synapse {
	synapses := c.segments[segment.flatIdx].Synapses
	min := synapses[0]
	minPermanence := c.synapses[min.flatIdx].Permanence
	for _, syn := range synapses[1:] {
		p := c.synapses[syn.flatIdx].Permanence
		if approxLess(p, minPermanence) {
			min = syn
			minPermanence = p
		}
	}
	return min
}

// ComputeActivity returns, for every segment (indexed by flatIdx),
// the number of active-and-connected and active-potential synapses given
// a set of active presynaptic cells. Destroyed segment slots are left at
// zero.
func (c *Connections) ComputeActivity(activeCells []CellIdx, connectedPermanence float32) (numActiveConnected, numActivePotential []int) {
	numActiveConnected = make([]int, len(c.segments))
	numActivePotential = make([]int, len(c.segments))
	for _, cell := range activeCells {
		c.accumulateActivityForCell(cell, connectedPermanence, numActiveConnected, numActivePotential)
	}
	return numActiveConnected, numActivePotential
}

// ComputeActivityForCell is the single-cell counterpart of ComputeActivity,
// for callers that stream active presynaptic cells one at a time instead
// of collecting them into a slice first. The result slices must already
// be sized to SegmentFlatListLength.
func (c *Connections) ComputeActivityForCell(activeCell CellIdx, connectedPermanence float32, numActiveConnected, numActivePotential []int) {
	c.accumulateActivityForCell(activeCell, connectedPermanence, numActiveConnected, numActivePotential)
}

func (c *Connections) accumulateActivityForCell(cell CellIdx, connectedPermanence float32, numActiveConnected, numActivePotential []int) {
	for _, syn := range c.synapsesForPresynapticCell[cell] {
		syd := c.synapses[syn.flatIdx]
		seg := syd.Segment.flatIdx
		numActivePotential[seg]++
		if approxGTE(syd.Permanence, connectedPermanence) {
			numActiveConnected[seg]++
		}
	}
}

// RecordSegmentActivity marks segment as used at the current iteration,
// protecting it from LRU eviction until a later segment is used less
// recently.
func (c *Connections) RecordSegmentActivity(segment Segment) {
	c.segments[segment.flatIdx].LastUsedIteration = c.iteration
}

// StartNewIteration advances the iteration counter.
func (c *Connections) StartNewIteration() {
	c.iteration++
}

// NumCells returns the number of cells this Connections was created with.
func (c *Connections) NumCells() int { return len(c.cells) }

// NumSegments returns the number of live segments.
func (c *Connections) NumSegments() int { return len(c.segments) - len(c.destroyedSegments) }

// NumSegmentsOnCell returns the number of live segments on cell.
func (c *Connections) NumSegmentsOnCell(cell CellIdx) int { return len(c.cells[cell].segments) }

// NumSynapses returns the number of live synapses.
func (c *Connections) NumSynapses() int { return len(c.synapses) - len(c.destroyedSynapses) }

// NumSynapsesOnSegment returns the number of live synapses on segment.
func (c *Connections) NumSynapsesOnSegment(segment Segment) int {
	return len(c.segments[segment.flatIdx].Synapses)
}

// SegmentsForCell returns cell's segments in idxOnCell order.
func (c *Connections) SegmentsForCell(cell CellIdx) []Segment { return c.cells[cell].segments }

// GetSegment returns the idx-th segment on cell.
func (c *Connections) GetSegment(cell CellIdx, idx int) Segment { return c.cells[cell].segments[idx] }

// SynapsesForSegment returns segment's synapses in idxOnSegment order.
func (c *Connections) SynapsesForSegment(segment Segment) []Synapse {
	return c.segments[segment.flatIdx].Synapses
}

// CellForSegment returns segment's owning cell.
func (c *Connections) CellForSegment(segment Segment) CellIdx { return c.segments[segment.flatIdx].Cell }

// SegmentForSynapse returns synapse's owning segment.
func (c *Connections) SegmentForSynapse(synapse Synapse) Segment {
	return c.synapses[synapse.flatIdx].Segment
}

// DataForSegment returns a copy of segment's record.
func (c *Connections) DataForSegment(segment Segment) SegmentData { return c.segments[segment.flatIdx] }

// DataForSynapse returns a copy of synapse's record.
func (c *Connections) DataForSynapse(synapse Synapse) SynapseData { return c.synapses[synapse.flatIdx] }

// SegmentForFlatIdx returns the Segment handle for the given dense index.
func (c *Connections) SegmentForFlatIdx(flatIdx int) Segment { return Segment{flatIdx: flatIdx} }

// SegmentFlatListLength returns one past the highest flatIdx ever
// assigned; per-segment count slices passed to ComputeActivity must have
// at least this length.
func (c *Connections) SegmentFlatListLength() int { return len(c.segments) }

// CompareSegments reports whether a sorts before b: by owning cell
// ascending, then by idxOnCell ascending.
func (c *Connections) CompareSegments(a, b Segment) bool {
	aData, bData := c.segments[a.flatIdx], c.segments[b.flatIdx]
	if aData.Cell != bData.Cell {
		return aData.Cell < bData.Cell
	}
	return aData.IdxOnCell < bData.IdxOnCell
}

// SynapsesForPresynapticCell returns the live synapses whose presynaptic
// cell is cell, or nil if there are none.
func (c *Connections) SynapsesForPresynapticCell(cell CellIdx) []Synapse {
	return c.synapsesForPresynapticCell[cell]
}

// Iteration returns the current iteration counter.
func (c *Connections) Iteration() int { return c.iteration }

// MaxSegmentsPerCell returns the configured per-cell segment capacity.
func (c *Connections) MaxSegmentsPerCell() int { return c.maxSegmentsPerCell }

// MaxSynapsesPerSegment returns the configured per-segment synapse capacity.
func (c *Connections) MaxSynapsesPerSegment() int { return c.maxSynapsesPerSegment }

// Equal reports whether c and other are structurally isomorphic: same
// capacity limits, cell count, iteration, and a cell/segment/synapse
// graph that agrees position-by-position (idxOnCell, idxOnSegment) and
// value-by-value (presynaptic cell, permanence). flatIdx values are
// never compared, since free-list reuse lets two isomorphic instances
// differ in internal identifiers.
func (c *Connections) Equal(other *Connections) bool {
	if c.maxSegmentsPerCell != other.maxSegmentsPerCell {
		return false
	}
	if c.maxSynapsesPerSegment != other.maxSynapsesPerSegment {
		return false
	}
	if len(c.cells) != len(other.cells) {
		return false
	}

	for cell := range c.cells {
		segs, otherSegs := c.cells[cell].segments, other.cells[cell].segments
		if len(segs) != len(otherSegs) {
			return false
		}
		for j := range segs {
			sd, osd := c.segments[segs[j].flatIdx], other.segments[otherSegs[j].flatIdx]
			if len(sd.Synapses) != len(osd.Synapses) ||
				sd.LastUsedIteration != osd.LastUsedIteration ||
				sd.Cell != osd.Cell ||
				sd.IdxOnCell != osd.IdxOnCell {
				return false
			}
			for k := range sd.Synapses {
				syd, osyd := c.synapses[sd.Synapses[k].flatIdx], other.synapses[osd.Synapses[k].flatIdx]
				if syd.PresynapticCell != osyd.PresynapticCell ||
					syd.Permanence != osyd.Permanence ||
					syd.IdxOnSegment != osyd.IdxOnSegment {
					return false
				}
			}
		}
	}

	if len(c.synapsesForPresynapticCell) != len(other.synapsesForPresynapticCell) {
		return false
	}
	for cell, synapses := range c.synapsesForPresynapticCell {
		otherSynapses, ok := other.synapsesForPresynapticCell[cell]
		if !ok || len(synapses) != len(otherSynapses) {
			return false
		}
		for j := range synapses {
			syd := c.synapses[synapses[j].flatIdx]
			sd := c.segments[syd.Segment.flatIdx]
			osyd := other.synapses[otherSynapses[j].flatIdx]
			osd := other.segments[osyd.Segment.flatIdx]
			if sd.Cell != osd.Cell || sd.IdxOnCell != osd.IdxOnCell || syd.IdxOnSegment != osyd.IdxOnSegment {
				return false
			}
		}
	}

	return c.iteration == other.iteration
}

// appendRawSegment and appendRawSynapse build up a Connections from
// deserialized data without triggering capacity eviction or subscriber
// notification, mirroring the original's load()/read() paths which
// construct the graph directly from a trusted, already-valid encoding.

func (c *Connections) appendRawSegment(cell CellIdx, lastUsedIteration int) Segment {
	segment := Segment{flatIdx: len(c.segments)}
	c.segments = append(c.segments, SegmentData{
		Cell:              cell,
		LastUsedIteration: lastUsedIteration,
		IdxOnCell:         len(c.cells[cell].segments),
	})
	c.liveSegment = append(c.liveSegment, true)
	c.cells[cell].segments = append(c.cells[cell].segments, segment)
	return segment
}

func (c *Connections) appendRawSynapse(segment Segment, presynapticCell CellIdx, permanence float32) Synapse {
	sd := &c.segments[segment.flatIdx]
	synapse := Synapse{flatIdx: len(c.synapses)}
	c.synapses = append(c.synapses, SynapseData{
		Segment:         segment,
		PresynapticCell: presynapticCell,
		Permanence:      permanence,
		IdxOnSegment:    len(sd.Synapses),
	})
	c.liveSynapse = append(c.liveSynapse, true)
	sd.Synapses = append(sd.Synapses, synapse)
	c.synapsesForPresynapticCell[presynapticCell] = append(c.synapsesForPresynapticCell[presynapticCell], synapse)
	return synapse
}
