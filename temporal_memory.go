package htm

import (
	"sort"

	"github.com/cznic/mathutil"
	"github.com/htm-community/connections/utils"
)

// TemporalMemoryParams configures a TemporalMemory at construction time.
// All fields are fixed for the lifetime of the instance.
type TemporalMemoryParams struct {
	// ColumnDimensions must be non-empty; its product is the number of
	// columns.
	ColumnDimensions []int
	// CellsPerColumn must be >= 1.
	CellsPerColumn int
	// ActivationThreshold is the connected-synapse count at which a
	// segment is considered active.
	ActivationThreshold int
	// MinThreshold is the potential-synapse count at which a segment is
	// considered matching.
	MinThreshold int
	// InitialPermanence is the permanence assigned to newly grown
	// synapses.
	InitialPermanence float32
	// ConnectedPermanence is the threshold at which a synapse counts as
	// connected.
	ConnectedPermanence float32
	// PermanenceIncrement/PermanenceDecrement are the adaptation
	// magnitudes applied during learning.
	PermanenceIncrement float32
	PermanenceDecrement float32
	// PredictedSegmentDecrement penalizes matching segments on cells in
	// columns that turned out not to be active. Zero disables punishment.
	PredictedSegmentDecrement float32
	// MaxNewSynapseCount is the target fan-in when growing new synapses
	// on a learning segment.
	MaxNewSynapseCount int
	// MaxSegmentsPerCell/MaxSynapsesPerSegment are capacity limits
	// enforced by the underlying Connections.
	MaxSegmentsPerCell    int
	MaxSynapsesPerSegment int
	// Seed initializes the deterministic random source used for every
	// tie-break and without-replacement sample.
	Seed int
}

// DefaultTemporalMemoryParams returns the parameter set NuPIC's own
// TemporalMemory defaults to.
func DefaultTemporalMemoryParams() TemporalMemoryParams {
	return TemporalMemoryParams{
		ColumnDimensions:          []int{2048},
		CellsPerColumn:            32,
		ActivationThreshold:       13,
		MinThreshold:              10,
		InitialPermanence:         0.21,
		ConnectedPermanence:       0.5,
		PermanenceIncrement:       0.1,
		PermanenceDecrement:       0.1,
		PredictedSegmentDecrement: 0.0,
		MaxNewSynapseCount:        20,
		MaxSegmentsPerCell:        255,
		MaxSynapsesPerSegment:     255,
		Seed:                      42,
	}
}

// TemporalMemory implements one step of HTM sequence learning per call to
// Compute: it classifies active columns as predicted or bursting, adapts
// segments to reinforce or punish predictions, grows new synapses, and
// depolarizes cells for the following timestep. It owns exactly one
// Connections and one seeded random source.
type TemporalMemory struct {
	params      TemporalMemoryParams
	numColumns  int
	numCells    int
	connections *Connections
	rng         *rng

	prevActiveCells []CellIdx
	activeCells     []CellIdx
	prevWinnerCells []CellIdx
	winnerCells     []CellIdx

	prevActiveSegments   []Segment
	activeSegments       []Segment
	prevMatchingSegments []Segment
	matchingSegments     []Segment

	numActiveConnectedSynapsesForSegment []int
	numActivePotentialSynapsesForSegment []int

	predictiveCells []CellIdx
}

// NewTemporalMemory validates params and constructs a TemporalMemory over
// a freshly allocated Connections.
func NewTemporalMemory(params TemporalMemoryParams) (*TemporalMemory, error) {
	if len(params.ColumnDimensions) == 0 {
		return nil, newError(InvalidArgument, "columnDimensions must be non-empty")
	}
	if params.CellsPerColumn < 1 {
		return nil, newError(InvalidArgument, "cellsPerColumn must be >= 1, got %d", params.CellsPerColumn)
	}
	if params.MaxSegmentsPerCell <= 0 {
		return nil, newError(InvalidArgument, "maxSegmentsPerCell must be > 0, got %d", params.MaxSegmentsPerCell)
	}
	if params.MaxSynapsesPerSegment <= 0 {
		return nil, newError(InvalidArgument, "maxSynapsesPerSegment must be > 0, got %d", params.MaxSynapsesPerSegment)
	}

	numColumns := utils.ProdInt(params.ColumnDimensions)
	numCells := numColumns * params.CellsPerColumn

	conn, err := NewConnections(numCells, params.MaxSegmentsPerCell, params.MaxSynapsesPerSegment)
	if err != nil {
		return nil, err
	}

	return &TemporalMemory{
		params:      params,
		numColumns:  numColumns,
		numCells:    numCells,
		connections: conn,
		rng:         newRNG(params.Seed),
	}, nil
}

// Connections returns the graph this TemporalMemory learns over.
func (tm *TemporalMemory) Connections() *Connections { return tm.connections }

// Params returns the configuration this TemporalMemory was constructed with.
func (tm *TemporalMemory) Params() TemporalMemoryParams { return tm.params }

// NumberOfColumns returns the product of ColumnDimensions.
func (tm *TemporalMemory) NumberOfColumns() int { return tm.numColumns }

// NumberOfCells returns NumberOfColumns() * CellsPerColumn.
func (tm *TemporalMemory) NumberOfCells() int { return tm.numCells }

// ActiveCells returns the cells active after the most recent Compute.
func (tm *TemporalMemory) ActiveCells() []CellIdx { return tm.activeCells }

// WinnerCells returns the winner cells chosen by the most recent Compute.
func (tm *TemporalMemory) WinnerCells() []CellIdx { return tm.winnerCells }

// PredictiveCells returns the cells depolarized for the next timestep.
func (tm *TemporalMemory) PredictiveCells() []CellIdx { return tm.predictiveCells }

// ActiveSegments returns the segments that were active in the most recent
// Compute, sorted by CompareSegments.
func (tm *TemporalMemory) ActiveSegments() []Segment { return tm.activeSegments }

// MatchingSegments returns the segments that were matching in the most
// recent Compute, sorted by CompareSegments.
func (tm *TemporalMemory) MatchingSegments() []Segment { return tm.matchingSegments }

// NumActiveConnectedSynapses returns the connected-synapse count computed
// for segment during the most recent depolarization.
func (tm *TemporalMemory) NumActiveConnectedSynapses(segment Segment) int {
	return tm.numActiveConnectedSynapsesForSegment[segment.flatIdx]
}

// NumActivePotentialSynapses returns the potential-synapse count computed
// for segment during the most recent depolarization.
func (tm *TemporalMemory) NumActivePotentialSynapses(segment Segment) int {
	return tm.numActivePotentialSynapsesForSegment[segment.flatIdx]
}

// Reset clears current and previous active/winner/predictive cells and
// active/matching segment lists. Connectivity and the iteration counter
// are untouched.
func (tm *TemporalMemory) Reset() {
	tm.prevActiveCells = nil
	tm.activeCells = nil
	tm.prevWinnerCells = nil
	tm.winnerCells = nil
	tm.prevActiveSegments = nil
	tm.activeSegments = nil
	tm.prevMatchingSegments = nil
	tm.matchingSegments = nil
	tm.predictiveCells = nil
	tm.numActiveConnectedSynapsesForSegment = nil
	tm.numActivePotentialSynapsesForSegment = nil
}

func (tm *TemporalMemory) validateActiveColumns(columns []int) error {
	for i, col := range columns {
		if col < 0 || col >= tm.numColumns {
			return newError(InvalidArgument, "active column %d out of range [0,%d)", col, tm.numColumns)
		}
		if i > 0 && columns[i-1] >= col {
			return newError(InvalidArgument, "active columns must be sorted ascending and distinct, got %d after %d", col, columns[i-1])
		}
	}
	return nil
}

func columnIsActive(activeColumns []int, col int) bool {
	i := sort.SearchInts(activeColumns, col)
	return i < len(activeColumns) && activeColumns[i] == col
}

// Compute runs one timestep: it classifies each column in activeColumns
// as predicted or bursting, activates and (if learn) adapts cells and
// segments accordingly, punishes wrongly-matching segments, depolarizes
// cells for the next timestep, and advances the iteration counter.
// activeColumns must be sorted ascending with no duplicates and each
// value in [0, NumberOfColumns()).
func (tm *TemporalMemory) Compute(activeColumns []int, learn bool) error {
	if err := tm.validateActiveColumns(activeColumns); err != nil {
		return err
	}

	conn := tm.connections
	cellsPerColumn := tm.params.CellsPerColumn

	prevActiveCells := tm.activeCells
	prevWinnerCells := tm.winnerCells
	prevActiveSegments := tm.activeSegments
	prevMatchingSegments := tm.matchingSegments
	prevNumActivePotential := tm.numActivePotentialSynapsesForSegment

	columnOf := func(seg Segment) int { return conn.CellForSegment(seg) / cellsPerColumn }

	var activeCells, winnerCells []CellIdx
	segIdx, matchIdx := 0, 0

	for _, col := range activeColumns {
		for segIdx < len(prevActiveSegments) && columnOf(prevActiveSegments[segIdx]) < col {
			segIdx++
		}
		segStart := segIdx
		for segIdx < len(prevActiveSegments) && columnOf(prevActiveSegments[segIdx]) == col {
			segIdx++
		}
		colActiveSegments := prevActiveSegments[segStart:segIdx]

		for matchIdx < len(prevMatchingSegments) && columnOf(prevMatchingSegments[matchIdx]) < col {
			matchIdx++
		}
		matchStart := matchIdx
		for matchIdx < len(prevMatchingSegments) && columnOf(prevMatchingSegments[matchIdx]) == col {
			matchIdx++
		}
		colMatchingSegments := prevMatchingSegments[matchStart:matchIdx]

		var ac, wc []CellIdx
		if len(colActiveSegments) > 0 {
			ac, wc = tm.activatePredictedColumn(colActiveSegments, prevActiveCells, prevWinnerCells, prevNumActivePotential, learn)
		} else {
			ac, wc = tm.burstColumn(col, colMatchingSegments, prevActiveCells, prevWinnerCells, prevNumActivePotential, learn)
		}
		activeCells = append(activeCells, ac...)
		winnerCells = append(winnerCells, wc...)
	}

	if learn && tm.params.PredictedSegmentDecrement > 0 {
		tm.punishPredictedColumn(activeColumns, prevMatchingSegments, prevActiveCells)
	}

	tm.prevActiveCells = prevActiveCells
	tm.prevWinnerCells = prevWinnerCells
	tm.prevActiveSegments = prevActiveSegments
	tm.prevMatchingSegments = prevMatchingSegments
	tm.activeCells = activeCells
	tm.winnerCells = winnerCells

	tm.depolarizeCells(activeCells)

	conn.StartNewIteration()
	return nil
}

// activatePredictedColumn implements spec step 2: every cell owning an
// active segment becomes active and winner; if learning, every active
// segment on that cell is adapted and grown.
func (tm *TemporalMemory) activatePredictedColumn(colActiveSegments []Segment, prevActiveCells, prevWinnerCells []CellIdx, prevNumActivePotential []int, learn bool) (active, winner []CellIdx) {
	conn := tm.connections
	lastCell := CellIdx(-1)
	for _, seg := range colActiveSegments {
		cell := conn.CellForSegment(seg)
		if cell != lastCell {
			active = append(active, cell)
			winner = append(winner, cell)
			lastCell = cell
		}
		if learn {
			numActivePotential := 0
			if seg.flatIdx < len(prevNumActivePotential) {
				numActivePotential = prevNumActivePotential[seg.flatIdx]
			}
			tm.adaptSegment(seg, prevActiveCells)
			if conn.NumSynapsesOnSegment(seg) > 0 {
				tm.growSynapses(seg, prevWinnerCells, numActivePotential)
				conn.RecordSegmentActivity(seg)
			}
		}
	}
	return active, winner
}

// burstColumn implements spec step 3: every cell in the column becomes
// active; a single winner cell is chosen by best-matching-segment or, if
// no segment in the column matches, by fewest-segments-with-random-tie-
// break, growing a new segment for it when learning and there is a
// previous winner cell to connect to.
func (tm *TemporalMemory) burstColumn(col int, colMatchingSegments []Segment, prevActiveCells, prevWinnerCells []CellIdx, prevNumActivePotential []int, learn bool) (active, winner []CellIdx) {
	conn := tm.connections
	cellsPerColumn := tm.params.CellsPerColumn
	start := col * cellsPerColumn

	active = make([]CellIdx, cellsPerColumn)
	for i := 0; i < cellsPerColumn; i++ {
		active[i] = start + i
	}

	var bestSegment Segment
	haveBest := false
	newSegment := false
	var winnerCell CellIdx

	if len(colMatchingSegments) > 0 {
		bestPotential := -1
		for _, seg := range colMatchingSegments {
			p := 0
			if seg.flatIdx < len(prevNumActivePotential) {
				p = prevNumActivePotential[seg.flatIdx]
			}
			if p > bestPotential || (p == bestPotential && seg.flatIdx < bestSegment.flatIdx) {
				bestSegment = seg
				bestPotential = p
				haveBest = true
			}
		}
		winnerCell = conn.CellForSegment(bestSegment)
	} else {
		winnerCell = tm.leastUsedCell(col)
		if learn && len(prevWinnerCells) > 0 {
			if seg, err := conn.CreateSegment(winnerCell); err == nil {
				bestSegment = seg
				haveBest = true
				newSegment = true
			}
		}
	}
	winner = []CellIdx{winnerCell}

	if learn && haveBest {
		if newSegment {
			// A freshly created segment has no synapses to reinforce or
			// punish, so adaptSegment would only see an empty segment and
			// destroy it before growth ever runs. Grow it directly, with
			// zero prior potential synapses.
			tm.growSynapses(bestSegment, prevWinnerCells, 0)
			conn.RecordSegmentActivity(bestSegment)
		} else {
			numActivePotential := 0
			if bestSegment.flatIdx < len(prevNumActivePotential) {
				numActivePotential = prevNumActivePotential[bestSegment.flatIdx]
			}
			tm.adaptSegment(bestSegment, prevActiveCells)
			if conn.NumSynapsesOnSegment(bestSegment) > 0 {
				tm.growSynapses(bestSegment, prevWinnerCells, numActivePotential)
				conn.RecordSegmentActivity(bestSegment)
			}
		}
	}
	return active, winner
}

// leastUsedCell picks the cell in col with the fewest segments, breaking
// ties uniformly at random via the shared RNG.
func (tm *TemporalMemory) leastUsedCell(col int) CellIdx {
	conn := tm.connections
	cellsPerColumn := tm.params.CellsPerColumn
	start := col * cellsPerColumn

	minCount := -1
	var tied []CellIdx
	for i := 0; i < cellsPerColumn; i++ {
		cell := start + i
		n := conn.NumSegmentsOnCell(cell)
		switch {
		case minCount == -1 || n < minCount:
			minCount = n
			tied = []CellIdx{cell}
		case n == minCount:
			tied = append(tied, cell)
		}
	}
	if len(tied) == 1 {
		return tied[0]
	}
	return tied[tm.rng.intn(len(tied))]
}

// adaptSegment reinforces synapses whose presynaptic cell was active by
// PermanenceIncrement and punishes the rest by PermanenceDecrement,
// clamped to permanence's (0,1] range. Synapses driven to <= 0 are
// destroyed; a segment left with no synapses is destroyed too.
func (tm *TemporalMemory) adaptSegment(segment Segment, prevActiveCells []CellIdx) {
	conn := tm.connections
	active := make(map[CellIdx]bool, len(prevActiveCells))
	for _, c := range prevActiveCells {
		active[c] = true
	}

	var toDestroy []Synapse
	for _, syn := range conn.SynapsesForSegment(segment) {
		data := conn.DataForSynapse(syn)
		var perm float32
		if active[data.PresynapticCell] {
			perm = data.Permanence + tm.params.PermanenceIncrement
		} else {
			perm = data.Permanence - tm.params.PermanenceDecrement
		}
		if perm > 1.0 {
			perm = 1.0
		}
		if perm <= 0 {
			toDestroy = append(toDestroy, syn)
		} else {
			conn.UpdateSynapsePermanence(syn, perm)
		}
	}
	for _, syn := range toDestroy {
		conn.DestroySynapse(syn)
	}
	if conn.NumSynapsesOnSegment(segment) == 0 {
		conn.DestroySegment(segment)
	}
}

// growSynapses adds up to MaxNewSynapseCount-numActivePotential new
// synapses (clamped to >= 0) from segment to randomly sampled cells of
// prevWinnerCells that are not already presynaptic on segment.
func (tm *TemporalMemory) growSynapses(segment Segment, prevWinnerCells []CellIdx, numActivePotential int) {
	nDesired := mathutil.Max(0, tm.params.MaxNewSynapseCount-numActivePotential)
	if nDesired == 0 {
		return
	}
	conn := tm.connections

	existing := make([]CellIdx, 0, conn.NumSynapsesOnSegment(segment))
	for _, syn := range conn.SynapsesForSegment(segment) {
		existing = append(existing, conn.DataForSynapse(syn).PresynapticCell)
	}
	candidates := utils.Complement(prevWinnerCells, existing)
	if len(candidates) == 0 {
		return
	}

	for _, cell := range tm.rng.sampleWithoutReplacement(candidates, nDesired) {
		conn.CreateSynapse(segment, cell, tm.params.InitialPermanence)
	}
}

// punishPredictedColumn implements spec step 4: every matching segment
// whose column is not active has its synapses whose presynaptic cell was
// active in the previous step decremented by PredictedSegmentDecrement.
func (tm *TemporalMemory) punishPredictedColumn(activeColumns []int, prevMatchingSegments []Segment, prevActiveCells []CellIdx) {
	conn := tm.connections
	cellsPerColumn := tm.params.CellsPerColumn

	active := make(map[CellIdx]bool, len(prevActiveCells))
	for _, c := range prevActiveCells {
		active[c] = true
	}

	for _, seg := range prevMatchingSegments {
		col := conn.CellForSegment(seg) / cellsPerColumn
		if columnIsActive(activeColumns, col) {
			continue
		}

		var toDestroy []Synapse
		for _, syn := range conn.SynapsesForSegment(seg) {
			data := conn.DataForSynapse(syn)
			if !active[data.PresynapticCell] {
				continue
			}
			perm := data.Permanence - tm.params.PredictedSegmentDecrement
			if perm <= 0 {
				toDestroy = append(toDestroy, syn)
			} else {
				conn.UpdateSynapsePermanence(syn, perm)
			}
		}
		for _, syn := range toDestroy {
			conn.DestroySynapse(syn)
		}
		if conn.NumSynapsesOnSegment(seg) == 0 {
			conn.DestroySegment(seg)
		}
	}
}

// depolarizeCells implements spec step 5: recompute segment activity
// against the just-computed active cells, classify active/matching
// segments, sort both by CompareSegments, and derive predictive cells
// from the owning cells of active segments.
func (tm *TemporalMemory) depolarizeCells(activeCells []CellIdx) {
	conn := tm.connections
	numActiveConnected, numActivePotential := conn.ComputeActivity(activeCells, tm.params.ConnectedPermanence)

	var activeSegments, matchingSegments []Segment
	for flat := 0; flat < conn.SegmentFlatListLength(); flat++ {
		seg := conn.SegmentForFlatIdx(flat)
		if numActiveConnected[flat] >= tm.params.ActivationThreshold {
			activeSegments = append(activeSegments, seg)
		}
		if numActivePotential[flat] >= tm.params.MinThreshold {
			matchingSegments = append(matchingSegments, seg)
		}
	}
	sort.Slice(activeSegments, func(i, j int) bool { return conn.CompareSegments(activeSegments[i], activeSegments[j]) })
	sort.Slice(matchingSegments, func(i, j int) bool { return conn.CompareSegments(matchingSegments[i], matchingSegments[j]) })

	tm.activeSegments = activeSegments
	tm.matchingSegments = matchingSegments
	tm.numActiveConnectedSynapsesForSegment = numActiveConnected
	tm.numActivePotentialSynapsesForSegment = numActivePotential
	tm.predictiveCells = predictiveCellsFromActiveSegments(conn, activeSegments)
}

func predictiveCellsFromActiveSegments(conn *Connections, activeSegments []Segment) []CellIdx {
	var predictive []CellIdx
	lastCell := CellIdx(-1)
	for _, seg := range activeSegments {
		cell := conn.CellForSegment(seg)
		if cell != lastCell {
			predictive = append(predictive, cell)
			lastCell = cell
		}
	}
	return predictive
}
