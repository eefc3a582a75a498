package htm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func smallParams() TemporalMemoryParams {
	p := DefaultTemporalMemoryParams()
	p.ColumnDimensions = []int{6}
	p.CellsPerColumn = 4
	p.ActivationThreshold = 1
	p.MinThreshold = 1
	p.MaxNewSynapseCount = 4
	p.InitialPermanence = 0.5
	p.ConnectedPermanence = 0.5
	p.PermanenceIncrement = 0.1
	p.PermanenceDecrement = 0.1
	p.Seed = 7
	return p
}

func TestNewTemporalMemoryValidation(t *testing.T) {
	p := DefaultTemporalMemoryParams()
	p.ColumnDimensions = nil
	_, err := NewTemporalMemory(p)
	assert.True(t, Is(err, InvalidArgument))

	p2 := DefaultTemporalMemoryParams()
	p2.CellsPerColumn = 0
	_, err = NewTemporalMemory(p2)
	assert.True(t, Is(err, InvalidArgument))
}

func TestNewTemporalMemoryColumnAndCellCounts(t *testing.T) {
	p := DefaultTemporalMemoryParams()
	p.ColumnDimensions = []int{32, 32}
	p.CellsPerColumn = 4
	tm, err := NewTemporalMemory(p)
	assert.NoError(t, err)
	assert.Equal(t, 1024, tm.NumberOfColumns())
	assert.Equal(t, 4096, tm.NumberOfCells())
}

func TestBurstColumnActivatesAllCells(t *testing.T) {
	tm, _ := NewTemporalMemory(smallParams())

	assert.NoError(t, tm.Compute([]int{0}, true))
	assert.Len(t, tm.ActiveCells(), tm.params.CellsPerColumn)
	assert.Len(t, tm.WinnerCells(), 1)
}

func TestBurstColumnGrowsNewSegmentFromPreviousWinnerCells(t *testing.T) {
	tm, _ := NewTemporalMemory(smallParams())
	conn := tm.Connections()

	assert.NoError(t, tm.Compute([]int{0}, true))
	firstWinner := tm.WinnerCells()[0]

	assert.NoError(t, tm.Compute([]int{1}, true))
	secondWinner := tm.WinnerCells()[0]

	segs := conn.SegmentsForCell(secondWinner)
	assert.Len(t, segs, 1, "bursting with a previous winner cell must grow exactly one new segment")

	syns := conn.SynapsesForSegment(segs[0])
	assert.Len(t, syns, 1)
	assert.Equal(t, firstWinner, conn.DataForSynapse(syns[0]).PresynapticCell)
}

func TestPredictedColumnActivatesOnlyPredictedCells(t *testing.T) {
	tm, _ := NewTemporalMemory(smallParams())
	conn := tm.Connections()

	cell := 0
	seg, _ := conn.CreateSegment(cell)
	conn.CreateSynapse(seg, 20, 0.6) // presynaptic cell in column 5

	assert.NoError(t, tm.Compute([]int{5}, true))
	assert.Contains(t, tm.PredictiveCells(), CellIdx(0))

	assert.NoError(t, tm.Compute([]int{0}, true))
	assert.Equal(t, []CellIdx{cell}, tm.ActiveCells())
	assert.Equal(t, []CellIdx{cell}, tm.WinnerCells())
}

func TestAdaptSegmentReinforcesActiveSynapses(t *testing.T) {
	tm, _ := NewTemporalMemory(smallParams())
	conn := tm.Connections()

	seg, _ := conn.CreateSegment(0)
	syn, _ := conn.CreateSynapse(seg, 1, 0.5)

	tm.adaptSegment(seg, []CellIdx{1})
	assert.InDelta(t, 0.6, conn.DataForSynapse(syn).Permanence, 1e-6)

	tm.adaptSegment(seg, []CellIdx{2})
	assert.InDelta(t, 0.5, conn.DataForSynapse(syn).Permanence, 1e-6)
}

func TestAdaptSegmentDestroysWeakSynapses(t *testing.T) {
	tm, _ := NewTemporalMemory(smallParams())
	conn := tm.Connections()

	seg, _ := conn.CreateSegment(0)
	conn.CreateSynapse(seg, 1, 0.05)

	tm.adaptSegment(seg, []CellIdx{2})
	assert.Equal(t, 0, conn.NumSynapsesOnSegment(seg))
	assert.False(t, conn.liveSegment[seg.flatIdx])
}

func TestGrowSynapsesRespectsMaxNewSynapseCount(t *testing.T) {
	tm, _ := NewTemporalMemory(smallParams())
	conn := tm.Connections()

	seg, _ := conn.CreateSegment(0)
	winners := []CellIdx{4, 5, 6, 7, 8, 9}
	tm.growSynapses(seg, winners, 0)

	assert.Equal(t, tm.params.MaxNewSynapseCount, conn.NumSynapsesOnSegment(seg))
}

func TestGrowSynapsesSkipsExistingPresynapticCells(t *testing.T) {
	tm, _ := NewTemporalMemory(smallParams())
	conn := tm.Connections()

	seg, _ := conn.CreateSegment(0)
	conn.CreateSynapse(seg, 4, 0.5)

	tm.growSynapses(seg, []CellIdx{4}, 0)
	assert.Equal(t, 1, conn.NumSynapsesOnSegment(seg))
}

func TestPunishPredictedColumnDecrementsWronglyMatchingSegments(t *testing.T) {
	p := smallParams()
	p.PredictedSegmentDecrement = 0.05
	tm, _ := NewTemporalMemory(p)
	conn := tm.Connections()

	// Segment on a cell in column 1 that matches on cell 0's activity but
	// column 1 never becomes active.
	seg, _ := conn.CreateSegment(4) // column 1, cell 0
	syn, _ := conn.CreateSynapse(seg, 0, 0.5)

	assert.NoError(t, tm.Compute([]int{0}, true))
	assert.NoError(t, tm.Compute([]int{2}, true))

	assert.InDelta(t, 0.45, conn.DataForSynapse(syn).Permanence, 1e-6)
}

func TestResetClearsTransientState(t *testing.T) {
	tm, _ := NewTemporalMemory(smallParams())
	tm.Compute([]int{0, 1}, true)
	assert.NotEmpty(t, tm.ActiveCells())

	tm.Reset()
	assert.Empty(t, tm.ActiveCells())
	assert.Empty(t, tm.WinnerCells())
	assert.Empty(t, tm.ActiveSegments())
}

func TestComputeRejectsUnsortedColumns(t *testing.T) {
	tm, _ := NewTemporalMemory(smallParams())
	err := tm.Compute([]int{2, 1}, true)
	assert.True(t, Is(err, InvalidArgument))
}

func TestComputeRejectsOutOfRangeColumn(t *testing.T) {
	tm, _ := NewTemporalMemory(smallParams())
	err := tm.Compute([]int{100}, true)
	assert.True(t, Is(err, InvalidArgument))
}

func TestComputeWithNoActiveColumnsProducesNoActivity(t *testing.T) {
	tm, _ := NewTemporalMemory(smallParams())
	assert.NoError(t, tm.Compute(nil, true))
	assert.Empty(t, tm.ActiveCells())
	assert.Empty(t, tm.WinnerCells())
}

func TestLeastUsedCellPicksFewestSegments(t *testing.T) {
	tm, _ := NewTemporalMemory(smallParams())
	conn := tm.Connections()

	// Give cells 0-2 in column 0 a segment each; cell 3 stays empty.
	conn.CreateSegment(0)
	conn.CreateSegment(1)
	conn.CreateSegment(2)

	assert.Equal(t, CellIdx(3), tm.leastUsedCell(0))
}
