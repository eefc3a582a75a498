package htm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConnectionsRejectsNegativeCells(t *testing.T) {
	_, err := NewConnections(-1, 2, 2)
	assert.True(t, Is(err, InvalidArgument))
}

func TestCreateSegmentAndSynapse(t *testing.T) {
	c, err := NewConnections(10, 2, 2)
	assert.NoError(t, err)

	seg, err := c.CreateSegment(5)
	assert.NoError(t, err)
	assert.Equal(t, 5, c.CellForSegment(seg))
	assert.Equal(t, 1, c.NumSegments())

	syn, err := c.CreateSynapse(seg, 1, 0.5)
	assert.NoError(t, err)
	assert.Equal(t, seg, c.SegmentForSynapse(syn))
	assert.Equal(t, 1, c.NumSynapses())

	data := c.DataForSynapse(syn)
	assert.Equal(t, CellIdx(1), data.PresynapticCell)
	assert.Equal(t, float32(0.5), data.Permanence)
}

func TestCreateSynapseRejectsNonPositivePermanence(t *testing.T) {
	c, _ := NewConnections(4, 2, 2)
	seg, _ := c.CreateSegment(0)
	_, err := c.CreateSynapse(seg, 1, 0)
	assert.True(t, Is(err, InvalidArgument))
	_, err = c.CreateSynapse(seg, 1, -0.1)
	assert.True(t, Is(err, InvalidArgument))
}

func TestCreateSegmentEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := NewConnections(4, 2, 2)

	seg1, _ := c.CreateSegment(0)
	c.RecordSegmentActivity(seg1)
	c.StartNewIteration()

	seg2, _ := c.CreateSegment(0)
	c.RecordSegmentActivity(seg2)
	c.StartNewIteration()

	// seg1 has the oldest LastUsedIteration and must be evicted first.
	seg3, err := c.CreateSegment(0)
	assert.NoError(t, err)
	assert.Equal(t, 2, c.NumSegmentsOnCell(0))

	segs := c.SegmentsForCell(0)
	assert.ElementsMatch(t, []Segment{seg2, seg3}, segs)
}

func TestCreateSynapseEvictsMinPermanence(t *testing.T) {
	c, _ := NewConnections(4, 4, 2)
	seg, _ := c.CreateSegment(0)

	_, _ = c.CreateSynapse(seg, 1, 0.1)
	_, _ = c.CreateSynapse(seg, 2, 0.9)

	_, err := c.CreateSynapse(seg, 3, 0.5)
	assert.NoError(t, err)

	// The evicted synapse's handle is reused for the new one, so check by
	// presynaptic cell that the 0.1 synapse (from cell 1) is gone.
	assert.Equal(t, 2, c.NumSynapsesOnSegment(seg))
	for _, syn := range c.SynapsesForSegment(seg) {
		assert.NotEqual(t, CellIdx(1), c.DataForSynapse(syn).PresynapticCell)
	}
}

func TestDestroySegmentRemovesSynapsesAndShiftsIndices(t *testing.T) {
	c, _ := NewConnections(4, 4, 4)
	seg1, _ := c.CreateSegment(0)
	seg2, _ := c.CreateSegment(0)
	seg3, _ := c.CreateSegment(0)

	c.CreateSynapse(seg1, 2, 0.4)
	syn, _ := c.CreateSynapse(seg2, 1, 0.3)

	err := c.DestroySegment(seg1)
	assert.NoError(t, err)
	assert.Equal(t, 2, c.NumSegmentsOnCell(0))
	assert.Equal(t, 1, c.NumSynapses())
	assert.Len(t, c.SynapsesForPresynapticCell(2), 0)

	remaining := c.SegmentsForCell(0)
	assert.Equal(t, []Segment{seg2, seg3}, remaining)
	assert.Equal(t, 0, c.DataForSegment(seg2).IdxOnCell)
	assert.Equal(t, 1, c.DataForSegment(seg3).IdxOnCell)

	assert.Equal(t, seg2, c.SegmentForSynapse(syn))
}

func TestDestroySynapseRemovesFromPresynapticMap(t *testing.T) {
	c, _ := NewConnections(4, 4, 4)
	seg, _ := c.CreateSegment(0)
	syn, _ := c.CreateSynapse(seg, 2, 0.3)

	assert.Len(t, c.SynapsesForPresynapticCell(2), 1)

	assert.NoError(t, c.DestroySynapse(syn))
	assert.Len(t, c.SynapsesForPresynapticCell(2), 0)
	assert.Equal(t, 0, c.NumSynapsesOnSegment(seg))
}

func TestComputeActivity(t *testing.T) {
	c, _ := NewConnections(4, 4, 4)
	seg, _ := c.CreateSegment(0)
	c.CreateSynapse(seg, 1, 0.6)
	c.CreateSynapse(seg, 2, 0.2)

	numConnected, numPotential := c.ComputeActivity([]CellIdx{1, 2}, 0.5)
	assert.Equal(t, 1, numConnected[seg.flatIdx])
	assert.Equal(t, 2, numPotential[seg.flatIdx])
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	c, _ := NewConnections(4, 4, 4)

	var created []Segment
	handler := &recordingHandler{onCreateSegment: func(s Segment) { created = append(created, s) }}
	token := c.Subscribe(handler)

	seg, _ := c.CreateSegment(0)
	assert.Equal(t, []Segment{seg}, created)

	assert.NoError(t, c.Unsubscribe(token))
	assert.True(t, Is(c.Unsubscribe(token), InvalidArgument))
}

func TestConnectionsEqual(t *testing.T) {
	build := func() *Connections {
		c, _ := NewConnections(4, 4, 4)
		seg, _ := c.CreateSegment(0)
		c.CreateSynapse(seg, 1, 0.3)
		c.CreateSynapse(seg, 2, 0.6)
		return c
	}
	a, b := build(), build()
	assert.True(t, a.Equal(b))

	c, _ := b.CreateSynapse(b.SegmentsForCell(0)[0], 3, 0.4)
	assert.False(t, a.Equal(b))
	b.DestroySynapse(c)
	assert.True(t, a.Equal(b))
}

func TestTextRoundTrip(t *testing.T) {
	c, _ := NewConnections(4, 4, 4)
	seg, _ := c.CreateSegment(0)
	c.CreateSynapse(seg, 1, 0.3)
	c.CreateSynapse(seg, 2, 0.6)
	c.StartNewIteration()

	var buf bytes.Buffer
	assert.NoError(t, c.WriteText(&buf))

	loaded, err := ReadText(&buf)
	assert.NoError(t, err)
	assert.True(t, c.Equal(loaded))
	assert.Equal(t, c.Iteration(), loaded.Iteration())
}

func TestBinaryRoundTrip(t *testing.T) {
	c, _ := NewConnections(4, 4, 4)
	seg, _ := c.CreateSegment(0)
	c.CreateSynapse(seg, 1, 0.3)
	c.CreateSynapse(seg, 2, 0.6)
	c.StartNewIteration()

	var buf bytes.Buffer
	assert.NoError(t, c.WriteBinary(&buf))

	loaded, err := ReadBinary(&buf)
	assert.NoError(t, err)
	assert.True(t, c.Equal(loaded))
	assert.Equal(t, c.Iteration(), loaded.Iteration())
}

type recordingHandler struct {
	onCreateSegment           func(Segment)
	onDestroySegment          func(Segment)
	onCreateSynapse           func(Synapse)
	onDestroySynapse          func(Synapse)
	onUpdateSynapsePermanence func(Synapse, float32)
}

func (h *recordingHandler) OnCreateSegment(s Segment) {
	if h.onCreateSegment != nil {
		h.onCreateSegment(s)
	}
}
func (h *recordingHandler) OnDestroySegment(s Segment) {
	if h.onDestroySegment != nil {
		h.onDestroySegment(s)
	}
}
func (h *recordingHandler) OnCreateSynapse(s Synapse) {
	if h.onCreateSynapse != nil {
		h.onCreateSynapse(s)
	}
}
func (h *recordingHandler) OnDestroySynapse(s Synapse) {
	if h.onDestroySynapse != nil {
		h.onDestroySynapse(s)
	}
}
func (h *recordingHandler) OnUpdateSynapsePermanence(s Synapse, p float32) {
	if h.onUpdateSynapsePermanence != nil {
		h.onUpdateSynapsePermanence(s, p)
	}
}
