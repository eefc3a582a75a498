/*
Package htm implements the Connections substrate and the Connections-based
Temporal Memory (TM) algorithm from Hierarchical Temporal Memory theory.

Connections is a mutable bipartite graph recording distal dendritic
connectivity between cells in a cortical column model: cells own segments,
segments own synapses, and synapses carry a permanence toward a
presynaptic cell. TemporalMemory owns one Connections instance and a
seeded random source, and drives one sequence-learning timestep per call
to Compute: given a set of active columns it produces active cells,
winner cells, and predictive cells for the next timestep, and adapts the
graph to reinforce correct predictions.

Spatial pooling, encoders, and network-level region plumbing are out of
scope for this package; see the surrounding repository for those.
*/
package htm
