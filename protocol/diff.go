package protocol

// StateDiff is the structured set of additions/removals the machine
// produces for one transition (spec.md §9 "diff-then-apply"). The
// persistence layer applies every field here in a single atomic write.
// The resulting actions (enqueued in the submitter's outbox) and the
// watcher cursor advance are not part of that write: each is persisted
// separately, after it.
type StateDiff struct {
	// Rollover is set when the rollover sub-machine's state changed.
	Rollover RolloverState

	// GroupUpserts/GroupDeletes touch the groups table.
	GroupUpserts []*Group
	GroupDeletes []GroupId

	// SigningUpserts/SigningDeletes touch the signing_requests table,
	// keyed by MessageDigest.
	SigningUpserts map[MessageDigest]*SigningEntry
	SigningDeletes []MessageDigest

	// Consensus replaces the mutable_consensus singleton when non-nil.
	Consensus *MutableConsensusState
}

// NewStateDiff returns an empty diff ready for incremental population.
func NewStateDiff() *StateDiff {
	return &StateDiff{
		SigningUpserts: make(map[MessageDigest]*SigningEntry),
	}
}

// IsEmpty reports whether the diff carries no changes at all, which
// lets callers skip a storage write entirely for pure no-op
// transitions (e.g. a BlockTick with nothing due).
func (d *StateDiff) IsEmpty() bool {
	return d.Rollover == nil &&
		len(d.GroupUpserts) == 0 &&
		len(d.GroupDeletes) == 0 &&
		len(d.SigningUpserts) == 0 &&
		len(d.SigningDeletes) == 0 &&
		d.Consensus == nil
}

// Merge folds other into d, with other's fields taking precedence on
// conflicting keys (used to combine a BlockTick's several sub-checks,
// §4.5.1, into one atomic write).
func (d *StateDiff) Merge(other *StateDiff) {
	if other.Rollover != nil {
		d.Rollover = other.Rollover
	}
	d.GroupUpserts = append(d.GroupUpserts, other.GroupUpserts...)
	d.GroupDeletes = append(d.GroupDeletes, other.GroupDeletes...)
	if d.SigningUpserts == nil {
		d.SigningUpserts = make(map[MessageDigest]*SigningEntry)
	}
	for k, v := range other.SigningUpserts {
		d.SigningUpserts[k] = v // upsert always wins over an earlier delete this round
		kept := d.SigningDeletes[:0]
		for _, del := range d.SigningDeletes {
			if del != k {
				kept = append(kept, del)
			}
		}
		d.SigningDeletes = kept
	}
	for _, k := range other.SigningDeletes {
		delete(d.SigningUpserts, k)
		d.SigningDeletes = append(d.SigningDeletes, k)
	}
	if other.Consensus != nil {
		d.Consensus = other.Consensus
	}
}
