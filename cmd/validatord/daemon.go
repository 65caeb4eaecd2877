package main

import (
	"context"
	"fmt"

	"github.com/shieldnet/validator/log"
	"github.com/shieldnet/validator/machine"
	"github.com/shieldnet/validator/protocol"
	"github.com/shieldnet/validator/storage"
	"github.com/shieldnet/validator/submitter"
	"github.com/shieldnet/validator/watcher"
)

var logger = log.NewModuleLogger(log.ModuleValidatord)

// daemon wires a Machine and Submitter to one storage.Store and exposes
// a single watcher.Handler — everything downstream of the watcher's
// cursor advance for one Transition (spec.md §5's "single wall of
// atomicity").
type daemon struct {
	store     storage.Store
	machine   *machine.Machine
	submitter *submitter.Submitter
}

// handle is the watcher.Handler this daemon runs: read the current
// machine snapshot, compute the diff and actions for t, write the diff
// in one atomic call, then enqueue every resulting action. A BlockTick
// additionally drives one pass of the submitter's own send/confirm
// loop, since that loop has nothing else to wake it.
//
// The watcher only persists its own cursor after handle returns nil
// (watcher.deliverOne), so the ordering here — diff, then actions, then
// the tick — is everything that has to land before that cursor advance
// is allowed to happen.
func (d *daemon) handle(ctx context.Context, t protocol.Transition) error {
	consensus, err := d.store.GetConsensus(ctx)
	if err != nil {
		return fmt.Errorf("validatord: read consensus snapshot: %w", err)
	}
	rollover, err := d.store.GetRollover(ctx)
	if err != nil {
		return fmt.Errorf("validatord: read rollover snapshot: %w", err)
	}
	groupList, err := d.store.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("validatord: read groups snapshot: %w", err)
	}
	groups := make(map[protocol.GroupId]*protocol.Group, len(groupList))
	for _, g := range groupList {
		groups[g.Id] = g
	}
	signingEntries, err := d.store.ListSigning(ctx)
	if err != nil {
		return fmt.Errorf("validatord: read signing snapshot: %w", err)
	}

	diff, actions, err := d.machine.Apply(consensus, rollover, groups, signingEntries, t)
	if err != nil {
		return fmt.Errorf("validatord: apply transition %s: %w", t.Cursor(), err)
	}

	if !diff.IsEmpty() {
		if err := d.store.ApplyDiff(ctx, diff); err != nil {
			return fmt.Errorf("validatord: apply diff for %s: %w", t.Cursor(), err)
		}
	}

	for _, action := range actions {
		if err := d.submitter.Enqueue(ctx, action); err != nil {
			return fmt.Errorf("validatord: enqueue action for %s: %w", t.Cursor(), err)
		}
	}

	if tick, ok := t.(protocol.BlockTick); ok {
		if err := d.submitter.RunTick(ctx, uint64(tick.Block)); err != nil {
			return fmt.Errorf("validatord: submitter tick at block %d: %w", tick.Block, err)
		}
	}

	return nil
}

// run drives w.Run with d.handle until ctx is cancelled or a fatal
// watcher error surfaces.
func run(ctx context.Context, w *watcher.Watcher, d *daemon) error {
	return w.Run(ctx, func(t protocol.Transition) error {
		return d.handle(ctx, t)
	})
}
