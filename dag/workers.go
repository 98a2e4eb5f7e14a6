package dag

import "github.com/mstonedag/node/workerpool"

// Workers groups the three single-threaded pools the Manager uses to
// enforce single-writer-per-structure (spec.md §5): verify is the sole
// mutator of Chains/ChainSet/OBC/the milestone-vertex map; sync only
// reads; storage only writes to the Store and invokes listeners, handing
// back to verify for the final in-memory purge.
type Workers struct {
	Verify  *workerpool.Pool
	Sync    *workerpool.Pool
	Storage *workerpool.Pool
}

// NewWorkers starts the three pools.
func NewWorkers() *Workers {
	return &Workers{
		Verify:  workerpool.New("verify", 256),
		Sync:    workerpool.New("sync", 256),
		Storage: workerpool.New("storage", 64),
	}
}

// Wait drains all three pools, in no particular order (each is
// independently FIFO; spec.md §5 only orders flush's own verify -> storage
// -> verify handoff, which each pool's own ordering already guarantees).
func (w *Workers) Wait() {
	w.Verify.Wait()
	w.Sync.Wait()
	w.Storage.Wait()
}

// Stop drains and stops the pools in sync, verify, storage order (spec.md
// §5): storage stops last because a flush in flight may still have a
// pending verify -> storage -> verify handoff to complete.
func (w *Workers) Stop() {
	w.Sync.Stop()
	w.Verify.Stop()
	w.Storage.Stop()
}
