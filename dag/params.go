package dag

// Params collects the engine's configurable thresholds (spec.md §6). The
// config package constructs one of these from parsed flags/file; dag
// itself has no notion of a flag or config file format.
type Params struct {
	// PunctualityThreshold bounds how far behind the best milestone height
	// a block's referenced milestone may be before it is dropped, and also
	// how many in-memory milestones the best chain retains before the
	// flush trigger starts walking forward (spec.md §4.5.1, §4.5.3).
	PunctualityThreshold uint64

	// DeleteForkThreshold is how many milestone-heights a non-best chain
	// may trail the best chain before it is pruned (spec.md §4.4).
	DeleteForkThreshold uint64

	// ObcEnableThreshold is how many seconds behind live tip the node may
	// be before the OBC is bypassed entirely (spec.md §4.2).
	ObcEnableThresholdSeconds int64

	// SortitionThreshold is the minimum minerChainHeight a block must
	// have to legally carry transactions (spec.md §4.3).
	SortitionThreshold uint64

	// MaxGetDataSize bounds how many hashes one GetData batches (spec.md
	// §4.5.4).
	MaxGetDataSize int
	// MaxGetInvLength bounds locator length doubling (spec.md §4.5.4).
	MaxGetInvLength int
	// KMaxInventorySize bounds one forward Inv traversal (spec.md §4.5.4).
	KMaxInventorySize int

	// SyncTaskTimeoutSeconds ages out an outbound GetInv/GetData (spec.md
	// §5).
	SyncTaskTimeoutSeconds int64
}

// DefaultParams returns reasonable defaults; every field is overridable
// via configuration.
func DefaultParams() Params {
	return Params{
		PunctualityThreshold:      6,
		DeleteForkThreshold:       20,
		ObcEnableThresholdSeconds: 3600,
		SortitionThreshold:        2,
		MaxGetDataSize:            500,
		MaxGetInvLength:           2000,
		KMaxInventorySize:         500,
		SyncTaskTimeoutSeconds:    30,
	}
}
