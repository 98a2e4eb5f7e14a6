package dag

// triggerFlush implements spec.md §4.5.3: after a best-chain milestone is
// added, if the best chain holds more than PunctualityThreshold milestones
// in memory, walk from the oldest forward and flush every milestone that
// every non-best chain's oldest in-memory milestone agrees with.
func (m *Manager) triggerFlush() {
	best := m.chainSet.Best()
	if best == nil || uint64(best.MilestoneCount()) <= m.params.PunctualityThreshold {
		return
	}

	for i := 0; i < best.milestones.Len(); i++ {
		ms := best.milestones.At(i).(*Milestone)
		if ms.Stored {
			continue
		}
		if !m.everyForkAgreesAt(ms) {
			return
		}
		m.workers.Storage.Submit(func() { m.flush(ms) })
	}
}

// everyForkAgreesAt reports whether every non-best chain's oldest
// in-memory milestone is exactly ms — the gating condition of spec.md
// §4.5.3: "a milestone is flushed only when no in-memory fork disagrees
// with it at that height."
func (m *Manager) everyForkAgreesAt(ms *Milestone) bool {
	for _, id := range m.chainSet.order {
		if id == m.chainSet.best {
			continue
		}
		c, ok := m.chainSet.Get(id)
		if !ok {
			continue
		}
		oldest := c.OldestMilestone()
		if oldest == nil {
			continue
		}
		if oldest.Height != ms.Height {
			continue // this fork hasn't reached this height yet, no disagreement
		}
		if oldest.Hash != ms.Hash {
			return false
		}
	}
	return true
}

// flush runs the Flush Pipeline for one milestone (spec.md §4.6) on the
// storage worker.
func (m *Manager) flush(ms *Milestone) {
	if ms.Stored {
		return // idempotence: I2
	}
	// Step 1: mark stored first — serves as the idempotency guard even if
	// a later step fails (spec.md §4.6, §7 StoreFailure propagation note).
	ms.Stored = true

	// Chains/ChainSet are verify-owned (spec.md §5); storage takes the
	// shared read lock rather than a bespoke per-structure mutex.
	m.mu.RLock()
	vertices, created, removed, err := m.collectFlushData(ms)
	m.mu.RUnlock()
	if err != nil {
		log.Errorf("flush of milestone %s failed collecting data: %v", ms.Hash, err)
		return
	}

	if err := m.persistLevelSet(ms, vertices, created, removed); err != nil {
		log.Errorf("flush of milestone %s failed: %v", ms.Hash, err)
		return
	}

	m.listeners.fireLvsConfirmed(vertices, created, removed, ms.RegChange.Commitment())

	m.workers.Verify.Submit(func() { m.purgeAfterFlush(ms, vertices) })
}

// collectFlushData asks ms for its own level-set closure and UTXO delta
// (spec.md §4.3 GetDataToSTORE, §4.6 step 2). This reads ms's own
// UTXOCreated/UTXORemoved — captured at seal time — rather than the live
// chain ledger, since the live ledger's diff accumulates across every
// milestone still unflushed on the branch; triggerFlush can queue several
// of those in a single pass, and each must persist only its own slice.
func (m *Manager) collectFlushData(ms *Milestone) (vertices []*Vertex, created, removed []Outpoint, err error) {
	for _, entry := range ms.LevelSet {
		v, ok := entry.Upgrade()
		if !ok {
			v, err = m.store.GetVertex(entry.Hash)
			if err != nil {
				return nil, nil, nil, err
			}
		}
		vertices = append(vertices, v)
	}

	for out := range ms.UTXOCreated {
		created = append(created, out)
	}
	removed = append(removed, ms.UTXORemoved...)
	return vertices, created, removed, nil
}

// persistLevelSet is spec.md §4.6 step 3: write the level-set, update the
// registration table, uncache each block, apply the UTXO delta, and save
// the new head height.
func (m *Manager) persistLevelSet(ms *Milestone, vertices []*Vertex, created, removed []Outpoint) error {
	if err := m.store.StoreLevelSet(ms, vertices); err != nil {
		return ruleErrorWrap(ErrStoreFailure, "store level-set failed", err)
	}
	if err := m.store.UpdatePrevRedemHashes(ms.RegChange); err != nil {
		return ruleErrorWrap(ErrStoreFailure, "update registration table failed", err)
	}
	for _, v := range vertices {
		m.store.UnCache(v.Hash())
	}

	for _, out := range created {
		if err := m.store.AddUTXO(out, ms.UTXOCreated[out]); err != nil {
			return ruleErrorWrap(ErrStoreFailure, "add utxo failed", err)
		}
	}
	for _, out := range removed {
		if err := m.store.RemoveUTXO(out); err != nil {
			return ruleErrorWrap(ErrStoreFailure, "remove utxo failed", err)
		}
	}

	return m.store.SaveHeadHeight(ms.Height)
}

// purgeAfterFlush is spec.md §4.6 step 5, run back on the verify worker:
// erase ms from the global milestone-vertex map, clear the now-flushed
// weak references, pop ms from every chain that has it as its oldest
// milestone, and release ms's own entries from the best chain's ledger
// diff (the rest of the diff is kept).
func (m *Manager) purgeAfterFlush(ms *Milestone, vertices []*Vertex) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.msVertex, ms.Hash)
	for _, v := range vertices {
		delete(m.cache, v.Hash())
	}
	for i := range ms.LevelSet {
		ms.LevelSet[i].Clear()
	}

	for _, id := range m.chainSet.order {
		c, ok := m.chainSet.Get(id)
		if !ok {
			continue
		}
		if oldest := c.OldestMilestone(); oldest != nil && oldest.Hash == ms.Hash {
			c.PopOldest()
		}
	}

	m.chainSet.Best().Ledger().ReleaseFlushed(ms.UTXOCreated, ms.UTXORemoved, ms.RegChange.Added)
}
