package dag

import (
	"github.com/mstonedag/node/util/daghash"
	"github.com/mstonedag/node/wire"
)

// ConstructLocator walks the best-chain milestone history backward from
// fromHash (or the best head if fromHash is the zero hash) for up to
// length hops, terminating at genesis (spec.md §4.5.4). Runs on the sync
// pool; read-only.
func (m *Manager) ConstructLocator(fromHash daghash.Hash, length int) []daghash.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()

	best := m.chainSet.Best()
	if best == nil {
		return nil
	}

	startIdx := best.milestones.Len() - 1
	if fromHash != daghash.ZeroHash {
		found := false
		for i := 0; i < best.milestones.Len(); i++ {
			if best.milestones.At(i).(*Milestone).Hash == fromHash {
				startIdx = i
				found = true
				break
			}
		}
		if !found {
			return nil
		}
	}

	locator := make([]daghash.Hash, 0, length)
	for i := startIdx; i >= 0 && len(locator) < length; i-- {
		ms := best.milestones.At(i).(*Milestone)
		locator = append(locator, ms.Hash)
	}
	locator = append(locator, m.genesis.Hash())
	return locator
}

// RespondRequestInv implements spec.md §4.5.4: given a peer's locator,
// return the hashes it is missing, or the boundary-behavior sentinels
// (B1: empty locator -> empty inv; B2: no intersection but genesis
// matches -> [genesis]).
func (m *Manager) RespondRequestInv(locator []daghash.Hash, nonce uint64, peer Peer) *wire.MsgInv {
	m.mu.RLock()
	defer m.mu.RUnlock()

	best := m.chainSet.Best()
	if best == nil || len(locator) == 0 {
		return &wire.MsgInv{Nonce: nonce}
	}

	bestHeadHash := best.Tip()

	for _, h := range locator {
		if h == bestHeadHash {
			return &wire.MsgInv{Nonce: nonce} // B1-equivalent: same head, nothing to send
		}
		idx, ok := m.mainChainIndexOf(best, h)
		if !ok {
			continue
		}

		hashes := m.forwardFrom(best, idx, m.params.KMaxInventorySize)
		hashes = m.skipAlreadySent(hashes, peer)
		return &wire.MsgInv{Hashes: hashes, Nonce: nonce}
	}

	return &wire.MsgInv{Hashes: []*daghash.Hash{genesisPtr(m.genesis.Hash())}, Nonce: nonce} // B2
}

func genesisPtr(h daghash.Hash) *daghash.Hash { return &h }

func (m *Manager) mainChainIndexOf(best *Chain, hash daghash.Hash) (int, bool) {
	for i := 0; i < best.milestones.Len(); i++ {
		if best.milestones.At(i).(*Milestone).Hash == hash {
			return i, true
		}
	}
	return 0, false
}

func (m *Manager) forwardFrom(best *Chain, idx, max int) []*daghash.Hash {
	var out []*daghash.Hash
	for i := idx + 1; i < best.milestones.Len() && len(out) < max; i++ {
		h := best.milestones.At(i).(*Milestone).Hash
		out = append(out, &h)
	}
	return out
}

// skipAlreadySent drops hashes up to and including the peer's
// last-sent-inv-hash, to avoid redundant GetData (spec.md §4.5.4).
func (m *Manager) skipAlreadySent(hashes []*daghash.Hash, peer Peer) []*daghash.Hash {
	if peer == nil {
		return hashes
	}
	last := peer.LastSentInvHash()
	if last == daghash.ZeroHash {
		return hashes
	}
	for i, h := range hashes {
		if *h == last {
			return hashes[i+1:]
		}
	}
	return hashes
}

// CallbackRequestInv implements spec.md §4.5.4: react to a peer's Inv
// reply by either requesting the data, widening the locator, or entering
// pending sync mode.
func (m *Manager) CallbackRequestInv(inv *wire.MsgInv, peer Peer, lastLocatorLen int) (requestData bool, nextLocatorLen int) {
	switch {
	case len(inv.Hashes) == 0:
		return false, lastLocatorLen // pending: nothing more to do right now
	case len(inv.Hashes) == 1 && *inv.Hashes[0] == m.genesis.Hash():
		next := lastLocatorLen * 2
		if next > m.params.MaxGetInvLength || next == 0 {
			next = m.params.MaxGetInvLength
		}
		return false, next
	default:
		return true, lastLocatorLen
	}
}

// RequestData batches hashes into GetData requests of at most
// MaxGetDataSize, skipping anything already downloading or already in the
// DAG, and marks the remainder as downloading (spec.md §4.5.4).
func (m *Manager) RequestData(hashes []daghash.Hash, kind wire.InvKind, nonce uint64, peer Peer) []*wire.MsgGetData {
	m.downloadingMu.Lock()
	defer m.downloadingMu.Unlock()

	var pending []daghash.Hash
	for _, h := range hashes {
		if m.downloading[h] {
			continue
		}
		m.mu.RLock()
		known := m.existsInDAG(h)
		m.mu.RUnlock()
		if known {
			continue
		}
		m.downloading[h] = true
		pending = append(pending, h)
	}

	var batches []*wire.MsgGetData
	for len(pending) > 0 {
		n := m.params.MaxGetDataSize
		if n > len(pending) {
			n = len(pending)
		}
		batch := &wire.MsgGetData{Kind: kind}
		for _, h := range pending[:n] {
			hh := h
			batch.Requests = append(batch.Requests, wire.GetDataRequest{Hash: &hh, Nonce: nonce})
		}
		batches = append(batches, batch)
		pending = pending[n:]
	}
	return batches
}

// clearDownloading releases the in-flight marker for hash, called once
// the requested data has arrived or the request has timed out (spec.md
// §5 sync_task_timeout).
func (m *Manager) clearDownloading(hash daghash.Hash) {
	m.downloadingMu.Lock()
	defer m.downloadingMu.Unlock()
	delete(m.downloading, hash)
}

// RespondRequestLVS serializes the requested milestones' level-sets from
// the best chain's in-memory milestones (a flushed milestone is answered
// with NotFound), milestone vertex first in the wire form (spec.md §4.5.4,
// §6).
func (m *Manager) RespondRequestLVS(hashes []daghash.Hash, nonces []uint64, peer Peer) ([]*wire.MsgBundle, []*wire.MsgNotFound) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var bundles []*wire.MsgBundle
	var notFound []*wire.MsgNotFound

	best := m.chainSet.Best()
	for i, h := range hashes {
		nonce := nonces[i]
		ms := m.findMilestoneByHash(best, h)
		if ms == nil {
			hh := h
			notFound = append(notFound, &wire.MsgNotFound{Hash: &hh, Nonce: nonce})
			continue
		}
		payload := encodeLevelSetOrder(ms.SerializedOrder())
		bundles = append(bundles, &wire.MsgBundle{Nonce: nonce, Payload: payload})
	}
	return bundles, notFound
}

// findMilestoneByHash looks for hash among the best chain's in-memory
// milestones only. A flushed milestone's raw payload is still reachable
// via Store.GetRawLevelSetAt, but that call is keyed by height, not hash —
// resolving a hash to a flushed height needs an index this engine does
// not keep in memory, so archived lookups are out of RespondRequestLVS's
// scope and surface as NotFound here.
func (m *Manager) findMilestoneByHash(best *Chain, hash daghash.Hash) *Milestone {
	if best == nil {
		return nil
	}
	for i := 0; i < best.milestones.Len(); i++ {
		if ms := best.milestones.At(i).(*Milestone); ms.Hash == hash {
			return ms
		}
	}
	return nil
}

func encodeLevelSetOrder(hashes []daghash.Hash) []byte {
	out := make([]byte, 0, len(hashes)*daghash.HashSize)
	for _, h := range hashes {
		out = append(out, h[:]...)
	}
	return out
}
