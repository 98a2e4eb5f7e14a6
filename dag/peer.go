package dag

import "github.com/mstonedag/node/util/daghash"

// Peer is the external collaborator representing one connected node
// (spec.md §6). The DAG package depends only on this narrow surface; the
// transport, framing, and peer state machine live outside this module's
// scope (spec.md §1).
type Peer interface {
	SendMessage(cmd string, payload []byte) error
	StartSync()
	Disconnect(reason string)

	AddPendingGetInvTask(nonce uint64)
	AddPendingGetDataTask(nonce uint64, hash daghash.Hash)
	RemoveGetInvTask(nonce uint64)
	RemoveGetDataTask(nonce uint64, hash daghash.Hash)

	LastSentInvHash() daghash.Hash
	SetLastSentInvHash(daghash.Hash)
	LastSentBundleHash() daghash.Hash
	SetLastSentBundleHash(daghash.Hash)
}
