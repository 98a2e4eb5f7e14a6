// Package wire defines the sync-protocol messages the DAG engine exchanges
// with peers through the Peer collaborator (spec.md §6). Framing, transport
// and peer state machine are out of scope (named external collaborators);
// this package only defines the message payloads and their encoding.
package wire

// Command identifies a message's wire type, the way the teacher's own
// wire.Message.Command() does for its protocol messages.
type Command string

// Commands used by the DAG engine's sync glue (C7).
const (
	CmdGetInv   Command = "getinv"
	CmdInv      Command = "inv"
	CmdGetData  Command = "getdata"
	CmdBundle   Command = "bundle"
	CmdNotFound Command = "notfound"
)

// InvKind distinguishes what a GetData request is asking for, per spec.md
// §6: GetData(kind, [(hash, nonce)]) with kind ∈ {LEVEL_SET, PENDING_SET}.
type InvKind uint8

const (
	// InvKindLevelSet requests a finalized milestone's level-set.
	InvKindLevelSet InvKind = iota
	// InvKindPendingSet requests a chain's pending (not yet sealed) blocks.
	InvKindPendingSet
)

func (k InvKind) String() string {
	switch k {
	case InvKindLevelSet:
		return "LEVEL_SET"
	case InvKindPendingSet:
		return "PENDING_SET"
	default:
		return "UNKNOWN"
	}
}

// Message is implemented by every type in this package, mirroring the
// teacher's own wire.Message interface shape (Command/encode/decode),
// trimmed to this engine's needs (no protocol-version negotiation).
type Message interface {
	Command() Command
	Encode() ([]byte, error)
	Decode([]byte) error
}
