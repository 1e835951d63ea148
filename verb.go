package internode

import "strconv"

// Verb identifies the semantic type of a message. Wire ids are fixed for
// compatibility and must never be renumbered.
type Verb int32

const (
	VerbRead          Verb = 0
	VerbReadResponse  Verb = 1
	VerbReadRepair    Verb = 2
	VerbWrite         Verb = 3
	VerbWriteResponse Verb = 4
	VerbGossipSyn     Verb = 5
	VerbGossipAck     Verb = 6
	VerbEcho          Verb = 7
	// VerbLegacyHint is kept in the table so peers still running the old
	// hint delivery path do not desynchronize the stream; its bodies are
	// consumed and dropped without reaching the consumer.
	VerbLegacyHint Verb = 8
)

var verbNames = map[Verb]string{
	VerbRead:          "READ",
	VerbReadResponse:  "READ_RESPONSE",
	VerbReadRepair:    "READ_REPAIR",
	VerbWrite:         "WRITE",
	VerbWriteResponse: "WRITE_RESPONSE",
	VerbGossipSyn:     "GOSSIP_SYN",
	VerbGossipAck:     "GOSSIP_ACK",
	VerbEcho:          "ECHO",
	VerbLegacyHint:    "LEGACY_HINT",
}

// supersededVerbs marks verbs whose payloads are read off the wire for byte
// accounting but never delivered.
var supersededVerbs = map[Verb]bool{
	VerbLegacyHint: true,
}

// VerbFromID maps a wire id to its Verb. The second return is false for ids
// this node does not know, which callers must treat as stream corruption.
func VerbFromID(id int32) (Verb, bool) {
	v := Verb(id)
	_, ok := verbNames[v]
	return v, ok
}

// Superseded reports whether messages of this verb are intentionally dropped
// after decoding.
func (v Verb) Superseded() bool {
	return supersededVerbs[v]
}

func (v Verb) String() string {
	if name, ok := verbNames[v]; ok {
		return name
	}
	return "VERB(" + strconv.Itoa(int(v)) + ")"
}
