package types

import "encoding/json"

// Tag discriminates the wire message variants of §4.2. A message with an
// empty or unrecognized Tag is ill-formed and must be dropped silently by
// the Transport.
type Tag string

const (
	Hello            Tag = "HELLO"
	Heartbeat        Tag = "HEARTBEAT"
	Goodbye          Tag = "GOODBYE"
	LayoutUpdate     Tag = "LAYOUT_UPDATE"
	LeaderClaim      Tag = "LEADER_CLAIM"
	RequestLayout    Tag = "REQUEST_LAYOUT"
	SharedDataUpdate Tag = "SHARED_DATA_UPDATE"
)

// Message is the tagged union exchanged over a Transport. Only the fields
// relevant to Tag are populated; the rest are left at their zero value and
// omitted from the wire encoding.
type Message struct {
	Tag Tag `json:"tag"`

	// HELLO, HEARTBEAT
	Peer *PeerSnapshot `json:"peer,omitempty"`

	// GOODBYE, REQUEST_LAYOUT carry only the originating peer id.
	PeerID string `json:"peerId,omitempty"`

	// LAYOUT_UPDATE
	Layout *Layout `json:"layout,omitempty"`

	// LEADER_CLAIM
	LeaderID  string `json:"leaderId,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`

	// SHARED_DATA_UPDATE
	Key   string          `json:"key,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// WellFormed reports whether m carries a recognized discriminator and the
// payload its tag requires. Transports drop ill-formed messages silently
// rather than deliver them to the protocol handler.
func (m Message) WellFormed() bool {
	switch m.Tag {
	case Hello, Heartbeat:
		return m.Peer != nil && m.Peer.ID != ""
	case Goodbye, RequestLayout:
		return m.PeerID != ""
	case LayoutUpdate:
		return m.Layout != nil
	case LeaderClaim:
		return m.LeaderID != ""
	case SharedDataUpdate:
		return m.Key != ""
	default:
		return false
	}
}
