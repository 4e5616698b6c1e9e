// Package wire defines the messages exchanged between meff peers and their encoding.
//
// Every connection carries exactly one Message. The sender dials, writes the encoded
// message and closes its side; the receiver reads until end-of-stream and decodes.
package wire

import "fmt"

// Kind tags the content of a Message on the wire.
type Kind uint8

const (
	KindPushToDB Kind = iota + 1
	KindRedundantPushToDB
	KindStoreAck
	KindChangePeerName
	KindSendNetworkTable
	KindSendNetworkUpdateTable
	KindRequestForTable
	KindFindFile
	KindExistFile
	KindExistFileResponse
	KindGetFile
	KindGetFileResponse
	KindExitPeer
	KindDeleteFromNetwork
	KindDeleteFile
	KindOrderItem
	KindSelfStatusRequest
	KindStatusRequest
	KindStatusResponse
	KindPlayAudioRequest
	KindDroppedPeer
)

var kindNames = map[Kind]string{
	KindPushToDB:               "PushToDB",
	KindRedundantPushToDB:      "RedundantPushToDB",
	KindStoreAck:               "StoreAck",
	KindChangePeerName:         "ChangePeerName",
	KindSendNetworkTable:       "SendNetworkTable",
	KindSendNetworkUpdateTable: "SendNetworkUpdateTable",
	KindRequestForTable:        "RequestForTable",
	KindFindFile:               "FindFile",
	KindExistFile:              "ExistFile",
	KindExistFileResponse:      "ExistFileResponse",
	KindGetFile:                "GetFile",
	KindGetFileResponse:        "GetFileResponse",
	KindExitPeer:               "ExitPeer",
	KindDeleteFromNetwork:      "DeleteFromNetwork",
	KindDeleteFile:             "DeleteFile",
	KindOrderItem:              "OrderItem",
	KindSelfStatusRequest:      "SelfStatusRequest",
	KindStatusRequest:          "StatusRequest",
	KindStatusResponse:         "StatusResponse",
	KindPlayAudioRequest:       "PlayAudioRequest",
	KindDroppedPeer:            "DroppedPeer",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Intent records why a node asked the network for an item.
type Intent uint8

const (
	IntentFetch Intent = iota + 1
	IntentRemove
	IntentPlay
	IntentRelocate
)

func (i Intent) String() string {
	switch i {
	case IntentFetch:
		return "fetch"
	case IntentRemove:
		return "remove"
	case IntentPlay:
		return "play"
	case IntentRelocate:
		return "relocate"
	}
	return fmt.Sprintf("Intent(%d)", uint8(i))
}

// Valid reports whether i is one of the known intents.
func (i Intent) Valid() bool {
	return i >= IntentFetch && i <= IntentRelocate
}

// RequestID correlates an existence query with its responses. It is a
// nanosecond timestamp taken when the query was created.
type RequestID uint64

// Content is the closed set of message payloads. Only types in this package implement it.
type Content interface {
	Kind() Kind
	isContent()
}

// Message is the unit sent over one connection.
type Message struct {
	Content Content
	Sender  string // listening address of the sending node
}

func (m Message) String() string {
	if m.Content == nil {
		return fmt.Sprintf("<empty> from %s", m.Sender)
	}
	return fmt.Sprintf("%s from %s", m.Content.Kind(), m.Sender)
}

// PushToDB asks the receiver to own an item and replicate it once.
type PushToDB struct {
	Key    string
	Value  []byte
	Origin string
}

// RedundantPushToDB carries the single redundant copy of an item.
type RedundantPushToDB struct {
	Key    string
	Value  []byte
	Origin string
}

// StoreAck acknowledges a PushToDB to its origin.
type StoreAck struct {
	Key string
}

// ChangePeerName directs a joining node to adopt Name.
type ChangePeerName struct {
	Name string
}

// SendNetworkTable answers a table request; the receiver re-broadcasts its merged table.
type SendNetworkTable struct {
	Table []byte
}

// SendNetworkUpdateTable gossips a table without triggering further broadcasts.
type SendNetworkUpdateTable struct {
	Table []byte
}

// RequestForTable is the join handshake: "I want to be Name, send me the table".
type RequestForTable struct {
	Name string
}

// FindFile starts an existence query on the receiving node.
type FindFile struct {
	Key    string
	Intent Intent
}

// ExistFile asks whether the receiver holds Key.
type ExistFile struct {
	Key string
	ID  RequestID
}

// ExistFileResponse is a positive answer to ExistFile.
type ExistFileResponse struct {
	Key string
	ID  RequestID
}

// GetFile requests the content of Key.
type GetFile struct {
	Key    string
	Intent Intent
}

// GetFileResponse carries the content requested by GetFile.
type GetFileResponse struct {
	Key    string
	Value  []byte
	Intent Intent
}

// ExitPeer makes the receiving node leave the network.
type ExitPeer struct {
	Addr string
}

// DeleteFromNetwork removes Name from the receiver's membership table.
type DeleteFromNetwork struct {
	Name string
}

// DeleteFile removes Key from the receiver's local store if held.
type DeleteFile struct {
	Key string
}

// OrderItem asks the receiver to acquire a copy of Key.
type OrderItem struct {
	Key string
}

// SelfStatusRequest makes the receiver fan out StatusRequest to every peer.
type SelfStatusRequest struct{}

// StatusRequest asks for the receiver's item names.
type StatusRequest struct{}

// StatusResponse lists the items held by PeerName.
type StatusResponse struct {
	Names    []string
	PeerName string
}

// PlayAudioRequest plays a locally held item on the receiver.
type PlayAudioRequest struct {
	Name string
}

// DroppedPeer announces that Addr was declared lost.
type DroppedPeer struct {
	Addr string
}

func (PushToDB) Kind() Kind               { return KindPushToDB }
func (RedundantPushToDB) Kind() Kind      { return KindRedundantPushToDB }
func (StoreAck) Kind() Kind               { return KindStoreAck }
func (ChangePeerName) Kind() Kind         { return KindChangePeerName }
func (SendNetworkTable) Kind() Kind       { return KindSendNetworkTable }
func (SendNetworkUpdateTable) Kind() Kind { return KindSendNetworkUpdateTable }
func (RequestForTable) Kind() Kind        { return KindRequestForTable }
func (FindFile) Kind() Kind               { return KindFindFile }
func (ExistFile) Kind() Kind              { return KindExistFile }
func (ExistFileResponse) Kind() Kind      { return KindExistFileResponse }
func (GetFile) Kind() Kind                { return KindGetFile }
func (GetFileResponse) Kind() Kind        { return KindGetFileResponse }
func (ExitPeer) Kind() Kind               { return KindExitPeer }
func (DeleteFromNetwork) Kind() Kind      { return KindDeleteFromNetwork }
func (DeleteFile) Kind() Kind             { return KindDeleteFile }
func (OrderItem) Kind() Kind              { return KindOrderItem }
func (SelfStatusRequest) Kind() Kind      { return KindSelfStatusRequest }
func (StatusRequest) Kind() Kind          { return KindStatusRequest }
func (StatusResponse) Kind() Kind         { return KindStatusResponse }
func (PlayAudioRequest) Kind() Kind       { return KindPlayAudioRequest }
func (DroppedPeer) Kind() Kind            { return KindDroppedPeer }

func (PushToDB) isContent()               {}
func (RedundantPushToDB) isContent()      {}
func (StoreAck) isContent()               {}
func (ChangePeerName) isContent()         {}
func (SendNetworkTable) isContent()       {}
func (SendNetworkUpdateTable) isContent() {}
func (RequestForTable) isContent()        {}
func (FindFile) isContent()               {}
func (ExistFile) isContent()              {}
func (ExistFileResponse) isContent()      {}
func (GetFile) isContent()                {}
func (GetFileResponse) isContent()        {}
func (ExitPeer) isContent()               {}
func (DeleteFromNetwork) isContent()      {}
func (DeleteFile) isContent()             {}
func (OrderItem) isContent()              {}
func (SelfStatusRequest) isContent()      {}
func (StatusRequest) isContent()          {}
func (StatusResponse) isContent()         {}
func (PlayAudioRequest) isContent()       {}
func (DroppedPeer) isContent()            {}
