package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

/*
Messages are encoded as a single flat protobuf record. Each content kind uses the
subset of fields it needs:

	1 kind    varint
	2 sender  string
	3 key     string   (key, name, addr or peer name)
	4 value   bytes    (item content or serialized table)
	5 origin  string
	6 id      varint
	7 intent  varint
	8 names   repeated string

Unknown field numbers are skipped so newer peers can add fields.
*/

const (
	fieldKind   protowire.Number = 1
	fieldSender protowire.Number = 2
	fieldKey    protowire.Number = 3
	fieldValue  protowire.Number = 4
	fieldOrigin protowire.Number = 5
	fieldID     protowire.Number = 6
	fieldIntent protowire.Number = 7
	fieldNames  protowire.Number = 8
)

var (
	ErrUnknownKind = errors.New("wire: unknown message kind")
	ErrNoKind      = errors.New("wire: message has no kind")
	ErrNilContent  = errors.New("wire: message has no content")
	ErrBadIntent   = errors.New("wire: intent out of range")
)

// record is the flattened form shared by every content kind.
type record struct {
	kind   Kind
	sender string
	key    string
	value  []byte
	origin string
	id     uint64
	intent Intent
	names  []string
}

// Encode serializes m.
func Encode(m Message) ([]byte, error) {
	if m.Content == nil {
		return nil, ErrNilContent
	}
	r := record{kind: m.Content.Kind(), sender: m.Sender}

	switch c := m.Content.(type) {
	case PushToDB:
		r.key, r.value, r.origin = c.Key, c.Value, c.Origin
	case RedundantPushToDB:
		r.key, r.value, r.origin = c.Key, c.Value, c.Origin
	case StoreAck:
		r.key = c.Key
	case ChangePeerName:
		r.key = c.Name
	case SendNetworkTable:
		r.value = c.Table
	case SendNetworkUpdateTable:
		r.value = c.Table
	case RequestForTable:
		r.key = c.Name
	case FindFile:
		r.key, r.intent = c.Key, c.Intent
	case ExistFile:
		r.key, r.id = c.Key, uint64(c.ID)
	case ExistFileResponse:
		r.key, r.id = c.Key, uint64(c.ID)
	case GetFile:
		r.key, r.intent = c.Key, c.Intent
	case GetFileResponse:
		r.key, r.value, r.intent = c.Key, c.Value, c.Intent
	case ExitPeer:
		r.key = c.Addr
	case DeleteFromNetwork:
		r.key = c.Name
	case DeleteFile:
		r.key = c.Key
	case OrderItem:
		r.key = c.Key
	case SelfStatusRequest, StatusRequest:
	case StatusResponse:
		r.key, r.names = c.PeerName, c.Names
	case PlayAudioRequest:
		r.key = c.Name
	case DroppedPeer:
		r.key = c.Addr
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, m.Content)
	}

	return r.append(nil), nil
}

func (r record) append(b []byte) []byte {
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.kind))
	if r.sender != "" {
		b = protowire.AppendTag(b, fieldSender, protowire.BytesType)
		b = protowire.AppendString(b, r.sender)
	}
	if r.key != "" {
		b = protowire.AppendTag(b, fieldKey, protowire.BytesType)
		b = protowire.AppendString(b, r.key)
	}
	if r.value != nil {
		b = protowire.AppendTag(b, fieldValue, protowire.BytesType)
		b = protowire.AppendBytes(b, r.value)
	}
	if r.origin != "" {
		b = protowire.AppendTag(b, fieldOrigin, protowire.BytesType)
		b = protowire.AppendString(b, r.origin)
	}
	if r.id != 0 {
		b = protowire.AppendTag(b, fieldID, protowire.VarintType)
		b = protowire.AppendVarint(b, r.id)
	}
	if r.intent != 0 {
		b = protowire.AppendTag(b, fieldIntent, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.intent))
	}
	for _, name := range r.names {
		b = protowire.AppendTag(b, fieldNames, protowire.BytesType)
		b = protowire.AppendString(b, name)
	}
	return b
}

// Decode parses one message produced by Encode.
func Decode(b []byte) (Message, error) {
	r, err := parseRecord(b)
	if err != nil {
		return Message{}, err
	}

	var c Content
	switch r.kind {
	case 0:
		return Message{}, ErrNoKind
	case KindPushToDB:
		c = PushToDB{Key: r.key, Value: r.valueOrEmpty(), Origin: r.origin}
	case KindRedundantPushToDB:
		c = RedundantPushToDB{Key: r.key, Value: r.valueOrEmpty(), Origin: r.origin}
	case KindStoreAck:
		c = StoreAck{Key: r.key}
	case KindChangePeerName:
		c = ChangePeerName{Name: r.key}
	case KindSendNetworkTable:
		c = SendNetworkTable{Table: r.value}
	case KindSendNetworkUpdateTable:
		c = SendNetworkUpdateTable{Table: r.value}
	case KindRequestForTable:
		c = RequestForTable{Name: r.key}
	case KindFindFile:
		c = FindFile{Key: r.key, Intent: r.intent}
	case KindExistFile:
		c = ExistFile{Key: r.key, ID: RequestID(r.id)}
	case KindExistFileResponse:
		c = ExistFileResponse{Key: r.key, ID: RequestID(r.id)}
	case KindGetFile:
		c = GetFile{Key: r.key, Intent: r.intent}
	case KindGetFileResponse:
		c = GetFileResponse{Key: r.key, Value: r.valueOrEmpty(), Intent: r.intent}
	case KindExitPeer:
		c = ExitPeer{Addr: r.key}
	case KindDeleteFromNetwork:
		c = DeleteFromNetwork{Name: r.key}
	case KindDeleteFile:
		c = DeleteFile{Key: r.key}
	case KindOrderItem:
		c = OrderItem{Key: r.key}
	case KindSelfStatusRequest:
		c = SelfStatusRequest{}
	case KindStatusRequest:
		c = StatusRequest{}
	case KindStatusResponse:
		c = StatusResponse{Names: r.names, PeerName: r.key}
	case KindPlayAudioRequest:
		c = PlayAudioRequest{Name: r.key}
	case KindDroppedPeer:
		c = DroppedPeer{Addr: r.key}
	default:
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownKind, r.kind)
	}

	return Message{Content: c, Sender: r.sender}, nil
}

func (r record) valueOrEmpty() []byte {
	if r.value == nil {
		return []byte{}
	}
	return r.value
}

func parseRecord(b []byte) (record, error) {
	var r record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return r, fmt.Errorf("wire: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldKind && typ == protowire.VarintType,
			num == fieldID && typ == protowire.VarintType,
			num == fieldIntent && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return r, fmt.Errorf("wire: field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldKind:
				if v > 0xff {
					return r, fmt.Errorf("%w: %d", ErrUnknownKind, v)
				}
				r.kind = Kind(v)
			case fieldID:
				r.id = v
			case fieldIntent:
				if v > 0xff {
					return r, fmt.Errorf("%w: %d", ErrBadIntent, v)
				}
				r.intent = Intent(v)
			}

		case typ == protowire.BytesType && num >= fieldSender && num <= fieldNames:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return r, fmt.Errorf("wire: field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldSender:
				r.sender = string(v)
			case fieldKey:
				r.key = string(v)
			case fieldValue:
				r.value = append([]byte{}, v...)
			case fieldOrigin:
				r.origin = string(v)
			case fieldNames:
				r.names = append(r.names, string(v))
			default:
				return r, fmt.Errorf("wire: field %d has unexpected type", num)
			}

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return r, fmt.Errorf("wire: field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return r, nil
}
