package gossip

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// A serialized table is a sequence of entry records (field 1), each holding
// name (field 1) and address (field 2).
const (
	fieldEntry protowire.Number = 1
	fieldName  protowire.Number = 1
	fieldAddr  protowire.Number = 2
)

var ErrEmptyName = errors.New("gossip: table entry without name")

// EncodeTable serializes entries for SendNetworkTable/SendNetworkUpdateTable.
func EncodeTable(entries map[string]string) []byte {
	members := NewTableFrom(entries).Members()

	var b []byte
	for _, m := range members {
		var e []byte
		e = protowire.AppendTag(e, fieldName, protowire.BytesType)
		e = protowire.AppendString(e, m.Name)
		e = protowire.AppendTag(e, fieldAddr, protowire.BytesType)
		e = protowire.AppendString(e, m.Addr)

		b = protowire.AppendTag(b, fieldEntry, protowire.BytesType)
		b = protowire.AppendBytes(b, e)
	}
	return b
}

// DecodeTable parses the output of EncodeTable.
func DecodeTable(b []byte) (map[string]string, error) {
	out := make(map[string]string)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("gossip: bad table tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if num != fieldEntry || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("gossip: bad table field: %w", protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		entry, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("gossip: bad table entry: %w", protowire.ParseError(n))
		}
		b = b[n:]

		name, addr, err := decodeEntry(entry)
		if err != nil {
			return nil, err
		}
		out[name] = addr
	}
	return out, nil
}

func decodeEntry(b []byte) (name, addr string, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", "", fmt.Errorf("gossip: bad entry tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.BytesType || (num != fieldName && num != fieldAddr) {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return "", "", fmt.Errorf("gossip: bad entry field: %w", protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeString(b)
		if n < 0 {
			return "", "", fmt.Errorf("gossip: bad entry value: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if num == fieldName {
			name = v
		} else {
			addr = v
		}
	}
	if name == "" {
		return "", "", ErrEmptyName
	}
	return name, addr, nil
}
