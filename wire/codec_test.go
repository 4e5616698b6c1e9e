package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestEncodeDecodeCarriesPayloadAndSender(t *testing.T) {
	msg := Message{
		Content: PushToDB{Key: "song.mp3", Value: []byte{0x49, 0x44, 0x33, 0x00}, Origin: "10.0.0.1:7000"},
		Sender:  "10.0.0.1:7000",
	}

	b, err := Encode(msg)
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestEncodeDecodeStatusResponseKeepsNameOrder(t *testing.T) {
	msg := Message{
		Content: StatusResponse{Names: []string{"b", "a", "c"}, PeerName: "alice"},
		Sender:  "127.0.0.1:9000",
	}
	b, err := Encode(msg)
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	resp, ok := got.Content.(StatusResponse)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a", "c"}, resp.Names)
	assert.Equal(t, "alice", resp.PeerName)
}

func TestEncodeDecodeCorrelationFields(t *testing.T) {
	msg := Message{
		Content: ExistFileResponse{Key: "x", ID: RequestID(1700000000123456789)},
		Sender:  "127.0.0.1:9001",
	}
	b, err := Encode(msg)
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, msg, got)

	gf := Message{Content: GetFileResponse{Key: "x", Value: []byte("abc"), Intent: IntentRelocate}}
	b, err = Encode(gf)
	require.NoError(t, err)
	got, err = Decode(b)
	require.NoError(t, err)
	assert.Equal(t, gf, got)
}

func TestEmptyContentKindsDecode(t *testing.T) {
	for _, c := range []Content{SelfStatusRequest{}, StatusRequest{}} {
		b, err := Encode(Message{Content: c, Sender: "s"})
		require.NoError(t, err)
		got, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, c.Kind(), got.Content.Kind())
	}
}

func TestNilValueDecodesAsEmpty(t *testing.T) {
	b, err := Encode(Message{Content: RedundantPushToDB{Key: "k"}})
	require.NoError(t, err)
	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, []byte{}, got.Content.(RedundantPushToDB).Value)
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)

	_, err = Decode(nil)
	assert.ErrorIs(t, err, ErrNoKind)

	b := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, 200)
	_, err = Decode(b)
	assert.ErrorIs(t, err, ErrUnknownKind)

	b, err = Encode(Message{Content: GetFile{Key: "k", Intent: IntentPlay}, Sender: "s"})
	require.NoError(t, err)
	b = protowire.AppendTag(b, fieldIntent, protowire.VarintType)
	b = protowire.AppendVarint(b, 257)
	_, err = Decode(b)
	assert.ErrorIs(t, err, ErrBadIntent, "257 must not wrap around to a valid intent")

	_, err = Encode(Message{})
	assert.ErrorIs(t, err, ErrNilContent)
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	b, err := Encode(Message{Content: DeleteFile{Key: "k"}, Sender: "s"})
	require.NoError(t, err)
	b = protowire.AppendTag(b, 42, protowire.BytesType)
	b = protowire.AppendString(b, "future")

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, DeleteFile{Key: "k"}, got.Content)
}

func TestIntentValid(t *testing.T) {
	assert.True(t, IntentRelocate.Valid())
	assert.False(t, Intent(0).Valid())
	assert.False(t, Intent(9).Valid())
	assert.Equal(t, "play", IntentPlay.String())
}
