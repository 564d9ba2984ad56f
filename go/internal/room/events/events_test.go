package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePushDecodesKnownTypes(t *testing.T) {
	raw := json.RawMessage(`{"room_id":"room-1","message":{"text":"hi"},"server_now":1700000000000}`)
	payload, err := ParsePush(PushChatMessage, raw)
	require.NoError(t, err)

	chat, ok := payload.(ChatMessagePayload)
	require.True(t, ok)
	require.Equal(t, "room-1", chat.RoomID)
	require.Equal(t, "hi", chat.Message.Text)
	require.Equal(t, int64(1700000000000), chat.ServerNow)
}

func TestParsePushUnknownTypeIsNoOp(t *testing.T) {
	payload, err := ParsePush(PushType("BrandNewEvent"), json.RawMessage(`{"anything":1}`))
	require.NoError(t, err)
	require.Nil(t, payload)
}

func TestParsePushMalformedPayload(t *testing.T) {
	_, err := ParsePush(PushGameUpdated, json.RawMessage(`{"game":"not an object"`))
	require.Error(t, err)
}
