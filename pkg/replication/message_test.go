package replication

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageSignVerifyRoundTrip(t *testing.T) {
	secret := []byte("shared-secret")
	msg := &Message{Type: MsgHello, Epoch: 3, Payload: []byte("hello")}
	signMessage(secret, "node-a", msg)

	require.Equal(t, "node-a", msg.NodeID)
	require.NotEmpty(t, msg.Signature)
	require.NoError(t, verifyMessage(secret, 0, msg))
}

func TestMessageVerifyRejectsTamperedPayload(t *testing.T) {
	secret := []byte("shared-secret")
	msg := &Message{Type: MsgHello, Epoch: 3, Payload: []byte("hello")}
	signMessage(secret, "node-a", msg)

	msg.Payload = []byte("hellp")
	require.Error(t, verifyMessage(secret, 0, msg))
}

func TestMessageVerifyRejectsWrongSecret(t *testing.T) {
	msg := &Message{Type: MsgHello, Epoch: 1, Payload: []byte("x")}
	signMessage([]byte("secret-one"), "node-a", msg)
	require.Error(t, verifyMessage([]byte("secret-two"), 0, msg))
}

func TestWriteReadMessageFraming(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	msg := &Message{Type: MsgDelta, NodeID: "n1", Epoch: 5, Payload: []byte("payload-bytes")}
	require.NoError(t, writeMessage(w, msg))
	require.NoError(t, w.Flush())

	r := bufio.NewReader(&buf)
	got, err := readMessage(r, 1<<20)
	require.NoError(t, err)
	require.Equal(t, msg.Type, got.Type)
	require.Equal(t, msg.NodeID, got.NodeID)
	require.Equal(t, msg.Epoch, got.Epoch)
	require.Equal(t, msg.Payload, got.Payload)
}

func TestReadMessageRejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	msg := &Message{Type: MsgDelta, Payload: make([]byte, 100)}
	require.NoError(t, writeMessage(w, msg))
	require.NoError(t, w.Flush())

	r := bufio.NewReader(&buf)
	_, err := readMessage(r, 10)
	require.Error(t, err)
}
