package telegram

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_FloodWait(t *testing.T) {
	err := classify(tgerr.New(420, "FLOOD_WAIT_60"))
	require.Error(t, err)

	assert.Equal(t, KindFloodWait, KindOf(err))
	seconds, ok := FloodWaitSeconds(err)
	require.True(t, ok)
	assert.Equal(t, 60, seconds)
}

func TestClassify_RPCTypes(t *testing.T) {
	cases := []struct {
		rpcType string
		want    ErrorKind
	}{
		{"PEER_FLOOD", KindPeerFlood},
		{"USER_PRIVACY_RESTRICTED", KindPrivacyRestricted},
		{"USER_IS_BLOCKED", KindUserBlocked},
		{"CHAT_WRITE_FORBIDDEN", KindWriteForbidden},
		{"PEER_ID_INVALID", KindInvalidPeer},
		{"USERNAME_NOT_OCCUPIED", KindUserNotFound},
		{"PHONE_CODE_INVALID", KindInvalidCode},
		{"PHONE_CODE_EXPIRED", KindCodeExpired},
		{"SESSION_PASSWORD_NEEDED", KindPasswordNeeded},
		{"PASSWORD_HASH_INVALID", KindInvalidPassword},
		{"REACTION_INVALID", KindInvalidReaction},
		{"AUTH_KEY_UNREGISTERED", KindNotAuthorized},
	}

	for _, tc := range cases {
		err := classify(tgerr.New(400, tc.rpcType))
		assert.Equal(t, tc.want, KindOf(err), tc.rpcType)
	}
}

func TestClassify_UnknownRPCIsOther(t *testing.T) {
	err := classify(tgerr.New(400, "SOME_NEW_ERROR"))
	assert.Equal(t, KindOther, KindOf(err))
}

func TestClassify_TransportIsNetwork(t *testing.T) {
	err := classify(fmt.Errorf("dial tcp: connection refused"))
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestClassify_Nil(t *testing.T) {
	assert.NoError(t, classify(nil))
}

func TestClassify_WrappedErrors(t *testing.T) {
	inner := tgerr.New(420, "FLOOD_WAIT_5")
	wrapped := fmt.Errorf("send message: %w", inner)

	err := classify(wrapped)
	assert.Equal(t, KindFloodWait, KindOf(err))
}

func TestIsTerminalForRecipient(t *testing.T) {
	assert.True(t, IsTerminalForRecipient(KindPrivacyRestricted))
	assert.True(t, IsTerminalForRecipient(KindUserBlocked))
	assert.True(t, IsTerminalForRecipient(KindInvalidPeer))
	assert.True(t, IsTerminalForRecipient(KindUserNotFound))
	assert.True(t, IsTerminalForRecipient(KindWriteForbidden))

	assert.False(t, IsTerminalForRecipient(KindFloodWait))
	assert.False(t, IsTerminalForRecipient(KindPeerFlood))
	assert.False(t, IsTerminalForRecipient(KindNetwork))
}

func TestError_Messages(t *testing.T) {
	flood := &Error{Kind: KindFloodWait, Seconds: 30}
	assert.Contains(t, flood.Error(), "30s")

	other := &Error{Kind: KindOther, Message: "weird"}
	assert.Contains(t, other.Error(), "weird")

	var asTarget *Error
	assert.True(t, errors.As(fmt.Errorf("wrap: %w", flood), &asTarget))
}

func TestFloodWaitSeconds_NonFlood(t *testing.T) {
	_, ok := FloodWaitSeconds(&Error{Kind: KindNetwork})
	assert.False(t, ok)
	_, ok = FloodWaitSeconds(errors.New("plain"))
	assert.False(t, ok)
}

func TestClassify_FloodWaitDuration(t *testing.T) {
	// tgerr reports the wait as a duration; the taxonomy stores whole
	// seconds.
	wait, ok := tgerr.AsFloodWait(tgerr.New(420, "FLOOD_WAIT_90"))
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, wait)
}
