package telegram

import (
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tgerr"
)

// ErrorKind is the uniform taxonomy every worker branches on. The
// session manager maps raw MTProto errors into it at the call boundary
// so no RPC error string leaks into worker logic.
type ErrorKind string

const (
	KindFloodWait         ErrorKind = "flood_wait"
	KindPrivacyRestricted ErrorKind = "privacy_restricted"
	KindUserBlocked       ErrorKind = "user_blocked"
	KindPeerFlood         ErrorKind = "peer_flood"
	KindWriteForbidden    ErrorKind = "write_forbidden"
	KindInvalidPeer       ErrorKind = "invalid_peer"
	KindUserNotFound      ErrorKind = "user_not_found"
	KindInvalidCode       ErrorKind = "invalid_code"
	KindCodeExpired       ErrorKind = "code_expired"
	KindPasswordNeeded    ErrorKind = "password_needed"
	KindInvalidPassword   ErrorKind = "invalid_password"
	KindInvalidReaction   ErrorKind = "invalid_reaction"
	KindNotAuthorized     ErrorKind = "not_authorized"
	KindNetwork           ErrorKind = "network"
	KindOther             ErrorKind = "other"
)

// Error is a classified Telegram failure. Seconds is set for
// flood_wait only.
type Error struct {
	Kind    ErrorKind
	Seconds int
	Message string
}

func (e *Error) Error() string {
	if e.Kind == KindFloodWait {
		return fmt.Sprintf("telegram: flood_wait %ds", e.Seconds)
	}
	if e.Message != "" {
		return fmt.Sprintf("telegram: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("telegram: %s", e.Kind)
}

// KindOf extracts the taxonomy kind from any error, defaulting to other.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindOther
}

// FloodWaitSeconds returns the mandated pause for a flood_wait error.
func FloodWaitSeconds(err error) (int, bool) {
	var te *Error
	if errors.As(err, &te) && te.Kind == KindFloodWait {
		return te.Seconds, true
	}
	return 0, false
}

// IsTerminalForRecipient reports whether the recipient should be marked
// done and never retried.
func IsTerminalForRecipient(kind ErrorKind) bool {
	switch kind {
	case KindPrivacyRestricted, KindUserBlocked, KindInvalidPeer, KindUserNotFound, KindWriteForbidden:
		return true
	}
	return false
}

// classify maps a raw gotd error to the taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &Error{Kind: KindFloodWait, Seconds: int(wait / time.Second)}
	}
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return &Error{Kind: KindPasswordNeeded}
	}

	switch {
	case tgerr.Is(err, "PEER_FLOOD"):
		return &Error{Kind: KindPeerFlood}
	case tgerr.Is(err, "USER_PRIVACY_RESTRICTED"):
		return &Error{Kind: KindPrivacyRestricted}
	case tgerr.Is(err, "USER_IS_BLOCKED"), tgerr.Is(err, "YOU_BLOCKED_USER"):
		return &Error{Kind: KindUserBlocked}
	case tgerr.Is(err, "CHAT_WRITE_FORBIDDEN"):
		return &Error{Kind: KindWriteForbidden}
	case tgerr.Is(err, "PEER_ID_INVALID"), tgerr.Is(err, "INPUT_USER_DEACTIVATED"):
		return &Error{Kind: KindInvalidPeer}
	case tgerr.Is(err, "USERNAME_NOT_OCCUPIED"), tgerr.Is(err, "USERNAME_INVALID"):
		return &Error{Kind: KindUserNotFound}
	case tgerr.Is(err, "PHONE_CODE_INVALID"):
		return &Error{Kind: KindInvalidCode}
	case tgerr.Is(err, "PHONE_CODE_EXPIRED"):
		return &Error{Kind: KindCodeExpired}
	case tgerr.Is(err, "SESSION_PASSWORD_NEEDED"):
		return &Error{Kind: KindPasswordNeeded}
	case tgerr.Is(err, "PASSWORD_HASH_INVALID"):
		return &Error{Kind: KindInvalidPassword}
	case tgerr.Is(err, "REACTION_INVALID"):
		return &Error{Kind: KindInvalidReaction}
	case tgerr.Is(err, "AUTH_KEY_UNREGISTERED"), tgerr.Is(err, "SESSION_REVOKED"), tgerr.Is(err, "USER_DEACTIVATED"):
		return &Error{Kind: KindNotAuthorized, Message: err.Error()}
	case tgerr.Is(err, "MSG_ID_INVALID"):
		return &Error{Kind: KindInvalidPeer, Message: "message id invalid"}
	}

	var rpcErr *tgerr.Error
	if errors.As(err, &rpcErr) {
		return &Error{Kind: KindOther, Message: rpcErr.Type}
	}
	// Anything below the RPC layer is a transport problem.
	return &Error{Kind: KindNetwork, Message: err.Error()}
}
