package telegram

import (
	"context"
	"time"

	"github.com/gotd/td/tg"
)

// simulateTyping shows the "typing…" status on the peer and holds it
// for the given window. Failures are swallowed: the status is cosmetic
// and must never block a send.
func simulateTyping(ctx context.Context, api *tg.Client, peer tg.InputPeerClass, d time.Duration) {
	_, _ = api.MessagesSetTyping(ctx, &tg.MessagesSetTypingRequest{
		Peer:   peer,
		Action: &tg.SendMessageTypingAction{},
	})

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	_, _ = api.MessagesSetTyping(ctx, &tg.MessagesSetTypingRequest{
		Peer:   peer,
		Action: &tg.SendMessageCancelAction{},
	})
}
