package telegram

import (
	"context"
	"math/rand"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/wintera/fleet/internal/models"
)

// AccountRef identifies a sender account to the gateway.
type AccountRef struct {
	ID    string
	Phone string
	Proxy string
}

// Target is an outbound message recipient. AccessHash may be zero when
// the audience was parsed without one; the gateway then resolves by
// username.
type Target struct {
	TelegramID int64
	AccessHash int64
	Username   string
}

// ParsedUser is one channel participant captured for an audience.
type ParsedUser struct {
	TelegramID int64
	AccessHash int64
	Username   string
	FirstName  string
	LastName   string
	IsPremium  bool
	IsBot      bool
}

// Gateway is the high-level Telegram surface the workers drive. Every
// call acquires the account lease, performs one action, and releases
// before returning, so no worker can hold a client across a sleep.
type Gateway struct {
	sessions *SessionManager
}

func NewGateway(sessions *SessionManager) *Gateway {
	return &Gateway{sessions: sessions}
}

func (g *Gateway) withSession(ctx context.Context, sender AccountRef, fn func(*tg.Client) error) error {
	session, err := g.sessions.Acquire(ctx, sender.ID, sender.Phone, sender.Proxy)
	if err != nil {
		return err
	}
	defer g.sessions.Release(session)
	return fn(session.API())
}

func (g *Gateway) resolveUser(ctx context.Context, api *tg.Client, target Target) (tg.InputPeerClass, error) {
	if target.AccessHash != 0 {
		return &tg.InputPeerUser{UserID: target.TelegramID, AccessHash: target.AccessHash}, nil
	}
	if target.Username == "" {
		return nil, &Error{Kind: KindInvalidPeer, Message: "target has neither access hash nor username"}
	}

	resolved, err := api.ContactsResolveUsername(ctx, target.Username)
	if err != nil {
		return nil, classify(err)
	}
	for _, u := range resolved.Users {
		if user, ok := u.(*tg.User); ok {
			return &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}, nil
		}
	}
	return nil, &Error{Kind: KindUserNotFound, Message: target.Username}
}

func (g *Gateway) resolveChannel(ctx context.Context, api *tg.Client, username string) (*tg.Channel, error) {
	resolved, err := api.ContactsResolveUsername(ctx, username)
	if err != nil {
		return nil, classify(err)
	}
	for _, c := range resolved.Chats {
		if channel, ok := c.(*tg.Channel); ok {
			return channel, nil
		}
	}
	return nil, &Error{Kind: KindUserNotFound, Message: "channel " + username}
}

// SendMessage delivers one direct message, optionally preceded by a
// typing action held for typingDelay. Returns the sent message id.
func (g *Gateway) SendMessage(ctx context.Context, sender AccountRef, target Target, text, mediaURL string, typingDelay time.Duration) (int, error) {
	var messageID int
	err := g.withSession(ctx, sender, func(api *tg.Client) error {
		peer, err := g.resolveUser(ctx, api, target)
		if err != nil {
			return err
		}

		if typingDelay > 0 {
			simulateTyping(ctx, api, peer, typingDelay)
		}

		if mediaURL != "" {
			updates, err := api.MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
				Peer:     peer,
				Media:    &tg.InputMediaPhotoExternal{URL: mediaURL},
				Message:  text,
				RandomID: rand.Int63(),
			})
			if err != nil {
				return classify(err)
			}
			messageID = sentMessageID(updates)
			return nil
		}

		updates, err := api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
			Peer:     peer,
			Message:  text,
			RandomID: rand.Int63(),
		})
		if err != nil {
			return classify(err)
		}
		messageID = sentMessageID(updates)
		return nil
	})
	return messageID, err
}

// SendChannelMessage posts to a channel the account can write to.
func (g *Gateway) SendChannelMessage(ctx context.Context, sender AccountRef, channel, text, mediaURL string) (int, error) {
	var messageID int
	err := g.withSession(ctx, sender, func(api *tg.Client) error {
		ch, err := g.resolveChannel(ctx, api, channel)
		if err != nil {
			return err
		}
		peer := &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}

		if mediaURL != "" {
			updates, err := api.MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
				Peer:     peer,
				Media:    &tg.InputMediaPhotoExternal{URL: mediaURL},
				Message:  text,
				RandomID: rand.Int63(),
			})
			if err != nil {
				return classify(err)
			}
			messageID = sentMessageID(updates)
			return nil
		}

		updates, err := api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
			Peer:     peer,
			Message:  text,
			RandomID: rand.Int63(),
		})
		if err != nil {
			return classify(err)
		}
		messageID = sentMessageID(updates)
		return nil
	})
	return messageID, err
}

// UpdateProfile sets the account's display name and bio. About is
// capped by Telegram at 70 characters; the caller truncates.
func (g *Gateway) UpdateProfile(ctx context.Context, sender AccountRef, firstName, lastName, about string) error {
	return g.withSession(ctx, sender, func(api *tg.Client) error {
		req := &tg.AccountUpdateProfileRequest{}
		req.SetFirstName(firstName)
		req.SetLastName(lastName)
		req.SetAbout(about)

		if _, err := api.AccountUpdateProfile(ctx, req); err != nil {
			return classify(err)
		}
		return nil
	})
}

// JoinChannel subscribes the account to a public channel.
func (g *Gateway) JoinChannel(ctx context.Context, sender AccountRef, channel string) error {
	return g.withSession(ctx, sender, func(api *tg.Client) error {
		ch, err := g.resolveChannel(ctx, api, channel)
		if err != nil {
			return err
		}
		_, err = api.ChannelsJoinChannel(ctx, &tg.InputChannel{
			ChannelID:  ch.ID,
			AccessHash: ch.AccessHash,
		})
		if err != nil && !tgerr.Is(err, "USER_ALREADY_PARTICIPANT") {
			return classify(err)
		}
		return nil
	})
}

// GetChannelPosts fetches the latest posts of a channel.
func (g *Gateway) GetChannelPosts(ctx context.Context, sender AccountRef, channel string, limit int) ([]models.ChannelPost, error) {
	var posts []models.ChannelPost
	err := g.withSession(ctx, sender, func(api *tg.Client) error {
		ch, err := g.resolveChannel(ctx, api, channel)
		if err != nil {
			return err
		}

		history, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:  &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash},
			Limit: limit,
		})
		if err != nil {
			return classify(err)
		}

		channelMessages, ok := history.(*tg.MessagesChannelMessages)
		if !ok {
			return &Error{Kind: KindOther, Message: "unexpected history response"}
		}

		for _, m := range channelMessages.Messages {
			msg, ok := m.(*tg.Message)
			if !ok {
				continue
			}
			post := models.ChannelPost{
				ID:       msg.ID,
				Text:     msg.Message,
				Date:     time.Unix(int64(msg.Date), 0).UTC(),
				HasMedia: msg.Media != nil,
			}
			if views, ok := msg.GetViews(); ok {
				post.Views = views
			}
			if replies, ok := msg.GetReplies(); ok {
				post.Replies = replies.Replies
			}
			posts = append(posts, post)
		}
		return nil
	})
	return posts, err
}

// GetChannelParticipants pages through recent channel members.
func (g *Gateway) GetChannelParticipants(ctx context.Context, sender AccountRef, channel string, limit, offset int) ([]ParsedUser, int, error) {
	var users []ParsedUser
	var total int
	err := g.withSession(ctx, sender, func(api *tg.Client) error {
		ch, err := g.resolveChannel(ctx, api, channel)
		if err != nil {
			return err
		}

		resp, err := api.ChannelsGetParticipants(ctx, &tg.ChannelsGetParticipantsRequest{
			Channel: &tg.InputChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash},
			Filter:  &tg.ChannelParticipantsRecent{},
			Offset:  offset,
			Limit:   limit,
		})
		if err != nil {
			return classify(err)
		}

		participants, ok := resp.(*tg.ChannelsChannelParticipants)
		if !ok {
			return &Error{Kind: KindOther, Message: "participants unavailable"}
		}
		total = participants.Count

		for _, u := range participants.Users {
			user, ok := u.(*tg.User)
			if !ok || user.Deleted {
				continue
			}
			users = append(users, ParsedUser{
				TelegramID: user.ID,
				AccessHash: user.AccessHash,
				Username:   user.Username,
				FirstName:  user.FirstName,
				LastName:   user.LastName,
				IsPremium:  user.Premium,
				IsBot:      user.Bot,
			})
		}
		return nil
	})
	return users, total, err
}

// SendReaction puts an emoji reaction on a channel post.
func (g *Gateway) SendReaction(ctx context.Context, sender AccountRef, channel string, messageID int, emoji string) error {
	return g.withSession(ctx, sender, func(api *tg.Client) error {
		ch, err := g.resolveChannel(ctx, api, channel)
		if err != nil {
			return err
		}
		_, err = api.MessagesSendReaction(ctx, &tg.MessagesSendReactionRequest{
			Peer:     &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash},
			MsgID:    messageID,
			Reaction: []tg.ReactionClass{&tg.ReactionEmoji{Emoticon: emoji}},
		})
		if err != nil {
			return classify(err)
		}
		return nil
	})
}

// SendComment replies in the discussion group linked to a channel post.
func (g *Gateway) SendComment(ctx context.Context, sender AccountRef, channel string, messageID int, text string) (int, error) {
	var commentID int
	err := g.withSession(ctx, sender, func(api *tg.Client) error {
		ch, err := g.resolveChannel(ctx, api, channel)
		if err != nil {
			return err
		}

		discussion, err := api.MessagesGetDiscussionMessage(ctx, &tg.MessagesGetDiscussionMessageRequest{
			Peer:  &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash},
			MsgID: messageID,
		})
		if err != nil {
			return classify(err)
		}
		if len(discussion.Messages) == 0 {
			return &Error{Kind: KindWriteForbidden, Message: "post has no discussion"}
		}

		var group *tg.Channel
		for _, c := range discussion.Chats {
			if mg, ok := c.(*tg.Channel); ok && mg.Megagroup {
				group = mg
				break
			}
		}
		if group == nil {
			return &Error{Kind: KindWriteForbidden, Message: "discussion group missing"}
		}

		updates, err := api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
			Peer:     &tg.InputPeerChannel{ChannelID: group.ID, AccessHash: group.AccessHash},
			Message:  text,
			ReplyTo:  &tg.InputReplyToMessage{ReplyToMsgID: discussion.Messages[0].GetID()},
			RandomID: rand.Int63(),
		})
		if err != nil {
			return classify(err)
		}
		commentID = sentMessageID(updates)
		return nil
	})
	return commentID, err
}

// sentMessageID digs the new message id out of the updates response.
func sentMessageID(updates tg.UpdatesClass) int {
	switch u := updates.(type) {
	case *tg.UpdateShortSentMessage:
		return u.ID
	case *tg.Updates:
		for _, upd := range u.Updates {
			switch m := upd.(type) {
			case *tg.UpdateNewMessage:
				if msg, ok := m.Message.(*tg.Message); ok {
					return msg.ID
				}
			case *tg.UpdateNewChannelMessage:
				if msg, ok := m.Message.(*tg.Message); ok {
					return msg.ID
				}
			case *tg.UpdateMessageID:
				return m.ID
			}
		}
	}
	return 0
}
