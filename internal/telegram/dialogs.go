package telegram

import (
	"context"
	"fmt"

	"github.com/gotd/td/tg"
)

// dialogPageSize — число диалогов, запрашиваемых для листинга и поиска чата.
const dialogPageSize = 100

// Dialog — один диалог аккаунта в порядке, выдаваемом Telegram.
type Dialog struct {
	ID         int64  `json:"id"`
	AccessHash int64  `json:"-"`
	Title      string `json:"title"`
	Kind       string `json:"kind"` // user, chat или channel
}

// InputPeer возвращает адресуемый peer для запросов истории.
func (d Dialog) InputPeer() tg.InputPeerClass {
	switch d.Kind {
	case "user":
		return &tg.InputPeerUser{UserID: d.ID, AccessHash: d.AccessHash}
	case "channel":
		return &tg.InputPeerChannel{ChannelID: d.ID, AccessHash: d.AccessHash}
	default:
		return &tg.InputPeerChat{ChatID: d.ID}
	}
}

// ListDialogs возвращает недавние диалоги аккаунта: по ним выбирается
// целевой чат, когда идентификатор задан заголовком, а не username.
func (c *Collector) ListDialogs(ctx context.Context) ([]Dialog, error) {
	result, err := c.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      dialogPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get dialogs: %w", err)
	}

	var (
		rawDialogs []tg.DialogClass
		chats      []tg.ChatClass
		users      []tg.UserClass
	)
	switch d := result.(type) {
	case *tg.MessagesDialogs:
		rawDialogs, chats, users = d.Dialogs, d.Chats, d.Users
	case *tg.MessagesDialogsSlice:
		rawDialogs, chats, users = d.Dialogs, d.Chats, d.Users
	default:
		return nil, fmt.Errorf("unexpected dialogs response type %T", result)
	}

	userIndex := make(map[int64]*tg.User)
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			userIndex[user.ID] = user
		}
	}

	chatIndex := make(map[int64]*tg.Chat)
	channelIndex := make(map[int64]*tg.Channel)
	for _, ch := range chats {
		switch chat := ch.(type) {
		case *tg.Chat:
			chatIndex[chat.ID] = chat
		case *tg.Channel:
			channelIndex[chat.ID] = chat
		}
	}

	// Порядок диалогов сохраняется, как его выдал Telegram.
	dialogs := make([]Dialog, 0, len(rawDialogs))
	for _, raw := range rawDialogs {
		dialog, ok := raw.(*tg.Dialog)
		if !ok {
			continue
		}

		switch peer := dialog.Peer.(type) {
		case *tg.PeerUser:
			if user, ok := userIndex[peer.UserID]; ok {
				dialogs = append(dialogs, Dialog{
					ID:         user.ID,
					AccessHash: user.AccessHash,
					Title:      displayUser(user),
					Kind:       "user",
				})
			}
		case *tg.PeerChat:
			if chat, ok := chatIndex[peer.ChatID]; ok {
				dialogs = append(dialogs, Dialog{ID: chat.ID, Title: chat.Title, Kind: "chat"})
			}
		case *tg.PeerChannel:
			if channel, ok := channelIndex[peer.ChannelID]; ok {
				dialogs = append(dialogs, Dialog{
					ID:         channel.ID,
					AccessHash: channel.AccessHash,
					Title:      channel.Title,
					Kind:       "channel",
				})
			}
		}
	}

	return dialogs, nil
}
