package integration

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/gotd/td/tg"

	"telegram-voice-transcriber/internal/domain"
)

// fakeTelegramAPI — мок-реализация клиента Telegram для сборщика истории.
// Поля-функции позволяют переопределить поведение в конкретном тесте.
type fakeTelegramAPI struct {
	selfFunc    func(ctx context.Context) (*tg.User, error)
	resolveFunc func(ctx context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error)
	historyFunc func(ctx context.Context, req *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error)
	dialogsFunc func(ctx context.Context, req *tg.MessagesGetDialogsRequest) (tg.MessagesDialogsClass, error)
}

func (f *fakeTelegramAPI) Self(ctx context.Context) (*tg.User, error) {
	if f.selfFunc != nil {
		return f.selfFunc(ctx)
	}
	// По умолчанию возвращаем собственный аккаунт
	return &tg.User{ID: 999, FirstName: "Me"}, nil
}

func (f *fakeTelegramAPI) ContactsResolveUsername(ctx context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error) {
	if f.resolveFunc != nil {
		return f.resolveFunc(ctx, req)
	}
	// По умолчанию чат разрешается в личный диалог с Анной
	return &tg.ContactsResolvedPeer{
		Peer: &tg.PeerUser{UserID: 100},
		Users: []tg.UserClass{
			&tg.User{ID: 100, AccessHash: 7, FirstName: "Anna", LastName: "Beispiel"},
		},
	}, nil
}

func (f *fakeTelegramAPI) MessagesGetHistory(ctx context.Context, req *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error) {
	if f.historyFunc != nil {
		return f.historyFunc(ctx, req)
	}
	return &tg.MessagesMessages{}, nil
}

func (f *fakeTelegramAPI) MessagesGetDialogs(ctx context.Context, req *tg.MessagesGetDialogsRequest) (tg.MessagesDialogsClass, error) {
	if f.dialogsFunc != nil {
		return f.dialogsFunc(ctx, req)
	}
	return &tg.MessagesDialogs{}, nil
}

// singlePage оборачивает сообщения в однастраничный ответ истории.
// Страница короче лимита, поэтому сборщик остановится после неё.
func singlePage(messages ...tg.MessageClass) func(ctx context.Context, req *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error) {
	return func(_ context.Context, _ *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error) {
		return &tg.MessagesMessages{
			Messages: messages,
			Users: []tg.UserClass{
				&tg.User{ID: 100, AccessHash: 7, FirstName: "Anna", LastName: "Beispiel"},
			},
		}, nil
	}
}

func textMessage(id int, date time.Time, text string) *tg.Message {
	return &tg.Message{
		ID:      id,
		Date:    int(date.Unix()),
		Message: text,
		FromID:  &tg.PeerUser{UserID: 100},
	}
}

func voiceMessage(id int, date time.Time) *tg.Message {
	return &tg.Message{
		ID:     id,
		Date:   int(date.Unix()),
		FromID: &tg.PeerUser{UserID: 100},
		Media: &tg.MessageMediaDocument{
			Document: &tg.Document{
				ID:         int64(id) * 10,
				AccessHash: 42,
				MimeType:   "audio/ogg",
				Attributes: []tg.DocumentAttributeClass{
					&tg.DocumentAttributeAudio{Voice: true, Duration: 3},
				},
			},
		},
	}
}

// fakeFetcher записывает файл-заглушку вместо настоящей загрузки.
type fakeFetcher struct {
	calls atomic.Int64
}

func (f *fakeFetcher) Fetch(_ context.Context, _ *domain.MediaRef, destPath string) error {
	f.calls.Add(1)
	return os.WriteFile(destPath, []byte("OggS"), 0o644)
}
