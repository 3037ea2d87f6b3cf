package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/tg"

	"telegram-voice-transcriber/internal/domain"
	"telegram-voice-transcriber/internal/ports"
)

// defaultPageSize — размер страницы истории.
const defaultPageSize = 100

// chatAPI — методы клиента, нужные сборщику истории.
type chatAPI interface {
	Self(ctx context.Context) (*tg.User, error)
	ContactsResolveUsername(ctx context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error)
	MessagesGetHistory(ctx context.Context, req *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error)
	MessagesGetDialogs(ctx context.Context, req *tg.MessagesGetDialogsRequest) (tg.MessagesDialogsClass, error)
}

// Collector собирает историю одного чата и реализует ports.MessageSource.
// История запрашивается постранично от новых к старым; FLOOD_WAIT
// пережидается на месте, так как конвейер последовательный.
type Collector struct {
	api      chatAPI
	pageSize int
	sleep    func(ctx context.Context, d time.Duration) error
	log      *slog.Logger
}

// CollectorOption определяет функциональную опцию для сборщика.
type CollectorOption func(*Collector)

// WithPageSize задаёт размер страницы истории.
func WithPageSize(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithCollectorLogger устанавливает логгер для сборщика.
func WithCollectorLogger(l *slog.Logger) CollectorOption {
	return func(c *Collector) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCollector создает сборщик поверх клиента Telegram.
func NewCollector(api chatAPI, opts ...CollectorOption) *Collector {
	c := &Collector{
		api:      api,
		pageSize: defaultPageSize,
		sleep:    sleepCtx,
		log:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Collect возвращает сообщения чата в окне [Since, Until), дедуплицированные
// по ID и отсортированные по возрастанию даты.
func (c *Collector) Collect(ctx context.Context, chatIdentifier string, opts ports.CollectOptions) (*domain.CollectionResult, error) {
	self, err := c.api.Self(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve own account: %w", err)
	}

	peer, title, err := c.resolvePeer(ctx, chatIdentifier)
	if err != nil {
		return nil, err
	}

	c.log.InfoContext(ctx, "Resolved chat", "title", title)

	messages, err := c.fetchWindow(ctx, peer, self.ID, opts)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Date.Before(messages[j].Date)
	})

	return &domain.CollectionResult{
		ChatTitle:  title,
		SelfUserID: self.ID,
		Messages:   messages,
	}, nil
}

// fetchWindow читает историю страницами от новых к старым, пока не выйдет
// за нижнюю границу окна.
func (c *Collector) fetchWindow(ctx context.Context, peer tg.InputPeerClass, selfID int64, opts ports.CollectOptions) ([]domain.MessageEnvelope, error) {
	var out []domain.MessageEnvelope
	seen := make(map[int]struct{})
	senders := make(map[int64]string)
	offsetID := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		history, err := c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offsetID,
			Limit:    c.pageSize,
		})
		if err != nil {
			if wait, ok := parseFloodWait(err); ok {
				c.log.WarnContext(ctx, "Flood wait during history fetch", "seconds", int(wait.Seconds()))
				if sleepErr := c.sleep(ctx, wait); sleepErr != nil {
					return nil, sleepErr
				}
				continue
			}
			return nil, fmt.Errorf("failed to get history: %w", err)
		}

		raw, users := splitHistory(history)
		if len(raw) == 0 {
			break
		}

		cacheSenders(senders, users)

		reachedSince := false
		lastID := offsetID
		for _, m := range raw {
			if id, ok := messageID(m); ok {
				lastID = id
			}

			msg, ok := m.(*tg.Message)
			if !ok {
				continue
			}

			date := time.Unix(int64(msg.Date), 0).UTC()
			if !date.Before(opts.Until) {
				continue
			}
			if date.Before(opts.Since) {
				// Страницы идут от новых к старым: всё дальнейшее ещё старше.
				reachedSince = true
				break
			}

			if _, dup := seen[msg.ID]; dup {
				continue
			}
			seen[msg.ID] = struct{}{}

			out = append(out, c.buildEnvelope(msg, selfID, peer, senders, date))
		}

		if reachedSince || len(raw) < c.pageSize {
			break
		}
		offsetID = lastID
	}

	return out, nil
}

// buildEnvelope классифицирует сообщение и подставляет отображаемое
// имя отправителя из накопленного кэша.
func (c *Collector) buildEnvelope(msg *tg.Message, selfID int64, peer tg.InputPeerClass, senders map[int64]string, date time.Time) domain.MessageEnvelope {
	senderID := resolveSenderID(msg, selfID, peer)

	display, ok := senders[senderID]
	if !ok {
		display = strconv.FormatInt(senderID, 10)
	}

	messageType, media := classify(msg)

	return domain.MessageEnvelope{
		ID:            msg.ID,
		SenderID:      senderID,
		SenderDisplay: display,
		Date:          date,
		Type:          messageType,
		Text:          msg.Message,
		Media:         media,
	}
}

// resolveSenderID определяет отправителя. В личных чатах FromID часто пуст:
// исходящее сообщение принадлежит аккаунту, входящее — собеседнику.
func resolveSenderID(msg *tg.Message, selfID int64, peer tg.InputPeerClass) int64 {
	if from, ok := msg.FromID.(*tg.PeerUser); ok {
		return from.UserID
	}
	if msg.Out {
		return selfID
	}
	if user, ok := peer.(*tg.InputPeerUser); ok {
		return user.UserID
	}
	return 0
}

// classify определяет тип сообщения по атрибутам документа.
// Приоритет: голосовое → кружок → аудио → текст → прочее.
func classify(msg *tg.Message) (domain.MessageType, *domain.MediaRef) {
	if msg.Media == nil {
		if msg.Message != "" {
			return domain.TypeText, nil
		}
		return domain.TypeOther, nil
	}

	md, ok := msg.Media.(*tg.MessageMediaDocument)
	if !ok {
		// Текст с превью ссылки и прочие не-документные медиа.
		if msg.Message != "" {
			return domain.TypeText, nil
		}
		return domain.TypeOther, nil
	}

	doc, ok := md.Document.(*tg.Document)
	if !ok {
		return domain.TypeOther, nil
	}

	var (
		isVoice  bool
		isAudio  bool
		isRound  bool
		fileName string
	)
	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeAudio:
			if a.Voice {
				isVoice = true
			} else {
				isAudio = true
			}
		case *tg.DocumentAttributeVideo:
			if a.RoundMessage {
				isRound = true
			}
		case *tg.DocumentAttributeFilename:
			fileName = a.FileName
		}
	}

	ref := &domain.MediaRef{
		DocumentID:    doc.ID,
		AccessHash:    doc.AccessHash,
		FileReference: doc.FileReference,
		FileName:      fileName,
		MimeType:      doc.MimeType,
		Size:          doc.Size,
	}

	switch {
	case isVoice:
		return domain.TypeVoice, ref
	case isRound:
		return domain.TypeVideoNote, ref
	case isAudio:
		return domain.TypeAudio, ref
	}

	if msg.Message != "" {
		return domain.TypeText, nil
	}
	return domain.TypeOther, nil
}

// resolvePeer находит чат по идентификатору: @username и t.me-ссылки
// резолвятся через API, остальное ищется по заголовку среди диалогов.
func (c *Collector) resolvePeer(ctx context.Context, identifier string) (tg.InputPeerClass, string, error) {
	if username, ok := extractUsername(identifier); ok {
		return c.resolveUsername(ctx, username)
	}

	dialogs, err := c.ListDialogs(ctx)
	if err != nil {
		return nil, "", err
	}

	for _, dialog := range dialogs {
		if strings.EqualFold(dialog.Title, identifier) {
			return dialog.InputPeer(), dialog.Title, nil
		}
	}

	return nil, "", fmt.Errorf("chat %q not found among recent dialogs", identifier)
}

func (c *Collector) resolveUsername(ctx context.Context, username string) (tg.InputPeerClass, string, error) {
	resolved, err := c.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve username %q: %w", username, err)
	}

	switch peer := resolved.Peer.(type) {
	case *tg.PeerUser:
		for _, u := range resolved.Users {
			if user, ok := u.(*tg.User); ok && user.ID == peer.UserID {
				return &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}, displayUser(user), nil
			}
		}
	case *tg.PeerChannel:
		for _, ch := range resolved.Chats {
			if channel, ok := ch.(*tg.Channel); ok && channel.ID == peer.ChannelID {
				return &tg.InputPeerChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash}, channel.Title, nil
			}
		}
	case *tg.PeerChat:
		for _, ch := range resolved.Chats {
			if chat, ok := ch.(*tg.Chat); ok && chat.ID == peer.ChatID {
				return &tg.InputPeerChat{ChatID: chat.ID}, chat.Title, nil
			}
		}
	}

	return nil, "", fmt.Errorf("resolved peer for %q not found in response", username)
}

// extractUsername вытаскивает username из @-формы или t.me-ссылки.
func extractUsername(identifier string) (string, bool) {
	if strings.HasPrefix(identifier, "@") {
		return strings.TrimPrefix(identifier, "@"), true
	}
	for _, prefix := range []string{"https://t.me/", "http://t.me/", "t.me/"} {
		if strings.HasPrefix(identifier, prefix) {
			return strings.TrimSuffix(strings.TrimPrefix(identifier, prefix), "/"), true
		}
	}
	return "", false
}

// splitHistory достаёт сообщения и пользователей из любого варианта ответа.
func splitHistory(history tg.MessagesMessagesClass) ([]tg.MessageClass, []tg.UserClass) {
	switch h := history.(type) {
	case *tg.MessagesMessages:
		return h.Messages, h.Users
	case *tg.MessagesMessagesSlice:
		return h.Messages, h.Users
	case *tg.MessagesChannelMessages:
		return h.Messages, h.Users
	}
	return nil, nil
}

// messageID возвращает ID любого варианта сообщения для пагинации.
func messageID(m tg.MessageClass) (int, bool) {
	switch msg := m.(type) {
	case *tg.Message:
		return msg.ID, true
	case *tg.MessageService:
		return msg.ID, true
	case *tg.MessageEmpty:
		return msg.ID, true
	}
	return 0, false
}

// cacheSenders пополняет кэш отображаемых имён из ответа API.
func cacheSenders(senders map[int64]string, users []tg.UserClass) {
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			senders[user.ID] = displayUser(user)
		}
	}
}

// displayUser — цепочка фолбэков отображаемого имени:
// имя и фамилия → username → числовой ID.
func displayUser(user *tg.User) string {
	name := strings.TrimSpace(strings.TrimSpace(user.FirstName) + " " + strings.TrimSpace(user.LastName))
	if name != "" {
		return name
	}
	if user.Username != "" {
		return user.Username
	}
	return strconv.FormatInt(user.ID, 10)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
