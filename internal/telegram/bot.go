// Package telegram связывает диалоговую логику с Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/akushch/rentbot/internal/dialog"
)

// lastMenu описывает последнее показанное сообщение-меню: его ID и
// клавиатуру, с которой оно было отправлено.
type lastMenu struct {
	messageID int
	keyboard  [][]string
}

// Bot обслуживает long polling и доставку ответов диалога.
type Bot struct {
	api    *tgbotapi.BotAPI
	dialog *dialog.Dialog
	logger *zap.Logger

	mu      sync.Mutex
	lastMsg map[int64]lastMenu // chatID -> последнее сообщение-меню
}

// New создаёт бота с указанным токеном.
func New(token string, d *dialog.Dialog, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:     api,
		dialog:  d,
		logger:  logger,
		lastMsg: make(map[int64]lastMenu),
	}, nil
}

// Run запускает long polling и обрабатывает входящие сообщения до отмены
// контекста. Каждое сообщение обрабатывается в отдельной горутине; порядок
// сообщений одного пользователя обеспечивает блокировка его сессии.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("telegram bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message == nil || upd.Message.From == nil {
				continue
			}
			go b.handle(ctx, upd.Message)
		}
	}
}

func (b *Bot) handle(ctx context.Context, msg *tgbotapi.Message) {
	in := dialog.Incoming{
		UserID:   msg.From.ID,
		ChatID:   msg.Chat.ID,
		Username: msg.From.UserName,
		Text:     msg.Text,
	}

	reply := b.dialog.Handle(ctx, in)

	if err := b.deliver(msg.Chat.ID, reply); err != nil {
		b.logger.Error("deliver reply", zap.Error(err), zap.Int64("chat_id", msg.Chat.ID))
	}
}

func (b *Bot) deliver(chatID int64, r dialog.Reply) error {
	if r.Menu {
		return b.sendMenu(chatID, r)
	}
	_, err := b.api.Send(b.newMessage(chatID, r))
	return err
}

// sendMenu заменяет предыдущее показанное меню. К редактированию сообщения
// reply-клавиатуру прикрепить нельзя, поэтому редактирование допустимо только
// когда клавиатура не изменилась и клиент продолжает показывать прежнюю.
// Смена клавиатуры или неудачное редактирование (сообщение устарело или
// удалено) приводят к отправке нового сообщения.
func (b *Bot) sendMenu(chatID int64, r dialog.Reply) error {
	if messageID, ok := b.editTarget(chatID, r.Keyboard); ok {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, r.Text)
		if _, err := b.api.Send(edit); err == nil {
			return nil
		}
	}

	sent, err := b.api.Send(b.newMessage(chatID, r))
	if err != nil {
		return err
	}

	b.rememberMenu(chatID, sent.MessageID, r.Keyboard)
	return nil
}

// editTarget возвращает ID сообщения для редактирования, если в чате уже
// показано меню с той же клавиатурой.
func (b *Bot) editTarget(chatID int64, keyboard [][]string) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	last, ok := b.lastMsg[chatID]
	if !ok || !sameKeyboard(last.keyboard, keyboard) {
		return 0, false
	}
	return last.messageID, true
}

func (b *Bot) rememberMenu(chatID int64, messageID int, keyboard [][]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastMsg[chatID] = lastMenu{messageID: messageID, keyboard: keyboard}
}

func sameKeyboard(a, b [][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

func (b *Bot) newMessage(chatID int64, r dialog.Reply) tgbotapi.MessageConfig {
	m := tgbotapi.NewMessage(chatID, r.Text)
	if r.HTML {
		m.ParseMode = tgbotapi.ModeHTML
	}
	if len(r.Keyboard) > 0 {
		m.ReplyMarkup = replyKeyboard(r.Keyboard)
	}
	return m
}

func replyKeyboard(rows [][]string) tgbotapi.ReplyKeyboardMarkup {
	kbRows := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		btns := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			btns = append(btns, tgbotapi.NewKeyboardButton(label))
		}
		kbRows = append(kbRows, btns)
	}

	kb := tgbotapi.NewReplyKeyboard(kbRows...)
	kb.ResizeKeyboard = true
	return kb
}
