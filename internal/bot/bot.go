// Package bot is the Telegram inbound bridge: messages go through the
// same dispatcher as the HTTP surface and the routing result is echoed
// back to the chat.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"agent-bridge/internal/dispatch"
	"agent-bridge/internal/models"
	"agent-bridge/internal/storage"
)

const handleTimeout = 10 * time.Second

type Bot struct {
	api        *tgbotapi.BotAPI
	dispatcher *dispatch.Dispatcher
	store      storage.Storage
	logger     *zap.Logger
}

func New(token string, dispatcher *dispatch.Dispatcher, store storage.Storage, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:        api,
		dispatcher: dispatcher,
		store:      store,
		logger:     logger,
	}, nil
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}
		go b.handleMessage(update.Message)
	}
	return nil
}

func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	text := message.Text
	if message.Caption != "" {
		text = message.Caption
	}

	result, err := b.dispatcher.Execute(ctx, text)
	if err != nil {
		b.replyToFailure(message.Chat.ID, err)
		return
	}

	b.sendMessage(message.Chat.ID, formatResult(result))
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "notes":
		b.handleNotes(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "不明なコマンドです。/help を参照してください。")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `予定・メモの振り分けボットです 📝
「明日10時に商談30分」→ カレンダー登録
「メモ：顧客Aに折返し」→ シートに追記

/help でコマンド一覧を表示します。`
	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `使えるコマンド:
/start - ボットの説明
/help - このヘルプ
/notes - 最近のメモ

テキストを送ると自動で 予定 / メモ に振り分けます。`
	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleNotes(ctx context.Context, message *tgbotapi.Message) {
	notes, err := b.store.ListNotes(ctx, 5)
	if err != nil {
		b.logger.Error("failed to list notes",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
		b.sendMessage(message.Chat.ID, "メモの取得に失敗しました。時間をおいて再度お試しください。")
		return
	}

	if len(notes) == 0 {
		b.sendMessage(message.Chat.ID, "メモはまだありません。")
		return
	}

	var sb strings.Builder
	sb.WriteString("最近のメモ:\n")
	for _, note := range notes {
		sb.WriteString(fmt.Sprintf("・%s (%s)\n", note.Body, note.CreatedAt.In(models.JST).Format(models.MemoTimestampLayout)))
	}
	b.sendMessage(message.Chat.ID, sb.String())
}

func (b *Bot) replyToFailure(chatID int64, err error) {
	if errors.Is(err, dispatch.ErrUnknownIntent) {
		b.sendMessage(chatID, "意図が分かりませんでした。「メモ：…」または「明日10時に…」の形で送ってください。")
		return
	}
	if ue, ok := dispatch.AsUpstreamError(err); ok {
		b.sendMessage(chatID, "⚠️ "+ue.Message)
		return
	}
	b.logger.Error("dispatch failed", zap.Error(err), zap.Int64("chat_id", chatID))
	b.sendMessage(chatID, "⚠️ 処理に失敗しました。時間をおいて再度お試しください。")
}

func formatResult(result *dispatch.ExecuteResult) string {
	switch result.Tool {
	case "calendar":
		if ev, ok := result.Result.(*models.EventResult); ok {
			if ev.DryRun {
				return "📅 予定を登録しました（dry-run）"
			}
			return "📅 予定を登録しました: " + ev.Link
		}
		return "📅 予定を登録しました"
	case "sheets":
		if ap, ok := result.Result.(*models.AppendResult); ok && ap.DryRun {
			return "📝 メモを追記しました（dry-run）"
		}
		return "📝 メモを追記しました"
	default:
		return "処理しました"
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
