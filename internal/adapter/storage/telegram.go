package storage

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/semmidev/stowaway/internal/config"
	"github.com/semmidev/stowaway/internal/domain"
)

// Bot API refuses documents above this size.
const telegramMaxUploadMB = 50

type TelegramStorage struct {
	bot      *tgbotapi.BotAPI
	chatID   int64
	sendFile bool
}

func NewTelegram(cfg *config.UploadTarget) (*TelegramStorage, error) {
	bot, chatID, err := newBot(cfg.BotToken, cfg.ChatID)
	if err != nil {
		return nil, err
	}

	return &TelegramStorage{
		bot:      bot,
		chatID:   chatID,
		sendFile: cfg.SendFile,
	}, nil
}

func newBot(token, chat string) (*tgbotapi.BotAPI, int64, error) {
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid telegram chat id %q: %w", chat, err)
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return bot, chatID, nil
}

func (t *TelegramStorage) Upload(ctx context.Context, localPath string, remoteName string) error {
	fileInfo, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	fileSizeMB := float64(fileInfo.Size()) / (1024 * 1024)

	if !t.sendFile || fileSizeMB > telegramMaxUploadMB {
		message := fmt.Sprintf(
			"✅ Backup fetched\n\n"+
				"📁 File: %s\n"+
				"📊 Size: %.2f MB\n"+
				"🕐 Time: %s",
			remoteName,
			fileSizeMB,
			fileInfo.ModTime().Format("2006-01-02 15:04:05"),
		)

		if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, message)); err != nil {
			return fmt.Errorf("failed to send telegram notification: %w", err)
		}
		return nil
	}

	file := tgbotapi.NewDocument(t.chatID, tgbotapi.FilePath(localPath))
	file.Caption = fmt.Sprintf("📦 Backup: %s (%.2f MB)", remoteName, fileSizeMB)

	if _, err := t.bot.Send(file); err != nil {
		return fmt.Errorf("failed to send telegram file: %w", err)
	}
	return nil
}

// Telegram cannot list or delete what was sent, so retention is a no-op.

func (t *TelegramStorage) List(ctx context.Context) ([]string, error) {
	return []string{}, nil
}

func (t *TelegramStorage) Delete(ctx context.Context, remoteName string) error {
	return nil
}

func (t *TelegramStorage) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	return []string{}, nil
}

// TelegramNotifier posts a summary of every run to a chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	bot, chatID, err := newBot(cfg.BotToken, cfg.ChatID)
	if err != nil {
		return nil, err
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, report *domain.RunReport) error {
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, FormatReport(report))); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}

// FormatReport renders a run summary as plain text.
func FormatReport(report *domain.RunReport) string {
	var b strings.Builder

	if report.Succeeded() {
		fmt.Fprintf(&b, "✅ Backup of %s completed\n\n", report.Host)
	} else {
		fmt.Fprintf(&b, "❌ Backup of %s failed at %s\n\n", report.Host, report.FailedStep)
	}

	if report.Backup.Filename != "" {
		fmt.Fprintf(&b, "📁 Dump: %s\n", report.Backup.Filename)
	}
	if report.Media.LocalPath != "" {
		fmt.Fprintf(&b, "🖼 Media: %s\n", report.Media.LocalPath)
	}
	fmt.Fprintf(&b, "⏱ Duration: %s\n", report.Duration().Round(time.Second))
	fmt.Fprintf(&b, "🆔 Run: %s", report.RunID)

	if report.Err != nil {
		fmt.Fprintf(&b, "\n\n⚠️ %v", report.Err)
	}

	return b.String()
}
