package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/qiweiii/github-custom-notifier/internal/model"
)

// The Bot doubles as the poller's Notifier: badge counts are cached for
// /unread and notification items become Telegram messages.

// RenderBadgeCount records the unread count. Logged only on change to
// keep steady-state cycles quiet.
func (b *Bot) RenderBadgeCount(n int) {
	b.countMu.Lock()
	changed := n != b.lastCount
	b.lastCount = n
	b.countMu.Unlock()

	if changed {
		b.log.Info("unread count", "count", n)
	}
}

// UnreadCount returns the last rendered unread count, or -1 before the
// first poll cycle.
func (b *Bot) UnreadCount() int {
	b.countMu.Lock()
	defer b.countMu.Unlock()
	return b.lastCount
}

// ShowNotification delivers one notification item to the configured chat
// with a mark-read button. The message is silent unless the sound option
// is on, mirroring the desktop sound toggle.
func (b *Bot) ShowNotification(item model.NotifyItem) {
	msg := tgbotapi.NewMessage(b.cfg.NotifyChatID, FormatNotifyItem(item))
	msg.DisableWebPagePreview = true
	msg.DisableNotification = !b.cfg.NotifSound
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Mark read", "read:"+item.ID),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send notification", "item_id", item.ID, "error", err)
	}
}

// PlaySound is a no-op: Telegram message delivery already carries the
// client-side sound when DisableNotification is off.
func (b *Bot) PlaySound() {}
