package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/harmony/internal/config"
)

type recordingSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (r *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		r.sent = append(r.sent, msg)
	}
	return tgbotapi.Message{}, r.err
}

func TestTelegramNotifier(t *testing.T) {
	Convey("Given a telegram notifier", t, func() {
		rec := &recordingSender{}
		n := &TelegramNotifier{bot: rec, chatID: 42}
		ctx := context.Background()

		Convey("When notifying", func() {
			err := n.Notify(ctx, "✅ Backup Nightly completed")

			Convey("It should send one message to the chat", func() {
				So(err, ShouldBeNil)
				So(rec.sent, ShouldHaveLength, 1)
				So(rec.sent[0].ChatID, ShouldEqual, int64(42))
				So(rec.sent[0].Text, ShouldEqual, "✅ Backup Nightly completed")
			})
		})

		Convey("When the message is too long", func() {
			err := n.Notify(ctx, strings.Repeat("x", 5000))

			Convey("It should be truncated to the API limit", func() {
				So(err, ShouldBeNil)
				So(len([]rune(rec.sent[0].Text)), ShouldEqual, telegramMessageLimit)
			})
		})

		Convey("When the API fails", func() {
			rec.err = errors.New("unauthorized")
			err := n.Notify(ctx, "hello")

			Convey("It should wrap the error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to send telegram notification")
			})
		})

		Convey("When the context is done", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			So(n.Notify(cctx, "hello"), ShouldEqual, context.Canceled)
			So(rec.sent, ShouldBeEmpty)
		})
	})

	Convey("Given an invalid chat id", t, func() {
		_, err := NewTelegram(&config.TelegramConfig{BotToken: "x", ChatID: "not-a-number"})
		So(err, ShouldNotBeNil)
	})
}
