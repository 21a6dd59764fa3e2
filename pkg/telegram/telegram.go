package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"
)

// Bot wraps the outbound bot API side: operator logging and commands on the
// control chat, and fire-and-forget relays to the destination channel.
type Bot struct {
	bot     *tb.Bot
	control *tb.Chat
	boot    time.Time
	queue   chan outbound
}

type outbound struct {
	chatID int64
	text   string
}

func New(token string, controlChatID int64) (*Bot, error) {
	b, err := tb.NewBot(tb.Settings{
		Token:  token,
		Poller: &tb.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: couldn't create bot: %w", err)
	}
	control, err := b.ChatByID(strconv.FormatInt(controlChatID, 10))
	if err != nil {
		return nil, fmt.Errorf("telegram: couldn't resolve chat %d: %w", controlChatID, err)
	}
	return &Bot{
		bot:     b,
		control: control,
		boot:    time.Now(),
		queue:   make(chan outbound, 100),
	}, nil
}

func (b *Bot) HandleCommand(command string, handler func(string)) {
	b.bot.Handle(fmt.Sprintf("/%s", command), func(m *tb.Message) {
		if m.Chat.ID != b.control.ID {
			return
		}
		if m.Time().Before(b.boot) {
			return
		}
		handler(m.Payload)
	})
}

func (b *Bot) Run(ctx context.Context) error {
	go b.bot.Start()
	defer b.bot.Stop()
	defer b.bot.Send(b.control, "🛑 bot stopping")
	var msg outbound
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg = <-b.queue:
		}
		opts := tb.ModeDefault
		if strings.Contains(msg.text, "`") {
			opts = tb.ModeMarkdown
		}
		if _, err := b.bot.Send(&tb.Chat{ID: msg.chatID}, msg.text, opts); err != nil {
			log.Println(err)
		}
		select {
		case <-ctx.Done():
			return nil
		// Wait to avoid rate limit errors
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Print logs to stdout and mirrors the message to the control chat.
func (b *Bot) Print(v ...interface{}) {
	msg := fmt.Sprintln(v...)
	log.Print(msg)
	b.queue <- outbound{chatID: b.control.ID, text: msg}
}

// SendTo queues a message for an arbitrary chat. Delivery failures are
// logged, not retried.
func (b *Bot) SendTo(chatID int64, msg string) {
	b.queue <- outbound{chatID: chatID, text: msg}
}
