package mtproto

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// Listener monitors a set of source channels through a user account and
// invokes the callback for every inbound message.
type listener struct {
	id       int
	hash     string
	phone    string
	session  string
	fromIDs  map[int64]struct{}
	log      func(v ...interface{})
	callback func(text string, fromID int64)
	code     func(context.Context) string
}

func New(id int, hash, phone, session string, fromIDs []int64, log func(v ...interface{}), callback func(text string, fromID int64), code func(context.Context) string) *listener {
	set := make(map[int64]struct{}, len(fromIDs))
	for _, id := range fromIDs {
		set[id] = struct{}{}
	}
	return &listener{
		id:       id,
		hash:     hash,
		phone:    phone,
		session:  session,
		fromIDs:  set,
		log:      log,
		callback: callback,
		code:     code,
	}
}

func (l *listener) Listen(ctx context.Context) error {
	codePrompt := func(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
		code := l.code(ctx)
		return strings.TrimSpace(code), nil
	}

	// This will setup and perform authentication flow.
	flow := auth.NewFlow(
		auth.CodeOnly(l.phone, auth.CodeAuthenticatorFunc(codePrompt)),
		auth.SendCodeOptions{},
	)

	dispatcher := tg.NewUpdateDispatcher()

	client := telegram.NewClient(l.id, l.hash, telegram.Options{
		SessionStorage: &session.FileStorage{
			Path: l.session,
		},
		UpdateHandler: dispatcher,
	})

	return client.Run(ctx, func(ctx context.Context) error {
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return err
		}
		onMessage := func(msg tg.MessageClass) error {
			m, ok := msg.(*tg.Message)
			if !ok || m.Out {
				// Outgoing message, not interesting.
				return nil
			}

			peerID, err := fromPeer(m.PeerID)
			if err != nil {
				log.Println(err)
				return nil
			}
			if _, ok := l.fromIDs[peerID]; !ok {
				return nil
			}

			l.callback(m.Message, peerID)
			return nil
		}
		dispatcher.OnNewMessage(func(ctx context.Context, entities tg.Entities, u *tg.UpdateNewMessage) error {
			return onMessage(u.Message)
		})
		// Broadcast channels arrive through a separate update type.
		dispatcher.OnNewChannelMessage(func(ctx context.Context, entities tg.Entities, u *tg.UpdateNewChannelMessage) error {
			return onMessage(u.Message)
		})
		l.log(fmt.Sprintf("mtproto: listening on %d channels", len(l.fromIDs)))
		<-ctx.Done()
		return nil
	})
}

func fromPeer(p tg.PeerClass) (id int64, err error) {
	switch v := p.(type) {
	case *tg.PeerUser:
		return v.UserID, nil
	case *tg.PeerChannel:
		return v.ChannelID, nil
	case *tg.PeerChat:
		return v.ChatID, nil
	}
	return 0, fmt.Errorf("invalid peer: %T", p)
}
