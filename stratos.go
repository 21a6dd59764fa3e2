package stratos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stratosbot/stratos/pkg/audit"
	auditbolt "github.com/stratosbot/stratos/pkg/audit/bolt"
	"github.com/stratosbot/stratos/pkg/dedup"
	"github.com/stratosbot/stratos/pkg/mtproto"
	"github.com/stratosbot/stratos/pkg/price"
	"github.com/stratosbot/stratos/pkg/price/binance"
	"github.com/stratosbot/stratos/pkg/price/dexscreener"
	"github.com/stratosbot/stratos/pkg/price/simulated"
	"github.com/stratosbot/stratos/pkg/signal"
	"github.com/stratosbot/stratos/pkg/telegram"
	"github.com/stratosbot/stratos/pkg/track"
)

var version = "v260901a"

// Outcome classifies how an inbound message was handled.
type Outcome string

const (
	Relayed          Outcome = "relayed"
	DroppedDuplicate Outcome = "dropped_duplicate"
	DroppedNoToken   Outcome = "dropped_no_token"
	CreationFailed   Outcome = "creation_failed"
)

type Config struct {
	DBPath            string
	TelegramToken     string
	ControlChatID     int64
	DestinationChatID int64
	SourceChannelIDs  []int64
	Branding          string
	InitialStopPct    float64
	TrailingPct       float64
	PollInterval      time.Duration
	PollJitter        time.Duration
	FetchTimeout      time.Duration
	DedupWindow       time.Duration
	FailureThreshold  int
	ShutdownGrace     time.Duration
	PriceSource       string
	QuoteCurrency     string
	PriceAPIURL       string
	TelegramAppID     int
	TelegramAppHash   string
	Phone             string
	SessionPath       string
	CodePrompt        func(context.Context) string
}

// Validate rejects configurations that would misbehave at runtime. Errors
// here are fatal at startup.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("config: missing db path")
	}
	if c.TelegramToken == "" {
		return errors.New("config: missing telegram token")
	}
	if c.ControlChatID == 0 {
		return errors.New("config: missing telegram control chat")
	}
	if c.DestinationChatID == 0 {
		return errors.New("config: missing destination chat")
	}
	if len(c.SourceChannelIDs) == 0 {
		return errors.New("config: missing source channels")
	}
	if c.InitialStopPct <= 0 || c.InitialStopPct >= 1 {
		return fmt.Errorf("config: initial stop pct must be in (0,1): %v", c.InitialStopPct)
	}
	if c.TrailingPct <= 0 || c.TrailingPct >= 1 {
		return fmt.Errorf("config: trailing pct must be in (0,1): %v", c.TrailingPct)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll interval must be positive: %v", c.PollInterval)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("config: fetch timeout must be positive: %v", c.FetchTimeout)
	}
	if c.DedupWindow <= 0 {
		return fmt.Errorf("config: dedup window must be positive: %v", c.DedupWindow)
	}
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("config: failure threshold must be positive: %d", c.FailureThreshold)
	}
	if c.PriceSource == "binance" && c.QuoteCurrency == "" {
		return errors.New("config: missing quote currency for binance price source")
	}
	if c.TelegramAppID == 0 || c.TelegramAppHash == "" || c.Phone == "" {
		return errors.New("config: missing telegram app credentials")
	}
	return nil
}

// Bot wires the intake pipeline: channel listener, dedup index, tracking
// supervisor, audit log and outbound relay.
type Bot struct {
	cfg        Config
	ctx        context.Context
	cancel     context.CancelFunc
	run        func(context.Context) error
	listen     func(context.Context) error
	log        func(v ...interface{})
	send       func(chatID int64, msg string)
	extractor  signal.Extractor
	index      *dedup.Index
	supervisor *track.Supervisor
	source     price.Source
	store      audit.Store
}

func New(cfg Config) (*Bot, error) {
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tgbot, err := telegram.New(cfg.TelegramToken, cfg.ControlChatID)
	if err != nil {
		return nil, fmt.Errorf("stratos: couldn't create telegram bot: %w", err)
	}
	log := tgbot.Print

	var source price.Source
	switch cfg.PriceSource {
	case "binance":
		source = binance.New(cfg.QuoteCurrency)
	case "dexscreener":
		source = dexscreener.New(cfg.PriceAPIURL)
	case "simulated":
		source = simulated.New(decimal.NewFromFloat(0.0001), time.Now().UnixNano())
	default:
		return nil, fmt.Errorf("stratos: unknown price source %q", cfg.PriceSource)
	}

	extractor, err := signal.NewExtractor()
	if err != nil {
		return nil, fmt.Errorf("stratos: couldn't create extractor: %w", err)
	}
	store, err := auditbolt.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("stratos: couldn't create db: %w", err)
	}

	b := &Bot{
		cfg:       cfg,
		ctx:       context.TODO(),
		run:       tgbot.Run,
		log:       log,
		send:      tgbot.SendTo,
		extractor: extractor,
		index:     dedup.New(cfg.DedupWindow),
		source:    source,
		store:     store,
	}
	b.supervisor = track.NewSupervisor(source, track.Config{
		InitialStopPct:   cfg.InitialStopPct,
		TrailingPct:      cfg.TrailingPct,
		PollInterval:     cfg.PollInterval,
		Jitter:           cfg.PollJitter,
		FetchTimeout:     cfg.FetchTimeout,
		FailureThreshold: cfg.FailureThreshold,
	}, log, b.event)

	listener := mtproto.New(cfg.TelegramAppID, cfg.TelegramAppHash, cfg.Phone, cfg.SessionPath,
		cfg.SourceChannelIDs, log, func(text string, fromID int64) {
			b.Handle(text, fromID, time.Now().UTC())
		}, cfg.CodePrompt)
	b.listen = listener.Listen

	tgbot.HandleCommand("status", func(_ string) {
		b.status()
	})
	tgbot.HandleCommand("cancel", func(msg string) {
		id := strings.TrimSpace(msg)
		if id == "" {
			b.log("usage: /cancel <signal id>")
			return
		}
		if !b.cancelPosition(id) {
			b.log(fmt.Sprintf("position %s not found", id))
			return
		}
		b.log(fmt.Sprintf("cancelling %s", id))
	})
	tgbot.HandleCommand("shutdown", func(_ string) {
		b.log("shutting down")
		b.shutdown()
	})
	return b, nil
}

func (b *Bot) Run(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.log(fmt.Sprintf("🤖 stratos relay running\n- version: %s\n- price source: %s\n- channels: %d", version, b.cfg.PriceSource, len(b.cfg.SourceChannelIDs)))
	defer b.log("🛑 stratos relay stopped")

	errc := make(chan error, 2)
	go func() { errc <- b.listen(b.ctx) }()
	go func() { errc <- b.run(b.ctx) }()
	err := <-errc
	b.cancel()
	b.supervisor.Close(b.cfg.ShutdownGrace)
	return err
}

// Handle runs the intake pipeline for one inbound message: extract a token,
// consult the dedup index and, if the signal is novel, begin tracking and
// relay it to the destination channel.
func (b *Bot) Handle(rawText string, sourceChannelID int64, now time.Time) Outcome {
	tokenID, ok := b.extractor.Extract(rawText)
	if !ok {
		return DroppedNoToken
	}
	sig := signal.New(tokenID, sourceChannelID, now, rawText)
	if !b.index.Admit(sig.Fingerprint, now) {
		b.log(fmt.Sprintf("stratos: duplicate signal %s", sig.Fingerprint))
		return DroppedDuplicate
	}

	// The entry price is fetched outside any lock; slow feeds must not block
	// other signals.
	fctx, cancel := context.WithTimeout(b.ctx, b.cfg.FetchTimeout)
	entry, err := b.source.Price(fctx, tokenID)
	cancel()
	if err != nil || !entry.IsPositive() {
		if err == nil {
			err = fmt.Errorf("non-positive price %s", entry)
		}
		// The admission is kept on purpose: a signal that couldn't be
		// tracked still counts as seen, so repeated copies of the same
		// message don't hammer the price source.
		b.log(fmt.Errorf("stratos: couldn't fetch entry price for %s: %w", tokenID, err))
		return CreationFailed
	}

	if _, err := b.supervisor.Start(b.ctx, sig, entry); err != nil {
		// The dedup index should have filtered this already.
		b.log(fmt.Errorf("stratos: %w", err))
		return DroppedDuplicate
	}
	if err := b.store.AppendSignal(&audit.SignalRecord{
		Fingerprint:     sig.Fingerprint,
		TokenID:         sig.TokenID,
		SourceChannelID: sig.SourceChannelID,
		EntryPrice:      entry,
		AdmittedAt:      now,
	}); err != nil {
		b.log(fmt.Errorf("stratos: couldn't append audit record: %w", err))
	}
	b.send(b.cfg.DestinationChatID, b.formatRelay(sig, entry))
	return Relayed
}

func (b *Bot) event(e track.Event) {
	switch e.Type {
	case track.EventStopRaised:
		b.send(b.cfg.DestinationChatID, b.formatStopRaised(e))
	case track.EventTriggered:
		b.appendEvent(e)
		b.send(b.cfg.DestinationChatID, b.formatTriggered(e))
	case track.EventStale:
		b.appendEvent(e)
		b.log(fmt.Sprintf("⚠️ tracking lost for %s after %d failed price checks", e.Position.TokenID, e.Position.ConsecutiveFailures))
	case track.EventCancelled:
		// Audit only; cancellation sends no exit notice.
		b.appendEvent(e)
	}
}

func (b *Bot) appendEvent(e track.Event) {
	if err := b.store.AppendEvent(&audit.EventRecord{
		SignalID:      e.Position.SignalID,
		TokenID:       e.Position.TokenID,
		Status:        string(e.Position.Status),
		EntryPrice:    e.Position.EntryPrice,
		ExitPrice:     e.Position.ExitPrice,
		StopPrice:     e.Position.StopPrice,
		HighWaterMark: e.Position.HighWaterMark,
		At:            e.Position.EndTime,
		Elapsed:       e.Position.Elapsed(),
	}); err != nil {
		b.log(fmt.Errorf("stratos: couldn't append audit record: %w", err))
	}
}

func (b *Bot) status() {
	active := b.supervisor.ListActive()
	stale := b.supervisor.ListStale()
	if len(active) == 0 && len(stale) == 0 {
		b.log("no positions tracked")
		return
	}
	sb := &strings.Builder{}
	for _, p := range active {
		perc := p.LastPrice.Div(p.EntryPrice).Sub(one).Mul(hundred)
		emoji := "📈"
		if perc.LessThan(decimal.Zero) {
			emoji = "📉"
		}
		fmt.Fprintf(sb, "%s %s %s%% stop %s %s\n", emoji, shorten(p.TokenID), perc.StringFixed(2), p.StopPrice, p.Elapsed().Round(time.Second))
	}
	for _, p := range stale {
		fmt.Fprintf(sb, "⚠️ %s stale after %d failed price checks\n", shorten(p.TokenID), p.ConsecutiveFailures)
	}
	b.log(strings.TrimRight(sb.String(), "\n"))
}

// cancelPosition accepts either a signal id or a bare token id.
func (b *Bot) cancelPosition(id string) bool {
	if b.supervisor.Cancel(id) {
		return true
	}
	for _, p := range b.supervisor.ListActive() {
		if p.TokenID == id {
			return b.supervisor.Cancel(p.SignalID)
		}
	}
	return false
}

func (b *Bot) shutdown() {
	b.cancel()
}
