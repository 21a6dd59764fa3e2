package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/stratosbot/stratos"
)

func main() {
	// Create signal based context
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, os.Kill)
	go func() {
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
			cancel()
		}
		signal.Stop(c)
	}()

	// Launch command
	cmd := newCommand()
	if err := cmd.ParseAndRun(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func newCommand() *ffcli.Command {
	fs := flag.NewFlagSet("stratos", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "stratos [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newRunCommand(),
		},
	}
}

func newRunCommand() *ffcli.Command {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	db := fs.String("db", "stratos.db", "audit database path")
	token := fs.String("telegram-token", "", "telegram bot token")
	controlChat := fs.Int64("telegram-control-chat", 0, "telegram chat id for logs and commands")
	destChat := fs.Int64("telegram-dest-chat", 0, "telegram chat id to relay signals to")
	sourceChats := fs.String("source-chats", "", "comma separated channel ids to monitor")
	branding := fs.String("branding", "Stratos Signal", "branding text for relayed messages")
	initialStop := fs.Float64("initial-stop-pct", 0.30, "initial stop-loss distance as a fraction")
	trailing := fs.Float64("trail-pct", 0.05, "trailing stop distance as a fraction")
	pollInterval := fs.Duration("poll-interval", 15*time.Second, "price poll interval")
	pollJitter := fs.Duration("poll-jitter", 2*time.Second, "random extra wait per poll")
	fetchTimeout := fs.Duration("fetch-timeout", 10*time.Second, "price fetch timeout")
	dedupWindow := fs.Duration("dedup-window", 6*time.Hour, "signal dedup retention window")
	failureThreshold := fs.Int("failure-threshold", 5, "consecutive fetch failures before a position goes stale")
	grace := fs.Duration("shutdown-grace", 5*time.Second, "max wait for polling tasks on shutdown")
	priceSource := fs.String("price-source", "simulated", "price source: binance, dexscreener or simulated")
	quote := fs.String("quote", "USDT", "quote currency for the binance price source")
	priceAPIURL := fs.String("price-api-url", "", "base url override for the dexscreener price source")
	appID := fs.Int("telegram-app-id", 0, "telegram api id")
	appHash := fs.String("telegram-app-hash", "", "telegram api hash")
	phone := fs.String("telegram-phone", "", "telegram account phone number")
	session := fs.String("telegram-session", "stratos.session", "telegram session file path")

	return &ffcli.Command{
		Name:       "run",
		ShortUsage: "stratos run [flags]",
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ff.PlainParser),
			ff.WithEnvVarPrefix("STRATOS"),
		},
		ShortHelp: "run the stratos relay bot",
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			channels, err := parseChannels(*sourceChats)
			if err != nil {
				return err
			}
			bot, err := stratos.New(stratos.Config{
				DBPath:            *db,
				TelegramToken:     *token,
				ControlChatID:     *controlChat,
				DestinationChatID: *destChat,
				SourceChannelIDs:  channels,
				Branding:          *branding,
				InitialStopPct:    *initialStop,
				TrailingPct:       *trailing,
				PollInterval:      *pollInterval,
				PollJitter:        *pollJitter,
				FetchTimeout:      *fetchTimeout,
				DedupWindow:       *dedupWindow,
				FailureThreshold:  *failureThreshold,
				ShutdownGrace:     *grace,
				PriceSource:       *priceSource,
				QuoteCurrency:     *quote,
				PriceAPIURL:       *priceAPIURL,
				TelegramAppID:     *appID,
				TelegramAppHash:   *appHash,
				Phone:             *phone,
				SessionPath:       *session,
				CodePrompt:        codePrompt,
			})
			if err != nil {
				return err
			}
			return bot.Run(ctx)
		},
	}
}

func parseChannels(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid channel id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func codePrompt(ctx context.Context) string {
	fmt.Print("Enter telegram login code: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}
