// ====================================
// File: cmd/trader/main.go
// ====================================
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/app"
	"github.com/rovshanmuradov/memeswap/internal/config"
	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/logger"
	"github.com/rovshanmuradov/memeswap/internal/quote"
	"github.com/rovshanmuradov/memeswap/internal/swap"
	"github.com/rovshanmuradov/memeswap/internal/wallet"
)

type options struct {
	configPath string
	walletName string
	direction  string
	token      string
	payMint    string
	amount     string
	slippage   int
	yes        bool
	debug      bool
}

func bindFlags(fs *flag.FlagSet, opts *options) {
	fs.StringVar(&opts.configPath, "config", "", "path to config file")
	fs.StringVar(&opts.walletName, "wallet", "", "wallet name from wallets file")
	fs.StringVar(&opts.direction, "side", "buy", "buy or sell")
	fs.StringVar(&opts.token, "token", "", "token mint")
	fs.StringVar(&opts.payMint, "pay", domain.NativeMint, "mint to pay with (buy) or receive (sell)")
	fs.StringVar(&opts.amount, "amount", "", "human amount of the input asset")
	fs.IntVar(&opts.slippage, "slippage", 0, "slippage in bps, 0 = configured default")
	fs.BoolVar(&opts.yes, "yes", false, "execute without confirmation")
	fs.BoolVar(&opts.debug, "debug", false, "verbose logging")
}

func main() {
	var opts options
	bindFlags(flag.CommandLine, &opts)
	flag.Parse()

	log := logger.CreatePrettyLogger(opts.debug)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger.WithOperation(log, "trade")); err != nil {
		log.Error("trade aborted", zap.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, log *zap.Logger) error {
	intent, err := parseIntent(opts)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if intent.SlippageBps == 0 {
		intent.SlippageBps = cfg.DefaultSlippageBps
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	keys, err := wallet.LoadWallets(cfg.WalletsFile)
	if err != nil {
		return fmt.Errorf("failed to load wallets: %w", err)
	}
	key, ok := keys[opts.walletName]
	if !ok {
		return fmt.Errorf("wallet %q not found in %s", opts.walletName, cfg.WalletsFile)
	}
	w := wallet.NewSending(key, a.Chain)

	trade := swap.Trade{Intent: intent, TokenSymbol: shortMint(intent.TokenMint)}
	if t, err := a.Tokens.GetToken(ctx, intent.TokenMint); err == nil {
		trade.TokenSymbol = t.Symbol
		if snap := a.Normalizer.GetMarketData(ctx, *t); snap != nil && snap.HasPrice() {
			trade.TokenPrice = decimal.NewFromFloat(snap.Price)
		}
	}

	params, err := a.Quotes.ParamsFor(ctx, intent)
	if err != nil {
		return err
	}

	q, err := awaitQuote(ctx, a.Quotes, params, cfg.QuoteDebounce, log)
	if err != nil {
		return err
	}
	printQuote(ctx, a, q)

	if !opts.yes && !confirm() {
		log.Info("trade cancelled")
		return nil
	}

	end := logger.TrackPerformance(log, "swap")
	res, err := a.Pipeline.Execute(ctx, w, trade, q)
	end()
	if err != nil {
		return err
	}
	fmt.Printf("signature: %s\n", res.Signature)
	if res.LedgerErr != nil {
		log.Warn("swap is on chain but missing from history", zap.Error(res.LedgerErr))
	}
	return nil
}

func parseIntent(opts options) (domain.TradeIntent, error) {
	if opts.walletName == "" || opts.token == "" || opts.amount == "" {
		return domain.TradeIntent{}, errors.New("-wallet, -token and -amount are required")
	}
	amount, err := decimal.NewFromString(opts.amount)
	if err != nil || !amount.IsPositive() {
		return domain.TradeIntent{}, fmt.Errorf("invalid amount %q", opts.amount)
	}
	dir := domain.Direction(strings.ToLower(opts.direction))
	if dir != domain.DirectionBuy && dir != domain.DirectionSell {
		return domain.TradeIntent{}, fmt.Errorf("invalid side %q", opts.direction)
	}
	return domain.TradeIntent{
		Direction:   dir,
		PayMint:     opts.payMint,
		TokenMint:   opts.token,
		Amount:      amount,
		SlippageBps: opts.slippage,
	}, nil
}

// awaitQuote runs one debounced quote cycle and accepts its result.
func awaitQuote(ctx context.Context, q quote.Quoter, p domain.QuoteParams, debounce time.Duration, log *zap.Logger) (*domain.Quote, error) {
	settled := make(chan quote.Snapshot, 1)
	session := quote.NewSession(q, log,
		quote.WithDebounce(debounce),
		quote.WithOnChange(func(s quote.Snapshot) {
			if s.State == quote.StateQuoted || s.State == quote.StateFailed {
				select {
				case settled <- s:
				default:
				}
			}
		}),
	)
	defer session.Close()

	session.Update(p)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case s := <-settled:
		if s.State == quote.StateFailed {
			return nil, s.Err
		}
	}
	return session.Accept(p)
}

func printQuote(ctx context.Context, a *app.App, q *domain.Quote) {
	in, _ := quote.ParseBaseUnits(q.InAmount, a.Quotes.Decimals(ctx, q.InputMint))
	out, _ := quote.ParseBaseUnits(q.OutAmount, a.Quotes.Decimals(ctx, q.OutputMint))
	fmt.Printf("pay:      %s %s\n", in.String(), shortMint(q.InputMint))
	fmt.Printf("receive:  %s %s\n", out.String(), shortMint(q.OutputMint))
	fmt.Printf("impact:   %s%%\n", q.PriceImpactPct)
	fmt.Printf("slippage: %d bps\n", q.SlippageBps)
}

func confirm() bool {
	fmt.Print("execute? [y/N]: ")
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

func shortMint(m string) string {
	if len(m) <= 8 {
		return m
	}
	return m[:4] + ".." + m[len(m)-4:]
}
