// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/memeswap/internal/blockchain"
	"github.com/rovshanmuradov/memeswap/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/utils/metrics"
)

// DefaultBroadcastRetries is how many times the node itself rebroadcasts.
const DefaultBroadcastRetries uint = 2

// Определение ошибок
var (
	ErrAccountNotFound = errors.New("account not found")
)

// IsAccountNotFoundError проверяет, является ли ошибка "not found"
func IsAccountNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAccountNotFound) || errors.Is(err, solanarpc.ErrNotFound) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
type Client struct {
	rpc      *rpc.RPCClient
	analyzer *ErrorAnalyzer
	opts     blockchain.TransactionOptions
	metrics  *metrics.Collector
	logger   *zap.Logger
}

var _ blockchain.Client = (*Client)(nil)

// NewClient создаёт новый клиент поверх пула RPC узлов.
func NewClient(pool *rpc.RPCClient, retries uint, m *metrics.Collector, logger *zap.Logger) *Client {
	return &Client{
		rpc:      pool,
		analyzer: NewErrorAnalyzer(logger),
		opts: blockchain.TransactionOptions{
			SkipPreflight:       true,
			PreflightCommitment: solanarpc.CommitmentProcessed,
			MaxRetries:          retries,
		},
		metrics: m,
		logger:  logger.Named("solbc-client"),
	}
}

// SubmitSignedTransaction отправляет подписанную транзакцию без симуляции и
// возвращает подпись сразу, не дожидаясь подтверждения.
func (c *Client) SubmitSignedTransaction(ctx context.Context, raw []byte) (solana.Signature, error) {
	maxRetries := c.opts.MaxRetries
	start := time.Now()

	// Один узел: повторная отправка на другие узлы может задвоить транзакцию.
	sig, err := c.rpc.Primary().SendRawTransactionWithOpts(ctx, raw, solanarpc.TransactionOpts{
		SkipPreflight:       c.opts.SkipPreflight,
		PreflightCommitment: c.opts.PreflightCommitment,
		MaxRetries:          &maxRetries,
	})
	c.metrics.RecordRPC("sendTransaction", time.Since(start))
	if err != nil {
		berr := c.analyzer.Analyze(err)
		c.logger.Error("SendTransaction error",
			zap.String("message", berr.Message),
			zap.Strings("logs", berr.Logs))
		return solana.Signature{}, berr
	}

	c.logger.Info("Transaction submitted", zap.String("signature", sig.String()))
	return sig, nil
}

// GetBalance получает баланс SOL в лампортах.
func (c *Client) GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	var lamports uint64
	err := c.rpc.ExecuteWithRetry(ctx, "getBalance", func(node *solanarpc.Client) error {
		res, err := node.GetBalance(ctx, owner, solanarpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		lamports = res.Value
		return nil
	})
	if err != nil {
		c.logger.Debug("GetBalance error", zap.String("owner", owner.String()), zap.Error(err))
		return 0, err
	}
	return lamports, nil
}

type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			TokenAmount struct {
				Amount   string `json:"amount"`
				Decimals uint8  `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// token2022ProgramID владеет аккаунтами минтов Token-2022 (extensions).
var token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

// GetTokenBalances возвращает SPL балансы владельца по обеим token-программам,
// по одному запросу на программу. Несколько аккаунтов одного минта суммируются.
func (c *Client) GetTokenBalances(ctx context.Context, owner solana.PublicKey) (map[string]blockchain.TokenBalance, error) {
	programs := []solana.PublicKey{solana.TokenProgramID, token2022ProgramID}
	results := make([][]*solanarpc.TokenAccount, len(programs))

	g, gctx := errgroup.WithContext(ctx)
	for i, program := range programs {
		g.Go(func() error {
			accounts, err := c.tokenAccounts(gctx, owner, program)
			if err != nil {
				return err
			}
			results[i] = accounts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]blockchain.TokenBalance)
	for _, accounts := range results {
		for _, acc := range accounts {
			if acc == nil || acc.Account.Data == nil {
				continue
			}
			var parsed parsedTokenAccount
			if err := json.Unmarshal(acc.Account.Data.GetRawJSON(), &parsed); err != nil {
				c.logger.Debug("skip unparsable token account", zap.String("account", acc.Pubkey.String()), zap.Error(err))
				continue
			}
			info := parsed.Parsed.Info
			amount, err := strconv.ParseUint(info.TokenAmount.Amount, 10, 64)
			if err != nil || info.Mint == "" {
				continue
			}
			bal := out[info.Mint]
			bal.Mint = info.Mint
			bal.Decimals = info.TokenAmount.Decimals
			bal.Amount += amount
			out[info.Mint] = bal
		}
	}
	return out, nil
}

func (c *Client) tokenAccounts(ctx context.Context, owner, program solana.PublicKey) ([]*solanarpc.TokenAccount, error) {
	var accounts []*solanarpc.TokenAccount
	err := c.rpc.ExecuteWithRetry(ctx, "getTokenAccountsByOwner", func(node *solanarpc.Client) error {
		res, err := node.GetTokenAccountsByOwner(ctx, owner,
			&solanarpc.GetTokenAccountsConfig{ProgramId: program.ToPointer()},
			&solanarpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed},
		)
		if err != nil {
			return err
		}
		accounts = res.Value
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get token accounts (%s): %w", program, err)
	}
	return accounts, nil
}

// GetMintDecimals читает количество знаков из аккаунта минта.
func (c *Client) GetMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	if mint.String() == domain.NativeMint {
		return domain.NativeDecimals, nil
	}
	var m token.Mint
	err := c.rpc.ExecuteWithRetry(ctx, "getAccountInfo", func(node *solanarpc.Client) error {
		return node.GetAccountDataInto(ctx, mint, &m)
	})
	if err != nil {
		if IsAccountNotFoundError(err) {
			return 0, fmt.Errorf("mint %s: %w", mint, ErrAccountNotFound)
		}
		return 0, err
	}
	return m.Decimals, nil
}

// GetSignatureStatuses получает статусы транзакций по подписям.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) ([]blockchain.SignatureStatus, error) {
	var res *solanarpc.GetSignatureStatusesResult
	err := c.rpc.ExecuteWithRetry(ctx, "getSignatureStatuses", func(node *solanarpc.Client) error {
		var err error
		res, err = node.GetSignatureStatuses(ctx, true, signatures...)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]blockchain.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		out[i].Signature = sig
		if i >= len(res.Value) || res.Value[i] == nil {
			continue
		}
		st := res.Value[i]
		out[i].Found = true
		if st.Err != nil {
			out[i].Failed = true
			continue
		}
		out[i].Confirmed = st.ConfirmationStatus == solanarpc.ConfirmationStatusConfirmed ||
			st.ConfirmationStatus == solanarpc.ConfirmationStatusFinalized
	}
	return out, nil
}
