package swap

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/jupiter"
	"github.com/rovshanmuradov/memeswap/internal/wallet"
)

// unsignedTx returns what the aggregator hands back: a serialized
// transaction with empty signature slots.
func unsignedTx(t *testing.T, payer solana.PublicKey) string {
	t.Helper()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1, payer, solana.NewWallet().PublicKey()).Build()},
		solana.Hash{4, 2},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

type fakeTxAPI struct {
	reqs []jupiter.SwapRequest
	tx   string
	err  error
}

func (f *fakeTxAPI) SwapTransaction(_ context.Context, req jupiter.SwapRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.tx, f.err
}

type fakeBroadcaster struct {
	raws [][]byte
	err  error
}

func (f *fakeBroadcaster) SubmitSignedTransaction(_ context.Context, raw []byte) (solana.Signature, error) {
	f.raws = append(f.raws, raw)
	if f.err != nil {
		return solana.Signature{}, f.err
	}
	return solana.Signature{1}, nil
}

func TestBuilderSplitsFeeAccount(t *testing.T) {
	api := &fakeTxAPI{tx: "AQID"}
	b := NewBuilder(api, jupiter.PriorityFee{}, nil, zap.NewNop())
	user := solana.NewWallet().PublicKey().String()

	tx, err := b.Build(context.Background(), BuildRequest{
		QuoteResponse: json.RawMessage(`{"inAmount":"1","feeAccount":"Embedded"}`),
		UserPublicKey: user,
	})
	require.NoError(t, err)
	assert.Equal(t, "AQID", tx)

	req := api.reqs[0]
	assert.Equal(t, "Embedded", req.FeeAccount)
	assert.JSONEq(t, `{"inAmount":"1"}`, string(req.QuoteResponse))
	assert.True(t, req.WrapAndUnwrapSol)
	assert.Equal(t, jupiter.DefaultPriorityFee(), req.Priority)

	no := false
	_, err = b.Build(context.Background(), BuildRequest{
		QuoteResponse:    json.RawMessage(`{"inAmount":"1","feeAccount":"Embedded"}`),
		UserPublicKey:    user,
		WrapAndUnwrapSol: &no,
		FeeAccount:       "Explicit",
	})
	require.NoError(t, err)
	assert.Equal(t, "Explicit", api.reqs[1].FeeAccount)
	assert.False(t, api.reqs[1].WrapAndUnwrapSol)
}

func TestBuilderValidation(t *testing.T) {
	api := &fakeTxAPI{}
	b := NewBuilder(api, jupiter.DefaultPriorityFee(), nil, zap.NewNop())

	_, err := b.Build(context.Background(), BuildRequest{UserPublicKey: solana.NewWallet().PublicKey().String()})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = b.Build(context.Background(), BuildRequest{QuoteResponse: json.RawMessage(`{}`), UserPublicKey: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, api.reqs)
}

func TestExecutorRejectsWalletWithoutSigning(t *testing.T) {
	b := &fakeBroadcaster{}
	e := NewExecutor(b, nil, zap.NewNop())

	_, err := e.Execute(context.Background(), wallet.WatchOnly(solana.NewWallet().PublicKey()), "garbage")
	assert.ErrorIs(t, err, domain.ErrWalletCannotSign)
	assert.Empty(t, b.raws)
}

func TestExecutorSignOnlyThenBroadcast(t *testing.T) {
	k := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	b := &fakeBroadcaster{}
	e := NewExecutor(b, nil, zap.NewNop())

	sig, err := e.Execute(context.Background(), k, unsignedTx(t, k.PublicKey()))
	require.NoError(t, err)
	assert.Equal(t, solana.Signature{1}, sig)

	require.Len(t, b.raws, 1)
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(b.raws[0]))
	require.NoError(t, err)
	msg, err := tx.Message.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, tx.Signatures[0].Verify(k.PublicKey(), msg))
}

type sendingWallet struct {
	*wallet.Keypair
	sent   int
	signed int
}

func (s *sendingWallet) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	s.signed++
	return s.Keypair.SignTransaction(ctx, tx)
}

func (s *sendingWallet) SignAndSendTransaction(context.Context, *solana.Transaction) (solana.Signature, error) {
	s.sent++
	return solana.Signature{2}, nil
}

func TestExecutorPrefersSignAndSend(t *testing.T) {
	w := &sendingWallet{Keypair: wallet.FromPrivateKey(solana.NewWallet().PrivateKey)}
	b := &fakeBroadcaster{}
	e := NewExecutor(b, nil, zap.NewNop())

	sig, err := e.Execute(context.Background(), w, unsignedTx(t, w.PublicKey()))
	require.NoError(t, err)
	assert.Equal(t, solana.Signature{2}, sig)
	assert.Equal(t, 1, w.sent)
	assert.Zero(t, w.signed)
	assert.Empty(t, b.raws)
}

func TestBroadcastPropagatesProviderError(t *testing.T) {
	providerErr := errors.New("Transaction simulation failed: insufficient lamports")
	e := NewExecutor(&fakeBroadcaster{err: providerErr}, nil, zap.NewNop())

	_, err := e.Broadcast(context.Background(), base64.StdEncoding.EncodeToString([]byte{1}))
	assert.Same(t, providerErr, err)

	_, err = e.Broadcast(context.Background(), "%%%")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

type fakeQuotes struct {
	quote *domain.Quote
}

func (f *fakeQuotes) ParamsFor(_ context.Context, intent domain.TradeIntent) (domain.QuoteParams, error) {
	in, out := intent.Mints()
	return domain.QuoteParams{InputMint: in, OutputMint: out, Amount: intent.Amount.Shift(9).BigInt().Uint64(), SlippageBps: 300}, nil
}

func (f *fakeQuotes) Request(_ context.Context, p domain.QuoteParams) (*domain.Quote, error) {
	q := *f.quote
	q.Params = p
	return &q, nil
}

func (f *fakeQuotes) Decimals(_ context.Context, mint string) uint8 {
	if mint == domain.NativeMint {
		return 9
	}
	return 6
}

type fakeLedger struct {
	recs []domain.SwapRecord
	err  error
}

func (f *fakeLedger) RecordSwap(_ context.Context, rec domain.SwapRecord) (*domain.SwapRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec.ID = uint64(len(f.recs) + 1)
	rec.Status = domain.SwapSubmitted
	f.recs = append(f.recs, rec)
	return &rec, nil
}

func newPipeline(t *testing.T, w *wallet.Keypair, l Recorder) (*Pipeline, *fakeBroadcaster) {
	t.Helper()
	quotes := &fakeQuotes{quote: &domain.Quote{
		InAmount:  "500000000",
		OutAmount: "1234000000",
		Raw:       json.RawMessage(`{"inAmount":"500000000","outAmount":"1234000000"}`),
	}}
	api := &fakeTxAPI{tx: unsignedTx(t, w.PublicKey())}
	b := &fakeBroadcaster{}
	p := NewPipeline(quotes,
		NewBuilder(api, jupiter.DefaultPriorityFee(), nil, zap.NewNop()),
		NewExecutor(b, nil, zap.NewNop()),
		l, nil, zap.NewNop())
	return p, b
}

func buyTrade(token string) Trade {
	return Trade{
		Intent: domain.TradeIntent{
			Direction: domain.DirectionBuy,
			PayMint:   domain.NativeMint,
			TokenMint: token,
			Amount:    decimal.RequireFromString("0.5"),
		},
		TokenSymbol: "BONK",
		TokenPrice:  decimal.RequireFromString("0.00002"),
	}
}

func TestPipelineRecordsSubmittedSwap(t *testing.T) {
	k := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	ledger := &fakeLedger{}
	p, b := newPipeline(t, k, ledger)
	token := solana.NewWallet().PublicKey().String()

	res, err := p.Run(context.Background(), k, buyTrade(token))
	require.NoError(t, err)
	require.NoError(t, res.LedgerErr)
	require.Len(t, b.raws, 1)

	rec := ledger.recs[0]
	assert.Equal(t, k.PublicKey().String(), rec.WalletAddress)
	assert.Equal(t, "SOL", rec.PaymentCurrency)
	assert.Equal(t, "0.5", rec.SwapAmount.String())
	assert.Equal(t, "1234", rec.TokenAmount.String())
	assert.Equal(t, token, rec.TokenAddress)
	assert.Equal(t, domain.SwapTypeBuy, rec.SwapType)
	assert.Equal(t, res.Signature.String(), rec.TxSignature)
}

func TestPipelineLedgerFailureDoesNotFailSwap(t *testing.T) {
	k := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	p, b := newPipeline(t, k, &fakeLedger{err: errors.New("db down")})

	res, err := p.Run(context.Background(), k, buyTrade(solana.NewWallet().PublicKey().String()))
	require.NoError(t, err)
	assert.Equal(t, solana.Signature{1}, res.Signature)
	assert.EqualError(t, res.LedgerErr, "db down")
	assert.Nil(t, res.Record)
	assert.Len(t, b.raws, 1)
}

func TestPipelineRejectsStaleQuote(t *testing.T) {
	k := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	p, b := newPipeline(t, k, &fakeLedger{})
	trade := buyTrade(solana.NewWallet().PublicKey().String())

	q := &domain.Quote{Raw: json.RawMessage(`{}`), Params: domain.QuoteParams{InputMint: domain.NativeMint, Amount: 1}}
	_, err := p.Execute(context.Background(), k, trade, q)
	assert.ErrorIs(t, err, domain.ErrQuoteStale)
	assert.Empty(t, b.raws)
}

func TestPipelineWatchOnlyFailsFast(t *testing.T) {
	k := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	p, b := newPipeline(t, k, &fakeLedger{})

	_, err := p.Run(context.Background(), wallet.WatchOnly(k.PublicKey()), buyTrade("x"))
	assert.ErrorIs(t, err, domain.ErrWalletCannotSign)
	assert.Empty(t, b.raws)
}
