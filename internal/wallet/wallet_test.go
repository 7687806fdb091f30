package wallet

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transferTx(t *testing.T, payer, from solana.PublicKey) *solana.Transaction {
	t.Helper()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1000, from, solana.NewWallet().PublicKey()).Build()},
		solana.Hash{1, 2, 3},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)
	return tx
}

func TestSignTransactionPlacesSignatureAtSignerIndex(t *testing.T) {
	payer := FromPrivateKey(solana.NewWallet().PrivateKey)
	owner := FromPrivateKey(solana.NewWallet().PrivateKey)
	tx := transferTx(t, payer.PublicKey(), owner.PublicKey())

	require.NoError(t, owner.SignTransaction(context.Background(), tx))
	require.Len(t, tx.Signatures, 2)
	assert.Equal(t, solana.Signature{}, tx.Signatures[0])

	msg, err := tx.Message.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, tx.Signatures[1].Verify(owner.PublicKey(), msg))

	require.NoError(t, payer.SignTransaction(context.Background(), tx))
	assert.True(t, tx.Signatures[0].Verify(payer.PublicKey(), msg))
	assert.True(t, tx.Signatures[1].Verify(owner.PublicKey(), msg))
}

func TestSignTransactionRejectsStranger(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	tx := transferTx(t, payer, payer)

	stranger := FromPrivateKey(solana.NewWallet().PrivateKey)
	assert.ErrorIs(t, stranger.SignTransaction(context.Background(), tx), ErrNotASigner)
}

type recordingBroadcaster struct {
	raw []byte
}

func (r *recordingBroadcaster) SubmitSignedTransaction(_ context.Context, raw []byte) (solana.Signature, error) {
	r.raw = raw
	return solana.Signature{9}, nil
}

func TestSendingSignsThenBroadcasts(t *testing.T) {
	k := FromPrivateKey(solana.NewWallet().PrivateKey)
	b := &recordingBroadcaster{}
	w := NewSending(k, b)

	var _ SignAndSender = w
	var _ Signer = w

	sig, err := w.SignAndSendTransaction(context.Background(), transferTx(t, k.PublicKey(), k.PublicKey()))
	require.NoError(t, err)
	assert.Equal(t, solana.Signature{9}, sig)

	decoded, err := solana.TransactionFromDecoder(bin.NewBinDecoder(b.raw))
	require.NoError(t, err)
	require.Len(t, decoded.Signatures, 1)
	msg, err := decoded.Message.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, decoded.Signatures[0].Verify(k.PublicKey(), msg))
}

func TestWatchOnlyHasNoSigningCapability(t *testing.T) {
	var w Wallet = WatchOnly(solana.NewWallet().PublicKey())
	_, canSign := w.(Signer)
	_, canSend := w.(SignAndSender)
	assert.False(t, canSign)
	assert.False(t, canSend)
}

func TestLoadWallets(t *testing.T) {
	pk := solana.NewWallet().PrivateKey
	path := filepath.Join(t.TempDir(), "wallets.yaml")
	content := "wallets:\n" +
		"  - name: main\n    private_key: " + pk.String() + "\n" +
		"  - name: broken\n    private_key: not-a-key\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	wallets, err := LoadWallets(path)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, pk.PublicKey(), wallets["main"].PublicKey())
}

func TestNewKeypairRejectsShortKey(t *testing.T) {
	_, err := NewKeypair("3yZe7d")
	assert.Error(t, err)
}
