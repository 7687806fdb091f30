// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/memeswap/internal/blockchain"
)

// ErrNotASigner is returned when the wallet's key is not among the
// transaction's required signers.
var ErrNotASigner = errors.New("wallet is not a required signer of the transaction")

// Wallet exposes a public address.
type Wallet interface {
	PublicKey() solana.PublicKey
}

// Signer может подписать транзакцию без отправки.
type Signer interface {
	Wallet
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// SignAndSender подписывает и сразу отправляет транзакцию.
type SignAndSender interface {
	Wallet
	SignAndSendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Keypair представляет кошелёк Solana с приватным ключом.
type Keypair struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// NewKeypair создаёт новый кошелёк из base58-encoded приватного ключа.
func NewKeypair(privateKeyBase58 string) (*Keypair, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	return FromPrivateKey(solana.PrivateKey(privateKeyBytes)), nil
}

func FromPrivateKey(pk solana.PrivateKey) *Keypair {
	return &Keypair{privateKey: pk, publicKey: pk.PublicKey()}
}

func (k *Keypair) PublicKey() solana.PublicKey { return k.publicKey }

// SignTransaction подписывает транзакцию и кладёт подпись на позицию ключа
// среди обязательных подписантов. Подписи других участников не трогаются.
func (k *Keypair) SignTransaction(_ context.Context, tx *solana.Transaction) error {
	required := int(tx.Message.Header.NumRequiredSignatures)
	idx := -1
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(k.publicKey) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotASigner
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}
	sig, err := k.privateKey.Sign(msg)
	if err != nil {
		return fmt.Errorf("failed to sign message: %w", err)
	}

	if len(tx.Signatures) < required {
		sigs := make([]solana.Signature, required)
		copy(sigs, tx.Signatures)
		tx.Signatures = sigs
	}
	tx.Signatures[idx] = sig
	return nil
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (k *Keypair) String() string {
	return k.publicKey.String()
}

// Sending couples a signer with a broadcaster so that the executor can hand
// the whole sign-and-submit step to the wallet.
type Sending struct {
	*Keypair
	broadcaster blockchain.Broadcaster
}

func NewSending(k *Keypair, b blockchain.Broadcaster) *Sending {
	return &Sending{Keypair: k, broadcaster: b}
}

func (s *Sending) SignAndSendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := s.SignTransaction(ctx, tx); err != nil {
		return solana.Signature{}, err
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return s.broadcaster.SubmitSignedTransaction(ctx, raw)
}

// WatchOnly is an address without a key: good for balances, not for trading.
type WatchOnly solana.PublicKey

func (w WatchOnly) PublicKey() solana.PublicKey { return solana.PublicKey(w) }

// WalletConfig represents the structure of wallets YAML file
type WalletConfig struct {
	Wallets []struct {
		Name       string `yaml:"name"`
		PrivateKey string `yaml:"private_key"`
	} `yaml:"wallets"`
}

// LoadWallets загружает кошельки из YAML-файла.
func LoadWallets(path string) (map[string]*Keypair, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config WalletConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(config.Wallets) == 0 {
		return nil, fmt.Errorf("no wallets found in configuration")
	}

	wallets := make(map[string]*Keypair)
	for _, walletData := range config.Wallets {
		if walletData.Name == "" || walletData.PrivateKey == "" {
			continue
		}
		w, err := NewKeypair(walletData.PrivateKey)
		if err != nil {
			continue
		}
		wallets[walletData.Name] = w
	}

	if len(wallets) == 0 {
		return nil, fmt.Errorf("no valid wallets loaded")
	}

	return wallets, nil
}
