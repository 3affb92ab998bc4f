// Package solana is the base Solana plugin: a wallet-backed context provider
// and a SOL transfer action. The GOAT toolkit plugin builds on the same
// wallet and merges with this plugin's bundle.
package solana

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/wilhg/conduit/pkg/errmodel"
)

// DefaultRPCURL is the public Solana mainnet RPC endpoint.
const DefaultRPCURL = "https://api.mainnet-beta.solana.com"

// confirmPollInterval is how often transaction confirmation is polled.
const confirmPollInterval = 2 * time.Second

// rpcAPI is the subset of the Solana RPC client the wallet uses. Satisfied
// by *rpc.Client; faked in tests.
type rpcAPI interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, conf *rpc.GetTokenAccountsConfig, opts *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
}

// Wallet wraps a Solana keypair and RPC connection.
type Wallet struct {
	key solana.PrivateKey
	rpc rpcAPI
}

// NewWallet builds a wallet from a base58 private key and an RPC endpoint.
// An empty rpcURL uses DefaultRPCURL.
func NewWallet(rpcURL, privateKey string) (*Wallet, error) {
	if privateKey == "" {
		return nil, errmodel.Config("missing_setting", "SOLANA_PRIVATE_KEY is required", nil)
	}
	key, err := solana.PrivateKeyFromBase58(privateKey)
	if err != nil {
		return nil, errmodel.Config("bad_private_key", "SOLANA_PRIVATE_KEY is not valid base58", nil)
	}
	if rpcURL == "" {
		rpcURL = DefaultRPCURL
	}
	return &Wallet{key: key, rpc: rpc.New(rpcURL)}, nil
}

// Address returns the wallet's public key.
func (w *Wallet) Address() solana.PublicKey { return w.key.PublicKey() }

// BalanceSOL returns the wallet's balance in SOL.
func (w *Wallet) BalanceSOL(ctx context.Context) (float64, error) {
	res, err := w.rpc.GetBalance(ctx, w.Address(), rpc.CommitmentFinalized)
	if err != nil {
		return 0, errmodel.Chain("get_balance", "balance lookup failed", nil, err)
	}
	return float64(res.Value) / float64(solana.LAMPORTS_PER_SOL), nil
}

// TokenAmount is an SPL token balance with its display precision.
type TokenAmount struct {
	Amount   string
	Decimals uint8
	UI       string
}

// TokenBalance returns the wallet's balance for an SPL mint. A wallet with
// no account for the mint reads as zero.
func (w *Wallet) TokenBalance(ctx context.Context, mint solana.PublicKey) (TokenAmount, error) {
	accounts, err := w.rpc.GetTokenAccountsByOwner(ctx, w.Address(),
		&rpc.GetTokenAccountsConfig{Mint: &mint}, &rpc.GetTokenAccountsOpts{})
	if err != nil {
		return TokenAmount{}, errmodel.Chain("token_accounts", "token account lookup failed",
			map[string]any{"mint": mint.String()}, err)
	}
	if len(accounts.Value) == 0 {
		return TokenAmount{Amount: "0", UI: "0"}, nil
	}
	bal, err := w.rpc.GetTokenAccountBalance(ctx, accounts.Value[0].Pubkey, rpc.CommitmentFinalized)
	if err != nil {
		return TokenAmount{}, errmodel.Chain("token_balance", "token balance lookup failed",
			map[string]any{"mint": mint.String()}, err)
	}
	v := bal.Value
	return TokenAmount{Amount: v.Amount, Decimals: v.Decimals, UI: v.UiAmountString}, nil
}

// TransferSOL sends lamports to recipient and returns the signature. The
// transaction is signed with the wallet key; confirmation is separate, see
// WaitConfirmed.
func (w *Wallet) TransferSOL(ctx context.Context, recipient solana.PublicKey, lamports uint64) (solana.Signature, error) {
	recent, err := w.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, errmodel.Chain("blockhash", "blockhash lookup failed", nil, err)
	}
	ix := system.NewTransferInstruction(lamports, w.Address(), recipient).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{ix},
		recent.Value.Blockhash, solana.TransactionPayer(w.Address()))
	if err != nil {
		return solana.Signature{}, errmodel.Chain("build_tx", "transfer build failed", nil, err)
	}
	return w.SignAndSend(ctx, tx)
}

// SignAndSend signs a prepared transaction with the wallet key and submits
// it.
func (w *Wallet) SignAndSend(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	_, err := tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(w.Address()) {
			return &w.key
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, errmodel.Chain("sign", "transaction signing failed", nil, err)
	}
	sig, err := w.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, errmodel.Chain("send_tx", "transaction send failed", nil, err)
	}
	return sig, nil
}

// WaitConfirmed polls signature status until the transaction confirms, the
// cluster reports it failed, or ctx expires.
func (w *Wallet) WaitConfirmed(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()
	for {
		res, err := w.rpc.GetSignatureStatuses(ctx, true, sig)
		if err == nil && len(res.Value) > 0 && res.Value[0] != nil {
			st := res.Value[0]
			if st.Err != nil {
				return errmodel.Chain("tx_failed", "transaction failed on chain",
					map[string]any{"signature": sig.String(), "err": fmt.Sprint(st.Err)}, nil)
			}
			if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return errmodel.Chain("confirm_timeout", "transaction confirmation timed out",
				map[string]any{"signature": sig.String()}, ctx.Err())
		case <-ticker.C:
		}
	}
}
