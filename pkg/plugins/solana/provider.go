package solana

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/wilhg/conduit/pkg/agent"
	"github.com/wilhg/conduit/pkg/cache"
)

// walletTTL bounds how long a wallet summary is served from cache.
const walletTTL = 30 * time.Second

const keyspace = cache.Keyspace("solana")

// TrackedMint names an SPL mint the wallet provider reports on.
type TrackedMint struct {
	Symbol string
	Mint   solana.PublicKey
}

// WalletProvider contributes a wallet summary (address, SOL balance, tracked
// SPL balances) to the agent context.
type WalletProvider struct {
	wallet *Wallet
	mints  []TrackedMint
	log    *slog.Logger
}

func (p *WalletProvider) Name() string { return "solana-wallet" }

func (p *WalletProvider) Get(ctx context.Context, rt agent.Runtime, _ agent.Message, _ *agent.State) (string, error) {
	addr := p.wallet.Address().String()
	key := keyspace.Key("wallet", addr)
	if text, ok, err := cache.GetJSON[string](ctx, rt.Cache(), key); err == nil && ok {
		return text, nil
	}

	bal, err := p.wallet.BalanceSOL(ctx)
	if err != nil {
		return "", err
	}
	lines := []string{
		fmt.Sprintf("Solana wallet %s", addr),
		fmt.Sprintf("SOL balance: %.4f", bal),
	}
	for _, tm := range p.mints {
		ta, err := p.wallet.TokenBalance(ctx, tm.Mint)
		if err != nil {
			p.log.Warn("token balance failed", "symbol", tm.Symbol, "err", err)
			continue
		}
		lines = append(lines, fmt.Sprintf("%s balance: %s", tm.Symbol, ta.UI))
	}
	text := strings.Join(lines, "\n")
	if err := cache.SetJSON(ctx, rt.Cache(), key, text, walletTTL); err != nil {
		p.log.Warn("cache write failed", "key", key, "err", err)
	}
	return text, nil
}
