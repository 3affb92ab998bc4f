package goat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/wilhg/conduit/pkg/agent"
	"github.com/wilhg/conduit/pkg/agent/agenttest"
	"github.com/wilhg/conduit/pkg/genai/fake"
	"github.com/wilhg/conduit/pkg/httpx"
	"github.com/wilhg/conduit/pkg/prompt"
	solanaplugin "github.com/wilhg/conduit/pkg/plugins/solana"
)

// solanaRPCServer answers the JSON-RPC methods the wallet calls.
func solanaRPCServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     any    `json:"id"`
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad rpc request: %v", err)
		}
		var result string
		switch req.Method {
		case "getBalance":
			result = `{"context":{"slot":1},"value":2500000000}`
		case "sendTransaction":
			result = fmt.Sprintf("%q", solana.Signature{7}.String())
		case "getSignatureStatuses":
			result = `{"context":{"slot":1},"value":[{"slot":1,"err":null,"confirmationStatus":"finalized"}]}`
		default:
			t.Errorf("unexpected rpc method %q", req.Method)
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":%s}`, result)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testWallet(t *testing.T) *solanaplugin.Wallet {
	t.Helper()
	key := solana.NewWallet().PrivateKey
	w, err := solanaplugin.NewWallet(solanaRPCServer(t).URL, key.String())
	if err != nil {
		t.Fatal(err)
	}
	return w
}

// jupiterServer serves a quote and a legacy swap transaction whose only
// required signer is payer.
func jupiterServer(t *testing.T, payer solana.PublicKey) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			if r.URL.Query().Get("asLegacyTransaction") != "true" {
				t.Error("quote missing asLegacyTransaction")
			}
			w.Write([]byte(`{"inputMint":"in","outputMint":"out","inAmount":"1000000000","outAmount":"142500000","priceImpactPct":"0.01"}`))
		case "/swap":
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("bad swap body: %v", err)
			}
			if body["userPublicKey"] != payer.String() {
				t.Errorf("userPublicKey = %v", body["userPublicKey"])
			}
			ix := system.NewTransferInstruction(1, payer, payer).Build()
			tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{1}, solana.TransactionPayer(payer))
			if err != nil {
				t.Fatalf("build tx: %v", err)
			}
			raw, err := tx.MarshalBinary()
			if err != nil {
				t.Fatalf("marshal tx: %v", err)
			}
			resp := map[string]string{"swapTransaction": base64.StdEncoding.EncodeToString(raw)}
			json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSwapActionThroughJupiter(t *testing.T) {
	wallet := testWallet(t)
	jup := NewJupiterClient(jupiterServer(t, wallet.Address()).URL,
		httpx.New(&httpx.Options{Delay: time.Millisecond}))
	a := &swapAction{wallet: wallet, jupiter: jup, prompts: prompt.Builtin(), slippageBps: 50}

	gen := fake.New(`{"fromToken": "SOL", "toToken": "USDC", "amount": "1"}`)
	rt := agenttest.NewRuntime().WithGenerator(gen)
	cb, results := agenttest.Recorder()

	err := a.Handle(context.Background(), rt, agenttest.Msg("swap 1 SOL for USDC"), nil, nil, cb)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if gen.CallCount() != 1 {
		t.Fatalf("generator calls = %d", gen.CallCount())
	}
	got := results()
	if len(got) != 1 {
		t.Fatalf("results = %d", len(got))
	}
	if got[0].Data["kind"] != "swap" {
		t.Fatalf("data = %+v", got[0].Data)
	}
	if got[0].Data["amount_out"] != "142.5" {
		t.Fatalf("amount_out = %v", got[0].Data["amount_out"])
	}
}

func TestSwapActionRejectsUnknownToken(t *testing.T) {
	a := &swapAction{slippageBps: 50}
	cb, _ := agenttest.Recorder()
	opts := map[string]any{"fromToken": "WAT", "toToken": "USDC", "amount": "1"}
	err := a.Handle(context.Background(), agenttest.NewRuntime(), agenttest.Msg("swap"), nil, opts, cb)
	if err == nil || !strings.Contains(err.Error(), "unknown_token") {
		t.Fatalf("err = %v", err)
	}
}

func TestBalanceActionDefaultsToSOL(t *testing.T) {
	a := &balanceAction{wallet: testWallet(t)}
	cb, results := agenttest.Recorder()

	err := a.Handle(context.Background(), agenttest.NewRuntime(), agenttest.Msg("what's my balance?"), nil, nil, cb)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	got := results()
	if len(got) != 1 || !strings.Contains(got[0].Text, "SOL: 2.5000") {
		t.Fatalf("results = %+v", got)
	}
}

func TestToBaseUnits(t *testing.T) {
	cases := []struct {
		amount   string
		decimals uint8
		want     uint64
		wantErr  bool
	}{
		{amount: "1", decimals: 9, want: 1000000000},
		{amount: "142.5", decimals: 6, want: 142500000},
		{amount: "0.000000001", decimals: 9, want: 1},
		// Above float64's exact-integer range; a float conversion would
		// round the trailing digit away.
		{amount: "9007199254.740993", decimals: 9, want: 9007199254740993000},
		{amount: "0", decimals: 9, wantErr: true},
		{amount: "0.0000000001", decimals: 9, wantErr: true},
		{amount: "abc", decimals: 9, wantErr: true},
	}
	for _, tc := range cases {
		got, err := toBaseUnits(tc.amount, tc.decimals)
		if tc.wantErr {
			if err == nil {
				t.Errorf("toBaseUnits(%q, %d) = %d, want error", tc.amount, tc.decimals, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("toBaseUnits(%q, %d): %v", tc.amount, tc.decimals, err)
			continue
		}
		if got != tc.want {
			t.Errorf("toBaseUnits(%q, %d) = %d, want %d", tc.amount, tc.decimals, got, tc.want)
		}
	}
}

func TestResolveMint(t *testing.T) {
	if m, ok := resolveMint("usdc"); !ok || m.Decimals != 6 {
		t.Fatalf("usdc = %+v ok=%v", m, ok)
	}
	if _, ok := resolveMint("WAT"); ok {
		t.Fatal("unknown symbol resolved")
	}
}

func TestMergePrefersToolkit(t *testing.T) {
	toolkit := &agent.Plugin{
		Name:    "goat",
		Actions: []agent.Action{namedAction("SWAP_TOKENS"), namedAction("GET_TOKEN_BALANCE")},
	}
	base := &agent.Plugin{
		Name:      "solana",
		Actions:   []agent.Action{namedAction("SWAP_TOKENS"), namedAction("TRANSFER_SOL")},
		Providers: []agent.Provider{namedProvider("solana-wallet")},
	}

	got := merge(toolkit, base)
	if len(got.Actions) != 3 {
		t.Fatalf("actions = %d, want 3", len(got.Actions))
	}
	// toolkit's SWAP_TOKENS stays first
	if got.Actions[0].Describe().Name != "SWAP_TOKENS" {
		t.Fatalf("first action = %s", got.Actions[0].Describe().Name)
	}
	if len(got.Providers) != 1 || got.Providers[0].Name() != "solana-wallet" {
		t.Fatalf("providers = %+v", got.Providers)
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected config error")
	}
}

func TestNewMergesBasePlugin(t *testing.T) {
	p, err := New(Config{Wallet: testWallet(t)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	wantActions := map[string]bool{"SWAP_TOKENS": false, "GET_TOKEN_BALANCE": false, "TRANSFER_SOL": false}
	for _, a := range p.Actions {
		wantActions[a.Describe().Name] = true
	}
	for name, seen := range wantActions {
		if !seen {
			t.Errorf("action %s missing after merge", name)
		}
	}
	if len(p.Providers) != 1 || p.Providers[0].Name() != "solana-wallet" {
		t.Fatalf("providers = %+v", p.Providers)
	}
	if len(p.Services) != 0 {
		t.Fatal("notifier should be off by default")
	}
}

func TestNewTwitterNotifyNeedsCreds(t *testing.T) {
	_, err := New(Config{Wallet: testWallet(t), TwitterNotify: true})
	if err == nil {
		t.Fatal("expected error for incomplete twitter creds")
	}
}

// test doubles for merge

type stubAction struct{ name string }

func namedAction(name string) agent.Action { return &stubAction{name: name} }

func (s *stubAction) Describe() agent.ActionDescriptor {
	return agent.ActionDescriptor{Name: s.name}
}

func (s *stubAction) Validate(context.Context, agent.Runtime, agent.Message) (bool, error) {
	return false, nil
}

func (s *stubAction) Handle(context.Context, agent.Runtime, agent.Message, *agent.State, map[string]any, agent.Callback) error {
	return nil
}

type stubProvider struct{ name string }

func namedProvider(name string) agent.Provider { return &stubProvider{name: name} }

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Get(context.Context, agent.Runtime, agent.Message, *agent.State) (string, error) {
	return "", nil
}
