package avalanche

import (
	"math/big"
	"testing"
)

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()

	avax, err := r.Resolve("avax")
	if err != nil {
		t.Fatalf("Resolve(avax): %v", err)
	}
	if !avax.Native() {
		t.Fatal("AVAX should be the native sentinel")
	}

	usdc, err := r.Resolve("USDC")
	if err != nil {
		t.Fatal(err)
	}
	if usdc.Decimals != 6 {
		t.Fatalf("USDC decimals = %d", usdc.Decimals)
	}

	// resolve by address
	byAddr, err := r.Resolve(usdc.Address.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if byAddr.Symbol != "USDC" {
		t.Fatalf("by address = %+v", byAddr)
	}

	if _, err := r.Resolve("NOPE"); err == nil {
		t.Fatal("expected unknown token error")
	}
	// unknown address: decimals would be a guess, must fail
	if _, err := r.Resolve("0x0000000000000000000000000000000000001234"); err == nil {
		t.Fatal("expected unknown address error")
	}
}

func TestRegistryExtraOverrides(t *testing.T) {
	extra := Token{Symbol: "USDC", Address: defaultTokens[2].Address, Decimals: 18}
	r := NewRegistry(extra)
	got, err := r.Resolve("usdc")
	if err != nil {
		t.Fatal(err)
	}
	if got.Decimals != 18 {
		t.Fatalf("extra token did not override: %+v", got)
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in       string
		decimals uint8
		want     string
		wantErr  bool
	}{
		{"1", 18, "1000000000000000000", false},
		{"1.5", 6, "1500000", false},
		{"0.000001", 6, "1", false},
		{".5", 2, "50", false},
		{"0", 6, "0", false},
		{"1.2345678", 6, "", true}, // too many decimal places
		{"abc", 6, "", true},
		{"", 6, "", true},
		{"-1", 6, "", true},
	}
	for _, c := range cases {
		got, err := ParseAmount(c.in, c.decimals)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q) expected error, got %v", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q): %v", c.in, err)
			continue
		}
		if got.String() != c.want {
			t.Errorf("ParseAmount(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	v, _ := new(big.Int).SetString("1500000", 10)
	if got := FormatAmount(v, 6); got != "1.5" {
		t.Fatalf("FormatAmount = %q", got)
	}
	if got := FormatAmount(big.NewInt(1), 6); got != "0.000001" {
		t.Fatalf("FormatAmount = %q", got)
	}
	if got := FormatAmount(big.NewInt(42), 0); got != "42" {
		t.Fatalf("FormatAmount = %q", got)
	}
	if got := FormatAmount(nil, 6); got != "0" {
		t.Fatalf("FormatAmount(nil) = %q", got)
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, s := range []string{"1", "0.5", "123.456"} {
		v, err := ParseAmount(s, 6)
		if err != nil {
			t.Fatal(err)
		}
		if got := FormatAmount(v, 6); got != s {
			t.Fatalf("round trip %q -> %q", s, got)
		}
	}
}

func TestApplySlippage(t *testing.T) {
	out := ApplySlippage(big.NewInt(10_000), 50)
	if out.Int64() != 9950 {
		t.Fatalf("ApplySlippage = %v", out)
	}
	same := ApplySlippage(big.NewInt(10_000), 0)
	if same.Int64() != 10_000 {
		t.Fatalf("zero bps changed amount: %v", same)
	}
}
