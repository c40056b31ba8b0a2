package signal

import (
	"errors"
	"testing"
)

const sampleSignal = `#BTC/USDT
Long 📈 Lev x10
Entry: 100.5
Stop Loss: 95
Targets: 110-120-130`

func TestParseExtractsAllFields(t *testing.T) {
	intent, err := Parse(sampleSignal)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if intent.Symbol != "BTCUSDT" {
		t.Fatalf("Symbol=%q, expected BTCUSDT", intent.Symbol)
	}
	if intent.Side != SideBuy {
		t.Fatalf("Side=%q, expected Buy", intent.Side)
	}
	if intent.Entry != 100.5 {
		t.Fatalf("Entry=%v, expected 100.5", intent.Entry)
	}
	if intent.StopLoss != 95 {
		t.Fatalf("StopLoss=%v, expected 95", intent.StopLoss)
	}
	if len(intent.Targets) != 3 {
		t.Fatalf("Targets=%v, expected 3 values", intent.Targets)
	}
	if intent.Targets[0] != 110 || intent.Targets[1] != 120 || intent.Targets[2] != 130 {
		t.Fatalf("Targets=%v, expected [110 120 130]", intent.Targets)
	}
}

func TestParseVariants(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantSymbol string
		wantSide   Side
		wantTgts   int
	}{
		{
			name:       "short signal lowercase keyword",
			text:       "# ENS / USDT\nshort lev x20\nEntry: 28.4\nStop Loss: 29.9\nTargets: 27.1-25.8",
			wantSymbol: "ENSUSDT",
			wantSide:   SideSell,
			wantTgts:   2,
		},
		{
			name:       "single target",
			text:       "#SOL/USDC Long Lev x5 Entry: 150 Stop Loss: 140 Targets: 170",
			wantSymbol: "SOLUSDC",
			wantSide:   SideBuy,
			wantTgts:   1,
		},
		{
			name:       "spaced targets",
			text:       "#LTC/USD\nLong Lev x10\nEntry: 80.25\nStop Loss: 76\nTargets: 84.5 - 88 - 92.75",
			wantSymbol: "LTCUSD",
			wantSide:   SideBuy,
			wantTgts:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, err := Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse returned error: %v", err)
			}
			if intent.Symbol != tt.wantSymbol {
				t.Fatalf("Symbol=%q, expected %q", intent.Symbol, tt.wantSymbol)
			}
			if intent.Side != tt.wantSide {
				t.Fatalf("Side=%q, expected %q", intent.Side, tt.wantSide)
			}
			if len(intent.Targets) != tt.wantTgts {
				t.Fatalf("Targets=%v, expected %d values", intent.Targets, tt.wantTgts)
			}
		})
	}
}

func TestParseRejectsNonSignals(t *testing.T) {
	texts := []string{
		"",
		"gm everyone, market looks bullish today",
		"Entry: 100 Stop Loss: 95 Targets: 110", // no direction or leverage marker
		"Long Lev x10 Entry: 100",               // truncated, no stop loss or targets
		"📈 Last 24 hours results: +14.57% 🟢",
	}
	for _, text := range texts {
		if _, err := Parse(text); !errors.Is(err, ErrNotSignal) {
			t.Fatalf("Parse(%q) err=%v, expected ErrNotSignal", text, err)
		}
		if IsSignalMessage(text) {
			t.Fatalf("IsSignalMessage(%q)=true, expected false", text)
		}
	}
}

func TestParseStructuralMatchWithMissingSymbol(t *testing.T) {
	// Qualifies structurally but has no #TICKER/QUOTE fragment.
	text := "Long Lev x10\nEntry: 100\nStop Loss: 95\nTargets: 110-120"
	if _, err := Parse(text); !errors.Is(err, ErrInvalidSignal) {
		t.Fatalf("err=%v, expected ErrInvalidSignal", err)
	}
}

func TestSideOpposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell || SideSell.Opposite() != SideBuy {
		t.Fatal("Opposite mapping broken")
	}
}
