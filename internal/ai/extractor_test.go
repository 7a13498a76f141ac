package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCryptoParams(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   ExtractedParams
	}{
		{
			name:   "staking with everything",
			prompt: "stake 1,000 ADA for 3 years at 7% apy",
			want: ExtractedParams{
				Action: ActionCalculateStaking, CoinID: "cardano", Currency: "usd",
				Amount: 1000, Years: 3, APY: 7,
			},
		},
		{
			name:   "amount after stake",
			prompt: "I have 3 wallets, stake 1,250 for 2 years",
			want: ExtractedParams{
				Action: ActionCalculateStaking, CoinID: "cardano", Currency: "usd",
				Amount: 1250, Years: 2, APY: 5,
			},
		},
		{
			name:   "first number anywhere",
			prompt: "staking rewards for 2500 at 4.5% apy for 2 yrs",
			want: ExtractedParams{
				Action: ActionCalculateStaking, CoinID: "cardano", Currency: "usd",
				Amount: 2500, Years: 2, APY: 4.5,
			},
		},
		{
			name:   "decimal amount with grouping",
			prompt: "Stake 12,345.67 tokens for 10 year at 3.25 percent",
			want: ExtractedParams{
				Action: ActionCalculateStaking, CoinID: "cardano", Currency: "usd",
				Amount: 12345.67, Years: 10, APY: 3.25,
			},
		},
		{
			name:   "fractional years",
			prompt: "staking 2000 ada for 1.5 years at 4% apy",
			want: ExtractedParams{
				Action: ActionCalculateStaking, CoinID: "cardano", Currency: "usd",
				Amount: 2000, Years: 1.5, APY: 4,
			},
		},
		{
			name:   "staking defaults",
			prompt: "What APY do I get from staking?",
			want: ExtractedParams{
				Action: ActionCalculateStaking, CoinID: "cardano", Currency: "usd",
				Amount: DefaultStakeAmount, Years: DefaultStakeYears, APY: DefaultStakeAPY,
			},
		},
		{
			name:   "price of bitcoin in eur",
			prompt: "price of bitcoin in eur",
			want:   ExtractedParams{Action: ActionGetPrice, CoinID: "bitcoin", Currency: "eur"},
		},
		{
			name:   "eth in yen",
			prompt: "ETH price in JPY",
			want:   ExtractedParams{Action: ActionGetPrice, CoinID: "ethereum", Currency: "jpy"},
		},
		{
			name:   "solana",
			prompt: "how is solana doing",
			want:   ExtractedParams{Action: ActionGetPrice, CoinID: "solana", Currency: "usd"},
		},
		{
			name:   "price defaults",
			prompt: "current price please",
			want:   ExtractedParams{Action: ActionGetPrice, CoinID: "cardano", Currency: "usd"},
		},
		{
			name:   "search",
			prompt: "find solana",
			want: ExtractedParams{
				Action: ActionSearch, CoinID: "cardano", Currency: "usd", Query: "find solana",
			},
		},
		{
			name:   "list keeps case",
			prompt: "List Privacy Coins",
			want: ExtractedParams{
				Action: ActionSearch, CoinID: "cardano", Currency: "usd", Query: "List Privacy Coins",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCryptoParams(tt.prompt))
		})
	}
}

func TestExtractCryptoParams_FirstCoinInTableWins(t *testing.T) {
	// "ada" precedes "btc" in the table even though btc comes first in text.
	got := ExtractCryptoParams("btc vs ada price")
	assert.Equal(t, "cardano", got.CoinID)
}

func TestExtractCryptoParams_ValuesStayInTables(t *testing.T) {
	prompts := []string{
		"price of dogecoin in chf",
		"polkadot in gbp",
		"stake 99999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999",
		"",
	}
	for _, p := range prompts {
		got := ExtractCryptoParams(p)
		assert.True(t, IsCoin(got.CoinID), got.CoinID)
		assert.True(t, IsCurrency(got.Currency), got.Currency)
		assert.GreaterOrEqual(t, got.Amount, 0.0)
		assert.GreaterOrEqual(t, got.Years, 0.0)
		assert.GreaterOrEqual(t, got.APY, 0.0)
	}
}

func TestExtractCryptoParams_Idempotent(t *testing.T) {
	prompt := "stake 5,000 ADA for 4 years at 6% APY"
	assert.Equal(t, ExtractCryptoParams(prompt), ExtractCryptoParams(prompt))
}

func TestCoinIDs(t *testing.T) {
	assert.Equal(t, []string{"cardano", "bitcoin", "ethereum", "polkadot", "solana"}, CoinIDs())
}
