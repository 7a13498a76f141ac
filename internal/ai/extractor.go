package ai

import (
	"regexp"
	"strconv"
	"strings"
)

// Action is what the crypto-price tool should do with a prompt.
type Action string

const (
	ActionGetPrice         Action = "getPrice"
	ActionSearch           Action = "search"
	ActionCalculateStaking Action = "calculateStaking"
)

// Staking defaults used when the prompt does not say otherwise.
const (
	DefaultStakeAmount = 10000
	DefaultStakeYears  = 1
	DefaultStakeAPY    = 5
)

// ExtractedParams are the structured arguments of a crypto-price call.
type ExtractedParams struct {
	Action   Action  `json:"action"`
	CoinID   string  `json:"coinId"`
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount,omitempty"`
	Years    float64 `json:"years,omitempty"`
	APY      float64 `json:"apy,omitempty"`
	Query    string  `json:"query,omitempty"`
}

var (
	numberPattern = regexp.MustCompile(`\b(\d+(?:[,.]\d+)*)\b`)
	amountPattern = regexp.MustCompile(`\b(\d+(?:[,.]\d+)*)\s*(?:ada|cardano|tokens?|coins?)\b`)
	yearsPattern  = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*(?:years?|yrs?)\b`)
	// "%" is not a word character, so only the word suffixes take a boundary.
	apyPattern = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*(?:%|percent\b|apy\b)`)
)

// ExtractCryptoParams works out what a crypto-price prompt asks for. It is a
// pure function and never fails; unmatched fields keep their defaults.
func ExtractCryptoParams(prompt string) ExtractedParams {
	lower := strings.ToLower(prompt)
	params := ExtractedParams{
		Action:   ActionGetPrice,
		CoinID:   DefaultCoinID,
		Currency: DefaultCurrency,
	}

	switch {
	case containsAny(lower, "stake", "staking", "apy"):
		params.Action = ActionCalculateStaking
		params.Amount = stakeAmount(lower)
		params.Years = DefaultStakeYears
		params.APY = DefaultStakeAPY
		if v, ok := firstSubmatchNumber(yearsPattern, lower); ok {
			params.Years = v
		}
		if v, ok := firstSubmatchNumber(apyPattern, lower); ok {
			params.APY = v
		}

	case containsAny(lower, "find", "search", "list"):
		params.Action = ActionSearch
		params.Query = prompt

	default:
		if coin, ok := lookupKeyword(coinTable, lower); ok {
			params.CoinID = coin
		}
		if cur, ok := firstContained(currencyTable, lower); ok {
			params.Currency = cur
		}
	}

	return params
}

// stakeAmount resolves the staked amount: a number followed by a coin word,
// then the first number after "stake", then the first number at all.
func stakeAmount(lower string) float64 {
	if v, ok := firstSubmatchNumber(amountPattern, lower); ok {
		return v
	}

	numbers := numberPattern.FindAllStringSubmatchIndex(lower, -1)
	if idx := strings.Index(lower, "stake"); idx >= 0 {
		for _, m := range numbers {
			if m[0] <= idx {
				continue
			}
			if v, ok := parseNumber(lower[m[2]:m[3]]); ok {
				return v
			}
		}
	}
	for _, m := range numbers {
		if v, ok := parseNumber(lower[m[2]:m[3]]); ok {
			return v
		}
	}
	return DefaultStakeAmount
}

func firstSubmatchNumber(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	return parseNumber(m[1])
}

// parseNumber strips thousands separators and parses the rest. Values that
// do not parse or overflow to infinity are rejected.
func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
