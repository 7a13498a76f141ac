package price

import (
	"context"
	"fmt"
	"math"
)

// StakingResult is the projected outcome of staking with yearly compounding
// at a constant price.
type StakingResult struct {
	InitialTokens float64 `json:"initialTokens"`
	InitialValue  float64 `json:"initialValue"`
	CurrentPrice  float64 `json:"currentPrice"`
	FutureTokens  float64 `json:"futureTokens"`
	TokensEarned  float64 `json:"tokensEarned"`
	FutureValue   float64 `json:"futureValue"`
	ValueEarned   float64 `json:"valueEarned"`
	Years         float64 `json:"years"`
	APY           float64 `json:"apy"`
	CoinID        string  `json:"coinId"`
	Currency      string  `json:"currency"`
}

// CalculateStaking projects staking returns for amount tokens of coinID over
// years at apy percent, valued at today's price in currency.
func (c *Client) CalculateStaking(ctx context.Context, amount, years, apy float64, coinID, currency string) (*StakingResult, error) {
	prices, err := c.GetPrice(ctx, coinID, []string{currency})
	if err != nil {
		return nil, fmt.Errorf("calculate staking returns: %w", err)
	}
	fields, ok := prices[coinID]
	if !ok {
		return nil, fmt.Errorf("calculate staking returns: %w for %s", ErrNoPriceData, coinID)
	}
	current, ok := fields[currency]
	if !ok {
		return nil, fmt.Errorf("calculate staking returns: %w for %s in %s", ErrNoPriceData, coinID, currency)
	}

	return ProjectStaking(amount, years, apy, current, coinID, currency), nil
}

// ProjectStaking does the arithmetic of CalculateStaking for a known price.
func ProjectStaking(amount, years, apy, currentPrice float64, coinID, currency string) *StakingResult {
	futureTokens := amount * math.Pow(1+apy/100, years)
	initialValue := amount * currentPrice
	futureValue := futureTokens * currentPrice

	return &StakingResult{
		InitialTokens: amount,
		InitialValue:  initialValue,
		CurrentPrice:  currentPrice,
		FutureTokens:  futureTokens,
		TokensEarned:  futureTokens - amount,
		FutureValue:   futureValue,
		ValueEarned:   futureValue - initialValue,
		Years:         years,
		APY:           apy,
		CoinID:        coinID,
		Currency:      currency,
	}
}
