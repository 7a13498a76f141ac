package tools

import (
	"strconv"
	"strings"
)

var currencySymbols = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"jpy": "¥",
	"btc": "₿",
	"eth": "Ξ",
}

// FormatCurrency renders value with the symbol of currency. Yen has no
// decimals, everything else two.
func FormatCurrency(value float64, currency string) string {
	currency = strings.ToLower(currency)
	decimals := 2
	if currency == "jpy" {
		decimals = 0
	}
	return currencySymbols[currency] + strconv.FormatFloat(value, 'f', decimals, 64)
}
