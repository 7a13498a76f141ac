package ai

import "strings"

// Keyword maps a word found in a prompt to the value it stands for.
type Keyword struct {
	Word  string
	Value string
}

const (
	DefaultCoinID   = "cardano"
	DefaultCurrency = "usd"
)

// Ordered coin aliases. The first alias present in the prompt wins, so "ada"
// is checked before "btc" even when both appear.
var coinTable = []Keyword{
	{"ada", "cardano"},
	{"cardano", "cardano"},
	{"btc", "bitcoin"},
	{"bitcoin", "bitcoin"},
	{"eth", "ethereum"},
	{"ethereum", "ethereum"},
	{"dot", "polkadot"},
	{"polkadot", "polkadot"},
	{"sol", "solana"},
	{"solana", "solana"},
}

var currencyTable = []string{"usd", "eur", "gbp", "jpy", "btc", "eth"}

// CoinIDs returns the distinct coin identifiers known to the extractor, in
// table order.
func CoinIDs() []string {
	var ids []string
	seen := make(map[string]bool)
	for _, k := range coinTable {
		if !seen[k.Value] {
			ids = append(ids, k.Value)
			seen[k.Value] = true
		}
	}
	return ids
}

// Currencies returns the supported fiat/crypto quote currencies.
func Currencies() []string {
	out := make([]string, len(currencyTable))
	copy(out, currencyTable)
	return out
}

// IsCoin reports whether id is one of the known coin identifiers.
func IsCoin(id string) bool {
	for _, k := range coinTable {
		if k.Value == id {
			return true
		}
	}
	return false
}

// IsCurrency reports whether code is a supported quote currency.
func IsCurrency(code string) bool {
	for _, c := range currencyTable {
		if c == code {
			return true
		}
	}
	return false
}

func lookupKeyword(table []Keyword, text string) (string, bool) {
	for _, k := range table {
		if strings.Contains(text, k.Word) {
			return k.Value, true
		}
	}
	return "", false
}

func firstContained(list []string, text string) (string, bool) {
	for _, w := range list {
		if strings.Contains(text, w) {
			return w, true
		}
	}
	return "", false
}

func containsAny(text string, words ...string) bool {
	_, ok := firstContained(words, text)
	return ok
}
