package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a named entry does not exist.
var ErrNotFound = errors.New("not found")

// Executive is a member of the leadership team.
type Executive struct {
	Name     string `json:"name" yaml:"name"`
	Position string `json:"position" yaml:"position"`
	Bio      string `json:"bio" yaml:"bio"`
}

// Catalog holds the static persona, product and executive data.
type Catalog struct {
	dir        string
	personas   map[string]string
	products   map[string]string
	executives map[string]Executive
}

var defaultPersonas = map[string]string{
	"crypto zero":         "A person with no knowledge or experience with cryptocurrency.",
	"crypto novice":       "Someone who has heard of cryptocurrency but has minimal understanding.",
	"crypto savvy":        "An individual with good understanding of cryptocurrency concepts and some experience.",
	"crypto literate":     "A person who understands cryptocurrency well and actively uses it.",
	"crypto traders":      "People who actively trade cryptocurrencies as a significant activity.",
	"builder":             "A developer or creator building applications on blockchain technology.",
	"dapp developers":     "Developers specialized in creating decentralized applications.",
	"stakepool operators": "Individuals who run stake pools for proof-of-stake blockchains.",
}

var defaultProducts = map[string]string{
	"realfi":   "RealFi is Input Output Global's initiative to bridge the gap between traditional finance and blockchain technology.",
	"lace":     "Lace is Input Output Global's light wallet platform for managing digital assets on the Cardano blockchain.",
	"midnight": "Midnight is a privacy-focused sidechain project developed by Input Output Global.",
}

var defaultExecutives = map[string]Executive{
	"charles_hoskinson": {
		Name:     "Charles Hoskinson",
		Position: "Founder and CEO",
		Bio:      "Charles Hoskinson founded Input Output Global and leads its research-driven approach to blockchain engineering.",
	},
	"tamara_haasen": {
		Name:     "Tamara Haasen",
		Position: "President",
		Bio:      "Tamara Haasen oversees operations and strategy across Input Output Global.",
	},
	"romain_pellerin": {
		Name:     "Romain Pellerin",
		Position: "Chief Technology Officer",
		Bio:      "Romain Pellerin leads the engineering organisation behind Cardano and related products.",
	},
}

// Load reads personas, products and executives from dir. Each dataset may be
// a .json, .yaml or .yml file; a missing file falls back to built-in data.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{dir: dir}

	personas := map[string]string{}
	found, err := loadDataset(dir, "personas", &personas)
	if err != nil {
		return nil, err
	}
	if !found {
		personas = copyStrings(defaultPersonas)
	}
	c.personas = personas

	products := map[string]string{}
	found, err = loadDataset(dir, "products", &products)
	if err != nil {
		return nil, err
	}
	if !found {
		products = copyStrings(defaultProducts)
	}
	c.products = products

	executives := map[string]Executive{}
	found, err = loadDataset(dir, "executives", &executives)
	if err != nil {
		return nil, err
	}
	if !found {
		executives = make(map[string]Executive, len(defaultExecutives))
		for k, v := range defaultExecutives {
			executives[k] = v
		}
	}
	c.executives = executives

	return c, nil
}

func loadDataset(dir, name string, out interface{}) (bool, error) {
	if dir == "" {
		return false, nil
	}
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(dir, name+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("read %s: %w", path, err)
		}
		if ext == ".json" {
			err = json.Unmarshal(data, out)
		} else {
			err = yaml.Unmarshal(data, out)
		}
		if err != nil {
			return false, fmt.Errorf("parse %s: %w", path, err)
		}
		return true, nil
	}
	return false, nil
}

// Personas returns all personas by name.
func (c *Catalog) Personas() map[string]string { return copyStrings(c.personas) }

// Products returns all products by name.
func (c *Catalog) Products() map[string]string { return copyStrings(c.products) }

// Executives returns the leadership team by id.
func (c *Catalog) Executives() map[string]Executive {
	out := make(map[string]Executive, len(c.executives))
	for k, v := range c.executives {
		out[k] = v
	}
	return out
}

// Persona looks up a persona case-insensitively.
func (c *Catalog) Persona(name string) (string, string, error) {
	return lookupFold(c.personas, name, "persona")
}

// Product looks up a product case-insensitively.
func (c *Catalog) Product(name string) (string, string, error) {
	return lookupFold(c.products, name, "product")
}

// MatchPersona returns the first persona (in name order) mentioned in query.
func (c *Catalog) MatchPersona(query string) (string, bool) {
	return firstMentioned(c.personas, query)
}

// MatchProduct returns the first product (in name order) mentioned in query.
func (c *Catalog) MatchProduct(query string) (string, bool) {
	return firstMentioned(c.products, query)
}

// MatchExecutive finds the executive a query is about, by name, by id with
// underscores read as spaces, or by position.
func (c *Catalog) MatchExecutive(query string) (string, bool) {
	lower := strings.ToLower(query)
	for _, id := range sortedKeys(c.executives) {
		e := c.executives[id]
		if strings.Contains(lower, strings.ToLower(e.Name)) ||
			strings.Contains(lower, strings.ReplaceAll(id, "_", " ")) ||
			(e.Position != "" && strings.Contains(lower, strings.ToLower(e.Position))) {
			return id, true
		}
	}
	return "", false
}

var safeName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ProductDetails returns the markdown document of a product, stored as
// <dir>/products/<Name>.md.
func (c *Catalog) ProductDetails(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !safeName.MatchString(name) || c.dir == "" {
		return "", fmt.Errorf("product %q: %w", name, ErrNotFound)
	}

	path := filepath.Join(c.dir, "products", strings.ToUpper(name[:1])+name[1:]+".md")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("product %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func lookupFold(m map[string]string, name, kind string) (string, string, error) {
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return k, v, nil
		}
	}
	return "", "", fmt.Errorf("%s %q: %w", kind, name, ErrNotFound)
}

func firstMentioned(m map[string]string, query string) (string, bool) {
	lower := strings.ToLower(query)
	for _, k := range sortedKeys(m) {
		if strings.Contains(lower, strings.ToLower(k)) {
			return k, true
		}
	}
	return "", false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
