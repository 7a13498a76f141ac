package tools

import (
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/xeipuuv/gojsonschema"

	"github.com/edibez/mcplab/internal/ai"
)

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// Definition describes a tool the way function calling APIs expect it.
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

func stringProp(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

func numberProp(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "minimum": 0, "description": desc}
}

func object(props map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var definitions = []Definition{
	{
		Name:        ai.ToolSearch,
		Description: "Search for information",
		Parameters: object(map[string]interface{}{
			"query": stringProp("The search query"),
		}, "query"),
	},
	{
		Name:        ai.ToolPersonas,
		Description: "Get information about IOG personas",
		Parameters: object(map[string]interface{}{
			"query": stringProp("The persona to get information about"),
			"name":  stringProp(`The name of the persona to retrieve, or "all" for all personas`),
		}),
	},
	{
		Name:        ai.ToolProducts,
		Description: "Get information about IOG products",
		Parameters: object(map[string]interface{}{
			"query":    stringProp("The product to get information about"),
			"name":     stringProp(`The name of the product to retrieve, or "all" for all products`),
			"detailed": map[string]interface{}{"type": "boolean", "description": "Whether to include the product document"},
		}),
	},
	{
		Name:        ai.ToolExecutives,
		Description: "Get information about the IOG leadership team",
		Parameters: object(map[string]interface{}{
			"query": stringProp("The executive or leadership question"),
			"name":  stringProp("The executive id or name"),
		}),
	},
	{
		Name:        ai.ToolCalculator,
		Description: "Perform mathematical calculations and count catalog entries",
		Parameters: object(map[string]interface{}{
			"query":      stringProp("The calculation to perform"),
			"expression": stringProp("The mathematical expression to evaluate"),
		}),
	},
	{
		Name:        ai.ToolCryptoPrice,
		Description: "Get cryptocurrency prices, search coins and project staking returns",
		Parameters: object(map[string]interface{}{
			"query": stringProp("The pricing or staking question in the user's words"),
			"action": map[string]interface{}{
				"type": "string",
				"enum": []string{string(ai.ActionGetPrice), string(ai.ActionSearch), string(ai.ActionCalculateStaking)},
			},
			"coinId":   map[string]interface{}{"type": "string", "enum": ai.CoinIDs()},
			"currency": map[string]interface{}{"type": "string", "enum": ai.Currencies()},
			"amount":   numberProp("Amount of tokens to stake"),
			"years":    numberProp("Staking duration in years"),
			"apy":      numberProp("Annual percentage yield"),
		}),
	},
	{
		Name:        ai.ToolGlobalMemory,
		Description: "Access global memory",
		Parameters: object(map[string]interface{}{
			"query": stringProp("The question the memory should help answer"),
		}),
	},
}

// Registry holds the tool definitions and their compiled schemas.
type Registry struct {
	defs    []Definition
	schemas map[string]*gojsonschema.Schema
}

// NewRegistry compiles the schema of every built-in tool.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		defs:    definitions,
		schemas: make(map[string]*gojsonschema.Schema, len(definitions)),
	}
	for _, def := range definitions {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.Parameters))
		if err != nil {
			return nil, fmt.Errorf("compile schema of %s: %w", def.Name, err)
		}
		r.schemas[def.Name] = schema
	}
	return r, nil
}

// Definitions returns the definitions in display order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Map returns the definitions keyed by tool name.
func (r *Registry) Map() map[string]Definition {
	out := make(map[string]Definition, len(r.defs))
	for _, d := range r.defs {
		out[d.Name] = d
	}
	return out
}

// OpenAITools renders the definitions as chat completion tools.
func (r *Registry) OpenAITools() []openai.Tool {
	out := make([]openai.Tool, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return out
}

// Validate checks args against the schema of tool.
func (r *Registry) Validate(tool string, args map[string]interface{}) error {
	schema, ok := r.schemas[tool]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTool, tool)
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidArguments, strings.Join(msgs, "; "))
	}
	return nil
}
