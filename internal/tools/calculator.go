package tools

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

var (
	ErrBadExpression  = errors.New("not a valid arithmetic expression")
	ErrDivisionByZero = errors.New("division by zero")
)

var (
	thousandsPattern  = regexp.MustCompile(`(\d),(\d{3})`)
	expressionPattern = regexp.MustCompile(`[-+*/().\d\s]+`)
	operatorPattern   = regexp.MustCompile(`\d\s*[-+*/]\s*[(\d.-]`)
)

// Evaluate computes an arithmetic expression made of numbers, + - * /,
// unary signs and parentheses. Division is floating point.
func Evaluate(input string) (float64, error) {
	input = strings.TrimSpace(thousandsPattern.ReplaceAllString(input, "$1$2"))
	if input == "" {
		return 0, ErrBadExpression
	}

	tree, err := parser.Parse(input)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrBadExpression, input)
	}
	check := &arithmeticOnly{}
	ast.Walk(&tree.Node, check)
	if check.rejected != "" {
		return 0, fmt.Errorf("%w: %s not allowed", ErrBadExpression, check.rejected)
	}

	program, err := expr.Compile(input,
		expr.AsFloat64(),
		expr.Optimize(false),
		expr.Patch(floatLiterals{}),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrBadExpression, input)
	}
	out, err := expr.Run(program, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadExpression, err)
	}
	v, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrBadExpression, input)
	}

	if math.IsInf(v, 0) || math.IsNaN(v) {
		if check.divides {
			return 0, ErrDivisionByZero
		}
		return 0, fmt.Errorf("%w: result out of range", ErrBadExpression)
	}
	return v, nil
}

// arithmeticOnly rejects every node that is not a number literal or one of
// the four arithmetic operators.
type arithmeticOnly struct {
	rejected string
	divides  bool
}

func (a *arithmeticOnly) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IntegerNode, *ast.FloatNode:
	case *ast.UnaryNode:
		if n.Operator != "-" && n.Operator != "+" {
			a.reject(n.Operator)
		}
	case *ast.BinaryNode:
		switch n.Operator {
		case "+", "-", "*":
		case "/":
			a.divides = true
		default:
			a.reject(n.Operator)
		}
	default:
		a.reject(fmt.Sprintf("%T", n))
	}
}

func (a *arithmeticOnly) reject(what string) {
	if a.rejected == "" {
		a.rejected = what
	}
}

// floatLiterals turns integer literals into floats so products of large
// integers do not wrap around.
type floatLiterals struct{}

func (floatLiterals) Visit(node *ast.Node) {
	if n, ok := (*node).(*ast.IntegerNode); ok {
		ast.Patch(node, &ast.FloatNode{Value: float64(n.Value)})
	}
}

// FindExpression pulls the longest evaluable arithmetic expression out of
// free text, e.g. "Calculate 125 * 36 please" -> "125 * 36".
func FindExpression(text string) (string, bool) {
	text = thousandsPattern.ReplaceAllString(text, "$1$2")
	best := ""
	for _, candidate := range expressionPattern.FindAllString(text, -1) {
		candidate = strings.TrimSpace(candidate)
		if !operatorPattern.MatchString(candidate) || len(candidate) <= len(best) {
			continue
		}
		if _, err := Evaluate(candidate); err == nil {
			best = candidate
		}
	}
	return best, best != ""
}

// FormatNumber renders v without trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
