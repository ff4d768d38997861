// Package formula compiles formula strings, as printed by symbolic trees or
// typed by a user, into evaluable expressions of one variable.
package formula

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/PaesslerAG/gval"
	lru "github.com/hashicorp/golang-lru"

	"symreg/internal/symbolic"
)

const DefaultCacheSize = 256

var ErrInvalidFormula = errors.New("invalid formula")

// Compiler parses formulas over a single named variable. Compiled
// expressions are cached by source text.
type Compiler struct {
	variable string
	lang     gval.Language
	cache    *lru.Cache
}

func NewCompiler(variable string, cacheSize int) (*Compiler, error) {
	if variable == "" {
		return nil, fmt.Errorf("%w: variable name is required", ErrInvalidFormula)
	}
	if _, clash := symbolic.LookupName(variable); clash {
		return nil, fmt.Errorf("%w: variable %q shadows an operator", ErrInvalidFormula, variable)
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Compiler{variable: variable, lang: language(), cache: cache}, nil
}

func (c *Compiler) Variable() string {
	return c.variable
}

// Compile parses expr and checks it evaluates to a number.
func (c *Compiler) Compile(expr string) (*Expression, error) {
	if cached, ok := c.cache.Get(expr); ok {
		return cached.(*Expression), nil
	}
	evaluable, err := c.lang.NewEvaluable(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidFormula, expr, err)
	}
	e := &Expression{source: expr, variable: c.variable, eval: evaluable}
	if _, err := e.eval.EvalFloat64(context.Background(), e.params(1)); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidFormula, expr, err)
	}
	c.cache.Add(expr, e)
	return e, nil
}

// Len reports how many compiled formulas are cached.
func (c *Compiler) Len() int {
	return c.cache.Len()
}

// Expression is a compiled formula, safe for concurrent use.
type Expression struct {
	source   string
	variable string
	eval     gval.Evaluable
}

func (e *Expression) String() string {
	return e.source
}

// Eval returns NaN where the formula is undefined.
func (e *Expression) Eval(x float64) float64 {
	v, err := e.eval.EvalFloat64(context.Background(), e.params(x))
	if err != nil {
		return math.NaN()
	}
	return v
}

func (e *Expression) EvalAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = e.Eval(x)
	}
	return out
}

func (e *Expression) params(x float64) map[string]interface{} {
	return map[string]interface{}{
		e.variable: x,
		"pi":       math.Pi,
		"e":        math.E,
	}
}

// language mirrors the operator table: every operator is callable by name,
// and the infix forms share its domain rules.
func language() gval.Language {
	opts := []gval.Language{
		gval.Arithmetic(),
		gval.InfixNumberOperator("/", infix(symbolic.OpDiv)),
		gval.InfixNumberOperator("%", infix(symbolic.OpMod)),
	}
	for _, name := range symbolic.OperatorNames() {
		op, _ := symbolic.LookupName(name)
		if op.Arity == 0 {
			continue
		}
		opts = append(opts, gval.Function(name, call(op)))
	}
	return gval.NewLanguage(opts...)
}

func infix(kind symbolic.OpKind) func(a, b float64) (interface{}, error) {
	op, _ := symbolic.Lookup(kind)
	return func(a, b float64) (interface{}, error) {
		return op.Apply(a, b), nil
	}
}

func call(op symbolic.Operator) func(args ...interface{}) (interface{}, error) {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != op.Arity {
			return nil, fmt.Errorf("%s expects %d arguments, got %d", op.Name, op.Arity, len(args))
		}
		values := make([]float64, len(args))
		for i, arg := range args {
			v, ok := arg.(float64)
			if !ok {
				return nil, fmt.Errorf("%s argument %d: expected number, got %T", op.Name, i+1, arg)
			}
			values[i] = v
		}
		return op.Apply(values...), nil
	}
}
