package symbolic

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"symreg/internal/readcode"
)

var ErrUnknownOperator = errors.New("unknown operator")

// ConstantPolicy controls promotion of leaves to embedded constants drawn
// uniformly from [Min,Max].
type ConstantPolicy struct {
	Enabled     bool
	Probability float64
	Min         float64
	Max         float64
}

type RegistryConfig struct {
	Operators []string
	Variable  string
	Constants ConstantPolicy
}

func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Operators: []string{"add", "sub", "mul", "div", "neg", "sqr", "sqrt", "sin", "cos", "exp", "ln"},
		Variable:  "x",
		Constants: ConstantPolicy{Enabled: true, Probability: 0.3, Min: -5, Max: 5},
	}
}

// Registry is the immutable operator configuration every tree is built
// against. Internal arities must form a contiguous window.
type Registry struct {
	byArity   [][]OpKind
	window    readcode.Window
	variable  string
	constants ConstantPolicy
	names     []string
}

func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if len(cfg.Operators) == 0 {
		return nil, fmt.Errorf("at least one operator is required")
	}
	variable := strings.TrimSpace(cfg.Variable)
	if variable == "" {
		variable = "x"
	}
	if !isIdentifier(variable) {
		return nil, fmt.Errorf("variable name must be an identifier: %q", variable)
	}
	if _, clash := LookupName(variable); clash {
		return nil, fmt.Errorf("variable name %q collides with an operator", variable)
	}
	c := cfg.Constants
	if c.Enabled {
		if c.Probability < 0 || c.Probability > 1 {
			return nil, fmt.Errorf("constant probability must be in [0,1]: %v", c.Probability)
		}
		if c.Min > c.Max {
			return nil, fmt.Errorf("constant range min %v exceeds max %v", c.Min, c.Max)
		}
	}

	r := &Registry{variable: variable, constants: c}
	seen := make(map[OpKind]bool, len(cfg.Operators))
	for _, name := range cfg.Operators {
		op, ok := LookupName(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOperator, name)
		}
		if seen[op.Kind] {
			return nil, fmt.Errorf("duplicate operator: %s", op.Name)
		}
		seen[op.Kind] = true
		for len(r.byArity) <= op.Arity {
			r.byArity = append(r.byArity, nil)
		}
		r.byArity[op.Arity] = append(r.byArity[op.Arity], op.Kind)
		r.names = append(r.names, op.Name)
	}

	minArity, maxArity := 0, len(r.byArity)-1
	for a := 1; a <= maxArity; a++ {
		if len(r.byArity[a]) > 0 {
			minArity = a
			break
		}
	}
	if minArity == 0 {
		return nil, fmt.Errorf("at least one operator of arity >= 1 is required")
	}
	for a := minArity; a <= maxArity; a++ {
		if len(r.byArity[a]) == 0 {
			return nil, fmt.Errorf("operators must cover every arity in [%d,%d]: none of arity %d", minArity, maxArity, a)
		}
	}
	r.window = readcode.Window{Min: minArity, Max: maxArity}
	return r, nil
}

// Window is the arity window derived from the registered operators.
func (r *Registry) Window() readcode.Window {
	return r.window
}

func (r *Registry) Variable() string {
	return r.variable
}

func (r *Registry) Constants() ConstantPolicy {
	return r.constants
}

// Names lists the registered operators in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Operators returns the registered kinds of the given arity.
func (r *Registry) Operators(arity int) []OpKind {
	if arity < 0 || arity >= len(r.byArity) {
		return nil
	}
	return append([]OpKind(nil), r.byArity[arity]...)
}

// AttachSymbols picks a symbol for every node of code: a uniformly chosen
// operator of matching arity for internal nodes, and for leaves the variable
// or a nullary operator, promoted to a constant per the constant policy.
func (r *Registry) AttachSymbols(code readcode.Code, rng *rand.Rand) []Symbol {
	symbols := make([]Symbol, len(code))
	for i, d := range code {
		symbols[i] = r.randomSymbol(int(d), rng)
	}
	return symbols
}

func (r *Registry) randomSymbol(arity int, rng *rand.Rand) Symbol {
	if arity > 0 {
		if arity >= len(r.byArity) || len(r.byArity[arity]) == 0 {
			panic(fmt.Sprintf("symbolic: no operator of arity %d registered", arity))
		}
		ops := r.byArity[arity]
		return Op(ops[rng.Intn(len(ops))])
	}
	c := r.constants
	if c.Enabled && rng.Float64() < c.Probability {
		return Const(c.Min + rng.Float64()*(c.Max-c.Min))
	}
	var nullary []OpKind
	if len(r.byArity) > 0 {
		nullary = r.byArity[0]
	}
	k := rng.Intn(len(nullary) + 1)
	if k == 0 {
		return Var()
	}
	return Op(nullary[k-1])
}

func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return s != ""
}
