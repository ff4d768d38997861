package symbolic

import (
	"fmt"
	"strconv"
	"strings"
)

type SymbolKind uint8

const (
	SymbolOperator SymbolKind = iota + 1
	SymbolVariable
	SymbolConstant
)

// Symbol is what a tree node means: an operator, the free variable, or an
// embedded constant.
type Symbol struct {
	Kind  SymbolKind
	Op    OpKind
	Value float64
}

func Var() Symbol {
	return Symbol{Kind: SymbolVariable}
}

func Const(v float64) Symbol {
	return Symbol{Kind: SymbolConstant, Value: v}
}

func Op(kind OpKind) Symbol {
	return Symbol{Kind: SymbolOperator, Op: kind}
}

// Arity is the number of children the symbol needs.
func (s Symbol) Arity() int {
	if s.Kind != SymbolOperator {
		return 0
	}
	return mustOperator(s.Op).Arity
}

const (
	varToken   = "var"
	constToken = "const:"
)

// EncodeSymbols renders symbols as stable text tokens for storage.
func EncodeSymbols(symbols []Symbol) []string {
	out := make([]string, len(symbols))
	for i, s := range symbols {
		switch s.Kind {
		case SymbolVariable:
			out[i] = varToken
		case SymbolConstant:
			out[i] = constToken + strconv.FormatFloat(s.Value, 'g', -1, 64)
		default:
			out[i] = mustOperator(s.Op).Name
		}
	}
	return out
}

// DecodeSymbols is the inverse of EncodeSymbols.
func DecodeSymbols(tokens []string) ([]Symbol, error) {
	out := make([]Symbol, len(tokens))
	for i, tok := range tokens {
		switch {
		case tok == varToken:
			out[i] = Var()
		case strings.HasPrefix(tok, constToken):
			v, err := strconv.ParseFloat(strings.TrimPrefix(tok, constToken), 64)
			if err != nil {
				return nil, fmt.Errorf("decode symbol %d: %w", i, err)
			}
			out[i] = Const(v)
		default:
			op, ok := LookupName(tok)
			if !ok {
				return nil, fmt.Errorf("decode symbol %d: %w: %s", i, ErrUnknownOperator, tok)
			}
			out[i] = Op(op.Kind)
		}
	}
	return out, nil
}
