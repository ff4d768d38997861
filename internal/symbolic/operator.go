package symbolic

import (
	"fmt"
	"math"
	"sort"
)

// OpKind identifies one entry of the closed operator table.
type OpKind uint8

const (
	OpInvalid OpKind = iota
	OpPi
	OpE
	OpNeg
	OpAbs
	OpSquare
	OpSqrt
	OpCube
	OpCbrt
	OpExp
	OpLn
	OpSin
	OpAsin
	OpCos
	OpAcos
	OpTan
	OpAtan
	OpInv
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpMin
	OpMax
	OpIfPos
	opCount
)

// Operator is plain data: Template is a fmt format with one %s per operand,
// Inverse names the unary kind k for which op(k(y)) == y, if any.
type Operator struct {
	Kind     OpKind
	Name     string
	Arity    int
	Template string
	Inverse  OpKind
	eval     func(args []float64) float64
}

// Apply evaluates the operator. Domain errors yield NaN.
func (o Operator) Apply(args ...float64) float64 {
	if len(args) != o.Arity {
		panic(fmt.Sprintf("symbolic: %s takes %d operands, got %d", o.Name, o.Arity, len(args)))
	}
	return o.eval(args)
}

func (o Operator) format(args []string) string {
	operands := make([]any, len(args))
	for i, a := range args {
		operands[i] = a
	}
	return fmt.Sprintf(o.Template, operands...)
}

var operators = [opCount]Operator{
	OpPi:     {Kind: OpPi, Name: "pi", Arity: 0, Template: "pi", eval: func([]float64) float64 { return math.Pi }},
	OpE:      {Kind: OpE, Name: "e", Arity: 0, Template: "e", eval: func([]float64) float64 { return math.E }},
	OpNeg:    {Kind: OpNeg, Name: "neg", Arity: 1, Template: "(-%s)", Inverse: OpNeg, eval: unary(func(a float64) float64 { return -a })},
	OpAbs:    {Kind: OpAbs, Name: "abs", Arity: 1, Template: "abs(%s)", eval: unary(math.Abs)},
	OpSquare: {Kind: OpSquare, Name: "sqr", Arity: 1, Template: "sqr(%s)", Inverse: OpSqrt, eval: unary(func(a float64) float64 { return a * a })},
	OpSqrt:   {Kind: OpSqrt, Name: "sqrt", Arity: 1, Template: "sqrt(%s)", eval: unary(sqrt)},
	OpCube:   {Kind: OpCube, Name: "cube", Arity: 1, Template: "cube(%s)", Inverse: OpCbrt, eval: unary(func(a float64) float64 { return a * a * a })},
	OpCbrt:   {Kind: OpCbrt, Name: "cbrt", Arity: 1, Template: "cbrt(%s)", Inverse: OpCube, eval: unary(math.Cbrt)},
	OpExp:    {Kind: OpExp, Name: "exp", Arity: 1, Template: "exp(%s)", Inverse: OpLn, eval: unary(math.Exp)},
	OpLn:     {Kind: OpLn, Name: "ln", Arity: 1, Template: "ln(%s)", Inverse: OpExp, eval: unary(ln)},
	OpSin:    {Kind: OpSin, Name: "sin", Arity: 1, Template: "sin(%s)", Inverse: OpAsin, eval: unary(math.Sin)},
	OpAsin:   {Kind: OpAsin, Name: "asin", Arity: 1, Template: "asin(%s)", eval: unary(math.Asin)},
	OpCos:    {Kind: OpCos, Name: "cos", Arity: 1, Template: "cos(%s)", Inverse: OpAcos, eval: unary(math.Cos)},
	OpAcos:   {Kind: OpAcos, Name: "acos", Arity: 1, Template: "acos(%s)", eval: unary(math.Acos)},
	OpTan:    {Kind: OpTan, Name: "tan", Arity: 1, Template: "tan(%s)", Inverse: OpAtan, eval: unary(math.Tan)},
	OpAtan:   {Kind: OpAtan, Name: "atan", Arity: 1, Template: "atan(%s)", eval: unary(math.Atan)},
	OpInv:    {Kind: OpInv, Name: "inv", Arity: 1, Template: "(1 / %s)", Inverse: OpInv, eval: unary(func(a float64) float64 { return div(1, a) })},
	OpAdd:    {Kind: OpAdd, Name: "add", Arity: 2, Template: "(%s + %s)", eval: binary(func(a, b float64) float64 { return a + b })},
	OpSub:    {Kind: OpSub, Name: "sub", Arity: 2, Template: "(%s - %s)", eval: binary(func(a, b float64) float64 { return a - b })},
	OpMul:    {Kind: OpMul, Name: "mul", Arity: 2, Template: "(%s * %s)", eval: binary(func(a, b float64) float64 { return a * b })},
	OpDiv:    {Kind: OpDiv, Name: "div", Arity: 2, Template: "(%s / %s)", eval: binary(div)},
	OpMod:    {Kind: OpMod, Name: "mod", Arity: 2, Template: "(%s %% %s)", eval: binary(mod)},
	OpPow:    {Kind: OpPow, Name: "pow", Arity: 2, Template: "pow(%s, %s)", eval: binary(math.Pow)},
	OpMin:    {Kind: OpMin, Name: "min", Arity: 2, Template: "min(%s, %s)", eval: binary(math.Min)},
	OpMax:    {Kind: OpMax, Name: "max", Arity: 2, Template: "max(%s, %s)", eval: binary(math.Max)},
	OpIfPos:  {Kind: OpIfPos, Name: "ifpos", Arity: 3, Template: "ifpos(%s, %s, %s)", eval: ifPos},
}

var operatorsByName = func() map[string]OpKind {
	m := make(map[string]OpKind, len(operators))
	for _, op := range operators[1:] {
		m[op.Name] = op.Kind
	}
	return m
}()

func unary(f func(float64) float64) func([]float64) float64 {
	return func(args []float64) float64 { return f(args[0]) }
}

func binary(f func(float64, float64) float64) func([]float64) float64 {
	return func(args []float64) float64 { return f(args[0], args[1]) }
}

func sqrt(a float64) float64 {
	if a < 0 {
		return math.NaN()
	}
	return math.Sqrt(a)
}

func ln(a float64) float64 {
	if a <= 0 {
		return math.NaN()
	}
	return math.Log(a)
}

func div(a, b float64) float64 {
	if b == 0 {
		return math.NaN()
	}
	return a / b
}

func mod(a, b float64) float64 {
	if b == 0 {
		return math.NaN()
	}
	return math.Mod(a, b)
}

func ifPos(args []float64) float64 {
	if math.IsNaN(args[0]) {
		return math.NaN()
	}
	if args[0] > 0 {
		return args[1]
	}
	return args[2]
}

// Lookup returns the operator of the given kind.
func Lookup(kind OpKind) (Operator, bool) {
	if kind == OpInvalid || kind >= opCount {
		return Operator{}, false
	}
	return operators[kind], true
}

// LookupName returns the operator registered under name.
func LookupName(name string) (Operator, bool) {
	kind, ok := operatorsByName[name]
	if !ok {
		return Operator{}, false
	}
	return operators[kind], true
}

// OperatorNames lists every known operator, sorted.
func OperatorNames() []string {
	names := make([]string, 0, len(operatorsByName))
	for name := range operatorsByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (k OpKind) String() string {
	if op, ok := Lookup(k); ok {
		return op.Name
	}
	return fmt.Sprintf("op(%d)", uint8(k))
}

func mustOperator(kind OpKind) Operator {
	op, ok := Lookup(kind)
	if !ok {
		panic(fmt.Sprintf("symbolic: unknown operator kind %d", uint8(kind)))
	}
	return op
}
