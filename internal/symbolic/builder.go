package symbolic

import (
	"fmt"
	"math/rand"

	"symreg/internal/readcode"
)

// Builder creates and varies trees for one registry, drawing all randomness
// from a single source.
type Builder struct {
	reg *Registry
	gen *readcode.Generator
	rng *rand.Rand
}

func NewBuilder(reg *Registry, rng *rand.Rand) (*Builder, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	gen, err := readcode.NewGenerator(rng, reg.Window())
	if err != nil {
		return nil, err
	}
	return &Builder{reg: reg, gen: gen, rng: rng}, nil
}

func (b *Builder) Registry() *Registry {
	return b.reg
}

// Feasible reports whether a tree of n nodes can be built.
func (b *Builder) Feasible(n int) bool {
	return n >= 1 && b.reg.Window().Feasible(n)
}

// Random builds a random tree of exactly n nodes.
func (b *Builder) Random(n int) (*Tree, error) {
	code, err := b.gen.Random(n)
	if err != nil {
		return nil, err
	}
	return build(b.reg, code, b.reg.AttachSymbols(code, b.rng)), nil
}

// Mutate returns a copy of t whose subtree at the mutated position carries
// fresh symbols. Every other symbol is kept verbatim.
func (b *Builder) Mutate(t *Tree, opts readcode.MutateOptions) (*Tree, readcode.Mutation) {
	code, m := b.gen.Mutate(t.code, opts)
	fresh := b.reg.AttachSymbols(code[m.Pos:m.Pos+m.NewLen], b.rng)
	symbols := readcode.Splice(t.symbols, m.Pos, m.OldLen, fresh)
	return build(b.reg, code, symbols), m
}

// Cross exchanges one subtree between x and y, symbols travelling with
// their nodes.
func (b *Builder) Cross(x, y *Tree, opts readcode.CrossOptions) (*Tree, *Tree, readcode.Crossover) {
	cx, cy, c := b.gen.Cross(x.code, y.code, opts)
	sx := readcode.Splice(x.symbols, c.PosA, c.LenA, y.symbols[c.PosB:c.PosB+c.LenB])
	sy := readcode.Splice(y.symbols, c.PosB, c.LenB, x.symbols[c.PosA:c.PosA+c.LenA])
	return build(b.reg, cx, sx), build(b.reg, cy, sy), c
}
