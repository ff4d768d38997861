package formula_test

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"symreg/internal/formula"
	"symreg/internal/symbolic"
)

var _ = Describe("Compiler", func() {
	var compiler *formula.Compiler

	BeforeEach(func() {
		var err error
		compiler, err = formula.NewCompiler("x", 8)
		Expect(err).ToNot(HaveOccurred())
	})

	DescribeTable("Eval",
		func(expr string, x float64, expected float64) {
			e, err := compiler.Compile(expr)
			Expect(err).ToNot(HaveOccurred())
			Expect(e.Eval(x)).To(BeNumerically("~", expected, 1e-12))
		},
		Entry("sum", "(x + 1)", 2.0, 3.0),
		Entry("nested", "(x * sin(x))", math.Pi/2, math.Pi/2),
		Entry("negation", "(-x)", 4.0, -4.0),
		Entry("negative constant", "(x - (-2.5))", 1.0, 3.5),
		Entry("inverse", "(1 / x)", 4.0, 0.25),
		Entry("modulo", "(x % 3)", 7.0, 1.0),
		Entry("power", "pow(x, 3)", 2.0, 8.0),
		Entry("named constants", "(pi + e)", 0.0, math.Pi+math.E),
		Entry("ternary", "ifpos(x, 1, 2)", -1.0, 2.0),
		Entry("min", "min(x, 0.5)", 3.0, 0.5),
		Entry("exponent literal", "(x * 1e-07)", 2.0, 2e-07),
		Entry("operator by name", "add(x, sqr(x))", 3.0, 12.0),
	)

	DescribeTable("domain errors yield NaN",
		func(expr string, x float64) {
			e, err := compiler.Compile(expr)
			Expect(err).ToNot(HaveOccurred())
			Expect(math.IsNaN(e.Eval(x))).To(BeTrue())
		},
		Entry("division by zero", "(1 / x)", 0.0),
		Entry("modulo by zero", "(x % 0)", 5.0),
		Entry("sqrt of negative", "sqrt(x)", -1.0),
		Entry("log of zero", "ln(x)", 0.0),
		Entry("propagates", "(sqrt(x) + 1)", -4.0),
	)

	It("rejects malformed formulas", func() {
		for _, expr := range []string{"(x +", "y + 1", "sin(x, x)"} {
			_, err := compiler.Compile(expr)
			Expect(errors.Is(err, formula.ErrInvalidFormula)).To(BeTrue(), expr)
		}
	})

	It("caches compiled formulas", func() {
		a, err := compiler.Compile("(x + 1)")
		Expect(err).ToNot(HaveOccurred())
		b, err := compiler.Compile("(x + 1)")
		Expect(err).ToNot(HaveOccurred())
		Expect(b).To(BeIdenticalTo(a))
		Expect(compiler.Len()).To(Equal(1))
	})

	It("evicts beyond its capacity", func() {
		for i := 0; i < 20; i++ {
			_, err := compiler.Compile(fmt.Sprintf("(x + %d)", i))
			Expect(err).ToNot(HaveOccurred())
		}
		Expect(compiler.Len()).To(Equal(8))
	})

	It("refuses a variable named like an operator", func() {
		_, err := formula.NewCompiler("sin", 0)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Tree formulas", func() {
	It("evaluate the same as the tree they were printed from", func() {
		reg, err := symbolic.NewRegistry(symbolic.RegistryConfig{
			Operators: symbolic.OperatorNames(),
			Variable:  "x",
			Constants: symbolic.ConstantPolicy{Enabled: true, Probability: 0.3, Min: -5, Max: 5},
		})
		Expect(err).ToNot(HaveOccurred())
		builder, err := symbolic.NewBuilder(reg, rand.New(rand.NewSource(11)))
		Expect(err).ToNot(HaveOccurred())
		compiler, err := formula.NewCompiler("x", 0)
		Expect(err).ToNot(HaveOccurred())

		xs := []float64{-2.5, -1, 0, 0.5, 1, 3}
		for i := 0; i < 200; i++ {
			tree, err := builder.Random(1 + i%15)
			Expect(err).ToNot(HaveOccurred())
			e, err := compiler.Compile(tree.String())
			Expect(err).ToNot(HaveOccurred(), tree.String())
			for _, x := range xs {
				want := tree.Eval(x)
				got := e.Eval(x)
				if math.IsNaN(want) {
					Expect(math.IsNaN(got)).To(BeTrue(), "%s at %g", tree.String(), x)
					continue
				}
				Expect(got).To(Equal(want), "%s at %g", tree.String(), x)
			}
		}
	})
})
