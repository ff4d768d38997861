package readcode

import (
	"errors"
	"math/rand"
	"testing"
)

func TestSubtreeLen(t *testing.T) {
	code := Code{2, 1, 0, 2, 0, 0}
	want := []int{6, 2, 1, 3, 1, 1}
	for pos, w := range want {
		if got := code.SubtreeLen(pos); got != w {
			t.Fatalf("subtree len at %d: got=%d want=%d", pos, got, w)
		}
	}
	spans := code.Spans()
	for pos, w := range want {
		if spans[pos] != w {
			t.Fatalf("spans[%d]: got=%d want=%d", pos, spans[pos], w)
		}
	}
}

func TestValidateRejectsMalformedCode(t *testing.T) {
	cases := []Code{
		nil,
		{2, 0},
		{0, 0},
		{1, 0, 0},
		{3, 0, 0},
	}
	for _, c := range cases {
		if err := c.Validate(); err == nil {
			t.Fatalf("expected %v to be rejected", []uint8(c))
		}
	}
	if err := (Code{1, 2, 0, 0}).Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := (Code{1}).Validate(); !errors.Is(err, ErrMalformedCode) {
		t.Fatalf("expected malformed code error, got %v", err)
	}
}

func TestSubtreeLenPanicsOnOpenTree(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	Code{2, 0}.SubtreeLen(0)
}

func TestChildren(t *testing.T) {
	code := Code{3, 1, 0, 0, 2, 0, 0}
	got := code.Children(0)
	want := []int{1, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("children: got=%v want=%v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("children: got=%v want=%v", got, want)
		}
	}
}

func TestStringAndParse(t *testing.T) {
	code := Code{2, 1, 0, 0}
	if code.String() != "2100" {
		t.Fatalf("unexpected string: %s", code.String())
	}
	parsed, err := Parse("2100")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.String() != "2100" {
		t.Fatalf("unexpected parsed code: %v", parsed)
	}

	wide := make(Code, 13)
	wide[0] = 12
	if wide.String() != "12.0.0.0.0.0.0.0.0.0.0.0.0" {
		t.Fatalf("unexpected wide string: %s", wide.String())
	}
	parsed, err = Parse(wide.String())
	if err != nil {
		t.Fatalf("parse wide: %v", err)
	}
	if len(parsed) != 13 || parsed[0] != 12 {
		t.Fatalf("unexpected parsed wide code: %v", []uint8(parsed))
	}
	if _, err := Parse("20"); err == nil {
		t.Fatal("expected malformed code error")
	}
}

func TestSpliceDoesNotAlias(t *testing.T) {
	src := Code{2, 0, 0}
	out := Splice(src, 1, 1, Code{1, 0})
	if out.String() != "2100" {
		t.Fatalf("unexpected splice: %s", out)
	}
	out[0] = 9
	if src[0] != 2 {
		t.Fatal("splice aliased its input")
	}
}

func TestRandomRoundTrip(t *testing.T) {
	g, err := NewGenerator(rand.New(rand.NewSource(42)), Window{})
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	for n := 1; n <= 80; n++ {
		code, err := g.Random(n)
		if err != nil {
			t.Fatalf("random(%d): %v", n, err)
		}
		if len(code) != n {
			t.Fatalf("random(%d): got length %d", n, len(code))
		}
		if got := SubtreeLength(code, 0); got != n {
			t.Fatalf("random(%d): subtree length %d", n, got)
		}
		if code[n-1] != 0 {
			t.Fatalf("random(%d): last digit %d", n, code[n-1])
		}
	}
}

func TestChildSpansSumToParent(t *testing.T) {
	g, _ := NewGenerator(rand.New(rand.NewSource(7)), Window{Max: 4})
	for trial := 0; trial < 50; trial++ {
		code, err := g.Random(1 + trial)
		if err != nil {
			t.Fatalf("random: %v", err)
		}
		for p := range code {
			if code[p] == 0 {
				continue
			}
			total := 1
			for _, child := range code.Children(p) {
				total += code.SubtreeLen(child)
			}
			if total != code.SubtreeLen(p) {
				t.Fatalf("code %s pos %d: children sum %d, span %d", code, p, total, code.SubtreeLen(p))
			}
		}
	}
}
