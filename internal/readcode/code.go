package readcode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrEmptyCode     = errors.New("empty code")
	ErrMalformedCode = errors.New("malformed code")
)

// Code is a rooted ordered tree written in prefix order as one digit per
// node, each digit being the node's child count.
type Code []uint8

// SubtreeLength returns the span of the subtree rooted at pos.
func SubtreeLength(code Code, pos int) int {
	return code.SubtreeLen(pos)
}

// SubtreeLen returns the smallest L for which the prefix balance starting at
// pos returns to zero after L nodes. It panics on malformed code.
func (c Code) SubtreeLen(pos int) int {
	if pos < 0 || pos >= len(c) {
		panic(fmt.Sprintf("readcode: position %d out of range [0,%d)", pos, len(c)))
	}
	open := 1
	for i := pos; i < len(c); i++ {
		open += int(c[i]) - 1
		if open == 0 {
			return i - pos + 1
		}
	}
	panic(fmt.Sprintf("readcode: subtree at %d of %s is not closed", pos, c))
}

// Validate reports whether c decodes to exactly one tree.
func (c Code) Validate() error {
	if len(c) == 0 {
		return ErrEmptyCode
	}
	open := 1
	for i, d := range c {
		open += int(d) - 1
		if open == 0 && i != len(c)-1 {
			return fmt.Errorf("%w: tree closes at %d with %d trailing nodes", ErrMalformedCode, i, len(c)-i-1)
		}
	}
	if open != 0 {
		return fmt.Errorf("%w: %d dangling children", ErrMalformedCode, open)
	}
	return nil
}

// Spans returns SubtreeLen for every position in a single backward pass.
func (c Code) Spans() []int {
	spans := make([]int, len(c))
	stack := make([]int, 0, len(c))
	for i := len(c) - 1; i >= 0; i-- {
		d := int(c[i])
		if d > len(stack) {
			panic(fmt.Sprintf("readcode: node %d of %s has %d children, only %d available", i, c, d, len(stack)))
		}
		span := 1
		for j := 0; j < d; j++ {
			span += stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		}
		spans[i] = span
		stack = append(stack, span)
	}
	if len(c) > 0 && len(stack) != 1 {
		panic(fmt.Sprintf("readcode: %s encodes %d trees", c, len(stack)))
	}
	return spans
}

// Children returns the positions of the direct children of the node at pos.
func (c Code) Children(pos int) []int {
	k := int(c[pos])
	out := make([]int, 0, k)
	next := pos + 1
	for j := 0; j < k; j++ {
		out = append(out, next)
		next += c.SubtreeLen(next)
	}
	return out
}

func (c Code) Clone() Code {
	return append(Code(nil), c...)
}

// String writes digits back to back, or dot separated when any digit needs
// more than one character.
func (c Code) String() string {
	wide := false
	for _, d := range c {
		if d > 9 {
			wide = true
			break
		}
	}
	var b strings.Builder
	for i, d := range c {
		if wide && i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(int(d)))
	}
	return b.String()
}

// Parse reads the form produced by String.
func Parse(s string) (Code, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyCode
	}
	var code Code
	if strings.Contains(s, ".") {
		for _, part := range strings.Split(s, ".") {
			n, err := strconv.ParseUint(part, 10, 8)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedCode, err)
			}
			code = append(code, uint8(n))
		}
	} else {
		for _, r := range s {
			if r < '0' || r > '9' {
				return nil, fmt.Errorf("%w: bad digit %q", ErrMalformedCode, r)
			}
			code = append(code, uint8(r-'0'))
		}
	}
	if err := code.Validate(); err != nil {
		return nil, err
	}
	return code, nil
}

// Splice returns a new slice equal to s with s[pos:pos+n] replaced by repl.
// Neither s nor repl is modified.
func Splice[S ~[]E, E any](s S, pos, n int, repl S) S {
	out := make(S, 0, len(s)-n+len(repl))
	out = append(out, s[:pos]...)
	out = append(out, repl...)
	return append(out, s[pos+n:]...)
}
