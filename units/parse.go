package units

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Parse reads a unit expression such as "Msun", "km/s", "Mpc**-3",
// "Msun/yr", "1e10 Msun" or "Msun*(km/s)**2". Factors are separated by
// '*', '/' or whitespace and group left to right; exponents use "**" or
// "^" and bind tighter than either. Parentheses group sub-expressions.
func Parse(expr string) (Unit, error) {
	expr = strings.TrimSpace(expr)
	if u, ok := symbols[expr]; ok {
		return u, nil
	}

	tokens, err := tokenize(expr)
	if err != nil {
		return Unit{}, err
	}
	p := &parser{expr: expr, tokens: tokens}
	u, err := p.product()
	if err != nil {
		return Unit{}, err
	}
	if p.pos < len(p.tokens) {
		return Unit{}, fmt.Errorf("%w: unexpected %q in %q", ErrUnknownUnit, p.tokens[p.pos], expr)
	}
	u.Symbol = expr
	return u, nil
}

// MustParse is like Parse but panics on error. Intended for constants.
func MustParse(expr string) Unit {
	u, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return u
}

// tokenize splits an expression into names, numbers and the operators
// '*', '/', '**', '^', '(' and ')'. Whitespace only separates tokens.
func tokenize(expr string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	runes := []rune(expr)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '*' && i+1 < len(runes) && runes[i+1] == '*':
			flush()
			tokens = append(tokens, "**")
			i++
		case r == '*' || r == '/' || r == '^' || r == '(' || r == ')':
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty expression %q", ErrUnknownUnit, expr)
	}
	return tokens, nil
}

type parser struct {
	expr   string
	tokens []string
	pos    int
}

func (p *parser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

// product := power { ('*' | '/' | juxtaposition) power }
func (p *parser) product() (Unit, error) {
	result, err := p.power()
	if err != nil {
		return Unit{}, err
	}
	for {
		divide := false
		switch p.peek() {
		case "", ")":
			return result, nil
		case "*":
			p.pos++
		case "/":
			divide = true
			p.pos++
		}
		term, err := p.power()
		if err != nil {
			return Unit{}, err
		}
		if divide {
			term = term.Inverse()
		}
		result.Dim = result.Dim.Mul(term.Dim)
		result.Scale *= term.Scale
	}
}

// power := primary [ ('**' | '^') integer ]
func (p *parser) power() (Unit, error) {
	u, err := p.primary()
	if err != nil {
		return Unit{}, err
	}
	if op := p.peek(); op != "**" && op != "^" {
		return u, nil
	}
	p.pos++
	tok := p.peek()
	n, err := strconv.Atoi(tok)
	if err != nil {
		return Unit{}, fmt.Errorf("%w: bad exponent %q in %q", ErrUnknownUnit, tok, p.expr)
	}
	p.pos++
	return u.Pow(n), nil
}

// primary := number | symbol | '(' product ')'
func (p *parser) primary() (Unit, error) {
	tok := p.peek()
	switch tok {
	case "":
		return Unit{}, fmt.Errorf("%w: %q ends with an operator", ErrUnknownUnit, p.expr)
	case "*", "/", "**", "^", ")":
		return Unit{}, fmt.Errorf("%w: unexpected %q in %q", ErrUnknownUnit, tok, p.expr)
	case "(":
		p.pos++
		u, err := p.product()
		if err != nil {
			return Unit{}, err
		}
		if p.peek() != ")" {
			return Unit{}, fmt.Errorf("%w: unbalanced parentheses in %q", ErrUnknownUnit, p.expr)
		}
		p.pos++
		return u, nil
	}
	p.pos++
	if v, err := strconv.ParseFloat(tok, 64); err == nil {
		return Unit{Symbol: tok, Dim: Dimensionless, Scale: v}, nil
	}
	u, ok := symbols[tok]
	if !ok {
		return Unit{}, fmt.Errorf("%w: %q", ErrUnknownUnit, tok)
	}
	return u, nil
}
