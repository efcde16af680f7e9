package formengine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Error taxonomy for formula handling. Failures are recovered by the engine:
// the target keeps its previous or default value and the failure is only
// logged.
var (
	ErrInvalidExpression = errors.New("invalid expression")
	ErrDivisionByZero    = errors.New("division by zero")
)

// Evaluate computes a sanitized arithmetic expression to a decimal string.
// The input may contain only digits, decimal points, whitespace and the
// characters + - * / ( ); anything else is rejected outright, never partially
// evaluated. Standard operator precedence applies, same-precedence operators
// associate left to right. Decimal points occur when previously computed field
// values were non-integer; the evaluator makes no integer-result assumption.
func Evaluate(expr string) (string, error) {
	if strings.TrimSpace(expr) == "" {
		return "", fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}
	for _, r := range expr {
		if !allowedRune(r) {
			return "", fmt.Errorf("%w: disallowed character %q", ErrInvalidExpression, r)
		}
	}

	p := &exprParser{input: expr}
	value, err := p.parseExpr()
	if err != nil {
		return "", err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return "", fmt.Errorf("%w: unexpected %q at offset %d", ErrInvalidExpression, p.input[p.pos], p.pos)
	}
	return formatNumber(value), nil
}

func allowedRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		return true
	case r == '+' || r == '-' || r == '*' || r == '/' || r == '(' || r == ')' || r == '.':
		return true
	}
	return false
}

// formatNumber renders a result without trailing zeros ("8", "2.5").
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *exprParser) peek() (byte, bool) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

// parseExpr handles + and -.
func (p *exprParser) parseExpr() (float64, error) {
	value, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '+' && op != '-') {
			return value, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			value += right
		} else {
			value -= right
		}
	}
}

// parseTerm handles * and /.
func (p *exprParser) parseTerm() (float64, error) {
	value, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '*' && op != '/') {
			return value, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			value *= right
		} else {
			if right == 0 {
				return 0, ErrDivisionByZero
			}
			value /= right
		}
	}
}

// parseFactor handles unary signs, parentheses and numeric literals.
func (p *exprParser) parseFactor() (float64, error) {
	ch, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("%w: unexpected end of expression", ErrInvalidExpression)
	}
	switch {
	case ch == '+':
		p.pos++
		return p.parseFactor()
	case ch == '-':
		p.pos++
		value, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return -value, nil
	case ch == '(':
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		closing, ok := p.peek()
		if !ok || closing != ')' {
			return 0, fmt.Errorf("%w: missing closing parenthesis", ErrInvalidExpression)
		}
		p.pos++
		return value, nil
	default:
		return p.parseNumber()
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	p.skipSpace()
	start := p.pos
	seenDot := false
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if ch >= '0' && ch <= '9' {
			p.pos++
			continue
		}
		if ch == '.' && !seenDot {
			seenDot = true
			p.pos++
			continue
		}
		break
	}
	raw := p.input[start:p.pos]
	if raw == "" || raw == "." {
		return 0, fmt.Errorf("%w: expected number at offset %d", ErrInvalidExpression, start)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed number %q", ErrInvalidExpression, raw)
	}
	return value, nil
}
