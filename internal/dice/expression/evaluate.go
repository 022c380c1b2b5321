package expression

import (
	"math"
	"strconv"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
)

// unary minus and plus are pushed on the operator stack under these codes
const (
	opNegate byte = '~'
	opIdent  byte = '#'
)

func precedence(op byte) int {
	switch op {
	case '+', '-':
		return 1
	case '*', '/':
		return 2
	case opNegate, opIdent:
		return 3
	}
	return 0
}

type evaluator struct {
	values []float64
	ops    []Token
}

// Evaluate computes the value of a token stream. The result is not rounded.
func Evaluate(tokens []Token) (float64, error) {
	if len(tokens) == 0 {
		return 0, errors.Parsef("empty expression")
	}

	e := &evaluator{}
	expectOperand := true

	for _, tok := range tokens {
		switch tok.Kind {
		case TokenNumber:
			if !expectOperand {
				return 0, errors.Parsef("missing operator before %s at position %d", FormatNumber(tok.Value), tok.Pos)
			}
			e.values = append(e.values, tok.Value)
			expectOperand = false

		case TokenLeftParen:
			if !expectOperand {
				return 0, errors.Parsef("missing operator before '(' at position %d", tok.Pos)
			}
			e.ops = append(e.ops, tok)

		case TokenRightParen:
			if expectOperand {
				return 0, errors.Parsef("missing operand before ')' at position %d", tok.Pos)
			}
			matched := false
			for len(e.ops) > 0 {
				top := e.ops[len(e.ops)-1]
				e.ops = e.ops[:len(e.ops)-1]
				if top.Kind == TokenLeftParen {
					matched = true
					break
				}
				if err := e.apply(top); err != nil {
					return 0, err
				}
			}
			if !matched {
				return 0, errors.Parsef("unmatched ')' at position %d", tok.Pos)
			}

		case TokenOperator:
			if expectOperand {
				switch tok.Op {
				case '-':
					e.ops = append(e.ops, Token{Kind: TokenOperator, Op: opNegate, Pos: tok.Pos})
					continue
				case '+':
					e.ops = append(e.ops, Token{Kind: TokenOperator, Op: opIdent, Pos: tok.Pos})
					continue
				}
				return 0, errors.Parsef("missing operand before '%c' at position %d", tok.Op, tok.Pos)
			}
			for len(e.ops) > 0 {
				top := e.ops[len(e.ops)-1]
				if top.Kind != TokenOperator || precedence(top.Op) < precedence(tok.Op) {
					break
				}
				e.ops = e.ops[:len(e.ops)-1]
				if err := e.apply(top); err != nil {
					return 0, err
				}
			}
			e.ops = append(e.ops, tok)
			expectOperand = true

		default:
			return 0, errors.Parsef("unknown token at position %d", tok.Pos)
		}
	}

	if expectOperand {
		return 0, errors.Parsef("expression ends without an operand")
	}

	for len(e.ops) > 0 {
		top := e.ops[len(e.ops)-1]
		e.ops = e.ops[:len(e.ops)-1]
		if top.Kind == TokenLeftParen {
			return 0, errors.Parsef("unmatched '(' at position %d", top.Pos)
		}
		if err := e.apply(top); err != nil {
			return 0, err
		}
	}

	if len(e.values) != 1 {
		return 0, errors.Parsef("malformed expression")
	}

	result := e.values[0]
	if math.IsInf(result, 0) || math.IsNaN(result) {
		return 0, errors.Arithmetic("result is out of range")
	}
	return result, nil
}

func (e *evaluator) apply(op Token) error {
	if op.Op == opNegate || op.Op == opIdent {
		if len(e.values) < 1 {
			return errors.Parsef("missing operand for '%c' at position %d", '-', op.Pos)
		}
		if op.Op == opNegate {
			e.values[len(e.values)-1] = -e.values[len(e.values)-1]
		}
		return nil
	}

	if len(e.values) < 2 {
		return errors.Parsef("missing operand for '%c' at position %d", op.Op, op.Pos)
	}
	rhs := e.values[len(e.values)-1]
	lhs := e.values[len(e.values)-2]
	e.values = e.values[:len(e.values)-2]

	var v float64
	switch op.Op {
	case '+':
		v = lhs + rhs
	case '-':
		v = lhs - rhs
	case '*':
		v = lhs * rhs
	case '/':
		if rhs == 0 {
			return errors.Arithmetic("division by zero")
		}
		v = lhs / rhs
	default:
		return errors.Parsef("unknown operator '%c' at position %d", op.Op, op.Pos)
	}

	e.values = append(e.values, v)
	return nil
}

// EvaluateString tokenizes, evaluates and rounds s to two decimal places
func EvaluateString(s string) (float64, error) {
	tokens, err := Tokenize(s)
	if err != nil {
		return 0, err
	}
	v, err := Evaluate(tokens)
	if err != nil {
		return 0, err
	}
	return Round2(v), nil
}

// Round2 rounds half away from zero to two decimal places
func Round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		// drop negative zero
		return 0
	}
	return r
}

// FormatNumber renders v without trailing zeros
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
