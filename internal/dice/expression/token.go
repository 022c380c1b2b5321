// Package expression evaluates arithmetic over integers with + - * / and parentheses.
//
// Input is tokenized into a tagged token stream and evaluated with two stacks
// (shunting-yard). Nothing here executes user input as code.
package expression

import (
	"strconv"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
)

// TokenKind tags a Token
type TokenKind int

const (
	TokenNumber TokenKind = iota
	TokenOperator
	TokenLeftParen
	TokenRightParen
)

// Token is one lexical element of an expression
type Token struct {
	Kind TokenKind
	// Value is set for TokenNumber
	Value float64
	// Op is set for TokenOperator
	Op byte
	// Pos is the byte offset in the source string
	Pos int
}

// Tokenize splits s into tokens. Only digits, + - * /, parentheses and whitespace are
// accepted.
func Tokenize(s string) ([]Token, error) {
	tokens := make([]Token, 0, len(s))
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isDigit(c):
			start := i
			for i < len(s) && isDigit(s[i]) {
				i++
			}
			v, err := strconv.ParseFloat(s[start:i], 64)
			if err != nil {
				return nil, errors.Parsef("invalid number %q at position %d", s[start:i], start)
			}
			tokens = append(tokens, Token{Kind: TokenNumber, Value: v, Pos: start})
		case c == '+' || c == '-' || c == '*' || c == '/':
			tokens = append(tokens, Token{Kind: TokenOperator, Op: c, Pos: i})
			i++
		case c == '(':
			tokens = append(tokens, Token{Kind: TokenLeftParen, Pos: i})
			i++
		case c == ')':
			tokens = append(tokens, Token{Kind: TokenRightParen, Pos: i})
			i++
		default:
			return nil, errors.Parsef("invalid character %q at position %d", rune(c), i)
		}
	}
	return tokens, nil
}

// IsAllowed reports whether c may appear in an expression handed to Tokenize
func IsAllowed(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '+', '-', '*', '/', '(', ')':
		return true
	}
	return isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// IsParseError reports whether err came from malformed input
func IsParseError(err error) bool {
	return errors.IsParse(err)
}

// IsArithmeticError reports whether err came from an arithmetic failure
func IsArithmeticError(err error) bool {
	return errors.IsArithmetic(err)
}
