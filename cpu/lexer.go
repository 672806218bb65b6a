package cpu

import (
	"strconv"
	"strings"
	"unicode"
)

// TokenKind is the class of a lexical token.
type TokenKind int

const (
	TOKEN_WORD  = TokenKind(iota) // Mnemonic, number, symbol or field.
	TOKEN_LABEL                   // Label definition, 'NAME:'.
	TOKEN_COMMA                   // Operand separator.
	TOKEN_EXPR                    // $(...) expression; Text is the inner expression.
)

// Token is a lexical token of a source line.
type Token struct {
	Kind   TokenKind
	Text   string
	Column int // 1-based.
}

// ErrToken is a lexical error at a column of the line.
type ErrToken struct {
	Column int
	Err    error
}

func (err *ErrToken) Error() string {
	return err.Err.Error()
}

func (err *ErrToken) Unwrap() error {
	return err.Err
}

// Lex splits a source line into tokens. A ';' outside of an expression
// starts a comment.
func Lex(line string) (tokens []Token, err error) {
	runes := []rune(line)
	n := 0

	for n < len(runes) {
		r := runes[n]
		column := n + 1

		switch {
		case r == ';':
			return
		case unicode.IsSpace(r):
			n++
		case r == ',':
			tokens = append(tokens, Token{Kind: TOKEN_COMMA, Text: ",", Column: column})
			n++
		case r == '$' && n+1 < len(runes) && runes[n+1] == '(':
			depth := 0
			end := -1
			for m := n + 1; m < len(runes); m++ {
				switch runes[m] {
				case '(':
					depth++
				case ')':
					depth--
				}
				if depth == 0 {
					end = m
					break
				}
			}
			if end < 0 {
				err = &ErrToken{Column: column, Err: ErrParseExpression(string(runes[n+2:]))}
				return
			}
			tokens = append(tokens, Token{Kind: TOKEN_EXPR, Text: string(runes[n+2 : end]), Column: column})
			n = end + 1
		default:
			start := n
			for n < len(runes) && !unicode.IsSpace(runes[n]) && runes[n] != ',' && runes[n] != ';' {
				n++
			}
			text := string(runes[start:n])
			kind := TOKEN_WORD
			if len(tokens) == 0 && len(text) > 1 && strings.HasSuffix(text, ":") {
				kind = TOKEN_LABEL
				text = text[:len(text)-1]
			}
			tokens = append(tokens, Token{Kind: kind, Text: text, Column: column})
		}
	}

	return
}

// IsSymbol returns true if text is a valid symbol name.
func IsSymbol(text string) bool {
	if len(text) == 0 {
		return false
	}
	for n, r := range text {
		switch {
		case r == '_', unicode.IsLetter(r):
		case n > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}

// ParseNumber parses a decimal, '0x' hexadecimal or '/' hexadecimal
// number, with an optional leading '-'.
func ParseNumber(text string) (value int, err error) {
	word := text
	negative := false
	if strings.HasPrefix(word, "-") {
		negative = true
		word = word[1:]
	}

	base := 10
	switch {
	case strings.HasPrefix(word, "0x"), strings.HasPrefix(word, "0X"):
		base = 16
		word = word[2:]
	case strings.HasPrefix(word, "/"):
		base = 16
		word = word[1:]
	}

	v64, perr := strconv.ParseInt(word, base, 32)
	if perr != nil || len(word) == 0 || word[0] == '+' || word[0] == '-' {
		err = ErrParseNumber(text)
		return
	}

	value = int(v64)
	if negative {
		value = -value
	}
	return
}
