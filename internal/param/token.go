package param

import "strings"

// TokenKind classifies a command-line token.
type TokenKind int

const (
	// KindBare is a token with no prefix or separator; it names an actor.
	KindBare TokenKind = iota
	// KindParameter is "alias:value".
	KindParameter
	// KindFlag is "-name" or "-name=value".
	KindFlag
)

// Token is one whitespace-separated piece of a command line.
type Token struct {
	Raw   string
	Kind  TokenKind
	Name  string
	Value string
}

// ParseToken classifies raw. Names are lower-cased; values keep their case.
func ParseToken(raw string) Token {
	if strings.HasPrefix(raw, "-") {
		name, value, _ := strings.Cut(raw[1:], "=")
		return Token{Raw: raw, Kind: KindFlag, Name: strings.ToLower(name), Value: value}
	}
	if alias, value, ok := strings.Cut(raw, ":"); ok {
		return Token{Raw: raw, Kind: KindParameter, Name: strings.ToLower(alias), Value: value}
	}
	return Token{Raw: raw, Kind: KindBare, Value: raw}
}

// Tokenize splits a command line on whitespace.
func Tokenize(line string) []string {
	return strings.Fields(line)
}
