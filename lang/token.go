package lang

import "github.com/gogpu/nzsl/ast"

// TokenKind represents the type of token.
type TokenKind uint8

const (
	TokenEOF TokenKind = iota

	// Literals
	TokenIdentifier
	TokenIntLiteral
	TokenFloatLiteral
	TokenStringLiteral

	// Operators
	TokenPlus           // +
	TokenMinus          // -
	TokenStar           // *
	TokenSlash          // /
	TokenPercent        // %
	TokenAmpersand      // &
	TokenPipe           // |
	TokenCaret          // ^
	TokenTilde          // ~
	TokenBang           // !
	TokenEqual          // =
	TokenLess           // <
	TokenGreater        // >
	TokenDot            // .
	TokenComma          // ,
	TokenColon          // :
	TokenSemicolon      // ;
	TokenQuestion       // ?
	TokenArrow          // ->
	TokenEqualEqual     // ==
	TokenBangEqual      // !=
	TokenLessEqual      // <=
	TokenGreaterEqual   // >=
	TokenAmpAmp         // &&
	TokenPipePipe       // ||
	TokenLessLess       // <<
	TokenGreaterGreater // >>
	TokenPlusEqual      // +=
	TokenMinusEqual     // -=
	TokenStarEqual      // *=
	TokenSlashEqual     // /=
	TokenPercentEqual   // %=
	TokenAmpAmpEqual    // &&=
	TokenPipePipeEqual  // ||=

	// Delimiters
	TokenLeftParen    // (
	TokenRightParen   // )
	TokenLeftBrace    // {
	TokenRightBrace   // }
	TokenLeftBracket  // [
	TokenRightBracket // ]

	// Keywords
	TokenAlias
	TokenAs
	TokenBreak
	TokenConst
	TokenContinue
	TokenDiscard
	TokenElse
	TokenExternal
	TokenFalse
	TokenFn
	TokenFor
	TokenFrom
	TokenIf
	TokenImport
	TokenIn
	TokenLet
	TokenModule
	TokenOption
	TokenReturn
	TokenStruct
	TokenTrue
	TokenWhile
)

var tokenNames = [...]string{
	TokenEOF:            "end of file",
	TokenIdentifier:     "identifier",
	TokenIntLiteral:     "integer literal",
	TokenFloatLiteral:   "float literal",
	TokenStringLiteral:  "string literal",
	TokenPlus:           "+",
	TokenMinus:          "-",
	TokenStar:           "*",
	TokenSlash:          "/",
	TokenPercent:        "%",
	TokenAmpersand:      "&",
	TokenPipe:           "|",
	TokenCaret:          "^",
	TokenTilde:          "~",
	TokenBang:           "!",
	TokenEqual:          "=",
	TokenLess:           "<",
	TokenGreater:        ">",
	TokenDot:            ".",
	TokenComma:          ",",
	TokenColon:          ":",
	TokenSemicolon:      ";",
	TokenQuestion:       "?",
	TokenArrow:          "->",
	TokenEqualEqual:     "==",
	TokenBangEqual:      "!=",
	TokenLessEqual:      "<=",
	TokenGreaterEqual:   ">=",
	TokenAmpAmp:         "&&",
	TokenPipePipe:       "||",
	TokenLessLess:       "<<",
	TokenGreaterGreater: ">>",
	TokenPlusEqual:      "+=",
	TokenMinusEqual:     "-=",
	TokenStarEqual:      "*=",
	TokenSlashEqual:     "/=",
	TokenPercentEqual:   "%=",
	TokenAmpAmpEqual:    "&&=",
	TokenPipePipeEqual:  "||=",
	TokenLeftParen:      "(",
	TokenRightParen:     ")",
	TokenLeftBrace:      "{",
	TokenRightBrace:     "}",
	TokenLeftBracket:    "[",
	TokenRightBracket:   "]",
	TokenAlias:          "alias",
	TokenAs:             "as",
	TokenBreak:          "break",
	TokenConst:          "const",
	TokenContinue:       "continue",
	TokenDiscard:        "discard",
	TokenElse:           "else",
	TokenExternal:       "external",
	TokenFalse:          "false",
	TokenFn:             "fn",
	TokenFor:            "for",
	TokenFrom:           "from",
	TokenIf:             "if",
	TokenImport:         "import",
	TokenIn:             "in",
	TokenLet:            "let",
	TokenModule:         "module",
	TokenOption:         "option",
	TokenReturn:         "return",
	TokenStruct:         "struct",
	TokenTrue:           "true",
	TokenWhile:          "while",
}

// String returns the string representation of the token kind.
func (k TokenKind) String() string {
	if int(k) < len(tokenNames) && tokenNames[k] != "" {
		return tokenNames[k]
	}
	return "unknown"
}

var keywords = map[string]TokenKind{
	"alias":    TokenAlias,
	"as":       TokenAs,
	"break":    TokenBreak,
	"const":    TokenConst,
	"continue": TokenContinue,
	"discard":  TokenDiscard,
	"else":     TokenElse,
	"external": TokenExternal,
	"false":    TokenFalse,
	"fn":       TokenFn,
	"for":      TokenFor,
	"from":     TokenFrom,
	"if":       TokenIf,
	"import":   TokenImport,
	"in":       TokenIn,
	"let":      TokenLet,
	"module":   TokenModule,
	"option":   TokenOption,
	"return":   TokenReturn,
	"struct":   TokenStruct,
	"true":     TokenTrue,
	"while":    TokenWhile,
}

// IsKeyword reports whether name is reserved by the language.
func IsKeyword(name string) bool {
	_, ok := keywords[name]
	return ok
}

// Token represents a lexical token.
type Token struct {
	Kind   TokenKind
	Lexeme string
	Span   ast.Span
}
