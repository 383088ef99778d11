package token

import "fmt"

type Type int

const (
	EOF Type = iota
	Ident
	Integer
	Float
	String
	Class
	Trait
	Import
	Return
	If
	Else
	True
	False
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Semi
	Comma
	Colon
	Accessor
	Dot
	At
	Eq
	Plus
	Minus
	Star
	Slash
	EqEq
	Neq
	Lt
	Gt
	Lte
	Gte
)

var KeywordMap = map[string]Type{
	"class":  Class,
	"trait":  Trait,
	"import": Import,
	"return": Return,
	"if":     If,
	"else":   Else,
	"true":   True,
	"false":  False,
}

// Reverse mapping from Type to the keyword string
var TypeStrings = make(map[Type]string)

var punctStrings = map[Type]string{
	EOF:      "end of file",
	Ident:    "identifier",
	Integer:  "integer",
	Float:    "float",
	String:   "string",
	LParen:   "(",
	RParen:   ")",
	LBrace:   "{",
	RBrace:   "}",
	LBracket: "[",
	RBracket: "]",
	Semi:     ";",
	Comma:    ",",
	Colon:    ":",
	Accessor: "::",
	Dot:      ".",
	At:       "@",
	Eq:       "=",
	Plus:     "+",
	Minus:    "-",
	Star:     "*",
	Slash:    "/",
	EqEq:     "==",
	Neq:      "!=",
	Lt:       "<",
	Gt:       ">",
	Lte:      "<=",
	Gte:      ">=",
}

func init() {
	for str, typ := range KeywordMap {
		TypeStrings[typ] = str
	}
	for typ, str := range punctStrings {
		TypeStrings[typ] = str
	}
}

func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(t))
}

type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}
