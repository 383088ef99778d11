package typeChecker

import (
	"fmt"

	"github.com/xplshn/elz/pkg/ast"
	"github.com/xplshn/elz/pkg/token"
)

type Kind int

const (
	UnknownType Kind = iota
	NameRedefined
	TypeMismatch
	// DeadCodeAfterReturn also covers an empty body that cannot return void
	DeadCodeAfterReturn
	UndefinedName
	Unsupported
)

var kindDescriptions = [...]string{
	"unknown type",
	"name redefined",
	"type mismatched",
	"dead code after return statement",
	"undefined name",
	"unsupported",
}

// Description is the stable, message-independent text of the kind
func (k Kind) Description() string { return kindDescriptions[k] }

func (k Kind) String() string { return k.Description() }

type SemanticError struct {
	Kind     Kind
	Location ast.Location
	Message  string
}

func (e *SemanticError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.Location.File, e.Location.Line, e.Location.Column, e.Kind.Description())
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", e.Location.File, e.Location.Line, e.Location.Column, e.Kind.Description(), e.Message)
}

// Locate points diagnostics at the token the error was raised on
func (e *SemanticError) Locate() (token.Token, string) {
	if e.Message == "" {
		return e.Location.Tok, e.Kind.Description()
	}
	return e.Location.Tok, e.Kind.Description() + ": " + e.Message
}

// Description mirrors Kind.Description for callers holding the error value
func (e *SemanticError) Description() string { return e.Kind.Description() }

func newError(kind Kind, loc ast.Location, format string, args ...interface{}) *SemanticError {
	return &SemanticError{Kind: kind, Location: loc, Message: fmt.Sprintf(format, args...)}
}
