package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xplshn/elz/pkg/ast"
	"github.com/xplshn/elz/pkg/config"
	"github.com/xplshn/elz/pkg/lexer"
	"github.com/xplshn/elz/pkg/token"
)

// Error is a syntax error at a token
type Error struct {
	Tok token.Token
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Tok.Line, e.Tok.Column, e.Msg)
}

func (e *Error) Locate() (token.Token, string) { return e.Tok, e.Msg }

// Parser holds the state for the parsing process
type Parser struct {
	file     string
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
	cfg      *config.Config
	// noConstruct disables `Name { ... }` while parsing an if condition, where `{` opens the block
	noConstruct bool
}

// NewParser creates and initializes a new Parser from a token stream
func NewParser(file string, tokens []token.Token, cfg *config.Config) *Parser {
	p := &Parser{file: file, tokens: tokens, pos: 0, cfg: cfg}
	if len(tokens) > 0 {
		p.current = p.tokens[0]
	}
	return p
}

// ParseProgram lexes and parses a whole source file
func ParseProgram(file, code string, cfg *config.Config) ([]*ast.TopAst, error) {
	tokens, err := lexer.Tokenize([]rune(code), 0)
	if err != nil {
		return nil, err
	}
	return NewParser(file, tokens, cfg).Parse()
}

// Parse consumes tokens until EOF and returns the top-level declarations
func (p *Parser) Parse() (program []*ast.TopAst, err error) {
	defer p.recoverError(&err)
	for !p.check(token.EOF) {
		program = append(program, p.parseTop())
	}
	return program, nil
}

// ParseExpr parses a single expression spanning the whole token stream
func (p *Parser) ParseExpr() (expr *ast.Expr, err error) {
	defer p.recoverError(&err)
	expr = p.parseExpr()
	p.expect(token.EOF, "Expected end of expression.")
	return expr, nil
}

func (p *Parser) recoverError(err *error) {
	if r := recover(); r != nil {
		var perr *Error
		if e, ok := r.(error); ok && errors.As(e, &perr) {
			*err = perr
			return
		}
		panic(r)
	}
}

// Parser helpers
func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.previous = p.current
		p.pos++
		if p.pos < len(p.tokens) {
			p.current = p.tokens[p.pos]
		}
	}
}

func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type, message string) token.Token {
	if p.check(tokType) {
		p.advance()
		return p.previous
	}
	p.errorf(p.current, "%s Found '%s'.", message, describe(p.current))
	return p.current
}

func (p *Parser) errorf(tok token.Token, format string, args ...interface{}) {
	panic(&Error{Tok: tok, Msg: fmt.Sprintf(format, args...)})
}

func describe(tok token.Token) string {
	if tok.Value != "" {
		return tok.Value
	}
	return tok.Type.String()
}

func (p *Parser) loc(tok token.Token) ast.Location { return ast.LocationOf(p.file, tok) }

// --- Top level ---

func (p *Parser) parseTop() *ast.TopAst {
	var tags []ast.Tag
	for p.match(token.At) {
		tags = append(tags, p.parseTag())
	}
	start := p.current
	top := &ast.TopAst{Location: p.loc(start), Tags: tags}
	switch {
	case p.check(token.Import):
		top.Variant = p.parseImport()
	case p.check(token.Class):
		top.Variant = p.parseClass()
	case p.check(token.Trait):
		top.Variant = p.parseTrait()
	case p.check(token.Ident) && p.peek().Type == token.Colon:
		top.Variant = p.parseVariable()
	case p.check(token.Ident):
		top.Variant = p.parseFunction()
	default:
		p.errorf(start, "Expected a declaration, found '%s'.", describe(start))
	}
	return top
}

// parseTag handles `@name` and `@name(a, b)`; the '@' is already consumed
func (p *Parser) parseTag() ast.Tag {
	tag := ast.Tag{Name: p.expect(token.Ident, "Expected tag name after '@'.").Value}
	if p.match(token.LParen) {
		for !p.check(token.RParen) {
			tag.Args = append(tag.Args, p.parsePath())
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.RParen, "Expected ')' after tag arguments.")
	}
	return tag
}

// parseImport handles `import a::b;` and `import a::b::{c, d};`
func (p *Parser) parseImport() *ast.Import {
	tok := p.expect(token.Import, "Expected 'import'.")
	imp := &ast.Import{Location: p.loc(tok)}
	imp.Chain = append(imp.Chain, p.expect(token.Ident, "Expected module name after 'import'.").Value)
	for p.match(token.Accessor) {
		if p.match(token.LBrace) {
			for !p.check(token.RBrace) {
				imp.Blocks = append(imp.Blocks, p.expect(token.Ident, "Expected imported name.").Value)
				if !p.match(token.Comma) {
					break
				}
			}
			p.expect(token.RBrace, "Expected '}' after imported names.")
			break
		}
		imp.Chain = append(imp.Chain, p.expect(token.Ident, "Expected module name after '::'.").Value)
	}
	p.expect(token.Semi, "Expected ';' after import.")
	return imp
}

// parseClass handles `class Car { name: string; ::new(name: string): Car; drive(): void {} }`
func (p *Parser) parseClass() *ast.Class {
	tok := p.expect(token.Class, "Expected 'class'.")
	name := p.expect(token.Ident, "Expected class name.").Value
	class := &ast.Class{Location: p.loc(tok), Name: name}
	p.expect(token.LBrace, "Expected '{' after class name.")
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		switch {
		case p.check(token.Ident) && p.peek().Type == token.Colon:
			class.Fields = append(class.Fields, p.parseField())
		case p.match(token.Accessor):
			class.StaticMethods = append(class.StaticMethods, p.parseFunction())
		default:
			method := p.parseFunction()
			self := &ast.Parameter{Name: "self", Type: ast.TypeName(name)}
			method.Parameters = append([]*ast.Parameter{self}, method.Parameters...)
			class.Methods = append(class.Methods, method)
		}
	}
	p.expect(token.RBrace, "Expected '}' after class body.")
	return class
}

// parseField handles `x: int;` and, with field defaults enabled, `x: int = 1;`
func (p *Parser) parseField() *ast.Field {
	tok := p.current
	name := p.expect(token.Ident, "Expected field name.").Value
	p.expect(token.Colon, "Expected ':' after field name.")
	field := &ast.Field{Location: p.loc(tok), Name: name, Type: p.parseType()}
	if p.match(token.Eq) {
		if !p.cfg.IsFeatureEnabled(config.FeatFieldDefaults) {
			p.errorf(p.previous, "Field default values are disabled (-Ffield-defaults).")
		}
		field.Default = p.parseExpr()
	}
	p.expect(token.Semi, "Expected ';' after field.")
	return field
}

func (p *Parser) parseTrait() *ast.Trait {
	tok := p.expect(token.Trait, "Expected 'trait'.")
	trait := &ast.Trait{Location: p.loc(tok), Name: p.expect(token.Ident, "Expected trait name.").Value}
	p.expect(token.LBrace, "Expected '{' after trait name.")
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		trait.Methods = append(trait.Methods, p.parseFunction())
	}
	p.expect(token.RBrace, "Expected '}' after trait body.")
	return trait
}

// parseVariable handles `x: int = 1;`
func (p *Parser) parseVariable() *ast.Variable {
	tok := p.current
	name := p.expect(token.Ident, "Expected variable name.").Value
	p.expect(token.Colon, "Expected ':' after variable name.")
	typ := p.parseType()
	p.expect(token.Eq, "Expected '=' in variable definition.")
	expr := p.parseExpr()
	p.expect(token.Semi, "Expected ';' after variable definition.")
	return &ast.Variable{Location: p.loc(tok), Name: name, Type: typ, Expr: expr}
}

// parseFunction handles `main(): void {}`, `add(x: int, y: int): int = x + y;` and `foo(): void;`
func (p *Parser) parseFunction() *ast.Function {
	tok := p.current
	name := p.expect(token.Ident, "Expected function name.").Value
	fn := &ast.Function{Location: p.loc(tok), Name: name}
	fn.Parameters = p.parseParameters()
	p.expect(token.Colon, "Expected ':' before return type.")
	fn.RetType = p.parseType()
	switch {
	case p.match(token.Semi):
	case p.match(token.Eq):
		fn.Body = &ast.Body{Expr: p.parseExpr()}
		p.expect(token.Semi, "Expected ';' after function expression body.")
	case p.check(token.LBrace):
		fn.Body = &ast.Body{Block: p.parseBlock()}
	default:
		p.errorf(p.current, "Expected '{', '=' or ';' after function signature, found '%s'.", describe(p.current))
	}
	return fn
}

func (p *Parser) parseParameters() []*ast.Parameter {
	p.expect(token.LParen, "Expected '(' after function name.")
	var params []*ast.Parameter
	for !p.check(token.RParen) {
		name := p.expect(token.Ident, "Expected parameter name.").Value
		p.expect(token.Colon, "Expected ':' after parameter name.")
		params = append(params, &ast.Parameter{Name: name, Type: p.parseType()})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RParen, "Expected ')' after parameters.")
	return params
}

// parsePath handles `foo::bar::baz`
func (p *Parser) parsePath() string {
	chain := []string{p.expect(token.Ident, "Expected identifier.").Value}
	for p.check(token.Accessor) && p.peek().Type == token.Ident {
		p.advance()
		p.advance()
		chain = append(chain, p.previous.Value)
	}
	return strings.Join(chain, "::")
}

// parseType handles `<identifier>` and `<identifier> [ <type>, ... ]`
func (p *Parser) parseType() *ast.ParsedType {
	name := p.parsePath()
	if !p.match(token.LBracket) {
		return ast.TypeName(name)
	}
	var args []*ast.ParsedType
	for !p.check(token.RBracket) {
		args = append(args, p.parseType())
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBracket, "Expected ']' after type arguments.")
	return ast.GenericType(name, args)
}

// --- Statements ---

func (p *Parser) parseBlock() *ast.Block {
	tok := p.expect(token.LBrace, "Expected '{' to open a block.")
	block := &ast.Block{Location: p.loc(tok)}
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		block.Statements = append(block.Statements, p.parseStatement())
	}
	p.expect(token.RBrace, "Expected '}' to close a block.")
	return block
}

func (p *Parser) parseStatement() *ast.Statement {
	tok := p.current
	loc := p.loc(tok)
	switch {
	case p.match(token.Return):
		var expr *ast.Expr
		if !p.check(token.Semi) {
			expr = p.parseExpr()
		}
		p.expect(token.Semi, "Expected ';' after return.")
		return ast.NewStatement(loc, &ast.ReturnStmt{Expr: expr})
	case p.check(token.If):
		return ast.NewStatement(loc, p.parseIf())
	case p.check(token.Ident) && p.peek().Type == token.Colon:
		return ast.NewStatement(loc, p.parseVariable())
	}
	expr := p.parseExpr()
	p.expect(token.Semi, "Expected ';' after expression.")
	return ast.NewStatement(loc, &ast.ExprStmt{Expr: expr})
}

// parseIf handles `if a {} else if b {} else {}`
func (p *Parser) parseIf() *ast.IfBlock {
	ifBlock := &ast.IfBlock{}
	for {
		p.expect(token.If, "Expected 'if'.")
		ifBlock.Clauses = append(ifBlock.Clauses, ast.IfClause{Cond: p.parseCondition(), Block: p.parseBlock()})
		if !p.match(token.Else) {
			ifBlock.Else = &ast.Block{Location: p.loc(p.previous)}
			return ifBlock
		}
		if !p.check(token.If) {
			ifBlock.Else = p.parseBlock()
			return ifBlock
		}
	}
}

func (p *Parser) parseCondition() *ast.Expr {
	saved := p.noConstruct
	p.noConstruct = true
	defer func() { p.noConstruct = saved }()
	return p.parseExpr()
}

// --- Expressions ---

func getBinaryOpPrecedence(op token.Type) int {
	switch op {
	case token.Star, token.Slash:
		return 4
	case token.Plus, token.Minus:
		return 3
	case token.Lt, token.Gt, token.Lte, token.Gte:
		return 2
	case token.EqEq, token.Neq:
		return 1
	default:
		return -1
	}
}

func (p *Parser) parseExpr() *ast.Expr { return p.parseBinaryExpr(1) }

// parseBinaryExpr is precedence climbing; every operator is left associative
func (p *Parser) parseBinaryExpr(minPrec int) *ast.Expr {
	lhs := p.parsePostfixExpr()
	for {
		prec := getBinaryOpPrecedence(p.current.Type)
		if prec < minPrec {
			return lhs
		}
		opTok := p.current
		p.advance()
		op, _ := ast.OperatorFromToken(opTok.Type)
		rhs := p.parseBinaryExpr(prec + 1)
		lhs = ast.NewBinary(lhs.Location, op, lhs, rhs)
	}
}

func (p *Parser) parsePostfixExpr() *ast.Expr {
	expr := p.parsePrimaryExpr()
	for {
		tok := p.current
		switch {
		case p.match(token.LParen):
			expr = ast.NewFuncCall(expr.Location, expr, p.parseArguments())
		case p.match(token.Dot):
			member := p.expect(token.Ident, "Expected member name after '.'.").Value
			expr = ast.NewMemberAccess(p.loc(tok), expr, member)
		default:
			return expr
		}
	}
}

// parseArguments handles `(1, y: 2)`; the '(' is already consumed
func (p *Parser) parseArguments() []*ast.Argument {
	var args []*ast.Argument
	for !p.check(token.RParen) {
		arg := &ast.Argument{}
		if p.check(token.Ident) && p.peek().Type == token.Colon {
			if !p.cfg.IsFeatureEnabled(config.FeatNamedArgs) {
				p.errorf(p.current, "Named arguments are disabled (-Fnamed-args).")
			}
			arg.Name = p.current.Value
			p.advance()
			p.advance()
		}
		arg.Expr = p.parseExpr()
		args = append(args, arg)
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RParen, "Expected ')' after arguments.")
	return args
}

func (p *Parser) parsePrimaryExpr() *ast.Expr {
	tok := p.current
	loc := p.loc(tok)
	switch {
	case p.match(token.Integer):
		return ast.NewInt(loc, p.parseInt(tok, tok.Value))
	case p.match(token.Float):
		return ast.NewFloat(loc, p.parseFloat(tok, tok.Value))
	case p.check(token.Minus) && (p.peek().Type == token.Integer || p.peek().Type == token.Float):
		p.advance()
		p.advance()
		if p.previous.Type == token.Integer {
			return ast.NewInt(loc, p.parseInt(tok, "-"+p.previous.Value))
		}
		return ast.NewFloat(loc, p.parseFloat(tok, "-"+p.previous.Value))
	case p.match(token.True):
		return ast.NewBool(loc, true)
	case p.match(token.False):
		return ast.NewBool(loc, false)
	case p.match(token.String):
		return p.parseString(tok)
	case p.match(token.LBracket):
		var elems []*ast.Expr
		for !p.check(token.RBracket) {
			elems = append(elems, p.parseExpr())
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.RBracket, "Expected ']' after list elements.")
		return ast.NewList(loc, elems)
	case p.match(token.LParen):
		saved := p.noConstruct
		p.noConstruct = false
		expr := p.parseExpr()
		p.noConstruct = saved
		p.expect(token.RParen, "Expected ')' after expression.")
		return expr
	case p.check(token.Ident):
		name := p.parsePath()
		if p.check(token.LBrace) && !p.noConstruct {
			return ast.NewClassConstruction(loc, name, p.parseFieldInits())
		}
		return ast.NewIdent(loc, name)
	}
	p.errorf(tok, "Expected an expression, found '%s'.", describe(tok))
	return nil
}

// parseFieldInits handles `{ x: 1, y: 2 }`
func (p *Parser) parseFieldInits() []ast.FieldInit {
	p.expect(token.LBrace, "Expected '{'.")
	var inits []ast.FieldInit
	for !p.check(token.RBrace) {
		name := p.expect(token.Ident, "Expected field name.").Value
		p.expect(token.Colon, "Expected ':' after field name.")
		inits = append(inits, ast.FieldInit{Name: name, Expr: p.parseExpr()})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace, "Expected '}' after field initializers.")
	return inits
}

func (p *Parser) parseInt(tok token.Token, text string) int64 {
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		p.errorf(tok, "Integer literal '%s' is out of range.", text)
	}
	return v
}

func (p *Parser) parseFloat(tok token.Token, text string) float64 {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		p.errorf(tok, "Malformed float literal '%s'.", text)
	}
	return v
}

// parseString interprets escapes and, with string templates enabled, desugars
// "a{x}b" into ("a" + x) + "b"
func (p *Parser) parseString(tok token.Token) *ast.Expr {
	return p.parseStringTemplate(tok, []rune(tok.Value))
}

func (p *Parser) parseStringTemplate(tok token.Token, s []rune) *ast.Expr {
	loc := p.loc(tok)
	templates := p.cfg.IsFeatureEnabled(config.FeatStringTemplates)
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i++
			sb.WriteRune(unescape(s[i]))
		case c == '{' && templates:
			end := i + 1
			for end < len(s) && s[end] != '}' {
				end++
			}
			if end >= len(s) {
				p.errorf(tok, "Unterminated '{' in string template.")
			}
			mid := p.parseTemplateExpr(tok, string(s[i+1:end]))
			left := ast.NewString(loc, sb.String())
			rest := p.parseStringTemplate(tok, s[end+1:])
			return ast.NewBinary(loc, ast.OpAdd, ast.NewBinary(loc, ast.OpAdd, left, mid), rest)
		default:
			sb.WriteRune(c)
		}
	}
	return ast.NewString(loc, sb.String())
}

func (p *Parser) parseTemplateExpr(tok token.Token, code string) *ast.Expr {
	tokens, err := lexer.Tokenize([]rune(code), tok.FileIndex)
	if err != nil {
		p.errorf(tok, "In string template: %v", err)
	}
	// positions inside the template are reported at the string literal
	for i := range tokens {
		tokens[i].Line, tokens[i].Column = tok.Line, tok.Column
	}
	expr, err := NewParser(p.file, tokens, p.cfg).ParseExpr()
	if err != nil {
		p.errorf(tok, "In string template: %s", err.(*Error).Msg)
	}
	return expr
}

func unescape(c rune) rune {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	}
	return c
}
