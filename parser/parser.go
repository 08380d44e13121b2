// Package parser is a recursive-descent parser that turns a token
// stream from package lexer into an untyped ast.File. It resolves
// cast-target and struct-tag type names as it goes (using its own
// small types.Table seeded from struct declarations seen so far) but
// otherwise leaves entity/array/member resolution to package checker.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arrowlang/citron/ast"
	"github.com/arrowlang/citron/lexer"
	"github.com/arrowlang/citron/types"
)

// binaryPrecedence ranks citron's binary operators from loosest (||)
// to tightest (* / %); unary/postfix/cast/sizeof bind tighter still
// and are handled outside this table.
var binaryPrecedence = map[lexer.TokenType]int{
	lexer.OR:      1,
	lexer.AND:     2,
	lexer.PIPE:    3,
	lexer.CARET:   4,
	lexer.AMP:     5,
	lexer.EQ:      6,
	lexer.NEQ:     6,
	lexer.LT:      7,
	lexer.GT:      7,
	lexer.LTE:     7,
	lexer.GTE:     7,
	lexer.SHL:     8,
	lexer.SHR:     8,
	lexer.PLUS:    9,
	lexer.MINUS:   9,
	lexer.STAR:    10,
	lexer.SLASH:   10,
	lexer.PERCENT: 10,
}

var assignOps = map[lexer.TokenType]string{
	lexer.ASSIGN:     "=",
	lexer.PLUS_EQ:    "+=",
	lexer.MINUS_EQ:   "-=",
	lexer.STAR_EQ:    "*=",
	lexer.SLASH_EQ:   "/=",
	lexer.PERCENT_EQ: "%=",
	lexer.AMP_EQ:     "&=",
	lexer.PIPE_EQ:    "|=",
	lexer.CARET_EQ:   "^=",
	lexer.SHL_EQ:     "<<=",
	lexer.SHR_EQ:     ">>=",
}

// Parser consumes tokens and produces an ast.File. Every parseX
// function consumes exactly the tokens belonging to X and leaves
// curToken positioned at the first token following X.
type Parser struct {
	l      *lexer.Lexer
	errors []string

	curToken  lexer.Token
	peekToken lexer.Token

	tab *types.Table // struct tags seen so far, for cast-target resolution
}

// New creates a Parser reading tokens from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l, tab: types.NewTable()}
	p.curToken = p.lex()
	p.peekToken = p.lex()

	return p
}

func (p *Parser) lex() lexer.Token {
	tok := p.l.NextToken()
	for tok.Type == lexer.COMMENT {
		tok = p.l.NextToken()
	}

	return tok
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lex()
}

// Errors returns the parse errors accumulated so far.
func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, fmt.Sprintf("%s at line %d", msg, p.curToken.Line))
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t lexer.TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) expect(t lexer.TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}

	p.errorf("expected %s, got %s", t, p.curToken.Type)

	return false
}

func (p *Parser) tokenPos() ast.Position {
	return ast.Position{Line: p.curToken.Line, Column: p.curToken.Column, Offset: -1}
}

func isTypeStart(t lexer.TokenType) bool {
	switch t {
	case lexer.INT_KW, lexer.CHAR_KW, lexer.VOID_KW, lexer.STRUCT:
		return true
	default:
		return false
	}
}

// ParseFile parses an entire translation unit.
func (p *Parser) ParseFile() *ast.File {
	var decls []ast.Decl

	for !p.curTokenIs(lexer.EOF) {
		d := p.parseTopLevelDecl()
		if d != nil {
			decls = append(decls, d)
		}
	}

	return &ast.File{Decls: decls}
}

func (p *Parser) syncTopLevel() {
	for !p.curTokenIs(lexer.EOF) && !p.curTokenIs(lexer.SEMICOLON) {
		p.nextToken()
	}

	if p.curTokenIs(lexer.SEMICOLON) {
		p.nextToken()
	}
}

func (p *Parser) parseTopLevelDecl() ast.Decl {
	isStatic := false
	if p.curTokenIs(lexer.STATIC) {
		isStatic = true
		p.nextToken()
	}

	if p.curTokenIs(lexer.STRUCT) {
		pos := p.tokenPos()
		p.nextToken() // consume 'struct'

		if !p.curTokenIs(lexer.IDENT) {
			p.errorf("expected struct tag name, got %s", p.curToken.Type)
			p.syncTopLevel()

			return nil
		}

		name := p.curToken.Literal
		p.nextToken()

		if p.curTokenIs(lexer.LBRACE) {
			return p.parseStructBody(name)
		}

		return p.parseDeclaratorDecl(&ast.NamedTypeExpr{Name: name}, isStatic, pos)
	}

	if !isTypeStart(p.curToken.Type) {
		p.errorf("expected a declaration, got %s", p.curToken.Type)
		p.syncTopLevel()

		return nil
	}

	pos := p.tokenPos()

	base := p.parseBaseType()
	if base == nil {
		p.syncTopLevel()
		return nil
	}

	return p.parseDeclaratorDecl(base, isStatic, pos)
}

func (p *Parser) parseStructBody(name string) *ast.StructDecl {
	p.nextToken() // consume '{'

	var fields []*ast.FieldDecl

	for !p.curTokenIs(lexer.RBRACE) && !p.curTokenIs(lexer.EOF) {
		ft := p.parseBaseType()
		if ft == nil {
			p.syncTopLevel()
			break
		}

		typ := ft
		for p.curTokenIs(lexer.STAR) {
			typ = &ast.PointerTypeExpr{Elem: typ}
			p.nextToken()
		}

		if !p.curTokenIs(lexer.IDENT) {
			p.errorf("expected field name, got %s", p.curToken.Type)
			break
		}

		fname := p.curToken.Literal
		p.nextToken()

		var dims []ast.Expr

		for p.curTokenIs(lexer.LBRACKET) {
			p.nextToken()

			var lenExpr ast.Expr
			if !p.curTokenIs(lexer.RBRACKET) {
				lenExpr = p.parseExpression()
			}

			if !p.expect(lexer.RBRACKET) {
				break
			}

			dims = append(dims, lenExpr)
		}

		for i := len(dims) - 1; i >= 0; i-- {
			typ = &ast.ArrayTypeExpr{Elem: typ, Len: dims[i]}
		}

		fields = append(fields, &ast.FieldDecl{Name: fname, TypeExpr: typ})
		p.expect(lexer.SEMICOLON)
	}

	p.expect(lexer.RBRACE)
	p.expect(lexer.SEMICOLON)

	fieldNames := make([]string, len(fields))
	fieldTypes := make([]types.Type, len(fields))

	for i, f := range fields {
		fieldNames[i] = f.Name
		fieldTypes[i] = p.resolveType(f.TypeExpr)
	}

	p.tab.DefineStruct(name, fieldNames, fieldTypes)

	return &ast.StructDecl{Name: name, Fields: fields}
}

func (p *Parser) parseDeclaratorDecl(base ast.TypeExpr, isStatic bool, pos ast.Position) ast.Decl {
	typ := base
	for p.curTokenIs(lexer.STAR) {
		typ = &ast.PointerTypeExpr{Elem: typ}
		p.nextToken()
	}

	if !p.curTokenIs(lexer.IDENT) {
		p.errorf("expected declarator name, got %s", p.curToken.Type)
		p.syncTopLevel()

		return nil
	}

	name := p.curToken.Literal
	p.nextToken()

	if p.curTokenIs(lexer.LPAREN) {
		return p.parseFuncDeclRest(name, typ, pos)
	}

	var dims []ast.Expr

	for p.curTokenIs(lexer.LBRACKET) {
		p.nextToken()

		var lenExpr ast.Expr
		if !p.curTokenIs(lexer.RBRACKET) {
			lenExpr = p.parseExpression()
		}

		if !p.expect(lexer.RBRACKET) {
			return nil
		}

		dims = append(dims, lenExpr)
	}

	for i := len(dims) - 1; i >= 0; i-- {
		typ = &ast.ArrayTypeExpr{Elem: typ, Len: dims[i]}
	}

	var init ast.Expr
	if p.curTokenIs(lexer.ASSIGN) {
		p.nextToken()
		init = p.parseExpression()
	}

	p.expect(lexer.SEMICOLON)

	return &ast.VarDecl{
		StmtBase:  ast.StmtBase{Position: pos},
		Name:      name,
		TypeExpr:  typ,
		Init:      init,
		IsPrivate: isStatic,
	}
}

func voidToNil(t ast.TypeExpr) ast.TypeExpr {
	if n, ok := t.(*ast.NamedTypeExpr); ok && n.Name == "void" {
		return nil
	}

	return t
}

func (p *Parser) parseFuncDeclRest(name string, retType ast.TypeExpr, pos ast.Position) ast.Decl {
	p.nextToken() // consume '('

	var params []*ast.Param

	switch {
	case p.curTokenIs(lexer.VOID_KW) && p.peekTokenIs(lexer.RPAREN):
		p.nextToken()
	case !p.curTokenIs(lexer.RPAREN):
		prm := p.parseParam()
		if prm == nil {
			return nil
		}

		params = append(params, prm)

		for p.curTokenIs(lexer.COMMA) {
			p.nextToken()

			prm := p.parseParam()
			if prm == nil {
				return nil
			}

			params = append(params, prm)
		}
	}

	if !p.expect(lexer.RPAREN) {
		return nil
	}

	if p.curTokenIs(lexer.SEMICOLON) {
		p.nextToken()
		return &ast.FuncDecl{Name: name, Params: params, ReturnType: voidToNil(retType), Position: pos, Body: &ast.Block{}, IsExtern: true}
	}

	if !p.curTokenIs(lexer.LBRACE) {
		p.errorf("expected function body, got %s", p.curToken.Type)
		return nil
	}

	body := p.parseBlock()

	return &ast.FuncDecl{Name: name, Params: params, ReturnType: voidToNil(retType), Body: body, Position: pos}
}

func (p *Parser) parseParam() *ast.Param {
	if !isTypeStart(p.curToken.Type) {
		p.errorf("expected parameter type, got %s", p.curToken.Type)
		return nil
	}

	base := p.parseBaseType()
	if base == nil {
		return nil
	}

	typ := base
	for p.curTokenIs(lexer.STAR) {
		typ = &ast.PointerTypeExpr{Elem: typ}
		p.nextToken()
	}

	name := ""
	if p.curTokenIs(lexer.IDENT) {
		name = p.curToken.Literal
		p.nextToken()
	}

	for p.curTokenIs(lexer.LBRACKET) {
		p.nextToken()

		if p.curTokenIs(lexer.RBRACKET) {
			p.nextToken()
			typ = &ast.PointerTypeExpr{Elem: typ}

			continue
		}

		lenExpr := p.parseExpression()
		if !p.expect(lexer.RBRACKET) {
			return nil
		}

		typ = &ast.ArrayTypeExpr{Elem: typ, Len: lenExpr}
	}

	return &ast.Param{Name: name, TypeExpr: typ}
}

// parseBaseType consumes a primitive keyword or `struct Tag`, leaving
// curToken at the token that follows (pointer stars or a name).
func (p *Parser) parseBaseType() ast.TypeExpr {
	switch p.curToken.Type {
	case lexer.INT_KW:
		p.nextToken()
		return &ast.NamedTypeExpr{Name: "int"}
	case lexer.CHAR_KW:
		p.nextToken()
		return &ast.NamedTypeExpr{Name: "char"}
	case lexer.VOID_KW:
		p.nextToken()
		return &ast.NamedTypeExpr{Name: "void"}
	case lexer.STRUCT:
		p.nextToken()

		if !p.curTokenIs(lexer.IDENT) {
			p.errorf("expected struct tag name, got %s", p.curToken.Type)
			return nil
		}

		name := p.curToken.Literal
		p.nextToken()

		return &ast.NamedTypeExpr{Name: name}
	default:
		p.errorf("expected a type, got %s", p.curToken.Type)
		return nil
	}
}

// resolveType resolves a parsed TypeExpr against the parser's running
// struct-tag table. It fills in CastExpr.Target, which needs a
// types.Type at parse time rather than a re-walkable TypeExpr, and it
// resolves field types when parseStructBody registers a struct in that
// table. An array type resolves to a pointer to its element type.
func (p *Parser) resolveType(te ast.TypeExpr) types.Type {
	switch t := te.(type) {
	case *ast.NamedTypeExpr:
		switch t.Name {
		case "int":
			return types.IntType
		case "char":
			return types.CharType
		case "void":
			return types.VoidType
		default:
			if st, ok := p.tab.LookupStruct(t.Name); ok {
				return st
			}

			p.errorf("unknown type %q", t.Name)

			return types.VoidType
		}
	case *ast.PointerTypeExpr:
		return p.tab.PointerTo(p.resolveType(t.Elem))
	case *ast.ArrayTypeExpr:
		return p.tab.PointerTo(p.resolveType(t.Elem))
	default:
		return types.VoidType
	}
}

// ===== Statements =====

func (p *Parser) parseBlock() *ast.Block {
	pos := p.tokenPos()
	if !p.expect(lexer.LBRACE) {
		return &ast.Block{StmtBase: ast.StmtBase{Position: pos}}
	}

	var stmts []ast.Stmt

	for !p.curTokenIs(lexer.RBRACE) && !p.curTokenIs(lexer.EOF) {
		s := p.parseStmt()
		if s != nil {
			stmts = append(stmts, s)
		}
	}

	p.expect(lexer.RBRACE)

	return &ast.Block{StmtBase: ast.StmtBase{Position: pos}, Stmts: stmts}
}

// parseBlockBody parses either a braced block or, for a braceless
// body (if/while/for with a single statement), wraps that statement
// in a synthetic Block.
func (p *Parser) parseBlockBody() *ast.Block {
	if p.curTokenIs(lexer.LBRACE) {
		return p.parseBlock()
	}

	pos := p.tokenPos()

	s := p.parseStmt()
	if s == nil {
		return &ast.Block{StmtBase: ast.StmtBase{Position: pos}}
	}

	return &ast.Block{StmtBase: ast.StmtBase{Position: pos}, Stmts: []ast.Stmt{s}}
}

func (p *Parser) parseStmt() ast.Stmt {
	switch p.curToken.Type {
	case lexer.LBRACE:
		return p.parseBlock()
	case lexer.IF:
		return p.parseIfStmt()
	case lexer.WHILE:
		return p.parseWhileStmt()
	case lexer.DO:
		return p.parseDoWhileStmt()
	case lexer.FOR:
		return p.parseForStmt()
	case lexer.SWITCH:
		return p.parseSwitchStmt()
	case lexer.BREAK:
		pos := p.tokenPos()
		p.nextToken()
		p.expect(lexer.SEMICOLON)

		return &ast.BreakStmt{StmtBase: ast.StmtBase{Position: pos}}
	case lexer.CONTINUE:
		pos := p.tokenPos()
		p.nextToken()
		p.expect(lexer.SEMICOLON)

		return &ast.ContinueStmt{StmtBase: ast.StmtBase{Position: pos}}
	case lexer.GOTO:
		return p.parseGotoStmt()
	case lexer.RETURN:
		return p.parseReturnStmt()
	case lexer.STATIC:
		p.nextToken()
		return p.parseVarDeclStmt(true)
	case lexer.INT_KW, lexer.CHAR_KW, lexer.VOID_KW, lexer.STRUCT:
		return p.parseVarDeclStmt(false)
	case lexer.SEMICOLON:
		p.nextToken()
		return nil
	case lexer.IDENT:
		if p.peekTokenIs(lexer.COLON) {
			return p.parseLabelStmt()
		}

		return p.parseExprStmt()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseVarDeclStmt(isStatic bool) ast.Stmt {
	pos := p.tokenPos()

	base := p.parseBaseType()
	if base == nil {
		return nil
	}

	typ := base
	for p.curTokenIs(lexer.STAR) {
		typ = &ast.PointerTypeExpr{Elem: typ}
		p.nextToken()
	}

	if !p.curTokenIs(lexer.IDENT) {
		p.errorf("expected variable name, got %s", p.curToken.Type)
		return nil
	}

	name := p.curToken.Literal
	p.nextToken()

	var dims []ast.Expr

	for p.curTokenIs(lexer.LBRACKET) {
		p.nextToken()

		var lenExpr ast.Expr
		if !p.curTokenIs(lexer.RBRACKET) {
			lenExpr = p.parseExpression()
		}

		if !p.expect(lexer.RBRACKET) {
			return nil
		}

		dims = append(dims, lenExpr)
	}

	for i := len(dims) - 1; i >= 0; i-- {
		typ = &ast.ArrayTypeExpr{Elem: typ, Len: dims[i]}
	}

	var init ast.Expr
	if p.curTokenIs(lexer.ASSIGN) {
		p.nextToken()
		init = p.parseExpression()
	}

	if !p.expect(lexer.SEMICOLON) {
		return nil
	}

	return &ast.VarDecl{
		StmtBase:  ast.StmtBase{Position: pos},
		Name:      name,
		TypeExpr:  typ,
		Init:      init,
		IsPrivate: isStatic,
	}
}

func (p *Parser) parseIfStmt() ast.Stmt {
	pos := p.tokenPos()
	p.nextToken() // consume 'if'

	if !p.expect(lexer.LPAREN) {
		return nil
	}

	cond := p.parseExpression()
	if cond == nil {
		return nil
	}

	if !p.expect(lexer.RPAREN) {
		return nil
	}

	then := p.parseBlockBody()

	var els ast.Stmt

	if p.curTokenIs(lexer.ELSE) {
		p.nextToken()

		if p.curTokenIs(lexer.IF) {
			els = p.parseIfStmt()
		} else {
			els = p.parseBlockBody()
		}
	}

	return &ast.IfStmt{StmtBase: ast.StmtBase{Position: pos}, Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseWhileStmt() ast.Stmt {
	pos := p.tokenPos()
	p.nextToken() // consume 'while'

	if !p.expect(lexer.LPAREN) {
		return nil
	}

	cond := p.parseExpression()
	if cond == nil {
		return nil
	}

	if !p.expect(lexer.RPAREN) {
		return nil
	}

	body := p.parseBlockBody()

	return &ast.WhileStmt{StmtBase: ast.StmtBase{Position: pos}, Cond: cond, Body: body}
}

func (p *Parser) parseDoWhileStmt() ast.Stmt {
	pos := p.tokenPos()
	p.nextToken() // consume 'do'

	body := p.parseBlockBody()

	if !p.expect(lexer.WHILE) {
		return nil
	}

	if !p.expect(lexer.LPAREN) {
		return nil
	}

	cond := p.parseExpression()
	if cond == nil {
		return nil
	}

	if !p.expect(lexer.RPAREN) {
		return nil
	}

	if !p.expect(lexer.SEMICOLON) {
		return nil
	}

	return &ast.DoWhileStmt{StmtBase: ast.StmtBase{Position: pos}, Body: body, Cond: cond}
}

func (p *Parser) parseForStmt() ast.Stmt {
	pos := p.tokenPos()
	p.nextToken() // consume 'for'

	if !p.expect(lexer.LPAREN) {
		return nil
	}

	var init ast.Stmt

	switch {
	case p.curTokenIs(lexer.SEMICOLON):
		p.nextToken()
	case isTypeStart(p.curToken.Type):
		init = p.parseVarDeclStmt(false)
	default:
		e := p.parseExpression()
		if e == nil {
			return nil
		}

		init = &ast.ExprStmt{StmtBase: ast.StmtBase{Position: e.Pos()}, X: e}

		if !p.expect(lexer.SEMICOLON) {
			return nil
		}
	}

	var cond ast.Expr

	if !p.curTokenIs(lexer.SEMICOLON) {
		cond = p.parseExpression()
		if cond == nil {
			return nil
		}
	}

	if !p.expect(lexer.SEMICOLON) {
		return nil
	}

	var post ast.Stmt

	if !p.curTokenIs(lexer.RPAREN) {
		e := p.parseExpression()
		if e == nil {
			return nil
		}

		post = &ast.ExprStmt{StmtBase: ast.StmtBase{Position: e.Pos()}, X: e}
	}

	if !p.expect(lexer.RPAREN) {
		return nil
	}

	body := p.parseBlockBody()

	return &ast.ForStmt{StmtBase: ast.StmtBase{Position: pos}, Init: init, Cond: cond, Post: post, Body: body}
}

func (p *Parser) parseSwitchStmt() ast.Stmt {
	pos := p.tokenPos()
	p.nextToken() // consume 'switch'

	if !p.expect(lexer.LPAREN) {
		return nil
	}

	cond := p.parseExpression()
	if cond == nil {
		return nil
	}

	if !p.expect(lexer.RPAREN) {
		return nil
	}

	if !p.expect(lexer.LBRACE) {
		return nil
	}

	var cases []*ast.CaseClause

	var def *ast.CaseClause

	for !p.curTokenIs(lexer.RBRACE) && !p.curTokenIs(lexer.EOF) {
		switch p.curToken.Type {
		case lexer.CASE:
			cpos := p.tokenPos()
			p.nextToken()

			val := p.parseExpression()
			if val == nil {
				return nil
			}

			if !p.expect(lexer.COLON) {
				return nil
			}

			body := p.parseCaseBody()
			cases = append(cases, &ast.CaseClause{Value: val, Body: body, Position: cpos})
		case lexer.DEFAULT:
			dpos := p.tokenPos()
			p.nextToken()

			if !p.expect(lexer.COLON) {
				return nil
			}

			body := p.parseCaseBody()
			def = &ast.CaseClause{Body: body, Position: dpos}
		default:
			p.errorf("expected case or default, got %s", p.curToken.Type)
			p.nextToken()
		}
	}

	p.expect(lexer.RBRACE)

	return &ast.SwitchStmt{StmtBase: ast.StmtBase{Position: pos}, Cond: cond, Cases: cases, Default: def}
}

func (p *Parser) parseCaseBody() []ast.Stmt {
	var body []ast.Stmt

	for !p.curTokenIs(lexer.CASE) && !p.curTokenIs(lexer.DEFAULT) &&
		!p.curTokenIs(lexer.RBRACE) && !p.curTokenIs(lexer.EOF) {
		s := p.parseStmt()
		if s != nil {
			body = append(body, s)
		}
	}

	return body
}

func (p *Parser) parseGotoStmt() ast.Stmt {
	pos := p.tokenPos()
	p.nextToken() // consume 'goto'

	if !p.curTokenIs(lexer.IDENT) {
		p.errorf("expected label name after goto, got %s", p.curToken.Type)
		return nil
	}

	name := p.curToken.Literal
	p.nextToken()

	if !p.expect(lexer.SEMICOLON) {
		return nil
	}

	return &ast.GotoStmt{StmtBase: ast.StmtBase{Position: pos}, Name: name}
}

func (p *Parser) parseLabelStmt() ast.Stmt {
	pos := p.tokenPos()
	name := p.curToken.Literal
	p.nextToken() // consume identifier
	p.nextToken() // consume ':'

	var stmt ast.Stmt
	if !p.curTokenIs(lexer.RBRACE) && !p.curTokenIs(lexer.EOF) &&
		!p.curTokenIs(lexer.CASE) && !p.curTokenIs(lexer.DEFAULT) {
		stmt = p.parseStmt()
	}

	return &ast.LabelStmt{StmtBase: ast.StmtBase{Position: pos}, Name: name, Stmt: stmt}
}

func (p *Parser) parseReturnStmt() ast.Stmt {
	pos := p.tokenPos()
	p.nextToken() // consume 'return'

	var val ast.Expr

	if !p.curTokenIs(lexer.SEMICOLON) {
		val = p.parseExpression()
		if val == nil {
			return nil
		}
	}

	if !p.expect(lexer.SEMICOLON) {
		return nil
	}

	return &ast.ReturnStmt{StmtBase: ast.StmtBase{Position: pos}, Value: val}
}

func (p *Parser) parseExprStmt() ast.Stmt {
	pos := p.tokenPos()

	e := p.parseExpression()
	if e == nil {
		for !p.curTokenIs(lexer.SEMICOLON) && !p.curTokenIs(lexer.EOF) && !p.curTokenIs(lexer.RBRACE) {
			p.nextToken()
		}

		if p.curTokenIs(lexer.SEMICOLON) {
			p.nextToken()
		}

		return nil
	}

	if !p.expect(lexer.SEMICOLON) {
		return nil
	}

	return &ast.ExprStmt{StmtBase: ast.StmtBase{Position: pos}, X: e}
}

// ===== Expressions =====
//
// parseExpression is the assignment-precedence entry point; the
// grammar descends assignment -> ternary -> binary (precedence
// climbing) -> unary/cast/sizeof -> postfix -> primary.

func (p *Parser) parseExpression() ast.Expr {
	return p.parseAssign()
}

func (p *Parser) parseAssign() ast.Expr {
	left := p.parseTernary()
	if left == nil {
		return nil
	}

	op, ok := assignOps[p.curToken.Type]
	if !ok {
		return left
	}

	pos := left.Pos()
	p.nextToken()

	right := p.parseAssign()
	if right == nil {
		return nil
	}

	return &ast.AssignExpr{ExprBase: ast.ExprBase{Position: pos}, Op: op, Lhs: left, Rhs: right}
}

func (p *Parser) parseTernary() ast.Expr {
	cond := p.parseBinary(1)
	if cond == nil {
		return nil
	}

	if !p.curTokenIs(lexer.QUESTION) {
		return cond
	}

	pos := cond.Pos()
	p.nextToken()

	then := p.parseAssign()
	if then == nil {
		return nil
	}

	if !p.expect(lexer.COLON) {
		return nil
	}

	els := p.parseAssign()
	if els == nil {
		return nil
	}

	return &ast.CondExpr{ExprBase: ast.ExprBase{Position: pos}, Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseBinary(minPrec int) ast.Expr {
	left := p.parseUnary()
	if left == nil {
		return nil
	}

	for {
		prec, ok := binaryPrecedence[p.curToken.Type]
		if !ok || prec < minPrec {
			return left
		}

		op := p.curToken.Literal
		pos := left.Pos()
		p.nextToken()

		right := p.parseBinary(prec + 1)
		if right == nil {
			return nil
		}

		left = &ast.BinaryExpr{ExprBase: ast.ExprBase{Position: pos}, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.curToken.Type {
	case lexer.BANG, lexer.TILDE, lexer.PLUS, lexer.MINUS, lexer.AMP, lexer.STAR:
		op := p.curToken.Literal
		pos := p.tokenPos()
		p.nextToken()

		x := p.parseUnary()
		if x == nil {
			return nil
		}

		return &ast.UnaryExpr{ExprBase: ast.ExprBase{Position: pos}, Op: op, X: x}
	case lexer.INC, lexer.DEC:
		op := p.curToken.Literal
		pos := p.tokenPos()
		p.nextToken()

		x := p.parseUnary()
		if x == nil {
			return nil
		}

		return &ast.IncDecExpr{ExprBase: ast.ExprBase{Position: pos}, Op: op, Prefix: true, X: x}
	case lexer.SIZEOF:
		return p.parseSizeof()
	case lexer.LPAREN:
		if isTypeStart(p.peekToken.Type) {
			return p.parseCast()
		}

		return p.parsePostfix(p.parsePrimary())
	default:
		return p.parsePostfix(p.parsePrimary())
	}
}

func (p *Parser) parseCast() ast.Expr {
	pos := p.tokenPos()
	p.nextToken() // consume '('

	target := p.parseBaseType()
	if target == nil {
		return nil
	}

	for p.curTokenIs(lexer.STAR) {
		target = &ast.PointerTypeExpr{Elem: target}
		p.nextToken()
	}

	if !p.expect(lexer.RPAREN) {
		return nil
	}

	x := p.parseUnary()
	if x == nil {
		return nil
	}

	return &ast.CastExpr{ExprBase: ast.ExprBase{Position: pos}, Target: p.resolveType(target), X: x}
}

func (p *Parser) parseSizeof() ast.Expr {
	pos := p.tokenPos()
	p.nextToken() // consume 'sizeof'

	if p.curTokenIs(lexer.LPAREN) && isTypeStart(p.peekToken.Type) {
		p.nextToken() // consume '('

		te := p.parseBaseType()
		if te == nil {
			return nil
		}

		for p.curTokenIs(lexer.STAR) {
			te = &ast.PointerTypeExpr{Elem: te}
			p.nextToken()
		}

		if !p.expect(lexer.RPAREN) {
			return nil
		}

		return &ast.SizeofExpr{ExprBase: ast.ExprBase{Position: pos}, OperandType: te}
	}

	operand := p.parseUnary()
	if operand == nil {
		return nil
	}

	return &ast.SizeofExpr{ExprBase: ast.ExprBase{Position: pos}, Operand: operand}
}

func (p *Parser) parsePostfix(x ast.Expr) ast.Expr {
	if x == nil {
		return nil
	}

	for {
		switch p.curToken.Type {
		case lexer.LBRACKET:
			pos := x.Pos()
			p.nextToken()

			idx := p.parseExpression()
			if idx == nil {
				return nil
			}

			if !p.expect(lexer.RBRACKET) {
				return nil
			}

			x = &ast.IndexExpr{ExprBase: ast.ExprBase{Position: pos}, Array: x, Index: idx}
		case lexer.LPAREN:
			pos := x.Pos()
			p.nextToken()

			var args []ast.Expr

			if !p.curTokenIs(lexer.RPAREN) {
				a := p.parseAssign()
				if a == nil {
					return nil
				}

				args = append(args, a)

				for p.curTokenIs(lexer.COMMA) {
					p.nextToken()

					a := p.parseAssign()
					if a == nil {
						return nil
					}

					args = append(args, a)
				}
			}

			if !p.expect(lexer.RPAREN) {
				return nil
			}

			x = &ast.CallExpr{ExprBase: ast.ExprBase{Position: pos}, Callee: x, Args: args}
		case lexer.DOT, lexer.ARROW:
			arrow := p.curTokenIs(lexer.ARROW)
			pos := x.Pos()
			p.nextToken()

			if !p.curTokenIs(lexer.IDENT) {
				p.errorf("expected field name, got %s", p.curToken.Type)
				return nil
			}

			field := p.curToken.Literal
			p.nextToken()

			x = &ast.MemberExpr{ExprBase: ast.ExprBase{Position: pos}, Base: x, Field: field, Arrow: arrow}
		case lexer.INC, lexer.DEC:
			op := p.curToken.Literal
			pos := x.Pos()
			p.nextToken()

			x = &ast.IncDecExpr{ExprBase: ast.ExprBase{Position: pos}, Op: op, Prefix: false, X: x}
		default:
			return x
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	pos := p.tokenPos()

	switch p.curToken.Type {
	case lexer.IDENT:
		name := p.curToken.Literal
		p.nextToken()

		return &ast.Ident{ExprBase: ast.ExprBase{Position: pos}, Name: name}
	case lexer.INT:
		lit := p.curToken.Literal
		p.nextToken()

		return &ast.IntLit{ExprBase: ast.ExprBase{Position: pos}, Value: p.parseIntLiteral(lit)}
	case lexer.CHAR:
		lit := p.curToken.Literal
		p.nextToken()

		return &ast.IntLit{ExprBase: ast.ExprBase{Position: pos}, Value: decodeCharLiteral(lit)}
	case lexer.STRING:
		lit := p.curToken.Literal
		p.nextToken()

		return &ast.StringLit{ExprBase: ast.ExprBase{Position: pos}, Value: lit}
	case lexer.LPAREN:
		p.nextToken()

		x := p.parseExpression()
		if x == nil {
			return nil
		}

		if !p.expect(lexer.RPAREN) {
			return nil
		}

		return x
	default:
		p.errorf("unexpected token %s in expression", p.curToken.Type)
		p.nextToken()

		return nil
	}
}

func (p *Parser) parseIntLiteral(lit string) int64 {
	clean := strings.ReplaceAll(lit, "_", "")

	v, err := strconv.ParseInt(clean, 0, 64)
	if err != nil {
		p.errorf("invalid integer literal %q", lit)
		return 0
	}

	return v
}

func decodeCharLiteral(lit string) int64 {
	if len(lit) == 0 {
		return 0
	}

	if lit[0] == '\\' && len(lit) > 1 {
		switch lit[1] {
		case 'n':
			return int64('\n')
		case 't':
			return int64('\t')
		case 'r':
			return int64('\r')
		case '0':
			return 0
		case '\\':
			return int64('\\')
		case '\'':
			return int64('\'')
		case '"':
			return int64('"')
		default:
			return int64(lit[1])
		}
	}

	return int64(lit[0])
}
