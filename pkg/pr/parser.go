package pr

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/ident"
	"github.com/leapstack-labs/leapsql/pkg/pl"
)

// parser is a hand-written recursive-descent/Pratt parser over the token
// stream produced by lex. It builds pl.Expr/pl.Stmt trees directly (see
// the package doc comment for why there is no separate concrete PR type).
type parser struct {
	toks     []Token
	pos      int
	sourceID uint16
}

// Parse parses a single PRQL source file into its top-level statements and
// optional `prql ...` header.
func Parse(source string, sourceID uint16) ([]*pl.Stmt, *pl.QueryDef, error) {
	toks, err := lex(source)
	if err != nil {
		return nil, nil, err
	}
	p := &parser{toks: toks, sourceID: sourceID}
	return p.parseFile()
}

// ParseSourceTree parses every file in tree and nests each file's
// statements into a ModuleDefStmt tree mirroring the tree's directories
// (spec §4.1). The returned Stmt has Kind KindModuleDef and is the root
// module.
func ParseSourceTree(tree *pl.SourceTree) (*pl.Stmt, error) {
	root := &pl.ModuleDefStmt{Name: ""}
	paths := make([]string, 0, len(tree.Sources))
	for path := range tree.Sources {
		paths = append(paths, path)
	}
	sortStrings(paths)

	for _, path := range paths {
		sourceID, _ := tree.SourceIDFor(path)
		stmts, _, err := Parse(tree.Sources[path], sourceID)
		if err != nil {
			return nil, err
		}
		insertAtPath(root, splitModulePath(path), stmts)
	}
	return &pl.Stmt{Kind: pl.KindModuleDef, ModuleDef: root}, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// splitModulePath turns "a/b/file.prql" into module segments ["a", "b"].
// The leaf file's own statements are inserted directly into the deepest
// directory module rather than creating a further nested module named
// after the file.
func splitModulePath(path string) []string {
	path = strings.TrimSuffix(path, ".prql")
	parts := strings.Split(path, "/")
	if len(parts) <= 1 {
		return nil
	}
	return parts[:len(parts)-1]
}

func insertAtPath(root *pl.ModuleDefStmt, path []string, stmts []*pl.Stmt) {
	cur := root
	for _, seg := range path {
		var child *pl.ModuleDefStmt
		for _, s := range cur.Stmts {
			if s.Kind == pl.KindModuleDef && s.ModuleDef.Name == seg {
				child = s.ModuleDef
				break
			}
		}
		if child == nil {
			child = &pl.ModuleDefStmt{Name: seg}
			cur.Stmts = append(cur.Stmts, &pl.Stmt{Kind: pl.KindModuleDef, ModuleDef: child})
		}
		cur = child
	}
	cur.Stmts = append(cur.Stmts, stmts...)
}

func (p *parser) cur() Token  { return p.toks[p.pos] }
func (p *parser) peek(n int) Token {
	i := p.pos + n
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}
func (p *parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) skipNewlines() {
	for p.cur().Type == NEWLINE {
		p.advance()
	}
}

func (p *parser) span(start, end Position) *ident.Span {
	return &ident.Span{Start: int(start), End: int(end), SourceID: p.sourceID}
}

func (p *parser) errorf(expected ...string) error {
	found := tokenDisplay(p.cur())
	return &ParseError{Pos: p.cur().Start, End: p.cur().End, Expected: expected, Found: found}
}

func tokenDisplay(t Token) string {
	if t.Type == EOF {
		return ""
	}
	if t.Lit != "" && (t.Type == IDENT || t.Type == NUMBER || t.Type == STRING) {
		return t.Lit
	}
	return t.Type.String()
}

func (p *parser) expect(tt TokenType, label string) (Token, error) {
	if p.cur().Type != tt {
		return Token{}, p.errorf(label)
	}
	return p.advance(), nil
}

// parseFile parses an entire file: optional header, then top-level
// statements. Newlines inside a statement act as pipes; a statement ends
// where the next `let`/`into`/`type`/`module`/`prql`/annotation begins.
func (p *parser) parseFile() ([]*pl.Stmt, *pl.QueryDef, error) {
	var header *pl.QueryDef
	p.skipNewlines()
	if p.cur().Type == KwPrql {
		h, err := p.parseHeader()
		if err != nil {
			return nil, nil, err
		}
		header = h
		p.skipNewlines()
	}
	stmts, err := p.parseStmts(true)
	if err != nil {
		return nil, nil, err
	}
	return stmts, header, nil
}

func (p *parser) parseHeader() (*pl.QueryDef, error) {
	p.advance() // 'prql'
	qd := &pl.QueryDef{Other: map[string]string{}}
	for p.cur().Type != NEWLINE && p.cur().Type != EOF {
		nameTok, err := p.expect(IDENT, "header key")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(COLON, "':'"); err != nil {
			return nil, err
		}
		switch nameTok.Lit {
		case "version":
			v, err := p.parseHeaderStringOrIdentValue()
			if err != nil {
				return nil, err
			}
			qd.Version = &v
		case "target":
			v, err := p.parseHeaderStringOrIdentValue()
			if err != nil {
				return nil, err
			}
			qd.Target = &v
		default:
			v, err := p.parseHeaderStringOrIdentValue()
			if err != nil {
				return nil, err
			}
			qd.Other[nameTok.Lit] = v
		}
	}
	return qd, nil
}

// parseHeaderStringOrIdentValue reads a header value, which is either a
// quoted string ("0.11") or a dotted identifier (sql.postgres).
func (p *parser) parseHeaderStringOrIdentValue() (string, error) {
	if p.cur().Type == STRING {
		return p.advance().Lit, nil
	}
	var parts []string
	tok, err := p.expect(IDENT, "identifier")
	if err != nil {
		return "", err
	}
	parts = append(parts, tok.Lit)
	for p.cur().Type == DOT {
		p.advance()
		tok, err := p.expect(IDENT, "identifier")
		if err != nil {
			return "", err
		}
		parts = append(parts, tok.Lit)
	}
	return strings.Join(parts, "."), nil
}

func (p *parser) parseStmts(topLevel bool) ([]*pl.Stmt, error) {
	var stmts []*pl.Stmt
	for {
		p.skipNewlines()
		if p.cur().Type == EOF || (!topLevel && p.cur().Type == RBRACE) {
			break
		}
		stmt, err := p.parseStmt(topLevel)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func (p *parser) parseStmt(topLevel bool) (*pl.Stmt, error) {
	start := p.cur().Start
	var annotations []*pl.Expr
	for p.cur().Type == AT {
		ann, err := p.parseAnnotation()
		if err != nil {
			return nil, err
		}
		annotations = append(annotations, ann)
		p.skipNewlines()
	}

	var stmt *pl.Stmt
	var err error
	switch p.cur().Type {
	case KwLet:
		stmt, err = p.parseVarDef(pl.VarLet)
	case KwInto:
		stmt, err = p.parseVarDef(pl.VarInto)
	case KwType:
		stmt, err = p.parseTypeDef()
	case KwModule:
		stmt, err = p.parseModuleDef()
	default:
		stmt, err = p.parseMainPipelineStmt(topLevel)
	}
	if err != nil {
		return nil, err
	}
	stmt.Annotations = annotations
	stmt.Span = p.span(start, p.cur().Start)
	return stmt, nil
}

func (p *parser) parseAnnotation() (*pl.Expr, error) {
	p.advance() // '@'
	return p.parsePrimary()
}

func (p *parser) parseVarDef(kind pl.VarDefKind) (*pl.Stmt, error) {
	p.advance() // 'let' / 'into'
	nameTok, err := p.expect(IDENT, "name")
	if err != nil {
		return nil, err
	}
	name := nameTok.Lit
	var tyExpr *pl.Expr
	if p.cur().Type == COLON {
		p.advance()
		tyExpr, err = p.parsePrimary()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(ASSIGN, "'='"); err != nil {
		return nil, err
	}
	value, err := p.parsePipeline(false)
	if err != nil {
		return nil, err
	}
	return &pl.Stmt{Kind: pl.KindVarDef, VarDef: &pl.VarDefStmt{Name: &name, Value: value, TyExpr: tyExpr, Kind: kind}}, nil
}

func (p *parser) parseTypeDef() (*pl.Stmt, error) {
	p.advance() // 'type'
	nameTok, err := p.expect(IDENT, "name")
	if err != nil {
		return nil, err
	}
	var value *pl.Expr
	if p.cur().Type == ASSIGN {
		p.advance()
		value, err = p.parsePrimary()
		if err != nil {
			return nil, err
		}
	}
	return &pl.Stmt{Kind: pl.KindTypeDef, TypeDef: &pl.TypeDefStmt{Name: nameTok.Lit, Value: value}}, nil
}

func (p *parser) parseModuleDef() (*pl.Stmt, error) {
	p.advance() // 'module'
	nameTok, err := p.expect(IDENT, "name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACE, "'{'"); err != nil {
		return nil, err
	}
	stmts, err := p.parseStmts(false)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RBRACE, "'}'"); err != nil {
		return nil, err
	}
	return &pl.Stmt{Kind: pl.KindModuleDef, ModuleDef: &pl.ModuleDefStmt{Name: nameTok.Lit, Stmts: stmts}}, nil
}

// parseMainPipelineStmt parses a bare pipeline that is not prefixed by
// `let`/`into`: the implicit main query (spec §3.4 `_main`).
func (p *parser) parseMainPipelineStmt(topLevel bool) (*pl.Stmt, error) {
	expr, err := p.parsePipeline(topLevel)
	if err != nil {
		return nil, err
	}
	return &pl.Stmt{Kind: pl.KindVarDef, VarDef: &pl.VarDefStmt{Value: expr, Kind: pl.VarMain}}, nil
}

// parsePipeline parses one or more stages chained by `|` or (at the top
// level) by newlines, producing a KindPipeline Expr (or the bare stage
// itself if there is only one).
func (p *parser) parsePipeline(topLevel bool) (*pl.Expr, error) {
	start := p.cur().Start
	var stages []*pl.Expr
	for {
		stage, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)

		p.skipNewlines()
		if p.cur().Type == PIPE {
			p.advance()
			p.skipNewlines()
			continue
		}
		if topLevel && p.stmtBoundary() {
			break
		}
		if !topLevel && (p.cur().Type == EOF || p.cur().Type == RPAREN || p.cur().Type == RBRACE || p.cur().Type == RBRACKET || p.cur().Type == COMMA) {
			break
		}
		if topLevel && p.cur().Type == EOF {
			break
		}
		if topLevel {
			// Newline already consumed by skipNewlines acts as an implicit
			// pipe; keep parsing the next stage.
			continue
		}
		break
	}
	if len(stages) == 1 {
		return stages[0], nil
	}
	return &pl.Expr{Kind: pl.KindPipeline, Pipeline: stages, Span: p.span(start, p.cur().Start)}, nil
}

func (p *parser) stmtBoundary() bool {
	switch p.cur().Type {
	case EOF, KwLet, KwInto, KwType, KwModule, KwPrql, AT:
		return true
	default:
		return false
	}
}

// --- Pratt expression parser ---

func precedence(tt TokenType) int {
	switch tt {
	case OROR:
		return 1
	case ANDAND:
		return 2
	case EQ, NE:
		return 3
	case LT, LE, GT, GE, REGEX:
		return 4
	case COALESCE:
		return 5
	case PLUS, MINUS:
		return 6
	case STAR, SLASH, DSLASH, PERCENT:
		return 7
	default:
		return 0
	}
}

func binOpFor(tt TokenType) pl.BinOp {
	switch tt {
	case PLUS:
		return pl.OpAdd
	case MINUS:
		return pl.OpSub
	case STAR:
		return pl.OpMul
	case SLASH:
		return pl.OpDiv
	case DSLASH:
		return pl.OpDivInt
	case PERCENT:
		return pl.OpMod
	case EQ:
		return pl.OpEq
	case NE:
		return pl.OpNe
	case LT:
		return pl.OpLt
	case LE:
		return pl.OpLe
	case GT:
		return pl.OpGt
	case GE:
		return pl.OpGe
	case ANDAND:
		return pl.OpAnd
	case OROR:
		return pl.OpOr
	case COALESCE:
		return pl.OpCoalesce
	case REGEX:
		return pl.OpRegexSearch
	default:
		return pl.OpAdd
	}
}

func (p *parser) parseExpr(minPrec int) (*pl.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		prec := precedence(p.cur().Type)
		if prec == 0 || prec < minPrec {
			break
		}
		opTok := p.advance()
		start := left.Span
		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		var end *ident.Span
		if right.Span != nil {
			end = right.Span
		}
		sp := mergeSpan(start, end)
		left = &pl.Expr{Kind: pl.KindBinary, BinOp: binOpFor(opTok.Type), Left: left, Right: right, Span: sp}
	}
	return left, nil
}

func mergeSpan(a, b *ident.Span) *ident.Span {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return &ident.Span{Start: a.Start, End: b.End, SourceID: a.SourceID}
}

func (p *parser) parseUnary() (*pl.Expr, error) {
	start := p.cur().Start
	switch p.cur().Type {
	case MINUS:
		p.advance()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &pl.Expr{Kind: pl.KindUnary, UnOp: pl.OpNeg, Operand: e, Span: p.span(start, p.cur().Start)}, nil
	case NOT:
		p.advance()
		if p.cur().Type == LBRACE {
			except, err := p.parseExcludeNames()
			if err != nil {
				return nil, err
			}
			return &pl.Expr{Kind: pl.KindAll, All: &pl.AllExpr{Except: except}, Span: p.span(start, p.cur().Start)}, nil
		}
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &pl.Expr{Kind: pl.KindUnary, UnOp: pl.OpNot, Operand: e, Span: p.span(start, p.cur().Start)}, nil
	case PLUS:
		p.advance()
		return p.parseUnary()
	case EQ:
		// Join shorthand: `==col` means `left.col == right.col`.
		p.advance()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &pl.Expr{Kind: pl.KindBinary, BinOp: pl.OpEq, Left: nil, Right: rhs, Span: p.span(start, p.cur().Start)}, nil
	}
	return p.parseCallOrPrimary()
}

// canStartTerm reports whether tt can begin a function-call argument, used
// both to detect that an ident is being called and to know when to stop
// gathering arguments.
func canStartTerm(tt TokenType) bool {
	switch tt {
	case IDENT, NUMBER, STRING, SSTRING, FSTRING, PARAM, LPAREN, LBRACE, LBRACKET,
		MINUS, NOT, PLUS, KwTrue, KwFalse, KwNull, KwCase, KwFunc, DOTDOT, EQ:
		return true
	default:
		return false
	}
}

// parseCallOrPrimary parses a primary term and, if it is a bare identifier
// followed by further terms, gathers them into a FuncCall (spec §3.2
// FuncCall; PRQL calls are juxtaposition-based, no parens required). Only
// an identifier that starts a stage, a bracketed group, a list item or an
// `=`/`->`/`=>` right-hand side is called; one that follows another term is
// itself an argument of the enclosing call and stays a plain ident, so a
// nested call needs its own parentheses.
func (p *parser) parseCallOrPrimary() (*pl.Expr, error) {
	start := p.cur().Start
	startIdx := p.pos
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if base.Kind != pl.KindIdent {
		return base, nil
	}
	if !canStartTerm(p.cur().Type) {
		return base, nil
	}
	if startIdx > 0 {
		switch p.toks[startIdx-1].Type {
		case NEWLINE, PIPE, LPAREN, LBRACE, LBRACKET, COMMA, ASSIGN, ARROW, FATARROW:
		default:
			return base, nil
		}
	}
	call := &pl.FuncCallExpr{Name: base, NamedArgs: map[string]*pl.Expr{}}
	for canStartTerm(p.cur().Type) {
		if p.cur().Type == IDENT && p.peek(1).Type == COLON {
			nameTok := p.advance()
			p.advance() // ':'
			val, err := p.parseNamedArgValue()
			if err != nil {
				return nil, err
			}
			call.NamedArgs[nameTok.Lit] = val
			continue
		}
		arg, err := p.parseArgTerm()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
	}
	return &pl.Expr{Kind: pl.KindFuncCall, FuncCall: call, Span: p.span(start, p.cur().Start)}, nil
}

// parseNamedArgValue parses a named-argument value, which may be a range
// like `..0` as well as an ordinary term.
func (p *parser) parseNamedArgValue() (*pl.Expr, error) {
	return p.parseArgTerm()
}

// parseArgTerm parses one call argument: either a range literal (`..end`,
// `start..end`, `start..`) or a full operator expression over a single
// primary, stopping before the next sibling argument (so `filter x == "a"`
// parses "x == \"a\"" as one arg).
func (p *parser) parseArgTerm() (*pl.Expr, error) {
	start := p.cur().Start
	if p.cur().Type == DOTDOT {
		p.advance()
		var end *pl.Expr
		if canStartTerm(p.cur().Type) && p.cur().Type != IDENT {
			e, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			end = e
		} else if p.cur().Type == IDENT {
			e, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			end = e
		}
		return &pl.Expr{Kind: pl.KindRange, Range: &pl.Range{End: end}, Span: p.span(start, p.cur().Start)}, nil
	}
	e, err := p.parseExpr(0)
	if err != nil || p.cur().Type != DOTDOT {
		return e, err
	}
	// `start..end` or an open-ended `start..`.
	p.advance()
	var end *pl.Expr
	if canStartTerm(p.cur().Type) {
		if end, err = p.parseUnary(); err != nil {
			return nil, err
		}
	}
	return &pl.Expr{Kind: pl.KindRange, Range: &pl.Range{Start: e, End: end}, Span: p.span(start, p.cur().Start)}, nil
}

func (p *parser) parsePrimary() (*pl.Expr, error) {
	start := p.cur().Start
	tok := p.cur()
	switch tok.Type {
	case IDENT:
		id, err := p.parseDottedIdent()
		if err != nil {
			return nil, err
		}
		return &pl.Expr{Kind: pl.KindIdent, Ident: id, Span: p.span(start, p.cur().Start)}, nil
	case NUMBER:
		p.advance()
		return &pl.Expr{Kind: pl.KindLiteral, Literal: parseNumberLiteral(tok.Lit), Span: p.span(start, p.cur().Start)}, nil
	case STRING:
		p.advance()
		return &pl.Expr{Kind: pl.KindLiteral, Literal: ident.String(tok.Lit), Span: p.span(start, p.cur().Start)}, nil
	case SSTRING:
		p.advance()
		items, err := parseInterpolation(tok.Lit, p.sourceID)
		if err != nil {
			return nil, err
		}
		return &pl.Expr{Kind: pl.KindSString, SString: items, Span: p.span(start, p.cur().Start)}, nil
	case FSTRING:
		p.advance()
		items, err := parseInterpolation(tok.Lit, p.sourceID)
		if err != nil {
			return nil, err
		}
		return &pl.Expr{Kind: pl.KindFString, FString: items, Span: p.span(start, p.cur().Start)}, nil
	case PARAM:
		p.advance()
		return &pl.Expr{Kind: pl.KindParam, Param: tok.Lit, Span: p.span(start, p.cur().Start)}, nil
	case KwTrue:
		p.advance()
		return &pl.Expr{Kind: pl.KindLiteral, Literal: ident.Boolean(true), Span: p.span(start, p.cur().Start)}, nil
	case KwFalse:
		p.advance()
		return &pl.Expr{Kind: pl.KindLiteral, Literal: ident.Boolean(false), Span: p.span(start, p.cur().Start)}, nil
	case KwNull:
		p.advance()
		return &pl.Expr{Kind: pl.KindLiteral, Literal: ident.Null, Span: p.span(start, p.cur().Start)}, nil
	case LPAREN:
		return p.parseParenGroup()
	case LBRACE:
		return p.parseTuple()
	case LBRACKET:
		return p.parseArray()
	case KwCase:
		return p.parseCase()
	case KwFunc:
		return p.parseFunc()
	case DOTDOT:
		return p.parseArgTerm()
	default:
		return nil, p.errorf("expression")
	}
}

func (p *parser) parseDottedIdent() (ident.Ident, error) {
	tok, err := p.expect(IDENT, "identifier")
	if err != nil {
		return ident.Ident{}, err
	}
	parts := []string{tok.Lit}
	for p.cur().Type == DOT {
		p.advance()
		if p.cur().Type == STAR {
			p.advance()
			parts = append(parts, "*")
			break
		}
		t, err := p.expect(IDENT, "identifier")
		if err != nil {
			return ident.Ident{}, err
		}
		parts = append(parts, t.Lit)
	}
	return ident.FromPath(parts), nil
}

func (p *parser) parseParenGroup() (*pl.Expr, error) {
	p.advance() // '('
	p.skipNewlines()
	expr, err := p.parsePipeline(false)
	if err != nil {
		return nil, err
	}
	p.skipNewlines()
	if _, err := p.expect(RPAREN, "')'"); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *parser) parseTuple() (*pl.Expr, error) {
	start := p.cur().Start
	p.advance() // '{'
	var items []*pl.Expr
	p.skipNewlines()
	for p.cur().Type != RBRACE {
		item, err := p.parseTupleItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		p.skipNewlines()
		if p.cur().Type == COMMA {
			p.advance()
			p.skipNewlines()
			continue
		}
		break
	}
	p.skipNewlines()
	if _, err := p.expect(RBRACE, "'}'"); err != nil {
		return nil, err
	}
	return &pl.Expr{Kind: pl.KindTuple, Tuple: items, Span: p.span(start, p.cur().Start)}, nil
}

// parseExcludeNames parses the `{a, b}` operand of a `!{...}` exclude
// tuple: a brace-delimited list of bare column names (spec §3.3's
// `All{within, except}`, written `!{...}` at the source level).
func (p *parser) parseExcludeNames() ([]string, error) {
	p.advance() // '{'
	var names []string
	p.skipNewlines()
	for p.cur().Type != RBRACE {
		tok, err := p.expect(IDENT, "identifier")
		if err != nil {
			return nil, err
		}
		names = append(names, tok.Lit)
		p.skipNewlines()
		if p.cur().Type == COMMA {
			p.advance()
			p.skipNewlines()
			continue
		}
		break
	}
	p.skipNewlines()
	if _, err := p.expect(RBRACE, "'}'"); err != nil {
		return nil, err
	}
	return names, nil
}

// parseTupleItem parses one field of a tuple literal: `name = expr`,
// a bare pipeline, or a leading `-`/`+` direction marker used by `sort`.
func (p *parser) parseTupleItem() (*pl.Expr, error) {
	if p.cur().Type == IDENT && p.peek(1).Type == ASSIGN {
		nameTok := p.advance()
		p.advance() // '='
		value, err := p.parsePipeline(false)
		if err != nil {
			return nil, err
		}
		name := nameTok.Lit
		value.Alias = &name
		return value, nil
	}
	return p.parsePipeline(false)
}

func (p *parser) parseArray() (*pl.Expr, error) {
	start := p.cur().Start
	p.advance() // '['
	var items []*pl.Expr
	p.skipNewlines()
	for p.cur().Type != RBRACKET {
		item, err := p.parseTupleItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		p.skipNewlines()
		if p.cur().Type == COMMA {
			p.advance()
			p.skipNewlines()
			continue
		}
		break
	}
	p.skipNewlines()
	if _, err := p.expect(RBRACKET, "']'"); err != nil {
		return nil, err
	}
	return &pl.Expr{Kind: pl.KindArray, Array: items, Span: p.span(start, p.cur().Start)}, nil
}

func (p *parser) parseCase() (*pl.Expr, error) {
	start := p.cur().Start
	p.advance() // 'case'
	if _, err := p.expect(LBRACKET, "'['"); err != nil {
		return nil, err
	}
	var items []pl.CaseItem
	p.skipNewlines()
	for p.cur().Type != RBRACKET {
		cond, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(FATARROW, "'=>'"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		items = append(items, pl.CaseItem{Condition: cond, Value: val})
		p.skipNewlines()
		if p.cur().Type == COMMA {
			p.advance()
			p.skipNewlines()
			continue
		}
		break
	}
	p.skipNewlines()
	if _, err := p.expect(RBRACKET, "']'"); err != nil {
		return nil, err
	}
	return &pl.Expr{Kind: pl.KindCase, Case: items, Span: p.span(start, p.cur().Start)}, nil
}

func (p *parser) parseFunc() (*pl.Expr, error) {
	start := p.cur().Start
	p.advance() // 'func'
	var params []pl.FuncParam
	for p.cur().Type == IDENT {
		nameTok := p.advance()
		params = append(params, pl.FuncParam{Name: nameTok.Lit})
	}
	if _, err := p.expect(ARROW, "'->'"); err != nil {
		return nil, err
	}
	body, err := p.parsePipeline(false)
	if err != nil {
		return nil, err
	}
	return &pl.Expr{Kind: pl.KindFunc, Func: &pl.FuncExpr{Params: params, Body: body}, Span: p.span(start, p.cur().Start)}, nil
}

func parseNumberLiteral(lit string) ident.Literal {
	if strings.ContainsAny(lit, ".eE") {
		f, _ := strconv.ParseFloat(lit, 64)
		return ident.Float(f)
	}
	n, _ := strconv.ParseInt(lit, 10, 64)
	return ident.Integer(n)
}

// parseInterpolation splits a raw s"..."/f"..." body on `{expr}` boundaries.
func parseInterpolation(raw string, sourceID uint16) ([]pl.InterpItem, error) {
	var items []pl.InterpItem
	var text strings.Builder
	i := 0
	for i < len(raw) {
		c := raw[i]
		if c == '{' {
			if text.Len() > 0 {
				items = append(items, pl.InterpItem{Kind: pl.InterpString, Text: text.String()})
				text.Reset()
			}
			depth := 1
			j := i + 1
			for j < len(raw) && depth > 0 {
				switch raw[j] {
				case '{':
					depth++
				case '}':
					depth--
					if depth == 0 {
						continue
					}
				}
				j++
			}
			inner := raw[i+1 : j]
			toks, err := lex(inner)
			if err != nil {
				return nil, err
			}
			sub := &parser{toks: toks, sourceID: sourceID}
			expr, err := sub.parseExpr(0)
			if err != nil {
				return nil, err
			}
			items = append(items, pl.InterpItem{Kind: pl.InterpExpr, Expr: expr})
			i = j + 1
			continue
		}
		text.WriteByte(c)
		i++
	}
	if text.Len() > 0 {
		items = append(items, pl.InterpItem{Kind: pl.InterpString, Text: text.String()})
	}
	return items, nil
}
