package pl

// Expand is the ast_expand step the original compiler inserts between its
// parser and its resolver. Because Expr/Stmt already carry every field the
// resolver needs, expansion here only has to normalize a few parser
// shortcuts into their canonical resolved-friendly shape; everything else
// passes through untouched.
func Expand(stmts []*Stmt) []*Stmt {
	for _, s := range stmts {
		expandStmt(s)
	}
	return stmts
}

func expandStmt(s *Stmt) {
	if s == nil {
		return
	}
	switch s.Kind {
	case KindVarDef:
		if s.VarDef != nil {
			s.VarDef.Value = expandExpr(s.VarDef.Value)
		}
	case KindTypeDef:
		if s.TypeDef != nil {
			s.TypeDef.Value = expandExpr(s.TypeDef.Value)
		}
	case KindModuleDef:
		if s.ModuleDef != nil {
			for _, inner := range s.ModuleDef.Stmts {
				expandStmt(inner)
			}
		}
	}
}

// expandExpr normalizes shorthand forms produced by the parser:
//   - a bare Ident used where PRQL allows a one-tuple (`select foo` means
//     `select {foo}`) is left as-is; the resolver's transform-call binding
//     wraps single non-tuple arguments itself.
//   - Range literals pass through as parsed; a nil Start stays nil and
//     later stages treat it as unbounded.
func expandExpr(e *Expr) *Expr {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case KindPipeline:
		for i, stage := range e.Pipeline {
			e.Pipeline[i] = expandExpr(stage)
		}
	case KindTuple:
		for i, item := range e.Tuple {
			e.Tuple[i] = expandExpr(item)
		}
	case KindArray:
		for i, item := range e.Array {
			e.Array[i] = expandExpr(item)
		}
	case KindBinary:
		e.Left = expandExpr(e.Left)
		e.Right = expandExpr(e.Right)
	case KindUnary:
		e.Operand = expandExpr(e.Operand)
	case KindFuncCall:
		if e.FuncCall != nil {
			e.FuncCall.Name = expandExpr(e.FuncCall.Name)
			for i, a := range e.FuncCall.Args {
				e.FuncCall.Args[i] = expandExpr(a)
			}
			for k, v := range e.FuncCall.NamedArgs {
				e.FuncCall.NamedArgs[k] = expandExpr(v)
			}
		}
	case KindFunc:
		if e.Func != nil {
			e.Func.Body = expandExpr(e.Func.Body)
		}
	case KindCase:
		for i, item := range e.Case {
			e.Case[i].Condition = expandExpr(item.Condition)
			e.Case[i].Value = expandExpr(item.Value)
		}
	case KindSString:
		expandInterp(e.SString)
	case KindFString:
		expandInterp(e.FString)
	case KindRange:
		// leave Start nil; the resolver treats a nil Start as unbounded.
	}
	return e
}

func expandInterp(items []InterpItem) {
	for i := range items {
		if items[i].Kind == InterpExpr {
			items[i].Expr = expandExpr(items[i].Expr)
		}
	}
}
