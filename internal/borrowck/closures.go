package borrowck

import (
	"vex/internal/ast"
	"vex/internal/source"
)

// closures resolves the capture mode of every closure literal in place:
// captured state that is consumed makes the closure single-use, captured
// state that is reassigned requires exclusive access on every call, and
// read-only captures (or none) leave the closure freely repeatable.
// Nested closures are resolved before their enclosing closure.
type closures struct {
	b       *ast.Builder
	effects *Registry
}

func newClosures(b *ast.Builder, effects *Registry) *closures {
	return &closures{b: b, effects: effects}
}

func (c *closures) resolveFunction(fn *ast.ItemFnData) {
	for _, id := range fn.Body {
		c.resolveStmt(id)
	}
}

func (c *closures) resolveBlock(body []ast.StmtID) {
	for _, id := range body {
		c.resolveStmt(id)
	}
}

func (c *closures) resolveStmt(id ast.StmtID) {
	stmt := c.b.Stmts.Get(id)
	if stmt == nil {
		return
	}
	switch stmt.Kind {
	case ast.StmtLet:
		let, _ := c.b.Stmts.Let(id)
		c.resolveExpr(let.Init)
	case ast.StmtAssign:
		assign, _ := c.b.Stmts.Assign(id)
		c.resolveExpr(assign.Target)
		c.resolveExpr(assign.Value)
	case ast.StmtReturn:
		ret, _ := c.b.Stmts.Return(id)
		c.resolveExpr(ret.Value)
	case ast.StmtExpr:
		es, _ := c.b.Stmts.Expr(id)
		c.resolveExpr(es.Expr)
	case ast.StmtIf:
		ifs, _ := c.b.Stmts.If(id)
		c.resolveExpr(ifs.Cond)
		c.resolveBlock(ifs.Then)
		for _, elif := range ifs.Elifs {
			c.resolveExpr(elif.Cond)
			c.resolveBlock(elif.Body)
		}
		c.resolveBlock(ifs.Else)
	case ast.StmtWhile:
		while, _ := c.b.Stmts.While(id)
		c.resolveExpr(while.Cond)
		c.resolveBlock(while.Body)
	case ast.StmtFor:
		fors, _ := c.b.Stmts.For(id)
		if fors.Init.IsValid() {
			c.resolveStmt(fors.Init)
		}
		c.resolveExpr(fors.Cond)
		if fors.Post.IsValid() {
			c.resolveStmt(fors.Post)
		}
		c.resolveBlock(fors.Body)
	case ast.StmtForIn:
		forIn, _ := c.b.Stmts.ForIn(id)
		c.resolveExpr(forIn.Iterable)
		c.resolveBlock(forIn.Body)
	case ast.StmtBlock:
		block, _ := c.b.Stmts.Block(id)
		c.resolveBlock(block.Body)
	case ast.StmtUnsafe:
		unsafe, _ := c.b.Stmts.Unsafe(id)
		c.resolveBlock(unsafe.Body)
	}
}

func (c *closures) resolveExpr(id ast.ExprID) {
	if !id.IsValid() {
		return
	}
	expr := c.b.Exprs.Get(id)
	if expr == nil {
		return
	}
	switch expr.Kind {
	case ast.ExprClosure:
		closure, _ := c.b.Exprs.Closure(id)
		// Nested closures first, so the analysis below sees them
		// resolved and treats their parameters as locals.
		c.resolveExpr(closure.Body)
		closure.Capture = c.analyze(closure)
	case ast.ExprUnary:
		unary, _ := c.b.Exprs.Unary(id)
		c.resolveExpr(unary.Operand)
	case ast.ExprBinary:
		binary, _ := c.b.Exprs.Binary(id)
		c.resolveExpr(binary.Left)
		c.resolveExpr(binary.Right)
	case ast.ExprCall:
		call, _ := c.b.Exprs.Call(id)
		c.resolveExpr(call.Target)
		for _, arg := range call.Args {
			c.resolveExpr(arg)
		}
	case ast.ExprMember:
		member, _ := c.b.Exprs.Member(id)
		c.resolveExpr(member.Target)
	case ast.ExprIndex:
		index, _ := c.b.Exprs.Index(id)
		c.resolveExpr(index.Target)
		c.resolveExpr(index.Index)
	case ast.ExprArray:
		array, _ := c.b.Exprs.Array(id)
		for _, elem := range array.Elements {
			c.resolveExpr(elem)
		}
	case ast.ExprTuple:
		tuple, _ := c.b.Exprs.Tuple(id)
		for _, elem := range tuple.Elements {
			c.resolveExpr(elem)
		}
	case ast.ExprStruct:
		lit, _ := c.b.Exprs.Struct(id)
		for _, field := range lit.Fields {
			c.resolveExpr(field.Value)
		}
	case ast.ExprMatch:
		match, _ := c.b.Exprs.Match(id)
		c.resolveExpr(match.Value)
		for _, arm := range match.Arms {
			c.resolveExpr(arm.Guard)
			c.resolveExpr(arm.Body)
		}
	case ast.ExprBlock:
		block, _ := c.b.Exprs.Block(id)
		c.resolveBlock(block.Stmts)
		c.resolveExpr(block.Result)
	case ast.ExprCast:
		cast, _ := c.b.Exprs.Cast(id)
		c.resolveExpr(cast.Value)
	}
}

// captureInfo records how one captured binding is used inside the body.
type captureInfo struct {
	mutated bool
	moved   bool
}

type captureAnalyzer struct {
	b       *ast.Builder
	effects *Registry

	params   map[source.StringID]bool
	locals   map[source.StringID]bool
	captured map[source.StringID]*captureInfo
}

func (c *closures) analyze(closure *ast.ExprClosureData) ast.CaptureMode {
	a := &captureAnalyzer{
		b:        c.b,
		effects:  c.effects,
		params:   make(map[source.StringID]bool, len(closure.Params)),
		locals:   make(map[source.StringID]bool),
		captured: make(map[source.StringID]*captureInfo),
	}
	for _, param := range closure.Params {
		a.params[param.Name] = true
	}
	a.visitExpr(closure.Body)
	return a.mode()
}

func (a *captureAnalyzer) mode() ast.CaptureMode {
	for _, info := range a.captured {
		if info.moved {
			return ast.CaptureOnce
		}
	}
	for _, info := range a.captured {
		if info.mutated {
			return ast.CaptureMutable
		}
	}
	return ast.CaptureImmutable
}

// capture reports whether name comes from the enclosing scope and
// returns its usage record.
func (a *captureAnalyzer) capture(name source.StringID) (*captureInfo, bool) {
	if a.params[name] || a.locals[name] {
		return nil, false
	}
	if a.effects.IsBuiltin(a.b.Name(name)) {
		return nil, false
	}
	info, ok := a.captured[name]
	if !ok {
		info = &captureInfo{}
		a.captured[name] = info
	}
	return info, true
}

func (a *captureAnalyzer) visitBlock(body []ast.StmtID) {
	for _, id := range body {
		a.visitStmt(id)
	}
}

func (a *captureAnalyzer) visitStmt(id ast.StmtID) {
	stmt := a.b.Stmts.Get(id)
	if stmt == nil {
		return
	}
	switch stmt.Kind {
	case ast.StmtLet:
		let, _ := a.b.Stmts.Let(id)
		a.visitExpr(let.Init)
		if let.Pattern.IsValid() {
			for _, name := range a.b.Patterns.Bindings(let.Pattern, nil) {
				a.locals[name] = true
			}
			return
		}
		a.locals[let.Name] = true

	case ast.StmtAssign:
		assign, _ := a.b.Stmts.Assign(id)
		if ident, ok := a.b.Exprs.Ident(assign.Target); ok {
			if info, captured := a.capture(ident.Name); captured {
				info.mutated = true
			}
		} else {
			a.visitExpr(assign.Target)
		}
		a.visitExpr(assign.Value)

	case ast.StmtReturn:
		ret, _ := a.b.Stmts.Return(id)
		a.visitExpr(ret.Value)

	case ast.StmtExpr:
		es, _ := a.b.Stmts.Expr(id)
		a.visitExpr(es.Expr)

	case ast.StmtIf:
		ifs, _ := a.b.Stmts.If(id)
		a.visitExpr(ifs.Cond)
		a.visitBlock(ifs.Then)
		for _, elif := range ifs.Elifs {
			a.visitExpr(elif.Cond)
			a.visitBlock(elif.Body)
		}
		a.visitBlock(ifs.Else)

	case ast.StmtWhile:
		while, _ := a.b.Stmts.While(id)
		a.visitExpr(while.Cond)
		a.visitBlock(while.Body)

	case ast.StmtFor:
		fors, _ := a.b.Stmts.For(id)
		if fors.Init.IsValid() {
			a.visitStmt(fors.Init)
		}
		a.visitExpr(fors.Cond)
		if fors.Post.IsValid() {
			a.visitStmt(fors.Post)
		}
		a.visitBlock(fors.Body)

	case ast.StmtForIn:
		forIn, _ := a.b.Stmts.ForIn(id)
		a.locals[forIn.Var] = true
		a.visitExpr(forIn.Iterable)
		a.visitBlock(forIn.Body)

	case ast.StmtBlock:
		block, _ := a.b.Stmts.Block(id)
		a.visitBlock(block.Body)

	case ast.StmtUnsafe:
		unsafe, _ := a.b.Stmts.Unsafe(id)
		a.visitBlock(unsafe.Body)
	}
}

func (a *captureAnalyzer) visitExpr(id ast.ExprID) {
	if !id.IsValid() {
		return
	}
	expr := a.b.Exprs.Get(id)
	if expr == nil {
		return
	}
	switch expr.Kind {
	case ast.ExprIdent:
		ident, _ := a.b.Exprs.Ident(id)
		a.capture(ident.Name)

	case ast.ExprUnary:
		unary, _ := a.b.Exprs.Unary(id)
		a.visitExpr(unary.Operand)

	case ast.ExprBinary:
		binary, _ := a.b.Exprs.Binary(id)
		a.visitExpr(binary.Left)
		a.visitExpr(binary.Right)

	case ast.ExprCall:
		a.visitCall(id)

	case ast.ExprMember:
		member, _ := a.b.Exprs.Member(id)
		a.visitExpr(member.Target)

	case ast.ExprIndex:
		index, _ := a.b.Exprs.Index(id)
		a.visitExpr(index.Target)
		a.visitExpr(index.Index)

	case ast.ExprArray:
		array, _ := a.b.Exprs.Array(id)
		for _, elem := range array.Elements {
			a.visitExpr(elem)
		}

	case ast.ExprTuple:
		tuple, _ := a.b.Exprs.Tuple(id)
		for _, elem := range tuple.Elements {
			a.visitExpr(elem)
		}

	case ast.ExprStruct:
		lit, _ := a.b.Exprs.Struct(id)
		for _, field := range lit.Fields {
			a.visitExpr(field.Value)
		}

	case ast.ExprMatch:
		match, _ := a.b.Exprs.Match(id)
		a.visitExpr(match.Value)
		for _, arm := range match.Arms {
			for _, name := range a.b.Patterns.Bindings(arm.Pattern, nil) {
				a.locals[name] = true
			}
			a.visitExpr(arm.Guard)
			a.visitExpr(arm.Body)
		}

	case ast.ExprBlock:
		block, _ := a.b.Exprs.Block(id)
		a.visitBlock(block.Stmts)
		a.visitExpr(block.Result)

	case ast.ExprClosure:
		// Nested closure: its parameters and body locals shadow captures
		// only while we scan its body for uses of our enclosing scope.
		closure, _ := a.b.Exprs.Closure(id)
		saved := a.locals
		a.locals = make(map[source.StringID]bool, len(saved)+len(closure.Params))
		for name := range saved {
			a.locals[name] = true
		}
		for _, param := range closure.Params {
			a.locals[param.Name] = true
		}
		a.visitExpr(closure.Body)
		a.locals = saved

	case ast.ExprCast:
		cast, _ := a.b.Exprs.Cast(id)
		a.visitExpr(cast.Value)
	}
}

// visitCall marks a captured binding as consumed when it is passed by
// value to a builtin parameter with a move effect.
func (a *captureAnalyzer) visitCall(id ast.ExprID) {
	call, _ := a.b.Exprs.Call(id)
	a.visitExpr(call.Target)

	var meta Metadata
	isBuiltin := false
	if ident, ok := a.b.Exprs.Ident(call.Target); ok {
		meta, isBuiltin = a.effects.Get(a.b.Name(ident.Name))
	}
	for i, arg := range call.Args {
		if isBuiltin && i < len(meta.Effects) && meta.Effects[i] == EffectMoves {
			if ident, ok := a.b.Exprs.Ident(arg); ok {
				if info, captured := a.capture(ident.Name); captured {
					info.moved = true
					continue
				}
			}
		}
		a.visitExpr(arg)
	}
}
