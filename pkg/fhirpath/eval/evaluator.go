package eval

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/ast"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/model"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/types"
)

// FuncImpl is the signature for function implementations.
type FuncImpl func(ctx *Context, input types.Collection, args []interface{}) (types.Collection, error)

// LazyImpl is the signature for functions that need their arguments'
// unevaluated AST rather than pre-evaluated values — lambdas that bind
// $this/$index per element (where, select, all, exists, repeat, aggregate),
// short-circuiting forms (iif), and the is()/as()/ofType() function forms
// whose argument names a type rather than a path to navigate.
type LazyImpl func(e *Evaluator, input types.Collection, args []ast.Node) (types.Collection, error)

// FuncShape tags how a FuncDef expects to be invoked, so the evaluator can
// route dispatch by metadata instead of hard-coding each lambda-taking
// function's name inline.
type FuncShape int

const (
	// ShapePure functions only see $this as input and their already-evaluated args.
	ShapePure FuncShape = iota
	// ShapeContextAware functions additionally read the evaluation Context
	// directly (variables, root, resolver) but still take pre-evaluated args.
	ShapeContextAware
	// ShapeLazy functions receive the unevaluated argument AST via LazyImpl.
	ShapeLazy
	// ShapeProvider functions depend on an injected ModelProvider,
	// TerminologyProvider, or Resolver reached through the Context.
	ShapeProvider
)

func (s FuncShape) String() string {
	switch s {
	case ShapePure:
		return "pure"
	case ShapeContextAware:
		return "context-aware"
	case ShapeLazy:
		return "lazy"
	case ShapeProvider:
		return "provider"
	default:
		return "unknown"
	}
}

// FuncDef defines a FHIRPath function.
type FuncDef struct {
	Name    string
	MinArgs int
	MaxArgs int
	Shape   FuncShape
	// Fn is used for every shape except ShapeLazy.
	Fn FuncImpl
	// Lazy is used when Shape is ShapeLazy; Fn may still be set as a
	// secondary entry point for callers that already hold evaluated args.
	Lazy LazyImpl
}

// FuncRegistry is an interface for function lookup.
type FuncRegistry interface {
	Get(name string) (FuncDef, bool)
}

// Resolver handles FHIR reference resolution.
type Resolver interface {
	Resolve(ctx context.Context, reference string) ([]byte, error)
}

// TerminologyProvider is implemented by pkg/fhirpath/terminology.Provider.
// It's redeclared here (rather than imported) to keep eval free of a
// dependency on the terminology package; terminology functions type-assert
// the value returned by GetTerminologyProvider back to their own Provider.
type TerminologyProvider interface{}

// Evaluator walks an ast.Node tree produced by the parser package and
// resolves it against a Context. Unlike a generated visitor, dispatch is a
// single type switch in eval — there is no per-node-kind interface to keep
// in lockstep with the grammar.
type Evaluator struct {
	ctx   *Context
	funcs FuncRegistry
}

// Context holds the evaluation state.
type Context struct {
	root      types.Collection
	this      types.Collection
	index     int
	total     types.Value
	variables map[string]types.Collection
	limits    map[string]int
	goCtx     context.Context
	resolver  Resolver
	terminology TerminologyProvider
}

// NewContext creates a new evaluation context.
// Automatically sets %resource and %context to the root resource for FHIR constraint evaluation.
// Per FHIRPath spec:
//   - %resource: the root resource being evaluated
//   - %context: the original node passed to the evaluation engine (same as %resource for top-level evaluation)
func NewContext(resource []byte) *Context {
	//nolint:errcheck // Empty collection is acceptable for invalid JSON in context creation
	root, _ := types.JSONToCollection(resource)

	// Initialize variables map with %resource and %context pointing to root
	// %resource is required by FHIR constraints like bdl-3, bdl-4
	// %context represents the evaluation context (same as root for top-level evaluation)
	variables := make(map[string]types.Collection)
	variables["resource"] = root
	variables["context"] = root

	return &Context{
		root:      root,
		this:      root,
		variables: variables,
		limits:    make(map[string]int),
		goCtx:     context.Background(),
	}
}

// SetLimit sets a limit value (e.g., maxDepth, maxCollectionSize).
func (c *Context) SetLimit(name string, value int) {
	if c.limits == nil {
		c.limits = make(map[string]int)
	}
	c.limits[name] = value
}

// GetLimit gets a limit value.
func (c *Context) GetLimit(name string) int {
	if c.limits == nil {
		return 0
	}
	return c.limits[name]
}

// SetContext sets the Go context for cancellation.
func (c *Context) SetContext(ctx context.Context) {
	c.goCtx = ctx
}

// Context returns the Go context.
func (c *Context) Context() context.Context {
	if c.goCtx == nil {
		return context.Background()
	}
	return c.goCtx
}

// SetResolver sets the reference resolver.
func (c *Context) SetResolver(r Resolver) {
	c.resolver = r
}

// GetResolver returns the reference resolver.
func (c *Context) GetResolver() Resolver {
	return c.resolver
}

// SetTerminologyProvider configures the %terminologies service backing
// expand(), lookup(), validateVS(), validateCS(), subsumes() and translate().
func (c *Context) SetTerminologyProvider(p TerminologyProvider) {
	c.terminology = p
}

// GetTerminologyProvider returns the configured terminology provider, or
// nil if none was set.
func (c *Context) GetTerminologyProvider() TerminologyProvider {
	return c.terminology
}

// CheckCancellation checks if the context has been canceled.
func (c *Context) CheckCancellation() error {
	if c.goCtx == nil {
		return nil
	}
	select {
	case <-c.goCtx.Done():
		return c.goCtx.Err()
	default:
		return nil
	}
}

// CheckCollectionSize validates that a collection doesn't exceed the maximum size.
// Returns an error if the collection is too large.
func (c *Context) CheckCollectionSize(col types.Collection) error {
	maxSize := c.GetLimit("maxCollectionSize")
	if maxSize > 0 && len(col) > maxSize {
		return NewEvalError(ErrInvalidExpression,
			"collection size %d exceeds maximum allowed %d", len(col), maxSize)
	}
	return nil
}

// EnforceCollectionLimit truncates a collection if it exceeds the maximum size.
// Returns the (possibly truncated) collection and whether truncation occurred.
func (c *Context) EnforceCollectionLimit(col types.Collection) (types.Collection, bool) {
	maxSize := c.GetLimit("maxCollectionSize")
	if maxSize > 0 && len(col) > maxSize {
		return col[:maxSize], true
	}
	return col, false
}

// Root returns the root collection.
func (c *Context) Root() types.Collection {
	return c.root
}

// This returns the current $this value.
func (c *Context) This() types.Collection {
	return c.this
}

// WithThis returns a new context with the given $this value.
func (c *Context) WithThis(this types.Collection) *Context {
	newCtx := *c
	newCtx.this = this
	return &newCtx
}

// WithIndex returns a new context with the given $index value.
func (c *Context) WithIndex(index int) *Context {
	newCtx := *c
	newCtx.index = index
	return &newCtx
}

// SetVariable sets an external variable.
func (c *Context) SetVariable(name string, value types.Collection) {
	c.variables[name] = value
}

// GetVariable gets an external variable.
func (c *Context) GetVariable(name string) (types.Collection, bool) {
	v, ok := c.variables[name]
	return v, ok
}

// NewEvaluator creates a new evaluator with the given context and function registry.
func NewEvaluator(ctx *Context, funcs FuncRegistry) *Evaluator {
	return &Evaluator{ctx: ctx, funcs: funcs}
}

// Evaluate walks node and returns the resulting collection.
func (e *Evaluator) Evaluate(node ast.Node) (types.Collection, error) {
	result := e.eval(node)
	if err, ok := result.(error); ok {
		return nil, err
	}
	if col, ok := result.(types.Collection); ok {
		return col, nil
	}
	return types.Collection{}, nil
}

// eval dispatches on the concrete ast.Node type. It returns either a
// types.Collection or an error — never both, never anything else.
func (e *Evaluator) eval(node ast.Node) interface{} {
	if node == nil {
		return types.Collection{}
	}

	switch n := node.(type) {
	case *ast.NullLiteral:
		return types.Collection{}
	case *ast.BooleanLiteral:
		return types.Collection{types.NewBoolean(n.Value)}
	case *ast.NumberLiteral:
		return e.evalNumberLiteral(n)
	case *ast.StringLiteral:
		return types.Collection{types.NewString(n.Value)}
	case *ast.DateLiteral:
		d, err := types.NewDate(n.Text)
		if err != nil {
			return ParseError("invalid date: " + n.Text)
		}
		return types.Collection{d}
	case *ast.DateTimeLiteral:
		dt, err := types.NewDateTime(n.Text)
		if err != nil {
			return ParseError("invalid datetime: " + n.Text)
		}
		return types.Collection{dt}
	case *ast.TimeLiteral:
		t, err := types.NewTime(n.Text)
		if err != nil {
			return ParseError("invalid time: " + n.Text)
		}
		return types.Collection{t}
	case *ast.QuantityLiteral:
		q, err := types.NewQuantity(n.Value + " '" + n.Unit + "'")
		if err != nil {
			return ParseError("invalid quantity: " + n.String())
		}
		return types.Collection{q}
	case *ast.Identifier:
		return e.navigateMember(e.ctx.This(), n.Name)
	case *ast.Variable:
		return e.evalVariable(n)
	case *ast.EnvVariable:
		return e.evalEnvVariable(n)
	case *ast.Invocation:
		return e.evalInvocation(n)
	case *ast.FunctionCall:
		return e.evalFunctionCall(n)
	case *ast.Indexer:
		return e.evalIndexer(n)
	case *ast.UnaryExpr:
		return e.evalUnary(n)
	case *ast.BinaryExpr:
		return e.evalBinary(n)
	case *ast.TypeExpr:
		return e.evalTypeExpr(n)
	}

	return ParseError("unrecognized expression node")
}

func (e *Evaluator) evalNumberLiteral(n *ast.NumberLiteral) interface{} {
	if !n.Decimal {
		if i, err := strconv.ParseInt(n.Text, 10, 64); err == nil {
			return types.Collection{types.NewInteger(i)}
		}
	}
	d, err := types.NewDecimal(n.Text)
	if err != nil {
		return ParseError("invalid number: " + n.Text)
	}
	return types.Collection{d}
}

func (e *Evaluator) evalVariable(n *ast.Variable) interface{} {
	if strings.HasPrefix(n.Name, "$") {
		switch n.Name {
		case "$this":
			return e.ctx.This()
		case "$index":
			return types.Collection{types.NewInteger(int64(e.ctx.index))}
		case "$total":
			if e.ctx.total != nil {
				return types.Collection{e.ctx.total}
			}
			return types.Collection{}
		default:
			return NewEvalError(ErrInvalidPath, "unknown system variable %s", n.Name)
		}
	}
	if v, ok := e.ctx.GetVariable(n.Name); ok {
		return v
	}
	return NewEvalError(ErrInvalidPath, "undefined variable: %%%s", n.Name)
}

// evalEnvVariable resolves %resource, %context and the other environment
// sentinels. %terminologies always resolves to a distinguishable sentinel
// value so the terminology functions can reject calls made with any other
// receiver. The other terminology-backed names (%sct, %loinc, %ucum, %vs)
// resolve to empty unless a caller has bound them via SetVariable — there is
// no global terminology server in this engine.
func (e *Evaluator) evalEnvVariable(n *ast.EnvVariable) interface{} {
	if n.Name == "terminologies" {
		return TerminologiesReceiver
	}
	if v, ok := e.ctx.GetVariable(n.Name); ok {
		return v
	}
	return types.Collection{}
}

// evalInvocation handles Target.Member member access, threading $this
// through to Target so that expressions nested inside Target (e.g. a
// function call) see the outer $this, while Member resolves against
// Target's result.
func (e *Evaluator) evalInvocation(n *ast.Invocation) interface{} {
	t := e.eval(n.Target)
	if err, ok := t.(error); ok {
		return err
	}
	baseCol, ok := t.(types.Collection)
	if !ok {
		return ParseError("invalid invocation target")
	}
	return e.navigateMember(baseCol, n.Member)
}

func (e *Evaluator) evalIndexer(n *ast.Indexer) interface{} {
	t := e.eval(n.Target)
	if err, ok := t.(error); ok {
		return err
	}
	baseCol, ok := t.(types.Collection)
	if !ok {
		return ParseError("invalid indexer target")
	}

	idxResult := e.eval(n.Index)
	if err, ok := idxResult.(error); ok {
		return err
	}
	idxCol, ok := idxResult.(types.Collection)
	if !ok || idxCol.Empty() {
		return types.Collection{}
	}

	idx, ok := idxCol[0].(types.Integer)
	if !ok {
		return TypeError("Integer", idxCol[0].Type(), "indexer")
	}

	i := int(idx.Value())
	if i < 0 || i >= len(baseCol) {
		return types.Collection{}
	}
	return types.Collection{baseCol[i]}
}

func (e *Evaluator) evalUnary(n *ast.UnaryExpr) interface{} {
	result := e.eval(n.Operand)
	if err, ok := result.(error); ok {
		return err
	}
	col, ok := result.(types.Collection)
	if !ok {
		return ParseError("invalid unary operand")
	}
	if col.Empty() {
		return col
	}
	if len(col) != 1 {
		return SingletonError(len(col))
	}
	if n.Op == "-" {
		negated, err := Negate(col[0])
		if err != nil {
			return err
		}
		return types.Collection{negated}
	}
	return col
}

func (e *Evaluator) evalBinary(n *ast.BinaryExpr) interface{} {
	left := e.eval(n.Left)
	if err, ok := left.(error); ok {
		return err
	}
	leftCol, ok := left.(types.Collection)
	if !ok {
		return ParseError("invalid left operand")
	}

	right := e.eval(n.Right)
	if err, ok := right.(error); ok {
		return err
	}
	rightCol, ok := right.(types.Collection)
	if !ok {
		return ParseError("invalid right operand")
	}

	switch n.Op {
	case "*", "/", "div", "mod":
		if leftCol.Empty() || rightCol.Empty() {
			return types.Collection{}
		}
		if len(leftCol) != 1 || len(rightCol) != 1 {
			return SingletonError(len(leftCol) + len(rightCol))
		}
		var result types.Value
		var err error
		switch n.Op {
		case "*":
			result, err = Multiply(leftCol[0], rightCol[0])
		case "/":
			result, err = Divide(leftCol[0], rightCol[0])
		case "div":
			result, err = IntegerDivide(leftCol[0], rightCol[0])
		case "mod":
			result, err = Modulo(leftCol[0], rightCol[0])
		}
		if err != nil {
			return err
		}
		return types.Collection{result}

	case "&":
		return Concatenate(leftCol, rightCol)

	case "+", "-":
		if leftCol.Empty() || rightCol.Empty() {
			return types.Collection{}
		}
		if len(leftCol) != 1 || len(rightCol) != 1 {
			return SingletonError(len(leftCol) + len(rightCol))
		}
		var result types.Value
		var err error
		if n.Op == "+" {
			result, err = Add(leftCol[0], rightCol[0])
		} else {
			result, err = Subtract(leftCol[0], rightCol[0])
		}
		if err != nil {
			return err
		}
		return types.Collection{result}

	case "|":
		return Union(leftCol, rightCol)

	case "<", "<=", ">", ">=":
		if leftCol.Empty() || rightCol.Empty() {
			return types.Collection{}
		}
		if len(leftCol) != 1 || len(rightCol) != 1 {
			return SingletonError(len(leftCol) + len(rightCol))
		}
		var result types.Collection
		var err error
		switch n.Op {
		case "<":
			result, err = LessThan(leftCol[0], rightCol[0])
		case "<=":
			result, err = LessOrEqual(leftCol[0], rightCol[0])
		case ">":
			result, err = GreaterThan(leftCol[0], rightCol[0])
		case ">=":
			result, err = GreaterOrEqual(leftCol[0], rightCol[0])
		}
		if err != nil {
			return err
		}
		return result

	case "=":
		return Equal(leftCol, rightCol)
	case "!=":
		return NotEqual(leftCol, rightCol)
	case "~":
		return Equivalent(leftCol, rightCol)
	case "!~":
		return NotEquivalent(leftCol, rightCol)

	case "in":
		return In(leftCol, rightCol)
	case "contains":
		return Contains(leftCol, rightCol)

	case "and":
		return And(leftCol, rightCol)
	case "or":
		return Or(leftCol, rightCol)
	case "xor":
		return Xor(leftCol, rightCol)
	case "implies":
		return Implies(leftCol, rightCol)
	}

	return ParseError("unknown operator " + n.Op)
}

func (e *Evaluator) evalTypeExpr(n *ast.TypeExpr) interface{} {
	left := e.eval(n.Operand)
	if err, ok := left.(error); ok {
		return err
	}
	leftCol, ok := left.(types.Collection)
	if !ok {
		return ParseError("invalid is/as operand")
	}

	if leftCol.Empty() {
		return types.Collection{}
	}
	if len(leftCol) != 1 {
		return SingletonError(len(leftCol))
	}

	actualType := leftCol[0].Type()

	switch n.Op {
	case "is":
		return types.Collection{types.NewBoolean(TypeMatches(actualType, n.TypeName))}
	case "as":
		if TypeMatches(actualType, n.TypeName) {
			return leftCol
		}
		return types.Collection{}
	}
	return types.Collection{}
}

// Function invocation

// evalFunctionCall resolves the function's input — $this for a bare call,
// Target's result for a qualified one — then either runs one of the
// lambda-style special forms (where/select/all/exists/repeat/aggregate/
// is/as/ofType/iif, all of which need access to the unevaluated argument
// AST to bind $this per element or to short-circuit) or evaluates every
// argument eagerly and calls into the function registry.
func (e *Evaluator) evalFunctionCall(n *ast.FunctionCall) interface{} {
	input := e.ctx.This()
	if n.Target != nil {
		t := e.eval(n.Target)
		if err, ok := t.(error); ok {
			return err
		}
		baseCol, ok := t.(types.Collection)
		if !ok {
			return ParseError("invalid function target")
		}
		old := e.ctx.this
		e.ctx.this = baseCol
		defer func() { e.ctx.this = old }()
		input = baseCol
	}

	name := n.Name
	fn, ok := e.funcs.Get(name)
	if !ok {
		return FunctionNotFoundError(name)
	}

	argCount := len(n.Args)
	if argCount < fn.MinArgs {
		return InvalidArgumentsError(name, fn.MinArgs, argCount)
	}
	if fn.MaxArgs >= 0 && argCount > fn.MaxArgs {
		return InvalidArgumentsError(name, fn.MaxArgs, argCount)
	}

	if fn.Shape == ShapeLazy && fn.Lazy != nil && argCount > 0 {
		result, err := fn.Lazy(e, input, n.Args)
		if err != nil {
			return err
		}
		return result
	}

	args := make([]interface{}, argCount)
	for i, argNode := range n.Args {
		result := e.eval(argNode)
		if err, ok := result.(error); ok {
			return err
		}
		args[i] = result
	}

	result, err := fn.Fn(e.ctx, input, args)
	if err != nil {
		return err
	}
	return result
}

// withElement evaluates fn with $this and $index bound to the i-th element
// of a lambda's per-element iteration, restoring the prior binding after.
func (e *Evaluator) withElement(item types.Value, index int, fn func() interface{}) interface{} {
	oldThis, oldIndex := e.ctx.this, e.ctx.index
	e.ctx.this = types.Collection{item}
	e.ctx.index = index
	defer func() { e.ctx.this, e.ctx.index = oldThis, oldIndex }()
	return fn()
}

// evalWhere filters input to the elements for which criteria evaluates true.
func (e *Evaluator) evalWhere(input types.Collection, criteria ast.Node) interface{} {
	if err := e.ctx.CheckCollectionSize(input); err != nil {
		return err
	}
	result := types.Collection{}
	for i, item := range input {
		if i%100 == 0 {
			if err := e.ctx.CheckCancellation(); err != nil {
				return err
			}
		}
		r := e.withElement(item, i, func() interface{} { return e.eval(criteria) })
		if err, ok := r.(error); ok {
			return err
		}
		if col, ok := r.(types.Collection); ok && !col.Empty() {
			if b, ok := col[0].(types.Boolean); ok && b.Bool() {
				result = append(result, item)
			}
		}
	}
	return result
}

// evalExists returns true if any element satisfies criteria (or, with no
// input, false — an empty collection never "exists").
func (e *Evaluator) evalExists(input types.Collection, criteria ast.Node) interface{} {
	for i, item := range input {
		if i%100 == 0 {
			if err := e.ctx.CheckCancellation(); err != nil {
				return err
			}
		}
		r := e.withElement(item, i, func() interface{} { return e.eval(criteria) })
		if err, ok := r.(error); ok {
			return err
		}
		if col, ok := r.(types.Collection); ok && !col.Empty() {
			if b, ok := col[0].(types.Boolean); ok && b.Bool() {
				return types.TrueCollection
			}
		}
	}
	return types.FalseCollection
}

// evalAll returns true if every element satisfies criteria. Vacuously true
// on an empty input.
func (e *Evaluator) evalAll(input types.Collection, criteria ast.Node) interface{} {
	if input.Empty() {
		return types.TrueCollection
	}
	for i, item := range input {
		if i%100 == 0 {
			if err := e.ctx.CheckCancellation(); err != nil {
				return err
			}
		}
		r := e.withElement(item, i, func() interface{} { return e.eval(criteria) })
		if err, ok := r.(error); ok {
			return err
		}
		col, ok := r.(types.Collection)
		if !ok || col.Empty() {
			return types.FalseCollection
		}
		if b, ok := col[0].(types.Boolean); ok && !b.Bool() {
			return types.FalseCollection
		}
	}
	return types.TrueCollection
}

// evalSelect projects each element through projection and concatenates the
// (possibly multi-valued) results.
func (e *Evaluator) evalSelect(input types.Collection, projection ast.Node) interface{} {
	if err := e.ctx.CheckCollectionSize(input); err != nil {
		return err
	}
	result := types.Collection{}
	for i, item := range input {
		if i%100 == 0 {
			if err := e.ctx.CheckCancellation(); err != nil {
				return err
			}
		}
		r := e.withElement(item, i, func() interface{} { return e.eval(projection) })
		if err, ok := r.(error); ok {
			return err
		}
		if col, ok := r.(types.Collection); ok {
			result = append(result, col...)
			if err := e.ctx.CheckCollectionSize(result); err != nil {
				return err
			}
		}
	}
	return result
}

// evalRepeat applies projection to input, then repeatedly to each new
// frontier of results, until a pass produces nothing not already seen.
// Per the FHIRPath semantics this is a breadth-first closure, not a single
// recursive per-element call, so cycles in the source data terminate it.
func (e *Evaluator) evalRepeat(input types.Collection, projection ast.Node) interface{} {
	result := types.Collection{}
	seen := make(map[types.Value]bool)
	frontier := input

	for len(frontier) > 0 {
		next := types.Collection{}
		for i, item := range frontier {
			if i%100 == 0 {
				if err := e.ctx.CheckCancellation(); err != nil {
					return err
				}
			}
			r := e.withElement(item, i, func() interface{} { return e.eval(projection) })
			if err, ok := r.(error); ok {
				return err
			}
			if col, ok := r.(types.Collection); ok {
				next = append(next, col...)
			}
		}

		fresh := types.Collection{}
		for _, item := range next {
			if seen[item] {
				continue
			}
			seen[item] = true
			fresh = append(fresh, item)
		}
		result = append(result, fresh...)
		if err := e.ctx.CheckCollectionSize(result); err != nil {
			return err
		}
		frontier = fresh
	}

	return result
}

// evalAggregate folds aggregator over input, threading $total from init (or
// empty) through each element in order, then returns the final total.
func (e *Evaluator) evalAggregate(input types.Collection, args []ast.Node) interface{} {
	var total types.Value
	if len(args) > 1 {
		initResult := e.eval(args[1])
		if err, ok := initResult.(error); ok {
			return err
		}
		if col, ok := initResult.(types.Collection); ok && !col.Empty() {
			total = col[0]
		}
	}

	aggregator := args[0]
	oldThis, oldIndex, oldTotal := e.ctx.this, e.ctx.index, e.ctx.total
	defer func() { e.ctx.this, e.ctx.index, e.ctx.total = oldThis, oldIndex, oldTotal }()

	for i, item := range input {
		if i%100 == 0 {
			if err := e.ctx.CheckCancellation(); err != nil {
				return err
			}
		}
		e.ctx.this = types.Collection{item}
		e.ctx.index = i
		e.ctx.total = total

		r := e.eval(aggregator)
		if err, ok := r.(error); ok {
			return err
		}
		if col, ok := r.(types.Collection); ok && !col.Empty() {
			total = col[0]
		} else {
			total = nil
		}
	}

	if total == nil {
		return types.Collection{}
	}
	return types.Collection{total}
}

// evalSort stable-sorts input by the key each element produces when
// evaluated against criteria ($this bound per element, as with where/select);
// with no criteria the element itself is the key. Keys that implement
// Comparable are ordered with Compare; otherwise sorting falls back to
// lexical order on String().
func (e *Evaluator) evalSort(input types.Collection, criteria ast.Node) interface{} {
	if len(input) < 2 {
		return input
	}

	keys := make(types.Collection, len(input))
	for i, item := range input {
		if criteria == nil {
			keys[i] = item
			continue
		}
		r := e.withElement(item, i, func() interface{} { return e.eval(criteria) })
		if err, ok := r.(error); ok {
			return err
		}
		col, ok := r.(types.Collection)
		if !ok || col.Empty() {
			keys[i] = nil
			continue
		}
		keys[i] = col[0]
	}

	result := make(types.Collection, len(input))
	copy(result, input)
	order := make([]int, len(input))
	for i := range order {
		order[i] = i
	}

	var sortErr error
	sort.SliceStable(order, func(a, b int) bool {
		ka, kb := keys[order[a]], keys[order[b]]
		if ka == nil || kb == nil {
			return false
		}
		ca, ok := ka.(types.Comparable)
		if !ok {
			return ka.String() < kb.String()
		}
		cmp, err := ca.Compare(kb)
		if err != nil {
			sortErr = err
			return false
		}
		return cmp < 0
	})
	if sortErr != nil {
		return sortErr
	}

	for i, idx := range order {
		result[i] = input[idx]
	}
	return result
}

// evalIsFunction implements is(Type) as a function call: the argument names
// a type rather than an expression to evaluate, so its AST is read as a
// type specifier instead of being evaluated.
func (e *Evaluator) evalIsFunction(input types.Collection, typeExpr ast.Node) interface{} {
	if input.Empty() {
		return types.Collection{}
	}
	if len(input) != 1 {
		return SingletonError(len(input))
	}
	typeName := typeExpr.String()
	actualType := input[0].Type()
	return types.Collection{types.NewBoolean(TypeMatches(actualType, typeName))}
}

// evalAsFunction implements as(Type) as a function call; see evalIsFunction.
func (e *Evaluator) evalAsFunction(input types.Collection, typeExpr ast.Node) interface{} {
	if input.Empty() {
		return types.Collection{}
	}
	if len(input) != 1 {
		return SingletonError(len(input))
	}
	typeName := typeExpr.String()
	actualType := input[0].Type()
	if TypeMatches(actualType, typeName) {
		return input
	}
	return types.Collection{}
}

// evalOfType filters input to the elements matching the named type. Unlike
// is()/as(), it accepts a non-singleton input.
func (e *Evaluator) evalOfType(input types.Collection, typeExpr ast.Node) interface{} {
	if input.Empty() {
		return types.Collection{}
	}
	typeName := typeExpr.String()
	result := types.Collection{}
	for _, item := range input {
		if TypeMatches(item.Type(), typeName) {
			result = append(result, item)
		}
	}
	return result
}

// evalIif lazily evaluates only the branch that matches its criterion, so
// the unmatched branch's errors (e.g. an out-of-range navigation) never
// surface — this is what makes `iif(x.exists(), x.first(), 'none')` safe.
func (e *Evaluator) evalIif(argExprs []ast.Node) interface{} {
	criterionResult := e.eval(argExprs[0])
	if err, ok := criterionResult.(error); ok {
		return err
	}

	criterion := false
	if coll, ok := criterionResult.(types.Collection); ok && !coll.Empty() {
		if b, ok := coll[0].(types.Boolean); ok {
			criterion = b.Bool()
		}
	}

	if criterion {
		result := e.eval(argExprs[1])
		if err, ok := result.(error); ok {
			return err
		}
		if coll, ok := result.(types.Collection); ok {
			return coll
		}
		return types.Collection{}
	}

	if len(argExprs) > 2 {
		result := e.eval(argExprs[2])
		if err, ok := result.(error); ok {
			return err
		}
		if coll, ok := result.(types.Collection); ok {
			return coll
		}
	}
	return types.Collection{}
}

// normalizeResult narrows the internal interface{}-typed eval result to the
// (Collection, error) shape LazyImpl exposes to the funcs registry.
func normalizeResult(r interface{}) (types.Collection, error) {
	if err, ok := r.(error); ok {
		return nil, err
	}
	if col, ok := r.(types.Collection); ok {
		return col, nil
	}
	return types.Collection{}, nil
}

// EvalWhere is the ShapeLazy entry point for where(criteria).
func (e *Evaluator) EvalWhere(input types.Collection, criteria ast.Node) (types.Collection, error) {
	return normalizeResult(e.evalWhere(input, criteria))
}

// EvalExists is the ShapeLazy entry point for exists(criteria).
func (e *Evaluator) EvalExists(input types.Collection, criteria ast.Node) (types.Collection, error) {
	return normalizeResult(e.evalExists(input, criteria))
}

// EvalAll is the ShapeLazy entry point for all(criteria).
func (e *Evaluator) EvalAll(input types.Collection, criteria ast.Node) (types.Collection, error) {
	return normalizeResult(e.evalAll(input, criteria))
}

// EvalSelect is the ShapeLazy entry point for select(projection).
func (e *Evaluator) EvalSelect(input types.Collection, projection ast.Node) (types.Collection, error) {
	return normalizeResult(e.evalSelect(input, projection))
}

// EvalRepeat is the ShapeLazy entry point for repeat(projection).
func (e *Evaluator) EvalRepeat(input types.Collection, projection ast.Node) (types.Collection, error) {
	return normalizeResult(e.evalRepeat(input, projection))
}

// EvalAggregate is the ShapeLazy entry point for aggregate(aggregator[, init]).
func (e *Evaluator) EvalAggregate(input types.Collection, args []ast.Node) (types.Collection, error) {
	return normalizeResult(e.evalAggregate(input, args))
}

// EvalIsFunction is the ShapeLazy entry point for the is(Type) function form.
func (e *Evaluator) EvalIsFunction(input types.Collection, typeExpr ast.Node) (types.Collection, error) {
	return normalizeResult(e.evalIsFunction(input, typeExpr))
}

// EvalAsFunction is the ShapeLazy entry point for the as(Type) function form.
func (e *Evaluator) EvalAsFunction(input types.Collection, typeExpr ast.Node) (types.Collection, error) {
	return normalizeResult(e.evalAsFunction(input, typeExpr))
}

// EvalOfType is the ShapeLazy entry point for ofType(Type).
func (e *Evaluator) EvalOfType(input types.Collection, typeExpr ast.Node) (types.Collection, error) {
	return normalizeResult(e.evalOfType(input, typeExpr))
}

// EvalIif is the ShapeLazy entry point for iif(criterion, true-result[, otherwise]).
func (e *Evaluator) EvalIif(args []ast.Node) (types.Collection, error) {
	return normalizeResult(e.evalIif(args))
}

// EvalSort is the ShapeLazy entry point for sort(criteria?); criteria is
// nil when sort() was called with no arguments.
func (e *Evaluator) EvalSort(input types.Collection, criteria ast.Node) (types.Collection, error) {
	return normalizeResult(e.evalSort(input, criteria))
}

// Type hierarchy helpers. These delegate to pkg/fhirpath/model, which holds
// the actual FHIR Resource/DomainResource hierarchy and choice-type tables
// so a future StructureDefinition-backed model.Provider can replace
// model.StaticProvider without the evaluator changing.

// IsDomainResource returns true if the given resource type inherits from DomainResource.
func IsDomainResource(resourceType string) bool {
	return model.Default.IsDomainResource(resourceType)
}

// IsSubtypeOf checks if actualType is a subtype of (or equal to) baseType.
func IsSubtypeOf(actualType, baseType string) bool {
	return model.Default.IsSubtypeOf(actualType, baseType)
}

// TypeMatches checks if actualType matches the requested typeName.
// Handles case-insensitive comparison and FHIR type aliases.
// This function is exported for use by the is() function implementation.
func TypeMatches(actualType, typeName string) bool {
	return model.Default.TypeMatches(actualType, typeName)
}

// navigateMember navigates to a member of objects in the collection.
// Supports FHIR polymorphic elements (value[x] pattern) by automatically
// resolving element names like "value" to their typed variants.
func (e *Evaluator) navigateMember(input types.Collection, name string) types.Collection {
	result := types.Collection{}

	for _, item := range input {
		obj, ok := item.(*types.ObjectValue)
		if !ok {
			continue
		}

		if IsSubtypeOf(obj.Type(), name) {
			result = append(result, obj)
			continue
		}

		children := obj.GetCollection(name)
		if len(children) > 0 {
			result = append(result, children...)
			continue
		}

		polymorphicChildren := e.resolvePolymorphicField(obj, name)
		result = append(result, polymorphicChildren...)
	}

	return result
}

// resolvePolymorphicField attempts to resolve a polymorphic FHIR element.
// For example, accessing "value" will search for "valueQuantity", "valueString", etc.
// A resource can legitimately carry more than one variant at once (e.g. an
// extension with both valueString and valueInteger present), so every
// suffix is scanned and all matches are collected, in suffix-table order.
func (e *Evaluator) resolvePolymorphicField(obj *types.ObjectValue, name string) types.Collection {
	result := types.Collection{}

	for _, suffix := range model.Default.ChoiceTypeSuffixes() {
		fieldName := name + suffix
		children := obj.GetCollection(fieldName)
		if len(children) > 0 {
			result = append(result, children...)
		}
	}

	return result
}
