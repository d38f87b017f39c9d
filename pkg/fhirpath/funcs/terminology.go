package funcs

import (
	"encoding/json"

	"github.com/pborman/uuid"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/eval"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/terminology"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/types"
)

func init() {
	// All six functions are ShapeProvider: they require %terminologies as
	// their receiver (checked by requireTerminologiesReceiver) and otherwise
	// reach past it to a terminology.Provider installed on the Context via
	// eval.Context.SetTerminologyProvider. With a sentinel receiver but no
	// provider configured they return empty, matching how an unresolved
	// reference evaluates to empty rather than failing the whole expression.
	Register(FuncDef{Name: "expand", MinArgs: 1, MaxArgs: 2, Shape: eval.ShapeProvider, Fn: fnExpand})
	Register(FuncDef{Name: "lookup", MinArgs: 1, MaxArgs: 2, Shape: eval.ShapeProvider, Fn: fnLookup})
	Register(FuncDef{Name: "validateVS", MinArgs: 2, MaxArgs: 2, Shape: eval.ShapeProvider, Fn: fnValidateVS})
	Register(FuncDef{Name: "validateCS", MinArgs: 2, MaxArgs: 2, Shape: eval.ShapeProvider, Fn: fnValidateCS})
	Register(FuncDef{Name: "subsumes", MinArgs: 2, MaxArgs: 2, Shape: eval.ShapeProvider, Fn: fnSubsumes})
	Register(FuncDef{Name: "translate", MinArgs: 2, MaxArgs: 2, Shape: eval.ShapeProvider, Fn: fnTranslate})
}

func provider(ctx *eval.Context) (terminology.Provider, bool) {
	p, ok := ctx.GetTerminologyProvider().(terminology.Provider)
	return p, ok
}

// requireTerminologiesReceiver enforces that a terminology function was
// called on the %terminologies sentinel, per the "calling a terminology
// function without %terminologies as receiver is an error" rule.
func requireTerminologiesReceiver(name string, input types.Collection) error {
	if !eval.IsTerminologiesReceiver(input) {
		return eval.NewEvalError(eval.ErrInvalidOperation, "%s must be called on %%terminologies", name)
	}
	return nil
}

func argString(args []interface{}, i int) string {
	if i >= len(args) {
		return ""
	}
	switch v := args[i].(type) {
	case string:
		return v
	case types.String:
		return v.Value()
	case types.Collection:
		if len(v) > 0 {
			if s, ok := v[0].(types.String); ok {
				return s.Value()
			}
		}
	}
	return ""
}

// conceptFromArg reads a Coding-shaped argument (an ObjectValue with
// system/code/version/display fields) or a bare code string.
func conceptFromArg(arg interface{}) terminology.Concept {
	col, ok := arg.(types.Collection)
	if !ok || len(col) == 0 {
		return terminology.Concept{}
	}
	if s, ok := col[0].(types.String); ok {
		return terminology.Concept{Code: s.Value()}
	}
	obj, ok := col[0].(*types.ObjectValue)
	if !ok {
		return terminology.Concept{}
	}
	get := func(field string) string {
		v, ok := obj.Get(field)
		if !ok {
			return ""
		}
		if s, ok := v.(types.String); ok {
			return s.Value()
		}
		return ""
	}
	return terminology.Concept{
		System:  get("system"),
		Code:    get("code"),
		Version: get("version"),
		Display: get("display"),
	}
}

// newResultObject builds an ObjectValue for results shaped like FHIR's
// Parameters output resources, stamping a fresh synthetic id the way a
// terminology server would assign one to its response.
func newResultObject(fields map[string]interface{}) types.Collection {
	fields["resourceType"] = "Parameters"
	fields["id"] = uuid.New()
	data, err := json.Marshal(fields)
	if err != nil {
		return types.Collection{}
	}
	return types.Collection{types.NewObjectValue(data)}
}

func fnExpand(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	if err := requireTerminologiesReceiver("expand", input); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, eval.InvalidArgumentsError("expand", 1, 0)
	}
	p, ok := provider(ctx)
	if !ok {
		return types.Collection{}, nil
	}
	url := argString(args, 0)
	version := argString(args, 1)
	concepts, err := p.Expand(ctx.Context(), url, version)
	if err != nil {
		return nil, err
	}
	codes := make([]map[string]string, 0, len(concepts))
	for _, c := range concepts {
		codes = append(codes, map[string]string{"system": c.System, "code": c.Code, "display": c.Display})
	}
	return newResultObject(map[string]interface{}{
		"url":    url,
		"expansion": map[string]interface{}{"contains": codes},
	}), nil
}

func fnLookup(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	if err := requireTerminologiesReceiver("lookup", input); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, eval.InvalidArgumentsError("lookup", 1, 0)
	}
	p, ok := provider(ctx)
	if !ok {
		return types.Collection{}, nil
	}
	c := conceptFromArg(args[0])
	version := argString(args, 1)
	result, found, err := p.Lookup(ctx.Context(), c.System, c.Code, version)
	if err != nil {
		return nil, err
	}
	if !found {
		return types.Collection{}, nil
	}
	return newResultObject(map[string]interface{}{
		"name":       result.Name,
		"display":    result.Display,
		"properties": result.Properties,
	}), nil
}

func fnValidateVS(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	if err := requireTerminologiesReceiver("validateVS", input); err != nil {
		return nil, err
	}
	if len(args) < 2 {
		return nil, eval.InvalidArgumentsError("validateVS", 2, len(args))
	}
	p, ok := provider(ctx)
	if !ok {
		return types.Collection{}, nil
	}
	url := argString(args, 0)
	c := conceptFromArg(args[1])
	valid, err := p.ValidateVS(ctx.Context(), url, c)
	if err != nil {
		return nil, err
	}
	return types.Collection{types.NewBoolean(valid)}, nil
}

func fnValidateCS(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	if err := requireTerminologiesReceiver("validateCS", input); err != nil {
		return nil, err
	}
	if len(args) < 2 {
		return nil, eval.InvalidArgumentsError("validateCS", 2, len(args))
	}
	p, ok := provider(ctx)
	if !ok {
		return types.Collection{}, nil
	}
	url := argString(args, 0)
	c := conceptFromArg(args[1])
	valid, err := p.ValidateCS(ctx.Context(), url, c)
	if err != nil {
		return nil, err
	}
	return types.Collection{types.NewBoolean(valid)}, nil
}

func fnSubsumes(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	if err := requireTerminologiesReceiver("subsumes", input); err != nil {
		return nil, err
	}
	if len(args) < 2 {
		return nil, eval.InvalidArgumentsError("subsumes", 2, len(args))
	}
	p, ok := provider(ctx)
	if !ok {
		return types.Collection{}, nil
	}
	a := conceptFromArg(args[0])
	b := conceptFromArg(args[1])
	outcome, err := p.Subsumes(ctx.Context(), a.System, a.Code, b.Code, a.Version)
	if err != nil {
		return nil, err
	}
	return types.Collection{types.NewString(string(outcome))}, nil
}

func fnTranslate(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	if err := requireTerminologiesReceiver("translate", input); err != nil {
		return nil, err
	}
	if len(args) < 2 {
		return nil, eval.InvalidArgumentsError("translate", 2, len(args))
	}
	p, ok := provider(ctx)
	if !ok {
		return types.Collection{}, nil
	}
	url := argString(args, 0)
	c := conceptFromArg(args[1])
	matches, err := p.Translate(ctx.Context(), url, c)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return types.Collection{}, nil
	}
	parts := make([]map[string]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, map[string]string{"system": m.System, "code": m.Code, "display": m.Display})
	}
	return newResultObject(map[string]interface{}{"match": parts}), nil
}
