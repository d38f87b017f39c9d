package funcs

import (
	"sort"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/ast"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/eval"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/types"
)

func init() {
	Register(FuncDef{
		Name:    "sort",
		MinArgs: 0,
		MaxArgs: 1,
		Shape:   eval.ShapeLazy,
		Fn:      fnSort,
		Lazy: func(e *eval.Evaluator, input types.Collection, args []ast.Node) (types.Collection, error) {
			return e.EvalSort(input, args[0])
		},
	})
}

// fnSort handles the zero-argument sort() form: no-arg calls never reach
// the Lazy path (it only runs when args are present), so this sorts the
// elements directly by their own FHIRPath ordering.
func fnSort(_ *eval.Context, input types.Collection, _ []interface{}) (types.Collection, error) {
	if len(input) < 2 {
		return input, nil
	}

	result := make(types.Collection, len(input))
	copy(result, input)

	var sortErr error
	sort.SliceStable(result, func(i, j int) bool {
		less, err := sortLess(result[i], result[j])
		if err != nil {
			sortErr = err
			return false
		}
		return less
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return result, nil
}

// sortLess reports whether a orders before b, using Comparable when
// available and falling back to lexical order on String().
func sortLess(a, b types.Value) (bool, error) {
	ca, ok := a.(types.Comparable)
	if !ok {
		return a.String() < b.String(), nil
	}
	cmp, err := ca.Compare(b)
	if err != nil {
		return false, err
	}
	return cmp < 0, nil
}
