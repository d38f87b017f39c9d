package funcs

import (
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/eval"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/types"
)

func init() {
	Register(FuncDef{
		Name:    "lowBoundary",
		MinArgs: 0,
		MaxArgs: 1,
		Fn:      boundaryFunc(false),
	})

	Register(FuncDef{
		Name:    "highBoundary",
		MinArgs: 0,
		MaxArgs: 1,
		Fn:      boundaryFunc(true),
	})
}

// boundaryFunc builds lowBoundary/highBoundary: input must be a single
// Decimal, Quantity, Date, DateTime, or Time value; the optional precision
// argument only affects Decimal/Quantity, where it names the number of
// certain decimal digits rather than a calendar/time unit.
func boundaryFunc(high bool) eval.FuncImpl {
	return func(_ *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
		if input.Empty() {
			return types.Collection{}, nil
		}
		if len(input) != 1 {
			return nil, eval.SingletonError(len(input))
		}

		precision := 0
		if len(args) > 0 {
			n, err := toInteger(args[0])
			if err == nil {
				precision = int(n)
			}
		}

		switch v := input[0].(type) {
		case types.Decimal:
			return types.Collection{v.Boundary(precision, high)}, nil
		case types.Integer:
			return types.Collection{types.NewDecimalFromInt(v.Value()).Boundary(precision, high)}, nil
		case types.Quantity:
			return types.Collection{v.Boundary(precision, high)}, nil
		case types.Date:
			return types.Collection{v.Boundary(high)}, nil
		case types.DateTime:
			return types.Collection{v.Boundary(high)}, nil
		case types.Time:
			return types.Collection{v.Boundary(high)}, nil
		default:
			return nil, eval.TypeError("Decimal, Quantity, Date, DateTime, or Time", v.Type(), "boundary")
		}
	}
}
