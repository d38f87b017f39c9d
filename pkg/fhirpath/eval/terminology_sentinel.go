package eval

import "github.com/fhirpath-go/fhirpath/pkg/fhirpath/types"

// terminologySentinel is the value %terminologies resolves to. Its identity,
// not its content, is what a terminology function checks its receiver
// against: calling expand/lookup/validateVS/validateCS/subsumes/translate
// with any other receiver is an invalid-operation error.
type terminologySentinel struct{}

func (terminologySentinel) Type() string { return "Terminologies" }

func (terminologySentinel) TypeInfo() types.TypeInfo { return types.FHIRType("Terminologies") }

func (terminologySentinel) Equal(other types.Value) bool {
	_, ok := other.(terminologySentinel)
	return ok
}

func (s terminologySentinel) Equivalent(other types.Value) bool {
	return s.Equal(other)
}

func (terminologySentinel) String() string { return "%terminologies" }

func (terminologySentinel) IsEmpty() bool { return false }

// TerminologiesReceiver is the singleton collection %terminologies evaluates
// to.
var TerminologiesReceiver = types.Collection{terminologySentinel{}}

// IsTerminologiesReceiver reports whether col is the %terminologies sentinel,
// as opposed to an absent receiver or an unrelated value.
func IsTerminologiesReceiver(col types.Collection) bool {
	if len(col) != 1 {
		return false
	}
	_, ok := col[0].(terminologySentinel)
	return ok
}
