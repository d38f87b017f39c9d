package fhirpath_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath"
)

// golden-value table: each expression evaluated against the same patient
// resource must produce an exact ordered string slice. go-cmp gives readable
// diffs when a collection-shape regression sneaks into the evaluator.
func TestEvaluateGoldenValues(t *testing.T) {
	patient := []byte(`{
		"resourceType": "Patient",
		"id": "example",
		"active": true,
		"name": [
			{"use": "official", "family": "Chalmers", "given": ["Peter", "James"]},
			{"use": "usual", "given": ["Jim"]}
		],
		"telecom": [
			{"system": "phone", "value": "555-0100", "use": "home"},
			{"system": "email", "value": "p.chalmers@example.org"}
		],
		"birthDate": "1974-12-25"
	}`)

	tests := []struct {
		name string
		expr string
		want []string
	}{
		{
			name: "all given names across repeated name elements",
			expr: "Patient.name.given",
			want: []string{"Peter", "James", "Jim"},
		},
		{
			name: "select projects and flattens",
			expr: "Patient.name.select(given)",
			want: []string{"Peter", "James", "Jim"},
		},
		{
			name: "where filters by nested criteria",
			expr: "Patient.name.where(use = 'usual').given",
			want: []string{"Jim"},
		},
		{
			name: "telecom values regardless of system",
			expr: "Patient.telecom.value",
			want: []string{"555-0100", "p.chalmers@example.org"},
		},
		{
			name: "distinct removes duplicate given names",
			expr: "Patient.name.given.union(Patient.name.given).distinct()",
			want: []string{"Peter", "James", "Jim"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fhirpath.EvaluateToStrings(patient, tt.expr)
			if err != nil {
				t.Fatalf("EvaluateToStrings(%q) error: %v", tt.expr, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("EvaluateToStrings(%q) mismatch (-want +got):\n%s", tt.expr, diff)
			}
		})
	}
}
