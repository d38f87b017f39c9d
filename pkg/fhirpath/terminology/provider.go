// Package terminology implements the %terminologies environment variable
// functions defined by the FHIRPath terminology service API: expand,
// lookup, validateVS, validateCS, subsumes and translate.
//
// A Provider is optional. When none is configured on the eval.Context, the
// terminology functions return empty collections rather than failing the
// whole expression, mirroring how an unset %resource evaluates to empty
// elsewhere in the engine.
package terminology

import "context"

// Concept identifies a single coded concept for lookup/validation calls.
type Concept struct {
	System  string
	Code    string
	Version string
	Display string
}

// LookupResult carries the properties FHIR's $lookup operation returns for
// a single code.
type LookupResult struct {
	Name        string
	Display     string
	Designation []string
	Properties  map[string]string
}

// SubsumptionOutcome mirrors the code values of $subsumes: equivalent,
// subsumes, subsumed-by or not-subsumed.
type SubsumptionOutcome string

const (
	Equivalent SubsumptionOutcome = "equivalent"
	Subsumes   SubsumptionOutcome = "subsumes"
	SubsumedBy SubsumptionOutcome = "subsumed-by"
	NotSubsumed SubsumptionOutcome = "not-subsumed"
)

// Provider allows FHIRPath's terminology functions to delegate to a real
// terminology service or a locally loaded ValueSet/CodeSystem registry.
//
// When a provider returns an error the calling function returns that error
// up through the evaluator rather than failing open: unlike structural
// validation, a terminology answer that can't be trusted shouldn't be
// silently treated as a pass.
type Provider interface {
	// Expand returns the codes that are members of the ValueSet identified
	// by url (optionally pinned to a version).
	Expand(ctx context.Context, url, version string) ([]Concept, error)

	// Lookup resolves the display name and properties of a single code.
	Lookup(ctx context.Context, system, code, version string) (LookupResult, bool, error)

	// ValidateVS reports whether a code is a member of the ValueSet at url.
	ValidateVS(ctx context.Context, url string, c Concept) (bool, error)

	// ValidateCS reports whether a code exists in the CodeSystem at url.
	ValidateCS(ctx context.Context, url string, c Concept) (bool, error)

	// Subsumes compares two codes from the same system.
	Subsumes(ctx context.Context, system, codeA, codeB, version string) (SubsumptionOutcome, error)

	// Translate maps a code through a ConceptMap identified by url.
	Translate(ctx context.Context, url string, c Concept) ([]Concept, error)
}
