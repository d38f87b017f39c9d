package types

import "strings"

// Namespace identifies which type system a TypeInfo belongs to.
type Namespace string

const (
	// NamespaceSystem holds the FHIRPath primitive types (System.String, System.Integer, ...).
	NamespaceSystem Namespace = "System"
	// NamespaceFHIR holds FHIR-defined types (FHIR.code, FHIR.Quantity, FHIR.Patient, ...).
	NamespaceFHIR Namespace = "FHIR"
)

// TypeInfo tags a value with the type identity FHIRPath needs for is/as/ofType
// and for distinguishing System.String from FHIR.code even when both carry a Go string.
type TypeInfo struct {
	Namespace Namespace
	Name      string

	// Singleton and IsEmptyType describe cardinality metadata carried by type()
	// reflection results; both are optional (nil means "not asserted").
	Singleton   *bool
	IsEmptyType *bool

	// IsUnionType marks a choice ([x]) element's resolved type; UnionChoices
	// lists the other suffixes that were possible at the same site, for
	// diagnostic purposes only.
	IsUnionType   bool
	UnionChoices  []string
}

// QualifiedName returns "Namespace.Name", e.g. "FHIR.Patient".
func (t TypeInfo) QualifiedName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return string(t.Namespace) + "." + t.Name
}

// String implements fmt.Stringer.
func (t TypeInfo) String() string {
	return t.QualifiedName()
}

// IsZero reports whether this TypeInfo carries no information.
func (t TypeInfo) IsZero() bool {
	return t.Namespace == "" && t.Name == ""
}

// Matches reports whether this TypeInfo satisfies a requested type name,
// which may be unqualified ("Patient"), or namespace-qualified
// ("FHIR.Patient", "System.String").
func (t TypeInfo) Matches(requested string) bool {
	if requested == "" {
		return false
	}
	if strings.Contains(requested, ".") {
		return strings.EqualFold(t.QualifiedName(), requested)
	}
	return strings.EqualFold(t.Name, requested)
}

// Well-known System TypeInfo values, one per FHIRPath primitive.
var (
	TypeSystemBoolean  = TypeInfo{Namespace: NamespaceSystem, Name: "Boolean"}
	TypeSystemString   = TypeInfo{Namespace: NamespaceSystem, Name: "String"}
	TypeSystemInteger  = TypeInfo{Namespace: NamespaceSystem, Name: "Integer"}
	TypeSystemDecimal  = TypeInfo{Namespace: NamespaceSystem, Name: "Decimal"}
	TypeSystemDate     = TypeInfo{Namespace: NamespaceSystem, Name: "Date"}
	TypeSystemDateTime = TypeInfo{Namespace: NamespaceSystem, Name: "DateTime"}
	TypeSystemTime     = TypeInfo{Namespace: NamespaceSystem, Name: "Time"}
	TypeSystemQuantity = TypeInfo{Namespace: NamespaceSystem, Name: "Quantity"}
)

// FHIRType builds a FHIR-namespaced TypeInfo, e.g. FHIRType("Patient").
func FHIRType(name string) TypeInfo {
	return TypeInfo{Namespace: NamespaceFHIR, Name: name}
}
