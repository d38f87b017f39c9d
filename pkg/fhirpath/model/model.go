// Package model describes the FHIR type system that the evaluator's is(),
// as(), ofType() and polymorphic-element navigation resolve against: the
// Resource/DomainResource hierarchy, FHIR-to-FHIRPath primitive aliases,
// and the value[x] choice-type suffix table.
//
// A Provider interface is exposed so a StructureDefinition-backed model
// (R4, R4B, R5) can eventually replace StaticProvider without touching the
// evaluator; StaticProvider is grounded on the fixed tables the teacher
// hard-coded into its is()/as() implementation and covers the common base
// resources and datatypes used throughout the FHIRPath function library.
package model

import (
	"strings"

	"golang.org/x/exp/slices"
)

// Provider answers type-system questions the evaluator needs to resolve
// is()/as()/ofType() and polymorphic (value[x]) element access.
type Provider interface {
	// IsSubtypeOf reports whether actualType is baseType itself or a
	// descendant of baseType in the FHIR type hierarchy.
	IsSubtypeOf(actualType, baseType string) bool

	// TypeMatches reports whether actualType satisfies the type name used
	// in an is()/as()/ofType() expression, including FHIR primitive
	// aliases (e.g. "code" satisfies String) and the FHIR./System.
	// namespace prefixes.
	TypeMatches(actualType, typeName string) bool

	// ChoiceTypeSuffixes lists the type suffixes tried, in order, when
	// resolving a polymorphic element name like "value" against
	// "valueQuantity", "valueString", and so on.
	ChoiceTypeSuffixes() []string

	// IsDomainResource reports whether resourceType inherits from
	// DomainResource rather than directly from Resource.
	IsDomainResource(resourceType string) bool
}

// StaticProvider is the built-in Provider, backed by fixed Go tables
// rather than loaded StructureDefinitions.
type StaticProvider struct{}

// Default is the package-level StaticProvider used when no other Provider
// has been configured on the evaluator.
var Default Provider = StaticProvider{}

// nonDomainResources are the FHIR resources that inherit directly from
// Resource rather than from DomainResource.
var nonDomainResources = []string{"Bundle", "Binary", "Parameters"}

func (StaticProvider) IsDomainResource(resourceType string) bool {
	return !slices.Contains(nonDomainResources, resourceType)
}

// IsSubtypeOf handles the FHIR type hierarchy:
//
//	Resource
//	  └── DomainResource
//	        ├── Patient
//	        ├── Observation
//	        └── ... (most resources)
//	  └── Bundle, Binary, Parameters (directly inherit from Resource)
func (p StaticProvider) IsSubtypeOf(actualType, baseType string) bool {
	if actualType == baseType || strings.EqualFold(actualType, baseType) {
		return true
	}

	if strings.EqualFold(baseType, "resource") {
		return isPossibleResourceType(actualType)
	}

	if strings.EqualFold(baseType, "domainresource") {
		return isPossibleResourceType(actualType) && p.IsDomainResource(actualType)
	}

	return false
}

// isPossibleResourceType checks if the type looks like a FHIR resource
// type: PascalCase and not one of the FHIRPath primitive/system types.
func isPossibleResourceType(typeName string) bool {
	if typeName == "" {
		return false
	}

	primitiveTypes := []string{
		"Boolean", "String", "Integer", "Decimal",
		"Date", "DateTime", "Time", "Quantity",
		"Object",
	}
	if slices.Contains(primitiveTypes, typeName) {
		return false
	}

	return typeName[0] >= 'A' && typeName[0] <= 'Z'
}

// fhirToFHIRPath maps lowercase FHIR primitive type names to the PascalCase
// FHIRPath system type that represents them.
var fhirToFHIRPath = map[string]string{
	"boolean":        "Boolean",
	"string":         "String",
	"integer":        "Integer",
	"decimal":        "Decimal",
	"date":           "Date",
	"datetime":       "DateTime",
	"time":           "Time",
	"instant":        "DateTime",
	"uri":            "String",
	"url":            "String",
	"canonical":      "String",
	"base64binary":   "String",
	"code":           "String",
	"id":             "String",
	"markdown":       "String",
	"oid":            "String",
	"uuid":           "String",
	"positiveint":    "Integer",
	"unsignedint":    "Integer",
	"integer64":      "Integer",
	"quantity":       "Quantity",
	"simplequantity": "Quantity",
	"age":            "Quantity",
	"count":          "Quantity",
	"distance":       "Quantity",
	"duration":       "Quantity",
	"money":          "Quantity",
}

// TypeMatches checks if actualType matches the requested typeName. Handles
// case-insensitive comparison, FHIR type aliases, and the FHIR./System.
// namespace prefixes.
func (p StaticProvider) TypeMatches(actualType, typeName string) bool {
	if actualType == typeName {
		return true
	}

	actualLower := strings.ToLower(actualType)
	typeNameLower := strings.ToLower(typeName)

	if actualLower == typeNameLower {
		return true
	}

	if p.IsSubtypeOf(actualType, typeName) {
		return true
	}

	if fhirPathType, ok := fhirToFHIRPath[typeNameLower]; ok && actualType == fhirPathType {
		return true
	}

	if fhirPathType, ok := fhirToFHIRPath[actualLower]; ok &&
		(fhirPathType == typeName || strings.EqualFold(fhirPathType, typeName)) {
		return true
	}

	if strings.HasPrefix(typeNameLower, "system.") && strings.EqualFold(actualType, typeName[7:]) {
		return true
	}

	if strings.HasPrefix(typeNameLower, "fhir.") && strings.EqualFold(actualType, typeName[5:]) {
		return true
	}

	return false
}

// choiceTypeSuffixes are the FHIR type suffixes tried, in order, when
// resolving a polymorphic element name such as "value" to its typed
// variant ("valueQuantity", "valueString", ...).
var choiceTypeSuffixes = []string{
	// Primitive types
	"Boolean", "Integer", "Integer64", "Decimal", "String", "Code", "Id", "Uri", "Url", "Canonical",
	"Base64Binary", "Instant", "Date", "DateTime", "Time", "Oid", "Uuid", "Markdown", "PositiveInt", "UnsignedInt",
	// Complex types
	"Quantity", "CodeableConcept", "Coding", "Range", "Period", "Ratio", "RatioRange",
	"Identifier", "Reference", "Attachment", "HumanName", "Address", "ContactPoint",
	"Timing", "Signature", "Annotation", "SampledData", "Age", "Distance", "Duration",
	"Count", "Money", "MoneyQuantity", "SimpleQuantity",
	// Special types
	"Meta", "Dosage", "ContactDetail", "Contributor", "DataRequirement", "Expression",
	"ParameterDefinition", "RelatedArtifact", "TriggerDefinition", "UsageContext",
}

// ChoiceTypeSuffixes returns a defensive copy of the suffix table so callers
// can't mutate scan order out from under other evaluators sharing Default.
func (StaticProvider) ChoiceTypeSuffixes() []string {
	return slices.Clone(choiceTypeSuffixes)
}
