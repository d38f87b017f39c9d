package terminology

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// valueSet mirrors the subset of the FHIR ValueSet resource this package
// expands locally.
type valueSet struct {
	URL     string  `json:"url"`
	Version string  `json:"version"`
	Compose compose `json:"compose"`
}

type compose struct {
	Include []include `json:"include"`
}

type include struct {
	System  string    `json:"system"`
	Version string    `json:"version"`
	Concept []concept `json:"concept"`
}

type concept struct {
	Code    string `json:"code"`
	Display string `json:"display"`
}

// codeSystem mirrors the subset of the FHIR CodeSystem resource this
// package searches for lookup/validate/subsumes.
type codeSystem struct {
	URL     string           `json:"url"`
	Version string           `json:"version"`
	Concept []codeSystemNode `json:"concept"`
}

type codeSystemNode struct {
	Code     string           `json:"code"`
	Display  string           `json:"display"`
	Property []codeSystemProp `json:"property"`
	Concept  []codeSystemNode `json:"concept"`
}

type codeSystemProp struct {
	Code      string `json:"code"`
	ValueCode string `json:"valueCode"`
}

// Registry is a local, in-memory Provider backed by ValueSet and CodeSystem
// resources loaded from JSON. It is the terminology analogue of the
// resolver used for %resource reference navigation: useful for unit tests
// and closed terminologies, with Provider left open for wiring a real
// terminology server in its place.
type Registry struct {
	mu          sync.RWMutex
	valueSets   map[string]*valueSet
	codeSystems map[string]*codeSystem
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		valueSets:   make(map[string]*valueSet),
		codeSystems: make(map[string]*codeSystem),
	}
}

// LoadValueSet parses and indexes a ValueSet resource by its url.
func (r *Registry) LoadValueSet(data []byte) error {
	var vs valueSet
	if err := json.Unmarshal(data, &vs); err != nil {
		return fmt.Errorf("terminology: decode ValueSet: %w", err)
	}
	if vs.URL == "" {
		return fmt.Errorf("terminology: ValueSet has no url")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.valueSets[vs.URL] = &vs
	return nil
}

// LoadCodeSystem parses and indexes a CodeSystem resource by its url.
func (r *Registry) LoadCodeSystem(data []byte) error {
	var cs codeSystem
	if err := json.Unmarshal(data, &cs); err != nil {
		return fmt.Errorf("terminology: decode CodeSystem: %w", err)
	}
	if cs.URL == "" {
		return fmt.Errorf("terminology: CodeSystem has no url")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codeSystems[cs.URL] = &cs
	return nil
}

func (r *Registry) Expand(_ context.Context, url, _ string) ([]Concept, error) {
	r.mu.RLock()
	vs, ok := r.valueSets[stripVersion(url)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("terminology: ValueSet %q not found", url)
	}

	var out []Concept
	for _, inc := range vs.Compose.Include {
		if len(inc.Concept) > 0 {
			for _, c := range inc.Concept {
				out = append(out, Concept{System: inc.System, Code: c.Code, Display: c.Display})
			}
			continue
		}
		cs := r.lookupCodeSystem(inc.System)
		if cs == nil {
			continue
		}
		walkConcepts(cs.Concept, func(n codeSystemNode) {
			out = append(out, Concept{System: inc.System, Code: n.Code, Display: n.Display})
		})
	}
	return out, nil
}

func (r *Registry) Lookup(_ context.Context, system, code, _ string) (LookupResult, bool, error) {
	cs := r.lookupCodeSystem(system)
	if cs == nil {
		return LookupResult{}, false, nil
	}
	var found *codeSystemNode
	walkConcepts(cs.Concept, func(n codeSystemNode) {
		if found == nil && n.Code == code {
			cp := n
			found = &cp
		}
	})
	if found == nil {
		return LookupResult{}, false, nil
	}
	props := make(map[string]string, len(found.Property))
	for _, p := range found.Property {
		props[p.Code] = p.ValueCode
	}
	return LookupResult{Name: cs.URL, Display: found.Display, Properties: props}, true, nil
}

func (r *Registry) ValidateVS(ctx context.Context, url string, c Concept) (bool, error) {
	concepts, err := r.Expand(ctx, url, "")
	if err != nil {
		return false, err
	}
	for _, candidate := range concepts {
		if candidate.Code == c.Code && (c.System == "" || candidate.System == c.System) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Registry) ValidateCS(_ context.Context, url string, c Concept) (bool, error) {
	cs := r.lookupCodeSystem(url)
	if cs == nil {
		return false, fmt.Errorf("terminology: CodeSystem %q not found", url)
	}
	found := false
	walkConcepts(cs.Concept, func(n codeSystemNode) {
		if n.Code == c.Code {
			found = true
		}
	})
	return found, nil
}

// Subsumes walks the subsumedBy property hierarchy recorded on CodeSystem
// concepts, the same relationship gofhir-validator's phase package derives
// for is-a ValueSet filters.
func (r *Registry) Subsumes(_ context.Context, system, codeA, codeB, _ string) (SubsumptionOutcome, error) {
	if codeA == codeB {
		return Equivalent, nil
	}
	cs := r.lookupCodeSystem(system)
	if cs == nil {
		return "", fmt.Errorf("terminology: CodeSystem %q not found", system)
	}
	parent := make(map[string]string)
	walkConcepts(cs.Concept, func(n codeSystemNode) {
		for _, p := range n.Property {
			if p.Code == "subsumedBy" && p.ValueCode != "" {
				parent[n.Code] = p.ValueCode
			}
		}
	})
	if isAncestor(parent, codeA, codeB) {
		return Subsumes, nil
	}
	if isAncestor(parent, codeB, codeA) {
		return SubsumedBy, nil
	}
	return NotSubsumed, nil
}

// Translate is not meaningful without a loaded ConceptMap; the Registry
// always reports a miss so callers fall back to an empty result rather than
// a hard failure.
func (r *Registry) Translate(_ context.Context, _ string, _ Concept) ([]Concept, error) {
	return nil, nil
}

func isAncestor(parent map[string]string, ancestor, descendant string) bool {
	seen := map[string]bool{descendant: true}
	for cur := descendant; ; {
		next, ok := parent[cur]
		if !ok || seen[next] {
			return false
		}
		if next == ancestor {
			return true
		}
		seen[next] = true
		cur = next
	}
}

func (r *Registry) lookupCodeSystem(url string) *codeSystem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.codeSystems[stripVersion(url)]
}

func walkConcepts(nodes []codeSystemNode, visit func(codeSystemNode)) {
	for _, n := range nodes {
		visit(n)
		if len(n.Concept) > 0 {
			walkConcepts(n.Concept, visit)
		}
	}
}

func stripVersion(url string) string {
	if idx := strings.LastIndex(url, "|"); idx != -1 {
		return url[:idx]
	}
	return url
}
