package types

import "github.com/buger/jsonparser"

// PrimitiveElement is the sidecar carried by a FHIR primitive field's
// adjacent "_name" JSON object: {"id": "...", "extension": [...]}.
type PrimitiveElement struct {
	ID         string
	Extensions [][]byte // raw JSON of each extension entry
}

// HasContent reports whether the sidecar carries an id or any extensions.
func (p *PrimitiveElement) HasContent() bool {
	return p != nil && (p.ID != "" || len(p.Extensions) > 0)
}

// parsePrimitiveElement reads a "_name" sidecar object into a PrimitiveElement.
// Returns nil if data does not describe a usable sidecar.
func parsePrimitiveElement(data []byte) *PrimitiveElement {
	if len(data) == 0 {
		return nil
	}
	pe := &PrimitiveElement{}
	if id, err := jsonparser.GetString(data, "id"); err == nil {
		pe.ID = id
	}
	//nolint:errcheck // ArrayEach only errors when "extension" isn't an array; absence is fine.
	jsonparser.ArrayEach(data, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
		cp := make([]byte, len(value))
		copy(cp, value)
		pe.Extensions = append(pe.Extensions, cp)
	}, "extension")
	if !pe.HasContent() {
		return nil
	}
	return pe
}

// ExtensionsByURL returns the raw JSON of each extension entry whose "url"
// field matches url.
func (p *PrimitiveElement) ExtensionsByURL(url string) [][]byte {
	if p == nil {
		return nil
	}
	var out [][]byte
	for _, ext := range p.Extensions {
		if u, err := jsonparser.GetString(ext, "url"); err == nil && u == url {
			out = append(out, ext)
		}
	}
	return out
}
