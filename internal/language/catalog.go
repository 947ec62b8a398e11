// Package language holds the static catalog mapping human-friendly language
// labels to the canonical codes the translation backend expects, grouped by
// region. The catalog is embedded JSON validated against an embedded schema.
package language

import (
	"encoding/json"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed catalog.json
var catalogJSON string

//go:embed catalog.schema.json
var catalogSchemaJSON string

// Auto is the sentinel source language for automatic detection.
const Auto = "auto"

type catalogDocument struct {
	Regions map[string]map[string]string `json:"regions"`
	Codes   map[string]string            `json:"codes"`
}

// Catalog resolves language labels to canonical provider codes.
type Catalog struct {
	regions map[string]map[string]string
	codes   map[string]string
	// canonical is the set of codes the backend accepts, keyed lowercase.
	canonical map[string]struct{}
}

var (
	loadOnce   sync.Once
	loaded     *Catalog
	loadErr    error
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Load parses and validates the embedded catalog. The result is cached for
// the process lifetime.
func Load() (*Catalog, error) {
	loadOnce.Do(func() {
		loaded, loadErr = parseCatalog([]byte(catalogJSON))
	})
	return loaded, loadErr
}

func parseCatalog(raw []byte) (*Catalog, error) {
	compiled, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load catalog schema: %w", err)
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("decode catalog JSON: %w", err)
	}
	if err := compiled.Validate(value); err != nil {
		return nil, fmt.Errorf("catalog schema validation failed: %w", err)
	}

	var doc catalogDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}

	canonical := make(map[string]struct{}, len(doc.Codes))
	for identifier, code := range doc.Codes {
		if strings.TrimSpace(code) == "" {
			return nil, fmt.Errorf("catalog identifier %q maps to an empty code", identifier)
		}
		canonical[strings.ToLower(code)] = struct{}{}
	}

	// Every region entry must resolve through the code table.
	for region, entries := range doc.Regions {
		for label, identifier := range entries {
			if _, ok := doc.Codes[identifier]; !ok {
				return nil, fmt.Errorf("region %s label %q references unknown identifier %q", region, label, identifier)
			}
		}
	}

	return &Catalog{
		regions:   doc.Regions,
		codes:     doc.Codes,
		canonical: canonical,
	}, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("catalog.schema.json", strings.NewReader(catalogSchemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = compiler.Compile("catalog.schema.json")
	})
	return schema, schemaErr
}

// Resolve converts a human-friendly identifier to the canonical provider
// code. "auto" passes through. Unknown identifiers are returned lowercased
// verbatim so that direct provider codes remain usable.
func (c *Catalog) Resolve(label string) string {
	normalized := NormalizeLabel(label)
	if normalized == "" || normalized == Auto {
		return Auto
	}
	if code, ok := c.codes[normalized]; ok {
		return code
	}
	return strings.ToLower(strings.TrimSpace(label))
}

// IsSupported reports whether the label resolves to a code the backend
// accepts, either through the catalog or as a direct canonical code.
func (c *Catalog) IsSupported(label string) bool {
	resolved := c.Resolve(label)
	if resolved == Auto {
		return false
	}
	_, ok := c.canonical[strings.ToLower(resolved)]
	return ok
}

// Unsupported filters the given labels down to the ones the catalog cannot
// resolve to a known canonical code, preserving request order.
func (c *Catalog) Unsupported(labels []string) []string {
	var rejected []string
	for _, label := range labels {
		if !c.IsSupported(label) {
			rejected = append(rejected, label)
		}
	}
	return rejected
}

// Regions returns the region-grouped label table.
func (c *Catalog) Regions() map[string]map[string]string {
	return c.regions
}

// Flat returns the identifier-to-code table.
func (c *Catalog) Flat() map[string]string {
	return c.codes
}

// SupportedIdentifiers lists the catalog identifiers in sorted order, for
// validation error messages.
func (c *Catalog) SupportedIdentifiers() []string {
	identifiers := make([]string, 0, len(c.codes))
	for identifier := range c.codes {
		identifiers = append(identifiers, identifier)
	}
	sort.Strings(identifiers)
	return identifiers
}
