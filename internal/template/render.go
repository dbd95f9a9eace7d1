// Package template renders parameterized Kubernetes manifest fragments
// (merge/override templates) into concrete YAML text, prefixed with a
// provenance header that marks the output as machine-generated.
package template

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// ErrTemplateError is returned (wrapped) for any parse or execution
// failure, including a reference to a variable absent from the bag.
var ErrTemplateError = errors.New("template error")

const headerFormat = "# Generated by shipctl from %s — do not edit by hand\n"

// ProvenanceHeader returns the header line prepended to every rendered
// file, naming the template it came from.
func ProvenanceHeader(sourcePath string) string {
	return fmt.Sprintf(headerFormat, sourcePath)
}

// HasProvenanceHeader reports whether content begins with the provenance
// header expected for sourcePath. Used to tell a stale generated file
// (safe to delete) apart from a manually authored one (leave alone).
func HasProvenanceHeader(content, sourcePath string) bool {
	return strings.HasPrefix(content, ProvenanceHeader(sourcePath))
}

// Render expands body against vars, using sprig's function map and a
// strict-undefined lookup policy: referencing a key absent from vars
// fails the render instead of silently emitting an empty string.
// sourcePath is used only for the provenance header and error messages.
func Render(body string, vars map[string]any, sourcePath string) (string, error) {
	tmpl, err := template.New(sourcePath).
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Parse(body)
	if err != nil {
		return "", fmt.Errorf("%w: parsing %s: %v", ErrTemplateError, sourcePath, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("%w: rendering %s: %v", ErrTemplateError, sourcePath, err)
	}

	rendered := buf.String()
	if strings.Contains(rendered, "<no value>") {
		return "", fmt.Errorf("%w: %s references an undefined variable", ErrTemplateError, sourcePath)
	}

	return ProvenanceHeader(sourcePath) + rendered, nil
}
