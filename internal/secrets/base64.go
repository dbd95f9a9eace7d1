// Package secrets implements the base64 and seal/unseal transforms over
// Kubernetes Secret/SealedSecret documents described in spec.md §4.7. No
// surviving revision of the Python source tool carries a Sealed Secrets
// integration, so this package is grounded directly in the
// specification's prose, built with the teacher's YAML/process idiom
// (internal/yamldoc, internal/process) rather than translated from a
// matching source file.
package secrets

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nimbleci/shipctl/internal/yamldoc"
)

// ErrNotASecret is returned when the document passed to the base64
// transforms has no top-level "data" mapping.
var ErrNotASecret = errors.New("document has no data section")

// Base64DecodeSecrets parses a single Secret document and base64-decodes
// every non-null entry under data, returning the re-serialized result.
// Decoded values containing a newline are written in YAML block literal
// style, matching how a human would hand-edit a multi-line secret.
func Base64DecodeSecrets(content []byte) ([]byte, error) {
	return transformData(content, func(raw string) (*yaml.Node, error) {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("base64-decoding secret value: %w", err)
		}
		node := yamldoc.ScalarString(string(decoded))
		if strings.Contains(string(decoded), "\n") {
			node.Style = yaml.LiteralStyle
		}
		return node, nil
	})
}

// Base64EncodeSecrets parses a single Secret document (typically one
// produced by Base64DecodeSecrets and then hand-edited) and
// base64-encodes every non-null entry under data back into plain
// scalars.
func Base64EncodeSecrets(content []byte) ([]byte, error) {
	return transformData(content, func(raw string) (*yaml.Node, error) {
		encoded := base64.StdEncoding.EncodeToString([]byte(raw))
		return yamldoc.ScalarString(encoded), nil
	})
}

func transformData(content []byte, transform func(string) (*yaml.Node, error)) ([]byte, error) {
	docs, err := yamldoc.LoadBytes(content)
	if err != nil {
		return nil, fmt.Errorf("parsing secret document: %w", err)
	}
	if len(docs) != 1 {
		return nil, fmt.Errorf("expected exactly one document, found %d", len(docs))
	}

	root := yamldoc.UnwrapDocument(docs[0])
	data := yamldoc.Get(root, "data")
	if data == nil || data.Kind != yaml.MappingNode {
		return nil, ErrNotASecret
	}

	for i := 1; i < len(data.Content); i += 2 {
		value := data.Content[i]
		if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
			continue
		}
		transformed, err := transform(value.Value)
		if err != nil {
			return nil, err
		}
		*value = *transformed
	}

	out, err := yamldoc.DumpBytes(docs)
	if err != nil {
		return nil, err
	}
	return ensureSingleTrailingNewline(out), nil
}

func ensureSingleTrailingNewline(b []byte) []byte {
	trimmed := bytes.TrimRight(b, "\n")
	return append(trimmed, '\n')
}
