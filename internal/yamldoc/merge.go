// Package yamldoc implements the structural merge of two streams of YAML
// documents under the project's sentinel dialect: a literal "~" deletes a
// key/index, a literal "" keeps the source value, and any other scalar
// replaces the source value with its typed (bool/number/string) form.
//
// The source implementation (see devops/lib/utils.py::merge_docs in the
// original Python tool) needed two separate parses of the override file —
// one with PyYAML's normal loader (Typed) and one with BaseLoader, which
// keeps every scalar as its source text (Literal) — because a plain
// Python dict loses the distinction between "the author wrote the bare
// word true" and "the author wrote the quoted string \"true\"" once
// parsed. gopkg.in/yaml.v3's Node type doesn't have that problem: every
// scalar node's Value field already holds the raw source text regardless
// of how it was quoted, so a single parse of the override stream carries
// both the Literal dialect (Node.Value) and the raw material for the
// Typed dialect (resolveScalar(Node.Value), re-derived independently of
// whatever Tag the initial parse assigned — exactly the trick spec.md's
// design notes describe as the single-parse alternative).
package yamldoc

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedMerge is returned when the recursion reaches a node that is
// neither a mapping nor a sequence (scalars never recurse; any other kind
// is a bug in the caller).
var ErrUnsupportedMerge = errors.New("unsupported node kind for merge")

const (
	sentinelDelete = "~"
	sentinelKeep   = ""
)

// Merge merges src against overrides, one document at a time by position.
// A shorter overrides stream leaves trailing source documents untouched;
// an empty document in overrides (a bare "---" with nothing until the
// next separator) leaves the matching source document untouched too.
func Merge(src, overrides []*yaml.Node) ([]*yaml.Node, error) {
	out := make([]*yaml.Node, len(src))
	for i, doc := range src {
		if i >= len(overrides) {
			out[i] = doc
			continue
		}
		merged, err := mergeNode(UnwrapDocument(doc), UnwrapDocument(overrides[i]))
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out[i] = WrapDocument(merged)
	}
	return out, nil
}

// UnwrapDocument descends through the DocumentNode yaml.Node produces when
// decoding a stream to the single content node it wraps. nil is returned
// unchanged so callers can treat a missing override document as "no
// override".
func UnwrapDocument(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		return n.Content[0]
	}
	return n
}

func WrapDocument(n *yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{n}}
}

// mergeNode dispatches on the *source* node's kind.
func mergeNode(src, override *yaml.Node) (*yaml.Node, error) {
	if override == nil || isEmptyOverrideDoc(override) {
		return cloneNode(src), nil
	}

	switch src.Kind {
	case yaml.MappingNode:
		return mergeMapping(src, override)
	case yaml.SequenceNode:
		return mergeSequence(src, override)
	case yaml.ScalarNode, yaml.AliasNode:
		return nil, fmt.Errorf("%w: cannot merge into scalar node at line %d", ErrUnsupportedMerge, src.Line)
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrUnsupportedMerge, src.Kind)
	}
}

// isEmptyOverrideDoc reports whether a document in the override stream is
// the "no changes" placeholder (an empty YAML document, decoded as a
// !!null scalar with empty text).
func isEmptyOverrideDoc(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null" && n.Value == ""
}

func isScalar(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.ScalarNode
}

func isLiteralString(n *yaml.Node, want string) bool {
	return isScalar(n) && n.Value == want
}

// isTypedScalarReplacement reports whether this override position is a
// plain replacement value (bool/number/string), as opposed to a sentinel
// or a container to recurse into.
func isTypedScalarReplacement(override *yaml.Node) bool {
	return isScalar(override) && !isLiteralString(override, sentinelDelete) && !isLiteralString(override, sentinelKeep)
}

// typedReplacement re-resolves an override scalar's raw text into its
// "typed" node, ignoring whatever Tag the override's own parse assigned —
// this is what lets `replicas: "3"` (quoted, so the override file itself
// parses it as !!str) still merge in as the integer 3.
func typedReplacement(override *yaml.Node) *yaml.Node {
	tag, value := resolveScalar(override.Value)
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func mergeMapping(src, override *yaml.Node) (*yaml.Node, error) {
	result := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Style: src.Style}

	consumed := map[string]bool{}

	overridePairs := mappingPairs(override)
	srcPairs := mappingPairs(src)

	srcByKey := map[string]*yaml.Node{}
	for _, p := range srcPairs {
		srcByKey[p.key.Value] = p.value
	}

	for _, p := range overridePairs {
		key := p.key
		overrideVal := p.value
		consumed[key.Value] = true

		switch {
		case isLiteralString(overrideVal, sentinelDelete):
			// delete: omit entirely
		case isLiteralString(overrideVal, sentinelKeep):
			if sv, ok := srcByKey[key.Value]; ok {
				appendPair(result, key, cloneNode(sv))
			}
		case isTypedScalarReplacement(overrideVal):
			appendPair(result, key, typedReplacement(overrideVal))
		default:
			sv, exists := srcByKey[key.Value]
			var base *yaml.Node
			if !exists {
				base = emptyContainerLike(overrideVal)
			} else {
				base = sv
			}
			merged, err := mergeNode(base, overrideVal)
			if err != nil {
				return nil, err
			}
			appendPair(result, key, merged)
		}
	}

	for _, p := range srcPairs {
		if consumed[p.key.Value] {
			continue
		}
		appendPair(result, cloneNode(p.key), cloneNode(p.value))
	}

	return result, nil
}

type pair struct {
	key   *yaml.Node
	value *yaml.Node
}

func mappingPairs(n *yaml.Node) []pair {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	out := make([]pair, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out = append(out, pair{key: n.Content[i], value: n.Content[i+1]})
	}
	return out
}

func appendPair(m *yaml.Node, key, value *yaml.Node) {
	m.Content = append(m.Content, key, value)
}

func mergeSequence(src, override *yaml.Node) (*yaml.Node, error) {
	result := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: src.Style}

	srcItems := src.Content
	overrideItems := sequenceItems(override)

	for idx, overrideVal := range overrideItems {
		if idx >= len(srcItems) {
			if isScalar(overrideVal) {
				result.Content = append(result.Content, typedReplacement(overrideVal))
			} else {
				empty := emptyContainerLike(overrideVal)
				merged, err := mergeNode(empty, overrideVal)
				if err != nil {
					return nil, err
				}
				result.Content = append(result.Content, merged)
			}
			continue
		}

		switch {
		case isLiteralString(overrideVal, sentinelDelete):
			// skip this position
		case isLiteralString(overrideVal, sentinelKeep):
			result.Content = append(result.Content, cloneNode(srcItems[idx]))
		case isTypedScalarReplacement(overrideVal):
			result.Content = append(result.Content, typedReplacement(overrideVal))
		default:
			merged, err := mergeNode(srcItems[idx], overrideVal)
			if err != nil {
				return nil, err
			}
			result.Content = append(result.Content, merged)
		}
	}

	if len(srcItems) > len(overrideItems) {
		for _, item := range srcItems[len(overrideItems):] {
			result.Content = append(result.Content, cloneNode(item))
		}
	}

	return result, nil
}

func sequenceItems(n *yaml.Node) []*yaml.Node {
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	return n.Content
}

// emptyContainerLike builds the zero-value mapping/sequence matching the
// shape of an override node, used when the source has no corresponding
// key/index to recurse into ("added values" in spec.md §4.2).
func emptyContainerLike(shape *yaml.Node) *yaml.Node {
	switch shape.Kind {
	case yaml.MappingNode:
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	case yaml.SequenceNode:
		return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}
	}
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}
	}
	clone := *n
	clone.Content = nil
	for _, c := range n.Content {
		clone.Content = append(clone.Content, cloneNode(c))
	}
	return &clone
}
