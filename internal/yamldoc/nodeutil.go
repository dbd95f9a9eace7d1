package yamldoc

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

// Get walks a chain of mapping keys starting at n, returning the node at
// the end of the chain or nil if any key along the way is absent or the
// node at that point isn't a mapping.
func Get(n *yaml.Node, keys ...string) *yaml.Node {
	cur := n
	for _, key := range keys {
		if cur == nil || cur.Kind != yaml.MappingNode {
			return nil
		}
		cur = mappingValue(cur, key)
	}
	return cur
}

// GetString is a convenience wrapper around Get for the common case of
// reading a scalar string value; ok is false if the path doesn't resolve
// to a scalar.
func GetString(n *yaml.Node, keys ...string) (string, bool) {
	v := Get(n, keys...)
	if v == nil || v.Kind != yaml.ScalarNode {
		return "", false
	}
	return v.Value, true
}

// Set walks (creating intermediate mappings as needed) to the mapping
// named by keys[:len(keys)-1] and sets keys[len(keys)-1] to value,
// replacing any existing entry in place or appending a new one.
func Set(n *yaml.Node, value *yaml.Node, keys ...string) {
	if len(keys) == 0 {
		return
	}
	cur := n
	for _, key := range keys[:len(keys)-1] {
		next := mappingValue(cur, key)
		if next == nil {
			next = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			appendPair(cur, ScalarString(key), next)
		}
		cur = next
	}
	last := keys[len(keys)-1]
	if existing := mappingValue(cur, last); existing != nil {
		*existing = *value
		return
	}
	appendPair(cur, ScalarString(last), value)
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// FirstMappingPair returns the first key/value pair of a mapping node in
// source order, matching the iteration order a Python dict would give.
func FirstMappingPair(n *yaml.Node) (key, value *yaml.Node, ok bool) {
	if n == nil || n.Kind != yaml.MappingNode || len(n.Content) < 2 {
		return nil, nil, false
	}
	return n.Content[0], n.Content[1], true
}

// ScalarString builds a plain string scalar node.
func ScalarString(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// ScalarInt builds an integer scalar node.
func ScalarInt(i int32) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(int64(i), 10)}
}
