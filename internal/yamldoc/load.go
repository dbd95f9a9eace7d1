package yamldoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// DumpIndent is the indent width used everywhere this tool re-serializes
// YAML, matching the block style of the manifests it reads.
const DumpIndent = 2

// LoadStream decodes r as a sequence of YAML documents, returning one
// *yaml.Node (Kind == yaml.DocumentNode) per document in order. An empty
// document (a bare "---" with nothing before the next separator or EOF)
// decodes to a DocumentNode wrapping a null scalar, which Merge treats as
// "no override" for its aligned source document.
func LoadStream(r io.Reader) ([]*yaml.Node, error) {
	dec := yaml.NewDecoder(r)
	var docs []*yaml.Node
	for {
		var n yaml.Node
		err := dec.Decode(&n)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding yaml document %d: %w", len(docs), err)
		}
		doc := n
		docs = append(docs, &doc)
	}
	return docs, nil
}

// LoadBytes is a convenience wrapper around LoadStream for in-memory data.
func LoadBytes(data []byte) ([]*yaml.Node, error) {
	return LoadStream(bytes.NewReader(data))
}

// DumpStream re-serializes docs as a "---"-separated multi-document YAML
// stream, using a stable 2-space block indent regardless of the style the
// source document happened to use.
func DumpStream(w io.Writer, docs []*yaml.Node) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(DumpIndent)
	defer enc.Close()
	for i, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding document %d: %w", i, err)
		}
	}
	return nil
}

// DumpBytes is a convenience wrapper around DumpStream for in-memory data.
func DumpBytes(docs []*yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := DumpStream(&buf, docs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
