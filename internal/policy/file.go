package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a permission document from a YAML or JSON file and compiles
// it. The file is parsed through the yaml node tree rather than into Go maps
// so rule order survives, matching the wire decode. JSON is a subset of YAML,
// so both formats take the same path.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	doc, err := documentFromNode(&root)
	if err != nil {
		return nil, err
	}
	return doc.Compile(), nil
}

func documentFromNode(root *yaml.Node) (Document, error) {
	var doc Document
	node := root
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return doc, fmt.Errorf("%w: document is empty", ErrMalformed)
		}
		node = resolved(node.Content[0])
	}
	if node.Kind == 0 || node.Tag == "!!null" {
		return doc, fmt.Errorf("%w: document is empty", ErrMalformed)
	}
	if node.Kind != yaml.MappingNode {
		return doc, fmt.Errorf("%w: document must be a mapping", ErrMalformed)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], resolved(node.Content[i+1])
		var rs *RuleSet
		switch strings.ToLower(key.Value) {
		case "allow":
			rs = &doc.Allow
		case "deny":
			rs = &doc.Deny
		default:
			continue
		}
		if err := ruleSetFromNode(rs, value); err != nil {
			return doc, err
		}
	}
	return doc, nil
}

func ruleSetFromNode(rs *RuleSet, n *yaml.Node) error {
	if n.Tag == "!!null" {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: rules must be a mapping of action keys", ErrMalformed)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		action, value := n.Content[i], resolved(n.Content[i+1])
		if value.Kind != yaml.SequenceNode {
			return fmt.Errorf("%w: tables for action %q must be a list of strings", ErrMalformed, action.Value)
		}
		tables := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			item = resolved(item)
			if item.Kind != yaml.ScalarNode || item.Tag == "!!null" {
				return fmt.Errorf("%w: tables for action %q must be a list of strings", ErrMalformed, action.Value)
			}
			tables = append(tables, item.Value)
		}
		rs.put(action.Value, tables)
	}
	return nil
}

func resolved(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		return n.Alias
	}
	return n
}
