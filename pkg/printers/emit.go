package printers

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
	FormatYAML   = "yaml"
)

// Formats lists the accepted output formats.
func Formats() []string {
	return []string{FormatPretty, FormatJSON, FormatYAML}
}

// ParseFormat normalizes raw. Empty is FormatPretty.
func ParseFormat(raw string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(raw)); f {
	case "":
		return FormatPretty, nil
	case FormatPretty, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q, want one of %s", raw, strings.Join(Formats(), ", "))
	}
}

// Emit writes v as JSON or YAML, or calls pretty for the terminal format.
func (pp *PrettyPrint) Emit(v any, pretty func()) error {
	switch pp.Format {
	case FormatJSON:
		enc := json.NewEncoder(pp.out())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		b, err := ToYAML(v)
		if err != nil {
			return err
		}
		_, err = pp.out().Write(b)
		return err
	default:
		pretty()
		return nil
	}
}

// ToYAML renders v as block-style YAML keyed by its JSON field names.
func ToYAML(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	// JSON is YAML; decoding into a node keeps field order.
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return nil, err
	}
	blockStyle(&node)
	return yaml.Marshal(&node)
}

func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" {
		n.Style &^= yaml.DoubleQuotedStyle
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}
