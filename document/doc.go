// Package document decodes configuration files into the ordered mappings
// consumed by the tree package, and encodes them back.
//
// Supported formats:
//
//   - YAML (.yaml, .yml) and JSON (.json), decoded with github.com/goccy/go-yaml
//   - HCL (.hcl), decoded with github.com/hashicorp/hcl/v2
//
// Key order is preserved. Scalars become strings: numbers are rendered
// without an exponent, booleans as "true" or "false", and null as "".
// Sequences become mappings keyed "0", "1", ... so every document is a
// tree of string keys.
//
// HCL blocks nest under their type and labels:
//
//	db "primary" {
//	  host = "10.0.0.1"
//	}
//
// decodes to db -> primary -> host. Repeated blocks with the same path merge.
package document
