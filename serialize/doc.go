// Package serialize writes modules back out, either as canonical nzsl source
// or as a compact binary encoding of the tree.
//
// WriteSource prints parsed or sanitized modules. Its output parses back to a
// module that prints identically:
//
//	text, err := serialize.WriteSource(module)
//
// Encode and Decode round-trip a module losslessly, including resolved types
// and declaration IDs, so a sanitized module can be cached and handed to a
// backend without sanitizing it again:
//
//	data, err := serialize.Encode(module)
//	module, err = serialize.Decode(data)
package serialize
