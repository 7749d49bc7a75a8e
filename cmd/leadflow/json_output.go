package main

import (
	"encoding/json"
	"io"
)

// writeJSON prints v as indented JSON. HTML escaping is off so addresses,
// URLs and payload text stay readable.
func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
