// Package textutil provides the text helpers shared by intake, enrichment,
// generation, and rendering.
//
// The primary use cases are:
//   - Reducing HTML to readable text (goquery based)
//   - Collapsing whitespace and truncating on rune boundaries
//   - Sanitizing company names into filesystem-safe file stems
package textutil
