// Package extract turns raw HTML into cleaned plain text.
//
// Explicit CSS selectors are tried first, in order. If none of them yields
// text, the extractor strips boilerplate from the whole document and probes
// a fixed list of common content containers before falling back to the body.
package extract
