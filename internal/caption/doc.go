// Package caption composes bounded, plain-text captions for outbound posts.
//
// A caption is built from free text, from a race result record, or from
// both (free text first, separated by a blank line). The result never
// exceeds MaxRunes; longer captions are cut and end with " ...".
//
// Records are loosely structured JSON or YAML documents. Every logical
// field is read through an ordered alias list and the first present alias
// wins. Missing or wrong-typed values count as absent and never fail the
// composition.
package caption
