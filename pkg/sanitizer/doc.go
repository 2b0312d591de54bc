// Package sanitizer normalizes visitor-supplied identity data before it is
// matched or stored.
//
// Normalization includes:
//   - Phone numbers: parsed with libphonenumber and formatted as E.164
//   - Strings: whitespace collapsed and trimmed
//   - Names: case folded and stripped of diacritics for matching
//
// All normalization functions are idempotent.
package sanitizer
