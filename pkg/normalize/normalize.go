// Package normalize provides field normalization for listing comparison.
// All similarity scorers operate on normalized views; raw listing fields are
// never compared directly.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("collapse_whitespace", CollapseWhitespace)
	Register("remove_punctuation", RemovePunctuation)
	Register("ntext", Text)
	Register("naddress", Address)
	Register("nzip", ZipCode)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value; unknown names pass through.
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

var spaceRe = regexp.MustCompile(`\s+`)

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// CollapseWhitespace replaces runs of whitespace with a single space
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// RemovePunctuation removes all punctuation characters
func RemovePunctuation(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsPunct(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Text normalizes free text for comparison: lowercase, strip punctuation,
// collapse whitespace. Titles and descriptions both go through this.
func Text(s string) string {
	s = strings.ToLower(s)

	var result strings.Builder
	prevSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			result.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			if !prevSpace && result.Len() > 0 {
				result.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimSpace(result.String())
}

// Address normalizes an address string for comparison. Common street and
// direction words are abbreviated so "Hauptstrasse 5, Apartment 2" and
// "hauptstr. 5 apt 2" compare close.
func Address(s string) string {
	s = strings.ToLower(s)

	replacements := []struct{ full, abbr string }{
		{"strasse", "str"},
		{"straße", "str"},
		{" street", " st"},
		{" avenue", " ave"},
		{" boulevard", " blvd"},
		{" drive", " dr"},
		{" road", " rd"},
		{" lane", " ln"},
		{" court", " ct"},
		{" place", " pl"},
		{" apartment", " apt"},
		{" suite", " ste"},
		{" north", " n"},
		{" south", " s"},
		{" east", " e"},
		{" west", " w"},
	}

	for _, r := range replacements {
		s = strings.ReplaceAll(s, r.full, r.abbr)
	}

	var result strings.Builder
	prevSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			result.WriteRune(r)
			prevSpace = false
		default:
			if !prevSpace && result.Len() > 0 {
				result.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimSpace(result.String())
}

// ZipCode keeps only digit characters of a postal code
func ZipCode(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
