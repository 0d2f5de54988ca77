// Package naming derives tool names and content ids for docsets.
package naming

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
)

const FunctionPrefix = "search_"

var (
	nonAlnum     = regexp.MustCompile(`[^a-z0-9]`)
	whitespace   = regexp.MustCompile(`\s+`)
	underscores  = regexp.MustCompile(`_{2,}`)
	ErrEmptyName = errors.New("name has no alphanumeric characters")
)

// NameToFunctionName turns a docset name into a tool function name such as
// "search_earnings_calls". Names without any [a-z0-9] yield the bare prefix.
// A name that already normalizes to a search_ name is returned as is, so the
// function is idempotent on its own output.
func NameToFunctionName(name string) string {
	s := strings.ToLower(name)
	s = nonAlnum.ReplaceAllString(s, "_")
	s = whitespace.ReplaceAllString(s, "_")
	s = underscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if strings.HasPrefix(s, FunctionPrefix) {
		return s
	}
	return FunctionPrefix + s
}

// FunctionName is NameToFunctionName that refuses names producing a bare prefix.
func FunctionName(name string) (string, error) {
	fn := NameToFunctionName(name)
	if fn == FunctionPrefix {
		return "", ErrEmptyName
	}
	return fn, nil
}

// ContentID is the md5 hex digest of text. Used for dedup, not security.
func ContentID(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
