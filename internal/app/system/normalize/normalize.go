// internal/app/system/normalize/normalize.go
package normalize

import (
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
)

// Email trims surrounding space and lower-cases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding space and collapses inner runs of whitespace.
// Case is preserved.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NameCI returns the case/diacritic-insensitive form used for sorting.
func NameCI(s string) string {
	return text.Fold(Name(s))
}

// Plate upper-cases a vehicle registration and collapses inner whitespace.
func Plate(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// Code trims a scanned or typed journey code. Scanners sometimes append a
// newline; some users paste the code with surrounding quotes.
func Code(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
