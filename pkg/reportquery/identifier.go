package reportquery

import (
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
)

// MaxIdentifierLength is PostgreSQL's identifier length limit (NAMEDATALEN-1).
const MaxIdentifierLength = 63

// identifierPattern accepts only names that can never be reinterpreted as
// SQL syntax: no quotes, no semicolons, no comment markers, no whitespace.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier checks that name is a syntactically safe table, column
// or alias name and returns it quoted in PostgreSQL's double-quote
// convention, so it can never be read as anything but an identifier even if
// it collides with a reserved word.
func ValidateIdentifier(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("identifier must not be empty")
	}
	if len(name) > MaxIdentifierLength {
		return "", fmt.Errorf("identifier exceeds %d characters", MaxIdentifierLength)
	}
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("identifier %q contains invalid characters", name)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

// mustQuote quotes a name that has already passed ValidateIdentifier.
func mustQuote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
