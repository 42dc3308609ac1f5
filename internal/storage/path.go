package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"strings"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

const schemaCacheDir = "schema-cache"

// BuildSchemaCacheKey names the object holding the schema cache of the
// database behind dsn. The DSN is hashed so credentials never reach the key.
func BuildSchemaCacheKey(dsn string) (string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", fmt.Errorf("dsn is required")
	}
	scheme, _, ok := strings.Cut(dsn, "://")
	if !ok {
		return "", fmt.Errorf("dsn has no scheme")
	}
	scheme = strings.ToLower(scheme)
	if err := validatePathComponent(scheme, "dsn scheme"); err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(dsn))
	return path.Join(schemaCacheDir, scheme, hex.EncodeToString(sum[:12])+".json"), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
