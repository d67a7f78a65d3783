// Package version holds the pure identity and versioning rules of the
// registry: id generation, semver arithmetic, reference parsing and
// version-chain reconstruction. It performs no I/O.
package version

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const assetHashLength = 10

// ComponentID returns a new random component id. Component ids are short
// opaque tokens; content-stability is provided at the version level.
func ComponentID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")

	return "comp-" + raw[:12]
}

// VersionID derives the deterministic id of a published version.
func VersionID(componentID string, versionNumber int) string {
	return fmt.Sprintf("%s-v%d", componentID, versionNumber)
}

// AssetID derives a deterministic, collision-resistant id for the flat asset
// model: identical (name, version, content) tuples always map to the same id.
func AssetID(canonicalName string, versionNumber int, content []byte) string {
	return fmt.Sprintf(
		"%s-v%d-%s",
		Slugify(canonicalName),
		versionNumber,
		ContentHash(content)[:assetHashLength],
	)
}

// ContentHash returns the hex-encoded SHA256 of content.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)

	return hex.EncodeToString(sum[:])
}

// Slugify lowercases a canonical name and squashes every run of
// non-alphanumeric characters into a single dash.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true // suppress a leading dash

	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	return strings.TrimRight(b.String(), "-")
}
