package kubernetes

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sort"
)

// Keys of the secret material generated for a workspace and preserved across deploys.
const (
	SigningKeyName = "JWT_PRIVATE_KEY"
	SessionKeyName = "SESSION_SECRET"
)

// GeneratedSecretKeys lists every key Compose expects in SecretMaterial.
var GeneratedSecretKeys = []string{SigningKeyName, SessionKeyName}

const tokenLength = 32

// SecretMaterial holds generated credentials keyed by environment variable name.
type SecretMaterial map[string]string

// Missing returns the generated keys that have no value, sorted.
func (m SecretMaterial) Missing() []string {
	var missing []string
	for _, k := range GeneratedSecretKeys {
		if m[k] == "" {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	return missing
}

// GenerateToken returns length random bytes encoded as unpadded base64url.
func GenerateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func generateToken() (string, error) { return GenerateToken(tokenLength) }

// ResolveSecretMaterial keeps the generated keys found in existing unless rotate is
// set, and fills every other generated key with a fresh token.
func ResolveSecretMaterial(existing map[string]string, rotate bool, generate func() (string, error)) (SecretMaterial, error) {
	if generate == nil {
		generate = generateToken
	}
	out := make(SecretMaterial, len(GeneratedSecretKeys))
	for _, k := range GeneratedSecretKeys {
		if v := existing[k]; v != "" && !rotate {
			out[k] = v
			continue
		}
		v, err := generate()
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// FreshSecretMaterial generates every key.
func FreshSecretMaterial() (SecretMaterial, error) {
	return ResolveSecretMaterial(nil, true, nil)
}
