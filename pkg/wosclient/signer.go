/**
 * @description
 * Request signing for the gift-code API. Every POST body is a form-encoded
 * payload whose fields are sorted lexicographically and digested together
 * with a shared secret; the upstream silently rejects any payload whose
 * signature does not match byte-for-byte.
 */
package wosclient

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// SignPayload canonicalizes the field map and appends the signature field.
// Fields are sorted by name, joined as k=v pairs with "&", and the signature
// is the MD5 hex digest of that form string concatenated with the secret.
// The result is the exact wire body: "sign=<hex>&k1=v1&k2=v2...".
func SignPayload(fields map[string]string, secret string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}
	form := strings.Join(parts, "&")

	sum := md5.Sum([]byte(form + secret))
	return fmt.Sprintf("sign=%s&%s", hex.EncodeToString(sum[:]), form)
}
