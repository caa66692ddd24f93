package auth

import "strings"

// HeaderAuthorization is the canonical name of the header carrying the
// bearer token.
const HeaderAuthorization = "Authorization"

const bearerPrefix = "Bearer "

// StripBearer removes an optional, case-insensitive "Bearer " prefix and
// surrounding whitespace from an Authorization header value. A value
// without the prefix is returned trimmed, since the prefix is optional.
func StripBearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) >= len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}
	return header
}
