// Package validation holds input checks shared by the HTTP handlers.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize caps request bodies at 1MB. Scanned content larger than
// that is rejected before it reaches any handler.
const MaxRequestSize = 1 << 20

// MaxIdentityLength bounds identity strings. Identities are wallet
// addresses or agent handles, never prose.
const MaxIdentityLength = 256

var (
	ethAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	identityRegex   = regexp.MustCompile(`^[a-zA-Z0-9@._:-]+$`)
)

// RequestSizeMiddleware rejects bodies larger than maxSize bytes.
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidEthAddress reports whether addr is 0x plus 40 hex chars.
func IsValidEthAddress(addr string) bool {
	return ethAddressRegex.MatchString(addr)
}

// IsValidIdentity reports whether s is a plausible identity key: bounded
// length, limited charset, no whitespace.
func IsValidIdentity(s string) bool {
	return s != "" && len(s) <= MaxIdentityLength && identityRegex.MatchString(s)
}

// SanitizeAddress lowercases an address and restores a missing 0x prefix.
func SanitizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if !strings.HasPrefix(addr, "0x") && len(addr) == 40 {
		addr = "0x" + addr
	}
	return addr
}

// SanitizeString trims, strips null bytes, and truncates to maxLen bytes.
func SanitizeString(s string, maxLen int) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\x00", "")
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
