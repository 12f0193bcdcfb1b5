package bucketry

import (
	"net"
	"strings"
	"unicode/utf8"
)

// MaxKeyLength is the longest object key accepted, in bytes.
const MaxKeyLength = 1024

// IsValidKey validates that an object key can be stored.
// It checks that the key:
//   - is not empty and at most MaxKeyLength bytes
//   - is valid UTF-8
//   - does not start or end with "/"
//   - does not contain "." or ".." segments, or "//" (empty segments)
//   - does not contain a backslash
//   - does not contain null bytes, control characters (< 0x20) or DEL (0x7f)
//
// Returns true if the key is valid, false otherwise.
func IsValidKey(k string) bool {
	if k == "" || len(k) > MaxKeyLength {
		return false
	}

	if !utf8.ValidString(k) {
		return false
	}

	if k[0] == '/' || strings.HasSuffix(k, "/") {
		return false
	}

	if strings.Contains(k, "//") || strings.ContainsRune(k, '\\') {
		return false
	}

	for _, seg := range strings.Split(k, "/") {
		if seg == "." || seg == ".." {
			return false
		}
	}

	for _, r := range k {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}

	return true
}

// IsValidBucketName checks a bucket name against the S3 naming rules:
// 3 to 63 characters of lowercase letters, digits, dots and hyphens,
// starting and ending with a letter or digit, no adjacent dots, and not
// formatted as an IP address.
func IsValidBucketName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}

	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '.' || c == '-':
			if i == 0 || i == len(name)-1 {
				return false
			}
		default:
			return false
		}
	}

	if strings.Contains(name, "..") || strings.Contains(name, ".-") || strings.Contains(name, "-.") {
		return false
	}

	if net.ParseIP(name) != nil {
		return false
	}

	return true
}
