package bucketry

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeContinuationToken encodes a listing position as an opaque token.
func EncodeContinuationToken(marker string) string {
	if marker == "" {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte(marker))
}

// DecodeContinuationToken decodes a token produced by EncodeContinuationToken.
func DecodeContinuationToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}

	decoded, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("decode continuation token: invalid encoding: %w", err)
	}

	if len(decoded) == 0 {
		return "", fmt.Errorf("decode continuation token: empty marker")
	}

	return string(decoded), nil
}

// EscapeLikePattern escapes special LIKE characters (%, _, \) to prevent SQL injection.
func EscapeLikePattern(pattern string) string {
	pattern = strings.ReplaceAll(pattern, `\`, `\\`)
	pattern = strings.ReplaceAll(pattern, `%`, `\%`)
	pattern = strings.ReplaceAll(pattern, `_`, `\_`)
	return pattern
}
