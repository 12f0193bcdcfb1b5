package ops

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/s3http"
)

const (
	SignatureAlgorithm = "AWS4-HMAC-SHA256"
	MaxExpiresSeconds  = 604800 // 7 days
	DateTimeFormat     = "20060102T150405Z"
	DateFormat         = "20060102"

	serviceName = "s3"

	UnsignedPayload  = "UNSIGNED-PAYLOAD"
	StreamingPayload = "STREAMING-AWS4-HMAC-SHA256-PAYLOAD"

	emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

// signature holds the parsed authentication parameters of a signed request.
type signature struct {
	accessKey     string
	dateStamp     string
	region        string
	service       string
	requestTime   time.Time
	expires       int
	signedHeaders []string
	signature     string
	presigned     bool
}

type cachedKey struct {
	secret string
	key    []byte
}

// verifier checks AWS Signature V4 header and presigned query authentication.
type verifier struct {
	region  string
	maxSkew time.Duration
	now     func() time.Time
	keys    *lru.Cache[string, cachedKey]
}

func newVerifier(region string, maxSkew time.Duration, cacheSize int, now func() time.Time) (*verifier, error) {
	keys, err := lru.New[string, cachedKey](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("new verifier: %w", err)
	}
	return &verifier{region: region, maxSkew: maxSkew, now: now, keys: keys}, nil
}

// isSigned reports whether the request carries any form of SigV4 authentication.
func isSigned(req *s3http.Request) bool {
	if strings.HasPrefix(req.Header.Get("Authorization"), "AWS") {
		return true
	}
	return req.Query().Get("X-Amz-Algorithm") != ""
}

// verify authenticates req and returns the caller's credentials together with
// the payload hash the body must match (empty when the payload is unsigned).
func (v *verifier) verify(ctx context.Context, auth bucketry.Auth, req *s3http.Request) (*bucketry.Credentials, string, error) {
	query := req.Query()

	var (
		sig *signature
		err error
	)
	if authz := req.Header.Get("Authorization"); authz != "" {
		sig, err = v.parseHeader(authz, req.Header)
	} else {
		sig, err = v.parseQuery(query)
	}
	if err != nil {
		return nil, "", err
	}

	if err := v.validate(sig); err != nil {
		return nil, "", err
	}

	secretKey, err := auth.SecretKey(ctx, sig.accessKey)
	if err != nil {
		if errors.Is(err, bucketry.ErrUnauthorized) {
			return nil, "", bucketry.NewError(bucketry.ErrCodeInvalidAccessKeyID).WithCause(err)
		}
		return nil, "", fmt.Errorf("lookup secret key: %w", err)
	}

	payloadHash := UnsignedPayload
	if !sig.presigned {
		payloadHash = req.Header.Get("X-Amz-Content-Sha256")
		if payloadHash == "" {
			return nil, "", bucketry.Errorf(bucketry.ErrCodeMissingSecurityHeader, "Your request was missing a required header: x-amz-content-sha256")
		}
	} else if h := req.Header.Get("X-Amz-Content-Sha256"); h != "" {
		payloadHash = h
	}

	switch {
	case payloadHash == UnsignedPayload:
	case payloadHash == StreamingPayload:
		return nil, "", bucketry.Errorf(bucketry.ErrCodeNotImplemented, "Chunked payload signing is not supported")
	case !isHexSHA256(payloadHash):
		return nil, "", bucketry.Errorf(bucketry.ErrCodeInvalidArgument, "x-amz-content-sha256 must be UNSIGNED-PAYLOAD or a SHA256 hex digest")
	}

	canonicalQuery := query
	if sig.presigned {
		canonicalQuery = make(url.Values, len(query))
		for k, vals := range query {
			if k != "X-Amz-Signature" {
				canonicalQuery[k] = vals
			}
		}
	}

	canonicalRequest := buildCanonicalRequest(req, canonicalQuery, sig.signedHeaders, payloadHash)
	credentialScope := fmt.Sprintf("%s/%s/%s/aws4_request", sig.dateStamp, sig.region, sig.service)
	stringToSign := buildStringToSign(sig.requestTime, credentialScope, canonicalRequest)

	signingKey := v.signingKey(secretKey, sig)
	expected := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

	if !hmac.Equal([]byte(expected), []byte(sig.signature)) {
		return nil, "", bucketry.NewError(bucketry.ErrCodeSignatureDoesNotMatch)
	}

	if payloadHash == UnsignedPayload {
		payloadHash = ""
	}
	return &bucketry.Credentials{AccessKey: sig.accessKey}, payloadHash, nil
}

func (v *verifier) parseHeader(authz string, header http.Header) (*signature, error) {
	algorithm, rest, ok := strings.Cut(authz, " ")
	if !ok || algorithm != SignatureAlgorithm {
		return nil, bucketry.Errorf(bucketry.ErrCodeInvalidArgument, "Unsupported authorization type")
	}

	var credential, signedHeaders, sigValue string
	for _, part := range strings.Split(rest, ",") {
		k, val, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "Credential":
			credential = val
		case "SignedHeaders":
			signedHeaders = val
		case "Signature":
			sigValue = val
		}
	}
	if credential == "" || signedHeaders == "" || sigValue == "" {
		return nil, bucketry.Errorf(bucketry.ErrCodeInvalidArgument, "Authorization header is malformed")
	}

	amzDate := header.Get("X-Amz-Date")
	var requestTime time.Time
	var err error
	if amzDate != "" {
		requestTime, err = time.Parse(DateTimeFormat, amzDate)
	} else if date := header.Get("Date"); date != "" {
		requestTime, err = http.ParseTime(date)
	} else {
		return nil, bucketry.Errorf(bucketry.ErrCodeAccessDenied, "AWS authentication requires a valid Date or x-amz-date header")
	}
	if err != nil {
		return nil, bucketry.Errorf(bucketry.ErrCodeAccessDenied, "AWS authentication requires a valid Date or x-amz-date header")
	}

	sig := &signature{
		requestTime:   requestTime.UTC(),
		signedHeaders: strings.Split(signedHeaders, ";"),
		signature:     sigValue,
	}
	if err := parseCredential(credential, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

func (v *verifier) parseQuery(query url.Values) (*signature, error) {
	amzAlgorithm := query.Get("X-Amz-Algorithm")
	amzCredential := query.Get("X-Amz-Credential")
	amzDate := query.Get("X-Amz-Date")
	amzExpires := query.Get("X-Amz-Expires")
	amzSignedHeaders := query.Get("X-Amz-SignedHeaders")
	amzSignature := query.Get("X-Amz-Signature")

	if amzAlgorithm == "" || amzCredential == "" || amzDate == "" ||
		amzExpires == "" || amzSignedHeaders == "" || amzSignature == "" {
		return nil, bucketry.Errorf(bucketry.ErrCodeAccessDenied, "Query-string authentication requires the X-Amz-Algorithm, X-Amz-Credential, X-Amz-Signature, X-Amz-Date, X-Amz-SignedHeaders, and X-Amz-Expires parameters.")
	}

	if amzAlgorithm != SignatureAlgorithm {
		return nil, bucketry.Errorf(bucketry.ErrCodeInvalidArgument, "X-Amz-Algorithm only supports %q", SignatureAlgorithm)
	}

	requestTime, err := time.Parse(DateTimeFormat, amzDate)
	if err != nil {
		return nil, bucketry.Errorf(bucketry.ErrCodeAccessDenied, "X-Amz-Date must be in the ISO8601 Long Format \"yyyyMMdd'T'HHmmss'Z'\"")
	}

	expires, err := strconv.Atoi(amzExpires)
	if err != nil || expires <= 0 || expires > MaxExpiresSeconds {
		return nil, bucketry.Errorf(bucketry.ErrCodeAuthorizationQueryParametersError, "X-Amz-Expires must be between 1 and %d seconds", MaxExpiresSeconds)
	}

	sig := &signature{
		requestTime:   requestTime,
		expires:       expires,
		signedHeaders: strings.Split(amzSignedHeaders, ";"),
		signature:     amzSignature,
		presigned:     true,
	}
	if err := parseCredential(amzCredential, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

func parseCredential(credential string, sig *signature) error {
	credParts := strings.Split(credential, "/")
	if len(credParts) != 5 || credParts[0] == "" {
		return bucketry.Errorf(bucketry.ErrCodeInvalidArgument, "Credential is malformed")
	}

	if credParts[4] != "aws4_request" {
		return bucketry.Errorf(bucketry.ErrCodeInvalidArgument, "Credential should be scoped with a valid terminator: 'aws4_request'")
	}

	sig.accessKey = credParts[0]
	sig.dateStamp = credParts[1]
	sig.region = credParts[2]
	sig.service = credParts[3]
	return nil
}

func (v *verifier) validate(sig *signature) error {
	now := v.now().UTC()

	if sig.presigned {
		if now.After(sig.requestTime.Add(time.Duration(sig.expires) * time.Second)) {
			return bucketry.Errorf(bucketry.ErrCodeAccessDenied, "Request has expired")
		}
		if sig.requestTime.Sub(now) > v.maxSkew {
			return bucketry.Errorf(bucketry.ErrCodeAccessDenied, "Request is not valid yet")
		}
	} else {
		skew := now.Sub(sig.requestTime)
		if skew < 0 {
			skew = -skew
		}
		if skew > v.maxSkew {
			return bucketry.NewError(bucketry.ErrCodeRequestTimeTooSkewed)
		}
	}

	if sig.dateStamp != sig.requestTime.Format(DateFormat) {
		return bucketry.Errorf(bucketry.ErrCodeSignatureDoesNotMatch, "Credential date does not match the request date")
	}

	if sig.region != v.region {
		return bucketry.Errorf(bucketry.ErrCodeAuthorizationHeaderMalformed, "the region '%s' is wrong; expecting '%s'", sig.region, v.region)
	}

	if sig.service != serviceName {
		return bucketry.Errorf(bucketry.ErrCodeAuthorizationHeaderMalformed, "the service '%s' is wrong; expecting '%s'", sig.service, serviceName)
	}

	if !slices.Contains(sig.signedHeaders, "host") {
		return bucketry.Errorf(bucketry.ErrCodeAccessDenied, "The host header must be signed")
	}

	return nil
}

func (v *verifier) signingKey(secretKey string, sig *signature) []byte {
	cacheKey := sig.accessKey + "/" + sig.dateStamp + "/" + sig.region + "/" + sig.service
	if cached, ok := v.keys.Get(cacheKey); ok && cached.secret == secretKey {
		return cached.key
	}

	key := deriveSigningKey(secretKey, sig.dateStamp, sig.region, sig.service)
	v.keys.Add(cacheKey, cachedKey{secret: secretKey, key: key})
	return key
}

func buildCanonicalRequest(req *s3http.Request, query url.Values, signedHeaders []string, payloadHash string) string {
	return strings.Join([]string{
		req.Method,
		uriEncode(req.Path(), false),
		buildCanonicalQueryString(query),
		buildCanonicalHeaders(req, signedHeaders),
		strings.Join(signedHeaders, ";"),
		payloadHash,
	}, "\n")
}

// buildCanonicalHeaders builds the canonical headers string from the signed headers list.
// Headers are formatted as "name:value\n" in the order they were signed.
func buildCanonicalHeaders(req *s3http.Request, signedHeaders []string) string {
	var result strings.Builder
	for _, name := range signedHeaders {
		var value string
		switch name {
		case "host":
			value = req.Host
		case "content-length":
			value = req.Header.Get("Content-Length")
			if value == "" && req.ContentLength >= 0 {
				value = strconv.FormatInt(req.ContentLength, 10)
			}
		default:
			values := req.Header.Values(name)
			trimmed := make([]string, len(values))
			for i, val := range values {
				trimmed[i] = collapseSpaces(val)
			}
			value = strings.Join(trimmed, ",")
		}
		result.WriteString(name)
		result.WriteString(":")
		result.WriteString(value)
		result.WriteString("\n")
	}
	return result.String()
}

func buildCanonicalQueryString(query url.Values) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var parts []string
	for _, k := range keys {
		values := slices.Clone(query[k])
		slices.Sort(values)
		for _, val := range values {
			parts = append(parts, uriEncode(k, true)+"="+uriEncode(val, true))
		}
	}
	return strings.Join(parts, "&")
}

func buildStringToSign(requestTime time.Time, credentialScope, canonicalRequest string) string {
	hashedCanonicalRequest := sha256Hash(canonicalRequest)
	return fmt.Sprintf("%s\n%s\n%s\n%s",
		SignatureAlgorithm,
		requestTime.Format(DateTimeFormat),
		credentialScope,
		hashedCanonicalRequest,
	)
}

func deriveSigningKey(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	kSigning := hmacSHA256(kService, []byte("aws4_request"))
	return kSigning
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func sha256Hash(data string) string {
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}

// uriEncode applies the SigV4 URI encoding: every byte except the unreserved
// characters A-Z a-z 0-9 - _ . ~ is percent-encoded. A slash is kept as is
// unless encodeSlash is set.
func uriEncode(s string, encodeSlash bool) string {
	const hexDigits = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		case c == '/' && !encodeSlash:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		}
	}
	return b.String()
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isHexSHA256(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
