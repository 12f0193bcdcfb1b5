package bucketry

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/sagarc03/bucketry/s3http"
)

var (
	// ErrNoSuchBucket is returned when a bucket does not exist
	ErrNoSuchBucket = errors.New("no such bucket")
	// ErrNoSuchKey is returned when an object does not exist
	ErrNoSuchKey = errors.New("no such key")
	// ErrBucketExists is returned when creating a bucket that already exists
	ErrBucketExists = errors.New("bucket already exists")
	// ErrBucketNotEmpty is returned when deleting a bucket that still holds objects
	ErrBucketNotEmpty = errors.New("bucket not empty")
	// ErrInternal is returned when a component breaks its contract, such as a
	// dispatcher or route returning neither a response nor an error
	ErrInternal = errors.New("internal error")
	// ErrServiceClosed is returned by handles whose Service has been torn down
	ErrServiceClosed = errors.New("service closed")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when authentication fails
	ErrUnauthorized = errors.New("unauthorized")
)

// ErrorCode is an S3 error code.
type ErrorCode string

const (
	ErrCodeAccessDenied                      ErrorCode = "AccessDenied"
	ErrCodeAuthorizationHeaderMalformed      ErrorCode = "AuthorizationHeaderMalformed"
	ErrCodeAuthorizationQueryParametersError ErrorCode = "AuthorizationQueryParametersError"
	ErrCodeBadDigest                         ErrorCode = "BadDigest"
	ErrCodeBucketAlreadyOwnedByYou           ErrorCode = "BucketAlreadyOwnedByYou"
	ErrCodeBucketNotEmpty                    ErrorCode = "BucketNotEmpty"
	ErrCodeEntityTooLarge                    ErrorCode = "EntityTooLarge"
	ErrCodeInternalError                     ErrorCode = "InternalError"
	ErrCodeInvalidAccessKeyID                ErrorCode = "InvalidAccessKeyId"
	ErrCodeInvalidArgument                   ErrorCode = "InvalidArgument"
	ErrCodeInvalidBucketName                 ErrorCode = "InvalidBucketName"
	ErrCodeInvalidDigest                     ErrorCode = "InvalidDigest"
	ErrCodeInvalidRange                      ErrorCode = "InvalidRange"
	ErrCodeInvalidRequest                    ErrorCode = "InvalidRequest"
	ErrCodeKeyTooLong                        ErrorCode = "KeyTooLongError"
	ErrCodeMalformedXML                      ErrorCode = "MalformedXML"
	ErrCodeMethodNotAllowed                  ErrorCode = "MethodNotAllowed"
	ErrCodeMissingSecurityHeader             ErrorCode = "MissingSecurityHeader"
	ErrCodeNoSuchBucket                      ErrorCode = "NoSuchBucket"
	ErrCodeNoSuchKey                         ErrorCode = "NoSuchKey"
	ErrCodeNotImplemented                    ErrorCode = "NotImplemented"
	ErrCodePreconditionFailed                ErrorCode = "PreconditionFailed"
	ErrCodeRequestTimeTooSkewed              ErrorCode = "RequestTimeTooSkewed"
	ErrCodeRequestTimeout                    ErrorCode = "RequestTimeout"
	ErrCodeServiceUnavailable                ErrorCode = "ServiceUnavailable"
	ErrCodeSignatureDoesNotMatch             ErrorCode = "SignatureDoesNotMatch"
	ErrCodeXAmzContentSHA256Mismatch         ErrorCode = "XAmzContentSHA256Mismatch"
)

type codeInfo struct {
	status  int
	message string
}

var codes = map[ErrorCode]codeInfo{
	ErrCodeAccessDenied:                      {http.StatusForbidden, "Access Denied"},
	ErrCodeAuthorizationHeaderMalformed:      {http.StatusBadRequest, "The authorization header is malformed."},
	ErrCodeAuthorizationQueryParametersError: {http.StatusBadRequest, "Error parsing the X-Amz-Credential parameter."},
	ErrCodeBadDigest:                         {http.StatusBadRequest, "The Content-MD5 you specified did not match what we received."},
	ErrCodeBucketAlreadyOwnedByYou:           {http.StatusConflict, "Your previous request to create the named bucket succeeded and you already own it."},
	ErrCodeBucketNotEmpty:                    {http.StatusConflict, "The bucket you tried to delete is not empty."},
	ErrCodeEntityTooLarge:                    {http.StatusBadRequest, "Your proposed upload exceeds the maximum allowed object size."},
	ErrCodeInternalError:                     {http.StatusInternalServerError, "We encountered an internal error. Please try again."},
	ErrCodeInvalidAccessKeyID:                {http.StatusForbidden, "The AWS access key Id you provided does not exist in our records."},
	ErrCodeInvalidArgument:                   {http.StatusBadRequest, "Invalid Argument"},
	ErrCodeInvalidBucketName:                 {http.StatusBadRequest, "The specified bucket is not valid."},
	ErrCodeInvalidDigest:                     {http.StatusBadRequest, "The Content-MD5 you specified is not valid."},
	ErrCodeInvalidRange:                      {http.StatusRequestedRangeNotSatisfiable, "The requested range is not satisfiable"},
	ErrCodeInvalidRequest:                    {http.StatusBadRequest, "Invalid Request"},
	ErrCodeKeyTooLong:                        {http.StatusBadRequest, "Your key is too long"},
	ErrCodeMalformedXML:                      {http.StatusBadRequest, "The XML you provided was not well-formed or did not validate against our published schema."},
	ErrCodeMethodNotAllowed:                  {http.StatusMethodNotAllowed, "The specified method is not allowed against this resource."},
	ErrCodeMissingSecurityHeader:             {http.StatusBadRequest, "Your request is missing a required header."},
	ErrCodeNoSuchBucket:                      {http.StatusNotFound, "The specified bucket does not exist"},
	ErrCodeNoSuchKey:                         {http.StatusNotFound, "The specified key does not exist."},
	ErrCodeNotImplemented:                    {http.StatusNotImplemented, "A header you provided implies functionality that is not implemented"},
	ErrCodePreconditionFailed:                {http.StatusPreconditionFailed, "At least one of the pre-conditions you specified did not hold"},
	ErrCodeRequestTimeTooSkewed:              {http.StatusForbidden, "The difference between the request time and the server's time is too large."},
	ErrCodeRequestTimeout:                    {http.StatusBadRequest, "Your socket connection to the server was not read from or written to within the timeout period."},
	ErrCodeServiceUnavailable:                {http.StatusServiceUnavailable, "Service is unable to handle request."},
	ErrCodeSignatureDoesNotMatch:             {http.StatusForbidden, "The request signature we calculated does not match the signature you provided."},
	ErrCodeXAmzContentSHA256Mismatch:         {http.StatusBadRequest, "The provided 'x-amz-content-sha256' header does not match what was computed."},
}

// Status returns the HTTP status code for the error code.
func (c ErrorCode) Status() int {
	if info, ok := codes[c]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Message returns the default description for the error code.
func (c ErrorCode) Message() string {
	if info, ok := codes[c]; ok {
		return info.message
	}
	return string(c)
}

// Error is an S3 protocol error. It is what dispatch failures look like on
// the wire.
type Error struct {
	Code       ErrorCode
	Message    string
	Resource   string
	RequestID  string
	StatusCode int

	// Err is the underlying cause, if any. It is never sent to clients.
	Err error
}

// NewError returns an error for code with the code's default message and status.
func NewError(code ErrorCode) *Error {
	return &Error{Code: code, Message: code.Message(), StatusCode: code.Status()}
}

// Errorf returns an error for code with a custom message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), StatusCode: code.Status()}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

// WithResource returns a copy of e naming the resource the error applies to.
func (e *Error) WithResource(resource string) *Error {
	c := *e
	c.Resource = resource
	return &c
}

// WithRequestID returns a copy of e carrying the request id.
func (e *Error) WithRequestID(id string) *Error {
	c := *e
	c.RequestID = id
	return &c
}

func (e *Error) status() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	return e.Code.Status()
}

func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("code", string(e.Code)),
		slog.String("message", e.Message),
		slog.Int("status", e.status()),
	}
	if e.Resource != "" {
		attrs = append(attrs, slog.String("resource", e.Resource))
	}
	if e.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", e.RequestID))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("cause", e.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}

// AsError maps err onto an S3 error. Errors that already are *Error are
// returned as is; the storage sentinels map to their S3 codes and anything
// else becomes an InternalError.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}

	var s3err *Error
	if errors.As(err, &s3err) {
		return s3err
	}

	var code ErrorCode
	switch {
	case errors.Is(err, ErrNoSuchBucket):
		code = ErrCodeNoSuchBucket
	case errors.Is(err, ErrNoSuchKey):
		code = ErrCodeNoSuchKey
	case errors.Is(err, ErrBucketExists):
		code = ErrCodeBucketAlreadyOwnedByYou
	case errors.Is(err, ErrBucketNotEmpty):
		code = ErrCodeBucketNotEmpty
	case errors.Is(err, ErrInvalidInput):
		code = ErrCodeInvalidArgument
	case errors.Is(err, ErrUnauthorized):
		code = ErrCodeAccessDenied
	case errors.Is(err, context.DeadlineExceeded):
		code = ErrCodeRequestTimeout
	case errors.Is(err, ErrServiceClosed):
		code = ErrCodeServiceUnavailable
	case errors.Is(err, ErrInternal):
		code = ErrCodeInternalError
	default:
		code = ErrCodeInternalError
	}

	return NewError(code).WithCause(err)
}

type errorDocument struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource,omitempty"`
	RequestID string   `xml:"RequestId"`
}

// ErrorResponse renders err as an S3 XML error response. requestID is used
// when the error does not carry one already; if both are empty a fresh id is
// generated.
func ErrorResponse(err error, requestID string) *s3http.Response {
	e := AsError(err)
	if e == nil {
		e = NewError(ErrCodeInternalError)
	}

	id := e.RequestID
	if id == "" {
		id = requestID
	}
	if id == "" {
		id = uuid.NewString()
	}

	doc, marshalErr := xml.Marshal(errorDocument{
		Code:      string(e.Code),
		Message:   e.Message,
		Resource:  e.Resource,
		RequestID: id,
	})
	if marshalErr != nil {
		slog.Error("failed to encode error response", "err", marshalErr)
		doc = nil
	}

	res := s3http.XMLResponse(e.status(), append([]byte(xml.Header), doc...))
	res.Header.Set("x-amz-request-id", id)
	return res
}
