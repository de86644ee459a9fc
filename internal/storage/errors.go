package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"

	"mcs-go/internal/mcs"
)

// Provider error codes that mean the credentials or permissions are wrong.
var unauthorizedCodes = map[string]bool{
	"AccessDenied":          true,
	"AccountProblem":        true,
	"ExpiredToken":          true,
	"Forbidden":             true,
	"InvalidAccessKeyId":    true,
	"InvalidToken":          true,
	"SignatureDoesNotMatch": true,
	"Unauthorized":          true,
}

var notFoundCodes = map[string]bool{
	"NoSuchBucket": true,
	"NoSuchKey":    true,
	"NotFound":     true,
}

var transientCodes = map[string]bool{
	"InternalError":      true,
	"RequestTimeout":     true,
	"ServiceUnavailable": true,
	"SlowDown":           true,
	"Throttling":         true,
	"TooManyRequests":    true,
}

// classify maps a provider error code and HTTP status onto the mcs error
// sentinels. A zero status or empty code is ignored.
func classify(err error, code string, status int) error {
	switch {
	case unauthorizedCodes[code] || status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %w", mcs.ErrUnauthorized, err)
	case notFoundCodes[code] || status == http.StatusNotFound:
		return fmt.Errorf("%w: %w", mcs.ErrNotFound, err)
	case transientCodes[code] || status == http.StatusTooManyRequests || status >= 500:
		return mcs.Transient(err)
	}
	return nil
}

// classifyNetwork marks connection-level failures as transient.
func classifyNetwork(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return mcs.Transient(err)
	}
	return err
}

// classifyS3 translates aws-sdk-go-v2 errors.
func classifyS3(err error) error {
	if err == nil {
		return nil
	}

	var code string
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.ErrorCode()
	}
	var status int
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}

	if c := classify(err, code, status); c != nil {
		return c
	}
	return classifyNetwork(err)
}
