package invoker

import (
	"net/url"

	"flux-tools/internal/domain/entity"
)

// Options describes a single outbound invocation.
type Options struct {
	// Method is the HTTP method. One of GET, POST, PUT, DELETE.
	Method string

	// Body is the JSON-serializable request body. Ignored for GET requests.
	Body any

	// Headers are additional request headers. Content-Type and X-Request-Id
	// are set by the client.
	Headers map[string]string
}

// allowedMethods is the closed set of methods the invocation contract permits.
var allowedMethods = map[string]struct{}{
	"GET":    {},
	"POST":   {},
	"PUT":    {},
	"DELETE": {},
}

// validateRequest checks the target URL and options before any network
// activity. Violations are caller bugs and surface as validation errors,
// which are never retried.
func validateRequest(target string, opts Options) error {
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return entity.NewValidationError(entity.CodeValidation,
			"target is not a well-formed absolute URL", err)
	}
	if _, ok := allowedMethods[opts.Method]; !ok {
		return entity.NewValidationError(entity.CodeValidation,
			"method must be one of GET, POST, PUT, DELETE", nil)
	}
	return nil
}
