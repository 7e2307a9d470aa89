package handler

import "github.com/deppfellow/layered-api/internal/errs"

// Result is the result envelope. Exactly one of Body and Raw is used: Body is
// written as JSON, Raw as-is with ContentType. A zero Status is replaced by
// the endpoint's success status.
type Result struct {
	Status      int
	Body        any
	Raw         []byte
	ContentType string
}

// JSON returns a Result carrying a JSON payload.
func JSON(body any) Result {
	return Result{Body: body}
}

// Blob returns a Result carrying raw bytes.
func Blob(contentType string, data []byte) Result {
	return Result{Raw: data, ContentType: contentType}
}

// Empty returns a Result without a body.
func Empty() Result {
	return Result{}
}

// Error returns the descriptor of a failed Result.
func (r Result) Error() (errs.Descriptor, bool) {
	d, ok := r.Body.(errs.Descriptor)
	return d, ok
}

// HasBody reports whether the Result carries content to write.
func (r Result) HasBody() bool {
	return r.Body != nil || r.Raw != nil
}
