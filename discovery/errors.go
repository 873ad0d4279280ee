package discovery

import "github.com/phobologic/adaptive/internal/errs"

// Error types returned by discovery calls. Match categories with errors.Is
// against the sentinels, or inspect details with errors.As.
type (
	InvalidSignatureError = errs.InvalidSignatureError
	ParseError            = errs.ParseError
	NotFoundError         = errs.NotFoundError
	ValidationError       = errs.ValidationError
	TimeoutError          = errs.TimeoutError
	Code                  = errs.Code
)

var (
	ErrInvalidSignature = errs.ErrInvalidSignature
	ErrParse            = errs.ErrParse
	ErrNotFound         = errs.ErrNotFound
	ErrValidation       = errs.ErrValidation
	ErrTimeout          = errs.ErrTimeout
)

// CodeOf returns the stable code carried by err, or "".
func CodeOf(err error) Code { return errs.CodeOf(err) }
