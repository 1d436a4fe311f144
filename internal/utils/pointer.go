package utils

// Ptr returns a pointer to v. Provider request payloads model optional
// fields as pointers to distinguish "unset" from a zero value; Ptr lets a
// call site take the address of a literal or computed value directly, for
// example utils.Ptr(float64(config.Temperature)).
func Ptr[T any](v T) *T {
	return &v
}
