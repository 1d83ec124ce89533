package runtime

// Test-only exports for internal functions.
var (
	Convert = convert
	Shape   = shape
)
