package runtime

// ValueKind tags the variant held by a Value.
type ValueKind int

// Value variants.
const (
	Absent ValueKind = iota
	Text
	Binary
	Structured
)

func (k ValueKind) String() string {
	switch k {
	case Absent:
		return "absent"
	case Text:
		return "text"
	case Binary:
		return "binary"
	case Structured:
		return "structured"
	default:
		return "unknown"
	}
}

// Value is a raw input value produced by an Extractor.
type Value struct {
	kind ValueKind
	text string
	data []byte
	obj  any
}

// AbsentValue is the value of an input that is not present in the request.
func AbsentValue() Value { return Value{} }

// TextValue wraps a scalar string such as a query parameter or a text body.
func TextValue(s string) Value { return Value{kind: Text, text: s} }

// BinaryValue wraps a binary blob.
func BinaryValue(b []byte) Value { return Value{kind: Binary, data: b} }

// StructuredValue wraps an already decoded value. Request-location inputs
// carry the transport's native request object this way.
func StructuredValue(v any) Value { return Value{kind: Structured, obj: v} }

// Kind reports the variant.
func (v Value) Kind() ValueKind { return v.kind }

// IsAbsent reports whether the value is absent.
func (v Value) IsAbsent() bool { return v.kind == Absent }

// Text returns the scalar string.
func (v Value) Text() string { return v.text }

// Bytes returns the binary blob.
func (v Value) Bytes() []byte { return v.data }

// Object returns the structured value.
func (v Value) Object() any { return v.obj }

// Extractor reads raw input values from a request. Implementations return
// an *apimda.HTTPError for values the transport cannot represent.
type Extractor interface {
	Extract(in *Input) (Value, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(in *Input) (Value, error)

// Extract calls f(in).
func (f ExtractorFunc) Extract(in *Input) (Value, error) { return f(in) }
