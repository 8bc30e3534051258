package batch

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/teemow/batchfs/internal/fileops"
)

// Option bounds and built-in defaults.
const (
	DefaultMaxConcurrent = 10
	DefaultTimeoutMs     = 30000
	DefaultRetryAttempts = 1

	MinMaxConcurrent = 1
	MaxMaxConcurrent = 100
	MinTimeoutMs     = 1000
	MaxRetryAttempts = 3
)

// Options controls how a batch is executed.
type Options struct {
	MaxConcurrent int  `json:"maxConcurrent" toml:"max_concurrent"`
	TimeoutMs     int  `json:"timeoutMs" toml:"timeout_ms"`
	StopOnError   bool `json:"stopOnError" toml:"stop_on_error"`
	RetryAttempts int  `json:"retryAttempts" toml:"retry_attempts"`
	GroupByType   bool `json:"groupByType" toml:"group_by_type"`
}

// DefaultOptions returns the built-in option defaults.
func DefaultOptions() Options {
	return Options{
		MaxConcurrent: DefaultMaxConcurrent,
		TimeoutMs:     DefaultTimeoutMs,
		StopOnError:   false,
		RetryAttempts: DefaultRetryAttempts,
		GroupByType:   true,
	}
}

// Timeout returns the whole-batch deadline.
func (o Options) Timeout() time.Duration {
	return time.Duration(o.TimeoutMs) * time.Millisecond
}

// Validate checks every option against its allowed range.
func (o Options) Validate() error {
	switch {
	case o.MaxConcurrent < MinMaxConcurrent || o.MaxConcurrent > MaxMaxConcurrent:
		return invalidf("options.maxConcurrent", "must be between %d and %d, got %d",
			MinMaxConcurrent, MaxMaxConcurrent, o.MaxConcurrent)
	case o.TimeoutMs < MinTimeoutMs:
		return invalidf("options.timeoutMs", "must be at least %d, got %d", MinTimeoutMs, o.TimeoutMs)
	case o.RetryAttempts < 0 || o.RetryAttempts > MaxRetryAttempts:
		return invalidf("options.retryAttempts", "must be between 0 and %d, got %d",
			MaxRetryAttempts, o.RetryAttempts)
	}
	return nil
}

// Request is a validated, fully defaulted batch request.
type Request struct {
	Operations []fileops.Operation `json:"operations"`
	Options    Options             `json:"options"`
}

// ValidationError reports a malformed request. Field names the offending
// input, e.g. "operations[2].type" or "options.maxConcurrent".
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + " " + e.Message
}

func invalidf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validator turns untyped input into a Request.
type Validator struct {
	// Defaults fill options the caller omits.
	Defaults Options

	// ReadOnly rejects every operation except read.
	ReadOnly bool
}

// NewValidator returns a Validator using the built-in defaults.
func NewValidator() *Validator {
	return &Validator{Defaults: DefaultOptions()}
}

// ParseJSON decodes data and validates it with Parse.
func (v *Validator) ParseJSON(data []byte) (*Request, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var input any
	if err := dec.Decode(&input); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("request is not valid JSON: %v", err)}
	}
	return v.Parse(input)
}

// Parse validates input, typically decoded JSON or MCP tool arguments, and
// returns a Request with every option populated. Unknown keys are ignored.
func (v *Validator) Parse(input any) (*Request, error) {
	root, ok := input.(map[string]any)
	if !ok {
		return nil, &ValidationError{Message: "request must be an object"}
	}

	raw, ok := root["operations"]
	if !ok || raw == nil {
		return nil, invalidf("operations", "is required")
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, invalidf("operations", "must be an array")
	}
	if len(list) == 0 {
		return nil, invalidf("operations", "must not be empty")
	}

	ops := make([]fileops.Operation, 0, len(list))
	for i, item := range list {
		op, err := v.parseOperation(fmt.Sprintf("operations[%d]", i), item)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}

	opts, err := v.parseOptions(root["options"])
	if err != nil {
		return nil, err
	}

	return &Request{Operations: ops, Options: opts}, nil
}

func (v *Validator) parseOperation(field string, item any) (fileops.Operation, error) {
	var op fileops.Operation

	m, ok := item.(map[string]any)
	if !ok {
		return op, invalidf(field, "must be an object")
	}

	kindKey := "type"
	if _, ok := m[kindKey]; !ok {
		if _, ok := m["kind"]; ok {
			kindKey = "kind"
		}
	}
	kind, err := stringField(m, kindKey, field, true)
	if err != nil {
		return op, err
	}
	op.Type = fileops.Kind(kind)
	if !op.Type.Valid() {
		return op, invalidf(field+"."+kindKey, "must be one of %s, got %q", kindList(), kind)
	}
	if v.ReadOnly && op.Type != fileops.KindRead {
		return op, invalidf(field+"."+kindKey, "%q is not allowed in read-only mode", kind)
	}

	if op.Path, err = stringField(m, "path", field, true); err != nil {
		return op, err
	}
	if op.Content, err = stringField(m, "content", field, false); err != nil {
		return op, err
	}
	if op.Destination, err = stringField(m, "destination", field, false); err != nil {
		return op, err
	}

	encoding, err := stringField(m, "encoding", field, false)
	if err != nil {
		return op, err
	}
	op.Encoding = fileops.Encoding(encoding)
	if op.Encoding == "" {
		op.Encoding = fileops.EncodingUTF8
	}
	if !op.Encoding.Valid() {
		return op, invalidf(field+".encoding", "must be utf8 or base64, got %q", encoding)
	}
	if op.Encoding == fileops.EncodingBase64 && op.Content != "" {
		if _, err := base64.StdEncoding.DecodeString(op.Content); err != nil {
			return op, invalidf(field+".content", "is not valid base64: %v", err)
		}
	}

	return op, nil
}

func (v *Validator) parseOptions(raw any) (Options, error) {
	opts := v.Defaults
	if raw == nil {
		return opts, opts.Validate()
	}

	m, ok := raw.(map[string]any)
	if !ok {
		return opts, invalidf("options", "must be an object")
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"maxConcurrent", &opts.MaxConcurrent},
		{"timeoutMs", &opts.TimeoutMs},
		{"retryAttempts", &opts.RetryAttempts},
	}
	for _, f := range ints {
		val, ok := m[f.key]
		if !ok || val == nil {
			continue
		}
		n, ok := toInt(val)
		if !ok {
			return opts, invalidf("options."+f.key, "must be an integer, got %v", val)
		}
		*f.dst = n
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"stopOnError", &opts.StopOnError},
		{"groupByType", &opts.GroupByType},
	}
	for _, f := range bools {
		val, ok := m[f.key]
		if !ok || val == nil {
			continue
		}
		b, ok := val.(bool)
		if !ok {
			return opts, invalidf("options."+f.key, "must be a boolean, got %v", val)
		}
		*f.dst = b
	}

	return opts, opts.Validate()
}

// stringField reads key from m. A missing optional key yields "".
func stringField(m map[string]any, key, parent string, required bool) (string, error) {
	val, ok := m[key]
	if !ok || val == nil {
		if required {
			return "", invalidf(parent+"."+key, "is required")
		}
		return "", nil
	}
	s, ok := val.(string)
	if !ok {
		return "", invalidf(parent+"."+key, "must be a string")
	}
	if required && s == "" {
		return "", invalidf(parent+"."+key, "must not be empty")
	}
	return s, nil
}

// maxExactInt is the largest integer a float64 holds exactly.
const maxExactInt = 1 << 53

func toInt(val any) (int, bool) {
	switch n := val.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return floatToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int, bool) {
	if f != math.Trunc(f) || math.Abs(f) > maxExactInt {
		return 0, false
	}
	return int(f), true
}

func kindList() string {
	names := make([]string, len(fileops.Kinds))
	for i, k := range fileops.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
