package fileops

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Kind identifies the file operation to perform.
type Kind string

// Supported operation kinds.
const (
	KindCreate Kind = "create"
	KindRead   Kind = "read"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
	KindCopy   Kind = "copy"
	KindMove   Kind = "move"
)

// Kinds lists every supported kind in declaration order.
var Kinds = []Kind{KindCreate, KindRead, KindUpdate, KindDelete, KindCopy, KindMove}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCreate, KindRead, KindUpdate, KindDelete, KindCopy, KindMove:
		return true
	}
	return false
}

// NeedsDestination reports whether the kind requires a destination path.
func (k Kind) NeedsDestination() bool {
	return k == KindCopy || k == KindMove
}

// Encoding describes how operation content is represented as a string.
type Encoding string

// Supported content encodings.
const (
	EncodingUTF8   Encoding = "utf8"
	EncodingBase64 Encoding = "base64"
)

// Valid reports whether e is a supported encoding.
func (e Encoding) Valid() bool {
	return e == EncodingUTF8 || e == EncodingBase64
}

// Operation is one file-system action requested by a caller.
type Operation struct {
	Type        Kind     `json:"type"`
	Path        string   `json:"path"`
	Content     string   `json:"content,omitempty"`
	Destination string   `json:"destination,omitempty"`
	Encoding    Encoding `json:"encoding"`
}

// Decode returns the operation content as raw bytes according to its encoding.
func (op Operation) Decode() ([]byte, error) {
	switch op.Encoding {
	case EncodingBase64:
		data, err := base64.StdEncoding.DecodeString(op.Content)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidContent, err)
		}
		return data, nil
	default:
		return []byte(op.Content), nil
	}
}

// Encode renders raw bytes as a string in the operation's encoding.
func (op Operation) Encode(data []byte) string {
	if op.Encoding == EncodingBase64 {
		return base64.StdEncoding.EncodeToString(data)
	}
	return string(data)
}

// Result is the value returned by a successful operation.
//
// Every result carries the kind, path, completion time and the 1-based
// attempt that succeeded. Read results are the requested operation augmented
// with the file content, so Encoding and Content are only set for reads.
type Result struct {
	Type        Kind      `json:"type"`
	Path        string    `json:"path"`
	Destination string    `json:"destination,omitempty"`
	Encoding    Encoding  `json:"encoding,omitempty"`
	Content     *string   `json:"content,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Success     bool      `json:"success"`
	Attempt     int       `json:"attempt"`
}
