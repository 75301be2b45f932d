package log

import (
	"fmt"
	"strconv"
	"time"
)

type FieldType int

const (
	FieldTypeUnknown FieldType = iota
	FieldTypeBool
	FieldTypeString
	FieldTypeHex8
	FieldTypeHex16
	FieldTypeHex32
	FieldTypeInt
	FieldTypeUint
	FieldTypeSize
	FieldTypeError
	FieldTypeDuration
	FieldTypeStringer
)

// ZField is a typed log field. Only the value matching Type is set, it's
// formatted when the entry is emitted.
type ZField struct {
	Type FieldType
	Key  string

	String    string
	Integer   uint64
	Duration  time.Duration
	Error     error
	Interface any
	Boolean   bool
}

func (f *ZField) Value() string {
	switch f.Type {
	case FieldTypeBool:
		return strconv.FormatBool(f.Boolean)
	case FieldTypeString:
		return f.String
	case FieldTypeUint:
		return strconv.FormatUint(f.Integer, 10)
	case FieldTypeInt:
		return strconv.FormatInt(int64(f.Integer), 10)
	case FieldTypeHex8:
		return fmt.Sprintf("%02x", f.Integer)
	case FieldTypeHex16:
		return fmt.Sprintf("%04x", f.Integer)
	case FieldTypeHex32:
		return fmt.Sprintf("%08x", f.Integer)
	case FieldTypeSize:
		return formatSize(f.Integer)
	case FieldTypeError:
		if f.Error == nil {
			return "<nil>"
		}
		return f.Error.Error()
	case FieldTypeDuration:
		return f.Duration.String()
	case FieldTypeStringer:
		return f.Interface.(fmt.Stringer).String()
	}
	return ""
}

// formatSize formats a byte count with a binary unit, e.g. 1536 -> 1.5KiB.
func formatSize(n uint64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatUint(n, 10) + "B"
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
