package log

import (
	"fmt"
	"sync"
	"time"

	"gopkg.in/Sirupsen/logrus.v0"
)

const maxZFields = 16

// EntryZ is a zero-allocation log entry. A nil *EntryZ is valid and all its
// methods are no-ops, which is what disabled modules return.
type EntryZ struct {
	mod   Module
	lvl   Level
	msg   string
	zfbuf [maxZFields]ZField
	zfidx int
}

var entryPool = sync.Pool{
	New: func() any { return new(EntryZ) },
}

func NewEntryZ() *EntryZ {
	e := entryPool.Get().(*EntryZ)
	e.zfidx = 0
	return e
}

func (z *EntryZ) add(f ZField) *EntryZ {
	if z == nil {
		return nil
	}
	if z.zfidx < len(z.zfbuf) {
		z.zfbuf[z.zfidx] = f
		z.zfidx++
	}
	return z
}

func (z *EntryZ) Bool(key string, v bool) *EntryZ {
	return z.add(ZField{Type: FieldTypeBool, Key: key, Boolean: v})
}

func (z *EntryZ) String(key string, v string) *EntryZ {
	return z.add(ZField{Type: FieldTypeString, Key: key, String: v})
}

func (z *EntryZ) Stringer(key string, v fmt.Stringer) *EntryZ {
	return z.add(ZField{Type: FieldTypeStringer, Key: key, Interface: v})
}

func (z *EntryZ) Hex8(key string, v uint8) *EntryZ {
	return z.add(ZField{Type: FieldTypeHex8, Key: key, Integer: uint64(v)})
}

func (z *EntryZ) Hex16(key string, v uint16) *EntryZ {
	return z.add(ZField{Type: FieldTypeHex16, Key: key, Integer: uint64(v)})
}

func (z *EntryZ) Hex32(key string, v uint32) *EntryZ {
	return z.add(ZField{Type: FieldTypeHex32, Key: key, Integer: uint64(v)})
}

// Size adds a byte count.
func (z *EntryZ) Size(key string, n int) *EntryZ {
	return z.add(ZField{Type: FieldTypeSize, Key: key, Integer: uint64(n)})
}

func (z *EntryZ) Int(key string, v int) *EntryZ {
	return z.add(ZField{Type: FieldTypeInt, Key: key, Integer: uint64(v)})
}

func (z *EntryZ) Int64(key string, v int64) *EntryZ {
	return z.add(ZField{Type: FieldTypeInt, Key: key, Integer: uint64(v)})
}

func (z *EntryZ) Uint(key string, v uint) *EntryZ {
	return z.add(ZField{Type: FieldTypeUint, Key: key, Integer: uint64(v)})
}

func (z *EntryZ) Uint64(key string, v uint64) *EntryZ {
	return z.add(ZField{Type: FieldTypeUint, Key: key, Integer: v})
}

func (z *EntryZ) Error(key string, err error) *EntryZ {
	return z.add(ZField{Type: FieldTypeError, Key: key, Error: err})
}

func (z *EntryZ) Duration(key string, d time.Duration) *EntryZ {
	return z.add(ZField{Type: FieldTypeDuration, Key: key, Duration: d})
}

// End emits the entry and releases it. The entry must not be used after.
func (z *EntryZ) End() {
	if z == nil {
		return
	}

	fields := make(logrus.Fields, z.zfidx+2)
	fields["_mod"] = modNames[z.mod]
	for _, c := range contexts {
		c.AddLogContext(z)
	}
	for i := range z.zfbuf[:z.zfidx] {
		fields[z.zfbuf[i].Key] = z.zfbuf[i].Value()
	}

	entry := logrus.StandardLogger().WithFields(fields)
	switch z.lvl {
	case DebugLevel:
		entry.Debug(z.msg)
	case InfoLevel:
		entry.Info(z.msg)
	case WarnLevel:
		entry.Warn(z.msg)
	case ErrorLevel:
		entry.Error(z.msg)
	case FatalLevel:
		entry.Fatal(z.msg)
	case PanicLevel:
		defer entry.Panic(z.msg)
	}

	clear(z.zfbuf[:z.zfidx])
	entryPool.Put(z)
}
