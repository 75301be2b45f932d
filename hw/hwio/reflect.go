package hwio

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

type bankReg struct {
	offset uint16
	regPtr any
}

type regTag struct {
	offset    uint16
	hasOffset bool
	bank      int
	size      int
	vsize     int
	reset     uint64
	rwmask    uint64
	hasRWMask bool
	readonly  bool
	writeonly bool
	rcb       string
	wcb       string
}

func parseTag(field reflect.StructField, tag string) (regTag, error) {
	var rt regTag
	for _, opt := range strings.Split(tag, ",") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		key, val, hasval := strings.Cut(opt, "=")
		parseUint := func(bits int) (uint64, error) {
			n, err := strconv.ParseUint(val, 0, bits)
			if err != nil {
				return 0, fmt.Errorf("field %s: invalid %s=%q: %w", field.Name, key, val, err)
			}
			return n, nil
		}

		var err error
		var n uint64
		switch key {
		case "offset":
			n, err = parseUint(16)
			rt.offset, rt.hasOffset = uint16(n), true
		case "bank":
			n, err = parseUint(8)
			rt.bank = int(n)
		case "size":
			n, err = parseUint(32)
			rt.size = int(n)
		case "vsize":
			n, err = parseUint(32)
			rt.vsize = int(n)
		case "reset":
			rt.reset, err = parseUint(64)
		case "rwmask":
			rt.rwmask, err = parseUint(64)
			rt.hasRWMask = true
		case "readonly":
			rt.readonly = true
		case "writeonly":
			rt.writeonly = true
		case "rcb":
			rt.rcb = "Read" + strings.ToUpper(field.Name)
			if hasval {
				rt.rcb = val
			}
		case "wcb":
			rt.wcb = "Write" + strings.ToUpper(field.Name)
			if hasval {
				rt.wcb = val
			}
		default:
			err = fmt.Errorf("field %s: unknown hwio option %q", field.Name, key)
		}
		if err != nil {
			return rt, err
		}
	}
	return rt, nil
}

func method(v reflect.Value, name string, out any) error {
	m := v.MethodByName(name)
	if !m.IsValid() {
		return fmt.Errorf("missing method %s on %s", name, v.Type())
	}
	dst := reflect.ValueOf(out).Elem()
	if !m.Type().AssignableTo(dst.Type()) {
		return fmt.Errorf("method %s has signature %s, want %s", name, m.Type(), dst.Type())
	}
	dst.Set(m)
	return nil
}

// InitRegs initializes all the registers declared in the struct pointed to by
// bank, according to their hwio struct tag: name, reset value, read/write
// masks, access flags and callbacks. Callbacks are methods of bank, named
// ReadNAME/WriteNAME by default (NAME being the uppercase field name), or
// explicitly with rcb=Method, wcb=Method.
func InitRegs(bank any) error {
	pv := reflect.ValueOf(bank)
	if pv.Kind() != reflect.Pointer || pv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("InitRegs: want pointer to struct, got %T", bank)
	}
	v := pv.Elem()
	for i := range v.NumField() {
		field := v.Type().Field(i)
		tag, ok := field.Tag.Lookup("hwio")
		if !ok {
			continue
		}
		rt, err := parseTag(field, tag)
		if err != nil {
			return err
		}

		var flags RWFlags
		if rt.readonly {
			flags |= ReadOnlyFlag
		}
		if rt.writeonly {
			flags |= WriteOnlyFlag
		}

		switch r := v.Field(i).Addr().Interface().(type) {
		case *Reg8:
			r.Name = field.Name
			r.Value = uint8(rt.reset)
			r.ResetValue = uint8(rt.reset)
			r.Flags = flags
			if rt.hasRWMask {
				r.RoMask = ^uint8(rt.rwmask)
			}
			if rt.rcb != "" {
				if err := method(pv, rt.rcb, &r.ReadCb); err != nil {
					return err
				}
			}
			if rt.wcb != "" {
				if err := method(pv, rt.wcb, &r.WriteCb); err != nil {
					return err
				}
			}
		case *Device:
			r.Name = field.Name
			r.Size = rt.size
			r.Flags = flags
			if rt.rcb != "" {
				if err := method(pv, rt.rcb, &r.ReadCb); err != nil {
					return err
				}
			}
			if rt.wcb != "" {
				if err := method(pv, rt.wcb, &r.WriteCb); err != nil {
					return err
				}
			}
		case *Mem:
			r.Name = field.Name
			if rt.size == 0 {
				return fmt.Errorf("field %s: mem requires size", field.Name)
			}
			r.Data = make([]byte, rt.size)
			r.VSize = rt.vsize
			if r.VSize == 0 {
				r.VSize = rt.size
			}
			if rt.readonly {
				r.Flags |= MemFlag8ReadOnly
			}
		default:
			return fmt.Errorf("field %s: unsupported hwio type %s", field.Name, field.Type)
		}
	}
	return nil
}

// ResetRegs restores the reset value of all the Reg8 of bank, a pointer to a
// struct initialized with InitRegs.
func ResetRegs(bank any) {
	v := reflect.ValueOf(bank).Elem()
	for i := range v.NumField() {
		if _, ok := v.Type().Field(i).Tag.Lookup("hwio"); !ok {
			continue
		}
		if r, ok := v.Field(i).Addr().Interface().(*Reg8); ok {
			r.Reset()
		}
	}
}

// MustInitRegs is like InitRegs but panics on error.
func MustInitRegs(bank any) {
	if err := InitRegs(bank); err != nil {
		panic(err)
	}
}

func bankGetRegs(bank any, bankNum int) ([]bankReg, error) {
	pv := reflect.ValueOf(bank)
	if pv.Kind() != reflect.Pointer || pv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("MapBank: want pointer to struct, got %T", bank)
	}
	v := pv.Elem()

	var regs []bankReg
	for i := range v.NumField() {
		field := v.Type().Field(i)
		tag, ok := field.Tag.Lookup("hwio")
		if !ok {
			continue
		}
		rt, err := parseTag(field, tag)
		if err != nil {
			return nil, err
		}
		if !rt.hasOffset || rt.bank != bankNum {
			continue
		}
		regs = append(regs, bankReg{offset: rt.offset, regPtr: v.Field(i).Addr().Interface()})
	}
	return regs, nil
}
