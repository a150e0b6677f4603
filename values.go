package graphom

import (
	"fmt"
	"reflect"
)

// readField returns the value of the named field on obj, which must be a
// struct or pointer to struct.
func readField(obj any, field string) (any, error) {
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: cannot read field %q of nil %T", ErrConfiguration, field, obj)
		}

		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %T is not a struct", ErrConfiguration, obj)
	}

	f := v.FieldByName(field)
	if !f.IsValid() {
		return nil, fmt.Errorf("%w: type %T has no field %q", ErrConfiguration, obj, field)
	}

	return f.Interface(), nil
}

// writeField assigns value to the named field on obj, which must be a
// pointer to struct. Numeric kinds are converted where the driver's wire
// types (int64, float64) differ from the declared field type.
func writeField(obj any, field string, value any) error {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: %T is not a pointer to struct", ErrConfiguration, obj)
	}

	f := v.Elem().FieldByName(field)
	if !f.IsValid() {
		return fmt.Errorf("%w: type %T has no field %q", ErrConfiguration, obj, field)
	}

	if !f.CanSet() {
		return fmt.Errorf("%w: field %q of %T is not settable", ErrConfiguration, field, obj)
	}

	if value == nil {
		f.SetZero()
		return nil
	}

	return assign(f, reflect.ValueOf(value))
}

func assign(dst reflect.Value, src reflect.Value) error {
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}

	if convertibleKind(src.Kind(), dst.Kind()) && src.Type().ConvertibleTo(dst.Type()) {
		dst.Set(src.Convert(dst.Type()))
		return nil
	}

	// *T fields from T values.
	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		if err := assign(p.Elem(), src); err != nil {
			return err
		}

		dst.Set(p)

		return nil
	}

	// []any from the driver into typed slices.
	if dst.Kind() == reflect.Slice && src.Kind() == reflect.Slice {
		out := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			e := src.Index(i)
			for e.Kind() == reflect.Interface {
				e = e.Elem()
			}

			if err := assign(out.Index(i), e); err != nil {
				return err
			}
		}

		dst.Set(out)

		return nil
	}

	return fmt.Errorf("%w: cannot assign %s to %s", ErrDeserialization, src.Type(), dst.Type())
}

// convertibleKind permits numeric-to-numeric and string-to-named-string
// conversions and nothing else, so int64 never silently becomes a string.
func convertibleKind(from, to reflect.Kind) bool {
	numeric := func(k reflect.Kind) bool {
		return k >= reflect.Int && k <= reflect.Float64 && k != reflect.Uintptr
	}

	if numeric(from) && numeric(to) {
		return true
	}

	return from == reflect.String && to == reflect.String
}

// isZeroValue reports whether v is nil or its type's zero value.
func isZeroValue(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)

	return rv.IsZero()
}
