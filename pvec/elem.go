package pvec

import (
	"fmt"
	"reflect"
	"sync"
)

type elemCheck struct{ err error }

var elemChecks sync.Map // reflect.Type -> elemCheck

// checkElem reports whether T can be stored in pool memory.
func checkElem[T any]() error {
	typ := reflect.TypeFor[T]()
	if c, ok := elemChecks.Load(typ); ok {
		return c.(elemCheck).err
	}
	err := validateElem(typ)
	if err == nil && typ.Size() == 0 {
		err = fmt.Errorf("%v has zero size: %w", typ, ErrUnsupportedElem)
	}
	elemChecks.Store(typ, elemCheck{err})
	return err
}

func validateElem(typ reflect.Type) error {
	switch typ.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		return validateElem(typ.Elem())
	case reflect.Struct:
		for i := range typ.NumField() {
			if err := validateElem(typ.Field(i).Type); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%v contains %v: %w", typ, typ.Kind(), ErrUnsupportedElem)
	}
}
