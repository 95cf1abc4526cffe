package safe

import (
	"fmt"
	"reflect"

	"ArgbRelay/tools/errs"

	"go.uber.org/zap"
)

// MustNotNil panics if the given value is nil.
// Useful for enforcing required dependencies while wiring main.
func MustNotNil(v any, name string) {
	if v == nil {
		panic(fmt.Sprintf("%s must not be nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Sprintf("%s must not be nil", name))
		}
	}
}

// Go starts f in a goroutine that recovers from panic, so a crashing
// background task does not take the process down. The recovered panic is
// logged and handed to onPanic, if set.
func Go(log *zap.Logger, name string, f func(), onPanic func(error)) {
	if log == nil {
		log = zap.NewNop()
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := errs.ErrPanic(r)
				log.Error("[SafeGo] panic recovered", zap.String("task", name), zap.Error(err))
				if onPanic != nil {
					onPanic(err)
				}
			}
		}()
		f()
	}()
}
