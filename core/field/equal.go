package field

import "reflect"

// StrictEqual reports whether a and b have the same dynamic type and value.
// Comparable values use ==; maps, slices and functions fall back to
// reflect.DeepEqual.
func StrictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}

	if ta.Comparable() {
		if eq, ok := compare(a, b); ok {
			return eq
		}
	}
	return reflect.DeepEqual(a, b)
}

// compare uses == and recovers from the runtime panic raised when a
// comparable type holds an uncomparable interface value.
func compare(a, b any) (eq, ok bool) {
	defer func() {
		if recover() != nil {
			eq, ok = false, false
		}
	}()
	return a == b, true
}
