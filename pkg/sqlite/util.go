package sqlite

/*
#include "sqlite3.h"
*/
import "C"

// goStr copies a C string that may be NULL.
func goStr(p *C.char) string {
	if p == nil {
		return ""
	}
	return C.GoString(p)
}
