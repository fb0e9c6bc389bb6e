// Package locator resolves a user-supplied input reference to a local path
// or a remote URL behind a configurable redirector prefix. Resolution is
// purely lexical plus a single filesystem existence check — there is no
// error state (spec.md §4.A).
package locator

import (
	"os"
	"strings"
)

// Resolve returns the locator the Columnar File Adapter should open.
//
//  1. If ref already begins with redirector, it is returned unchanged.
//  2. Otherwise, if ref names an existing local path, it is returned
//     unchanged.
//  3. Otherwise, redirector+"/"+ref is returned.
//
// An empty redirector disables step 1 and 3 (ref is returned unchanged).
func Resolve(ref, redirector string) string {
	if redirector == "" {
		return ref
	}
	if strings.HasPrefix(ref, redirector) {
		return ref
	}
	if _, err := os.Stat(ref); err == nil {
		return ref
	}
	return redirector + "/" + ref
}
