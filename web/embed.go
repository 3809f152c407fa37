// Package web bundles the built dashboard frontend into the binary.
package web

import (
	"embed"
	"io/fs"
)

//go:embed all:dist
var dist embed.FS

// Dist returns the bundled frontend rooted at dist/.
func Dist() fs.FS {
	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		// dist is a literal directory in the embed pattern; Sub cannot fail.
		panic(err)
	}
	return sub
}
