// Package version exposes the build identity of the assetd binary.
package version

// mainpkg is the canonical import path the binary was built under.
var mainpkg = "github.com/vircadia/assetd"

// version is the semantic version of the running binary. Overwritten at
// build time via -ldflags.
var version = "v0.1.0+unknown"

// revision is the VCS revision the binary was built from. Overwritten at
// build time via -ldflags.
var revision = ""

// Package returns the canonical project import path.
func Package() string {
	return mainpkg
}

// Version returns the module version the running binary was built from.
func Version() string {
	return version
}

// Revision returns the VCS revision used to build the program.
func Revision() string {
	return revision
}
