// ABOUTME: Version information for the bridge and sender
// ABOUTME: Version is overridable at link time with -ldflags "-X ...version.Version=..."
package version

// Version of the build
var Version = "0.1.0"

const (
	// Product is reported in status output and mDNS records
	Product = "A2F LiveLink Bridge"

	// Manufacturer is reported in mDNS records
	Manufacturer = "Resonate Protocol"
)

// String returns the product and version
func String() string {
	return Product + " " + Version
}
