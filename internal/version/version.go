// ABOUTME: Version information for the player
// ABOUTME: Reported by the CLI, remote handshake and mDNS records
package version

// Version is overridden at build time with -ldflags "-X .../internal/version.Version=..."
var Version = "0.1.0"

const (
	// Product is the product name reported to controllers
	Product = "audioqueue"

	// Manufacturer is the vendor name reported to controllers
	Manufacturer = "Resonate Protocol"
)
