// ABOUTME: Version and product constants
// ABOUTME: Reported in logs and the host TUI
package version

const (
	Version      = "0.1.0"
	Product      = "AudioLink"
	Manufacturer = "AudioLink Project"
)
