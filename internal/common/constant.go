package common

// Request headers carrying refresh-token provenance and optimistic
// concurrency preconditions.
const (
	DeviceNameHeader = "Device-Name"
	IfMatchHeader    = "If-Match"
	ETagHeader       = "ETag"

	// UnknownProvenance is recorded when the client did not supply a value.
	UnknownProvenance = "Unknown"
)
