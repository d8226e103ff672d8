package ir

// Version constants for the container format and engine.
const (
	// FormatVersion is the RCX container format version.
	FormatVersion = "1"

	// EngineVersion is the RCX engine version.
	EngineVersion = "0.1.0"
)
