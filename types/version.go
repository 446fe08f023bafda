package types

// Version is the canonical anxeod version.
// The CLI, the run report and the completion event share this version.
const Version = "0.3.0"

// ReportSchemaVersion is the version of the JSON run report and completion
// event payloads. It moves in lockstep with Version.
const ReportSchemaVersion = Version
