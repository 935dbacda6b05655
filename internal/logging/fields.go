package logging

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRunID     = "run_id"
	FieldComponent = "component"

	// Path fields
	FieldPath   = "path"
	FieldOutput = "output"
	FieldRel    = "rel"

	// Engine fields
	FieldFFmpeg  = "ffmpeg"
	FieldFFprobe = "ffprobe"
	FieldSource  = "source"
	FieldArgs    = "args"
	FieldExit    = "exit_code"

	// Media fields
	FieldBitrate    = "bitrate"
	FieldSampleRate = "sample_rate"
	FieldProfile    = "profile"
	FieldTier       = "tier"
	FieldOutcome    = "outcome"
	FieldElapsed    = "elapsed"
)
