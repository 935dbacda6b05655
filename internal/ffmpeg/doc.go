// Package ffmpeg re-encodes one audio file at 432 Hz pitch.
//
// Each source extension maps to a [Profile] with a high-quality and a safe
// [Encoder]. [Converter.Convert] runs the HQ attempt first; when ffmpeg
// fails with an unsupported-feature signature ([Classifier]) the safe
// attempt runs with the same pitch filter and bitrate policy. Any other
// failure is terminal.
//
// Split across profiles.go (codec tables and bitrate policy), builder.go
// (pitch filter and argument list), errors.go (stderr classification and
// cleaning), retry.go (attempt state machine) and executor.go (Converter).
package ffmpeg
