// Package debug holds the process-wide verbose logging switches. They are
// set once at startup from configuration and read everywhere else.
package debug

import "log"

// Enabled turns on verbose logging.
var Enabled bool

// Frames turns on per-frame pipeline logs, which are very noisy on live video.
var Frames bool

// Log prints a message only if debug mode is enabled.
func Log(format string, args ...interface{}) {
	if Enabled {
		log.Printf(format, args...)
	}
}

// FrameLog prints a message only if per-frame logging is enabled.
func FrameLog(format string, args ...interface{}) {
	if Frames {
		log.Printf(format, args...)
	}
}
