package serialmux

import "strings"

const (
	LineSamples = "samples" // a JSON sample batch
	LineStatus  = "status"  // any other JSON object, e.g. a handshake reply
	LineText    = "text"    // free-form bridge diagnostics
)

// ClassifyLine inspects a line from the bridge and returns a coarse type
// token so subscribers can skip lines they do not care about without
// parsing them.
func ClassifyLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return LineText
	}
	if strings.Contains(trimmed, `"samples"`) {
		return LineSamples
	}
	return LineStatus
}
