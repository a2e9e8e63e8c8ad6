package models

import "fmt"

// OutputMode selects how a capture is serialized.
type OutputMode string

const (
	// OutputAuto prefers structured CSV and falls back to plain text when
	// no post containers are found.
	OutputAuto OutputMode = "auto"
	// OutputStructured forces CSV output (still falls back to text when
	// extraction yields zero records, so no capture is lost).
	OutputStructured OutputMode = "structured"
	// OutputText forces plain-text section output.
	OutputText OutputMode = "text"
)

// ParseOutputMode validates a mode string from config or CLI flags.
func ParseOutputMode(s string) (OutputMode, error) {
	switch OutputMode(s) {
	case OutputAuto, OutputStructured, OutputText:
		return OutputMode(s), nil
	case "":
		return OutputAuto, nil
	default:
		return "", fmt.Errorf("models: unknown output mode %q (supported: auto, structured, text)", s)
	}
}
