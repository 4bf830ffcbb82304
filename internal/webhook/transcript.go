package webhook

import "strings"

// UnknownSpeaker labels transcript lines without a speaker
const UnknownSpeaker = "Unknown"

// TranscriptEntry is one utterance in a recording transcript
type TranscriptEntry struct {
	Text      string   `json:"text"`
	Speaker   string   `json:"speaker,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// NormalizeTranscript renders entries as "<speaker>: <text>" paragraphs separated by a blank line.
func NormalizeTranscript(entries []TranscriptEntry) string {
	if len(entries) == 0 {
		return ""
	}

	lines := make([]string, len(entries))
	for i, entry := range entries {
		speaker := entry.Speaker
		if speaker == "" {
			speaker = UnknownSpeaker
		}
		lines[i] = speaker + ": " + entry.Text
	}

	return strings.Join(lines, "\n\n")
}
