package ai

import (
	"fmt"
	"strings"
)

// Prompt is a provider-neutral completion request.
type Prompt struct {
	SystemInstruction string
	Text              string

	// InlineData is sent as a binary part ahead of Text when non-empty.
	InlineData     []byte
	InlineMIMEType string

	// Structured requests JSON output constrained to the analysis schema.
	Structured bool
}

const producerInstruction = "You are a world-class music producer and audio engineer. " +
	"Analyze the audio or request and provide structured JSON data including BPM, Key, Genre, " +
	"and a detailed breakdown of song sections (Intro, Verse, Chorus, etc.) with specific Suno.ai style prompts."

const lyricistInstruction = "You are a professional lyricist."

func (r *AnalyzeAudioRequest) prompt() Prompt {
	return Prompt{
		SystemInstruction: producerInstruction,
		Text:              "Analyze this audio track in extreme detail. Return JSON.",
		InlineData:        r.decoded,
		InlineMIMEType:    r.MIMEType,
		Structured:        true,
	}
}

func (r AnalyzeMetadataRequest) prompt() Prompt {
	return Prompt{
		SystemInstruction: producerInstruction,
		Text: fmt.Sprintf("Analyze the song %q. Provide its likely BPM, Key, Genre, and structure "+
			"based on public knowledge. Return JSON.", strings.TrimSpace(r.Query)),
		Structured: true,
	}
}

func (r GenerateCreativeRequest) prompt() Prompt {
	b := r.Request
	return Prompt{
		SystemInstruction: producerInstruction,
		Text: fmt.Sprintf("Create a song plan based on this concept: %q. Style: %s. Template: %s. Return JSON.",
			strings.TrimSpace(b.Concept), strings.Join(b.SelectedTags, ", "), b.StructureTemplate),
		Structured: true,
	}
}

func (r GenerateRemixRequest) prompt() Prompt {
	o := r.OriginalData
	var text strings.Builder
	fmt.Fprintf(&text, "Create a Remix/Variation plan for this song. Original BPM: %s, Genre: %s.",
		formatBPM(o.BPM), o.Genre)
	if o.Key != "" {
		fmt.Fprintf(&text, " Key: %s.", o.Key)
	}
	if len(o.Mood) > 0 {
		fmt.Fprintf(&text, " Mood: %s.", strings.Join(o.Mood, ", "))
	}
	text.WriteString(" Make it more electronic/modern. Return JSON.")

	return Prompt{
		SystemInstruction: producerInstruction,
		Text:              text.String(),
		Structured:        true,
	}
}

func (r GenerateLyricsRequest) prompt() Prompt {
	return Prompt{
		SystemInstruction: lyricistInstruction,
		Text: fmt.Sprintf("Write lyrics for a %s section. Genre: %s. Mood: %s. Context: %s. Only return the lyrics text.",
			strings.TrimSpace(r.SectionName), r.Genre, strings.Join(r.Mood, ","), r.SectionDesc),
	}
}

// formatBPM prints whole tempos without a decimal point.
func formatBPM(bpm float64) string {
	if bpm == float64(int64(bpm)) {
		return fmt.Sprintf("%d", int64(bpm))
	}
	return fmt.Sprintf("%g", bpm)
}

// stripCodeFences removes markdown fences the model sometimes wraps JSON in.
func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
