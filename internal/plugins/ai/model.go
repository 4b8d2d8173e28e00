// Package ai is the credit-gated proxy in front of the generative model.
// A signed-in user sends one of five typed requests; the service checks
// the balance, builds the prompt, calls the provider once, validates the
// output and only then debits a single credit.
package ai

import (
	"encoding/base64"
	"strings"

	"github.com/keyxmakerx/nexus/internal/apperror"
)

// Kind identifies a generation operation. The values double as the last
// path segment of the HTTP endpoint.
type Kind string

const (
	KindAnalyzeAudio     Kind = "analyze-audio"
	KindAnalyzeMetadata  Kind = "analyze-metadata"
	KindGenerateCreative Kind = "generate-creative"
	KindGenerateRemix    Kind = "generate-remix"
	KindGenerateLyrics   Kind = "generate-lyrics"
)

// Input limits.
const (
	defaultAudioMIMEType = "audio/mp3"
	maxAudioBytes        = 20 << 20
	maxQueryLen          = 500
	maxConceptLen        = 2000
	maxTags              = 20
	maxFieldLen          = 200
)

// Request is a generation request. Each Kind has exactly one concrete
// payload type below; the set is closed by the unexported methods.
type Request interface {
	Kind() Kind
	validate() error
	prompt() Prompt
}

// Result is what a successful generation returns: *AnalysisResult for the
// schema kinds, LyricsResult for lyrics.
type Result interface {
	isResult()
}

// --- Payloads ---

// AnalyzeAudioRequest carries base64 audio inline.
type AnalyzeAudioRequest struct {
	Base64Audio string `json:"base64Audio"`
	MIMEType    string `json:"mimeType"`

	decoded []byte
}

// AnalyzeMetadataRequest asks for an analysis from a title or link.
type AnalyzeMetadataRequest struct {
	Query string `json:"query"`
}

// CreativeBrief describes a song to plan from scratch.
type CreativeBrief struct {
	Concept           string   `json:"concept"`
	SelectedTags      []string `json:"selectedTags"`
	StructureTemplate string   `json:"structureTemplate"`
}

// GenerateCreativeRequest wraps the brief as sent by the client.
type GenerateCreativeRequest struct {
	Request CreativeBrief `json:"request"`
}

// GenerateRemixRequest asks for a variation of a prior analysis.
type GenerateRemixRequest struct {
	OriginalData *AnalysisResult `json:"originalData"`
}

// GenerateLyricsRequest asks for plain-text lyrics for one section.
type GenerateLyricsRequest struct {
	Genre       string   `json:"genre"`
	Mood        []string `json:"mood"`
	SectionName string   `json:"sectionName"`
	SectionDesc string   `json:"sectionDesc"`
}

func (*AnalyzeAudioRequest) Kind() Kind { return KindAnalyzeAudio }
func (AnalyzeMetadataRequest) Kind() Kind { return KindAnalyzeMetadata }
func (GenerateCreativeRequest) Kind() Kind { return KindGenerateCreative }
func (GenerateRemixRequest) Kind() Kind { return KindGenerateRemix }
func (GenerateLyricsRequest) Kind() Kind { return KindGenerateLyrics }

// validate decodes the audio once so prompt can reuse the bytes.
func (r *AnalyzeAudioRequest) validate() error {
	data := strings.TrimSpace(r.Base64Audio)
	// Accept data URLs as produced by FileReader.readAsDataURL.
	if strings.HasPrefix(data, "data:") {
		if _, rest, ok := strings.Cut(data, ","); ok {
			data = rest
		}
	}
	if data == "" {
		return apperror.NewValidation("base64Audio is required")
	}
	if base64.StdEncoding.DecodedLen(len(data)) > maxAudioBytes {
		return apperror.NewValidation("audio exceeds the 20MB limit")
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return apperror.NewValidation("base64Audio is not valid base64")
	}

	r.MIMEType = strings.ToLower(strings.TrimSpace(r.MIMEType))
	if r.MIMEType == "" {
		r.MIMEType = defaultAudioMIMEType
	}
	if !strings.HasPrefix(r.MIMEType, "audio/") && !strings.HasPrefix(r.MIMEType, "video/") {
		return apperror.NewValidation("mimeType must be an audio or video type")
	}
	r.decoded = decoded
	return nil
}

func (r AnalyzeMetadataRequest) validate() error {
	q := strings.TrimSpace(r.Query)
	if q == "" {
		return apperror.NewValidation("query is required")
	}
	if len(q) > maxQueryLen {
		return apperror.NewValidation("query is too long")
	}
	return nil
}

func (r GenerateCreativeRequest) validate() error {
	concept := strings.TrimSpace(r.Request.Concept)
	if concept == "" {
		return apperror.NewValidation("concept is required")
	}
	if len(concept) > maxConceptLen {
		return apperror.NewValidation("concept is too long")
	}
	if len(r.Request.SelectedTags) > maxTags {
		return apperror.NewValidation("too many style tags")
	}
	if len(r.Request.StructureTemplate) > maxFieldLen {
		return apperror.NewValidation("structureTemplate is too long")
	}
	return nil
}

func (r GenerateRemixRequest) validate() error {
	if r.OriginalData == nil {
		return apperror.NewValidation("originalData is required")
	}
	return nil
}

func (r GenerateLyricsRequest) validate() error {
	if strings.TrimSpace(r.SectionName) == "" {
		return apperror.NewValidation("sectionName is required")
	}
	for _, f := range []string{r.Genre, r.SectionName} {
		if len(f) > maxFieldLen {
			return apperror.NewValidation("field is too long")
		}
	}
	if len(r.SectionDesc) > maxConceptLen {
		return apperror.NewValidation("sectionDesc is too long")
	}
	if len(r.Mood) > maxTags {
		return apperror.NewValidation("too many moods")
	}
	return nil
}

// --- Results ---

// AnalysisResult is the structured song analysis every schema kind returns.
type AnalysisResult struct {
	BPM                 float64   `json:"bpm"`
	Key                 string    `json:"key"`
	TimeSignature       string    `json:"timeSignature"`
	Genre               string    `json:"genre"`
	Mood                []string  `json:"mood"`
	Instruments         []string  `json:"instruments"`
	VocalType           string    `json:"vocalType"`
	Description         string    `json:"description"`
	RhythmAnalysis      string    `json:"rhythmAnalysis"`
	CompositionAnalysis string    `json:"compositionAnalysis"`
	Sections            []Section `json:"sections"`
	ProductionQuality   string    `json:"productionQuality"`
	Danceability        float64   `json:"danceability"`
	Energy              float64   `json:"energy"`
	SunoPrompt          string    `json:"sunoPrompt"`
	TrackInfo           TrackInfo `json:"trackInfo"`
}

// Section is one part of the song structure (Intro, Verse, ...).
type Section struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Instruments   []string `json:"instruments"`
	EnergyLevel   string   `json:"energyLevel"`
	KeyElements   string   `json:"keyElements"`
	SunoDirective string   `json:"sunoDirective"`
	Lyrics        string   `json:"lyrics"`
}

// TrackInfo identifies a recognized recording.
type TrackInfo struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Platform string `json:"platform"`
}

// LyricsResult is the plain-text lyrics response.
type LyricsResult struct {
	Text string `json:"text"`
}

func (*AnalysisResult) isResult() {}
func (LyricsResult) isResult() {}
