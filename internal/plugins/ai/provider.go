package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// Provider performs a single completion. The key is passed per call since
// admins can rotate it at runtime.
type Provider interface {
	Complete(ctx context.Context, apiKey string, p Prompt) (string, error)
}

// GeminiProvider calls the Gemini API through the genai SDK.
type GeminiProvider struct {
	model       string
	temperature float32

	mu     sync.Mutex
	key    string
	client *genai.Client
}

// NewGeminiProvider creates a provider for the given model name.
func NewGeminiProvider(model string, temperature float64) *GeminiProvider {
	return &GeminiProvider{model: model, temperature: float32(temperature)}
}

// clientFor returns a client for apiKey, rebuilding it when the key changes.
func (g *GeminiProvider) clientFor(ctx context.Context, apiKey string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil && g.key == apiKey {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	g.key, g.client = apiKey, client
	return client, nil
}

// Complete sends p and returns the concatenated text of the first candidate.
func (g *GeminiProvider) Complete(ctx context.Context, apiKey string, p Prompt) (string, error) {
	client, err := g.clientFor(ctx, apiKey)
	if err != nil {
		return "", err
	}

	var parts []*genai.Part
	if len(p.InlineData) > 0 {
		parts = append(parts, genai.NewPartFromBytes(p.InlineData, p.InlineMIMEType))
	}
	parts = append(parts, genai.NewPartFromText(p.Text))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(g.temperature),
		SystemInstruction: genai.NewContentFromText(p.SystemInstruction, genai.RoleUser),
	}
	if p.Structured {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = analysisSchema()
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("generate content: no candidates returned")
	}
	return resp.Text(), nil
}

// analysisSchema is the response schema shared by every structured kind.
func analysisSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	num := &genai.Schema{Type: genai.TypeNumber}
	strList := &genai.Schema{Type: genai.TypeArray, Items: str}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"bpm":                 num,
			"key":                 str,
			"timeSignature":       str,
			"genre":               str,
			"mood":                strList,
			"instruments":         strList,
			"vocalType":           str,
			"description":         str,
			"rhythmAnalysis":      str,
			"compositionAnalysis": str,
			"sections": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":          str,
						"description":   str,
						"instruments":   strList,
						"energyLevel":   str,
						"keyElements":   str,
						"sunoDirective": str,
						"lyrics":        str,
					},
				},
			},
			"productionQuality": str,
			"danceability":      num,
			"energy":            num,
			"sunoPrompt":        str,
			"trackInfo": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title":    str,
					"artist":   str,
					"platform": str,
				},
			},
		},
	}
}
