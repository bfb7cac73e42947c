package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"
)

// GeminiTranslator calls the Gemini generateContent API.
type GeminiTranslator struct {
	prov   Provider
	client *genai.Client
	logger arbor.ILogger
}

// NewGeminiTranslator returns an adapter for prov.
func NewGeminiTranslator(ctx context.Context, prov Provider, logger arbor.ILogger) (*GeminiTranslator, error) {
	cfg := &genai.ClientConfig{
		APIKey:  prov.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if prov.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: prov.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return &GeminiTranslator{prov: prov, client: client, logger: logger}, nil
}

// PreferredChunkSize implements ChunkSizeHinter.
func (g *GeminiTranslator) PreferredChunkSize() int {
	return g.prov.ChunkSize
}

// Translate implements Translator.
func (g *GeminiTranslator) Translate(ctx context.Context, req *Request) (*Response, error) {
	system, user, err := BuildPrompts(req, g.prov.PromptTemplate)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}
	if g.prov.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(g.prov.Temperature))
	}

	g.logger.Debug().
		Str("model", g.prov.Model).
		Int("entries", req.Content.Len()).
		Msg("Sending Gemini generateContent request")

	resp, err := g.client.Models.GenerateContent(ctx, g.prov.Model,
		[]*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}, config)
	if err != nil {
		return nil, fmt.Errorf("Gemini generation failed: %w", err)
	}

	var text strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			if text.Len() > 0 {
				break
			}
		}
	}
	if text.Len() == 0 {
		return &Response{Success: false, Error: "no text in Gemini response"}, nil
	}

	content, err := ParseResponse(text.String())
	if err != nil {
		return nil, err
	}

	out := &Response{Success: true, Content: content}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     int64(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int64(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}
