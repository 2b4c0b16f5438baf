package voice

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiSynthesizer synthesizes speech with a Gemini text-to-speech model.
type GeminiSynthesizer struct {
	client    *genai.Client
	model     string
	voiceName string
}

func NewGeminiSynthesizer(ctx context.Context, apiKey, model, voiceName string) (*GeminiSynthesizer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiSynthesizer{client: client, model: model, voiceName: voiceName}, nil
}

func (g *GeminiSynthesizer) Synthesize(ctx context.Context, text string) (Audio, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.voiceName},
			},
		},
	})
	if err != nil {
		return Audio{}, fmt.Errorf("generate speech: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Audio{}, errors.New("generate speech: empty response")
	}
	blob := resp.Candidates[0].Content.Parts[0].InlineData
	if blob == nil || len(blob.Data) == 0 {
		return Audio{}, errors.New("generate speech: no audio in response")
	}

	return Audio{
		MIMEType: blob.MIMEType,
		Data:     blob.Data,
		Duration: pcmDuration(blob.MIMEType, len(blob.Data)),
	}, nil
}

// pcmDuration computes the play time of 16-bit mono PCM described by a MIME
// type such as "audio/L16;codec=pcm;rate=24000". Other formats yield 0.
func pcmDuration(mimeType string, size int) time.Duration {
	parts := strings.Split(mimeType, ";")
	if !strings.EqualFold(strings.TrimSpace(parts[0]), "audio/L16") {
		return 0
	}
	rate := 24000
	for _, p := range parts[1:] {
		key, val, ok := strings.Cut(strings.TrimSpace(p), "=")
		if ok && key == "rate" {
			if r, err := strconv.Atoi(val); err == nil && r > 0 {
				rate = r
			}
		}
	}
	return time.Duration(size) * time.Second / time.Duration(rate*2)
}
