package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

const DefaultModelName = "gemini-2.0-flash"

// GeminiExtractor asks a Gemini model to read transactions out of free text.
type GeminiExtractor struct {
	client *genai.Client
	model  string
	now    func() time.Time
}

func NewGeminiExtractor(ctx context.Context, apiKey, model string) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("create genai client: missing API key")
	}
	if model == "" {
		model = DefaultModelName
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiExtractor{client: client, model: model, now: time.Now}, nil
}

func (g *GeminiExtractor) Extract(ctx context.Context, raw string) (Extraction, error) {
	if strings.TrimSpace(raw) == "" {
		return Extraction{}, ErrEmptyText
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}
	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(buildPrompt(raw, g.now())), cfg)
	if err != nil {
		return Extraction{}, fmt.Errorf("generate content: %w", err)
	}

	out, err := parseExtraction(resp.Text())
	if err != nil {
		return Extraction{}, err
	}
	slog.InfoContext(ctx, "Text extracted",
		"model", g.model,
		"candidates", len(out.Candidates),
		"errors", len(out.Errors),
		"duration", time.Since(start))
	return out, nil
}

func buildPrompt(raw string, now time.Time) string {
	return "You extract personal finance transactions from the text below.\n" +
		"Today is " + now.Format("2006-01-02") + "; resolve relative dates against it.\n\n" +
		"Return a JSON object with exactly two keys:\n" +
		"  \"transactions\": array of {\"description\": string, \"amount\": positive decimal with at most two decimals, " +
		"\"date\": \"YYYY-MM-DD\", \"isIncome\": boolean}\n" +
		"  \"errors\": array of strings describing text you could not turn into a transaction\n\n" +
		"Rules:\n" +
		"- Amounts are always positive; use isIncome for direction.\n" +
		"- Do not guess missing amounts or dates; report them in errors instead.\n" +
		"- Return ONLY raw JSON, no code fences.\n\n" +
		"Text:\n" + raw
}
