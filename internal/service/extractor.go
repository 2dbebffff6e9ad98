package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/damoang/campaign-chronicle/internal/common"
)

// ExtractOptions selects which kinds of candidates to extract
type ExtractOptions struct {
	ExtractCharacters bool `json:"extractCharacters" form:"extractCharacters"`
	ExtractEvents     bool `json:"extractEvents" form:"extractEvents"`
	ExtractPlots      bool `json:"extractPlots" form:"extractPlots"`
	ExtractLore       bool `json:"extractLore" form:"extractLore"`
}

// AllExtractOptions enables every category
func AllExtractOptions() ExtractOptions {
	return ExtractOptions{ExtractCharacters: true, ExtractEvents: true, ExtractPlots: true, ExtractLore: true}
}

// ExtractedCharacter is a character candidate without id
type ExtractedCharacter struct {
	Name           string `json:"name"`
	Race           string `json:"race,omitempty"`
	CharacterClass string `json:"characterClass,omitempty"`
	Alignment      string `json:"alignment,omitempty"`
	IsNPC          bool   `json:"isNPC"`
	Biography      string `json:"biography,omitempty"`
}

// ExtractedEvent is a timeline event candidate; LinkedCharacters holds names
type ExtractedEvent struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	GameDate         string   `json:"gameDate,omitempty"`
	EventType        string   `json:"eventType"`
	LinkedCharacters []string `json:"linkedCharacters"`
}

// ExtractedPlot is a plot candidate; LinkedCharacters holds names
type ExtractedPlot struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	PlotType         string   `json:"plotType"`
	LinkedCharacters []string `json:"linkedCharacters"`
}

// ExtractedLore is a lore candidate
type ExtractedLore struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

// ExtractedContent is the structured output of an Extractor
type ExtractedContent struct {
	Characters []ExtractedCharacter `json:"characters"`
	Events     []ExtractedEvent     `json:"events"`
	Plots      []ExtractedPlot      `json:"plots"`
	Lore       []ExtractedLore      `json:"lore"`
}

// filter drops categories that were not requested and replaces nil with empty slices
func (c *ExtractedContent) filter(opts ExtractOptions) {
	if !opts.ExtractCharacters || c.Characters == nil {
		c.Characters = []ExtractedCharacter{}
	}
	if !opts.ExtractEvents || c.Events == nil {
		c.Events = []ExtractedEvent{}
	}
	if !opts.ExtractPlots || c.Plots == nil {
		c.Plots = []ExtractedPlot{}
	}
	if !opts.ExtractLore || c.Lore == nil {
		c.Lore = []ExtractedLore{}
	}
}

// Extractor turns raw campaign notes into candidate entities
type Extractor interface {
	Extract(ctx context.Context, content string, opts ExtractOptions) (*ExtractedContent, error)
}

// DisabledExtractor is used when no AI backend is configured
type DisabledExtractor struct{}

func (DisabledExtractor) Extract(context.Context, string, ExtractOptions) (*ExtractedContent, error) {
	return nil, common.ErrExtractorDisabled
}

const extractSystemPrompt = `You are an expert D&D campaign analyzer. Extract structured information from campaign notes and return it as JSON.

Instructions:
- Extract only information that is explicitly mentioned in the text
- For characters, identify both player characters and NPCs
- For events, focus on significant plot points, battles, discoveries, and roleplay moments
- For plots, identify main questlines, subplots, and story arcs
- For lore, extract world-building elements like locations, history, religions, cultures
- Return empty arrays for categories that have no relevant content

Return JSON in this exact format:
{
  "characters": [{"name": "string", "race": "string", "characterClass": "string", "alignment": "string", "isNPC": boolean, "biography": "string"}],
  "events": [{"title": "string", "description": "string", "gameDate": "string", "eventType": "string", "linkedCharacters": ["string"]}],
  "plots": [{"title": "string", "description": "string", "plotType": "string", "linkedCharacters": ["string"]}],
  "lore": [{"title": "string", "content": "string", "category": "string", "tags": ["string"]}]
}

Event types: combat, roleplay, discovery, travel, rest, other
Plot types: main, subplot, side-quest
Lore categories: location, history, religion, culture, organization, artifact, other`

// OpenAIExtractor calls an OpenAI-compatible chat completions endpoint
type OpenAIExtractor struct {
	baseURL    string // e.g. "https://api.openai.com/v1"
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIExtractor creates a new OpenAIExtractor
func NewOpenAIExtractor(baseURL, apiKey, model string, timeout time.Duration) *OpenAIExtractor {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAIExtractor{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (e *OpenAIExtractor) Extract(ctx context.Context, content string, opts ExtractOptions) (*ExtractedContent, error) {
	userMessage := fmt.Sprintf(`Analyze this D&D campaign content and extract information based on these options:
- Extract characters: %t
- Extract events: %t
- Extract plots: %t
- Extract lore: %t

Campaign content:
%s`, opts.ExtractCharacters, opts.ExtractEvents, opts.ExtractPlots, opts.ExtractLore, content)

	raw, err := e.callProvider(ctx, extractSystemPrompt, userMessage)
	if err != nil {
		return nil, fmt.Errorf("document extraction failed: %w", err)
	}

	var out ExtractedContent
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("document extraction returned invalid JSON: %w", err)
	}
	out.filter(opts)
	return &out, nil
}

func (e *OpenAIExtractor) callProvider(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	reqBody := map[string]interface{}{
		"model": e.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userMessage},
		},
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     0.3,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP 요청 실패: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("응답 읽기 실패: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API 오류 (%d): %s", resp.StatusCode, truncateStr(string(respBody), 200))
	}

	// OpenAI 포맷 파싱
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("응답 JSON 파싱 실패: %w", err)
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("AI 응답에서 텍스트를 찾을 수 없습니다")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// truncateStr cuts s to at most max bytes without splitting a rune
func truncateStr(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
