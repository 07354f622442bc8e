// Package extractor turns raw fishing-report text into structured records
// using an OpenAI-compatible chat-completions endpoint.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/StevenGall/delavan-lake-fishing-reports/internal/report"
	"github.com/StevenGall/delavan-lake-fishing-reports/internal/retry"
)

const systemPrompt = "You are a fishing report analyzer. Return only valid JSON."

const extractionPrompt = `You are an expert at extracting structured fishing information from fishing reports.

Analyze the following fishing report and extract the relevant information. Return ONLY valid JSON with the following structure:

{
    "date_posted": "ISO format date if available, or null",
    "month": 1-12 integer for the month, or null if unknown,
    "season": "winter", "spring", "summer", or "fall" based on the date/context,
    "water_depth_feet": number in feet, or null if not mentioned,
    "species_caught": "comma-separated list of fish species actually caught",
    "species_targeted": "comma-separated list of fish species they were trying to catch",
    "bait_lure": "comma-separated list of baits or lures used",
    "location": "specific location on the lake if mentioned",
    "water_temp_f": number in Fahrenheit, or null if not mentioned,
    "air_temp_f": number in Fahrenheit, or null if not mentioned,
    "weather_conditions": "sunny, cloudy, partly cloudy, rainy, snowy, etc.",
    "ice_thickness_inches": number in inches if ice fishing, or null,
    "notes": "any other relevant fishing tips or observations"
}

Common fish species in Delavan Lake include: Largemouth Bass, Smallmouth Bass, Walleye, Northern Pike, Musky (Muskellunge), Bluegill, Crappie, Perch, Catfish, Carp, Panfish.

For location, look for references to: weed beds, drop-offs, points, bays, north/south/east/west shore, specific road names, depth contours, structures.

For bait/lures, look for: minnows, nightcrawlers, worms, jigs, crankbaits, spinnerbaits, soft plastics, live bait, tip-ups, jigging spoons, etc.

If information is not explicitly stated, use null rather than guessing.

FISHING REPORT:
Date: %s
Weather Badge: %s
Location Tag: %s
Content: %s

Return ONLY the JSON object, no other text.`

// Extraction is the structured payload the model returns. Every field is
// optional; the model is told to use null over guessing.
type Extraction struct {
	DatePosted         *string  `json:"date_posted"`
	Month              *int     `json:"month"`
	Season             *string  `json:"season"`
	WaterDepthFeet     *float64 `json:"water_depth_feet"`
	SpeciesCaught      *string  `json:"species_caught"`
	SpeciesTargeted    *string  `json:"species_targeted"`
	BaitLure           *string  `json:"bait_lure"`
	Location           *string  `json:"location"`
	WaterTempF         *float64 `json:"water_temp_f"`
	AirTempF           *float64 `json:"air_temp_f"`
	WeatherConditions  *string  `json:"weather_conditions"`
	IceThicknessInches *float64 `json:"ice_thickness_inches"`
	Notes              *string  `json:"notes"`
}

// ClientConfig configures the extraction client.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client calls the chat-completions endpoint.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient builds a Client. BaseURL should point at the API root, e.g.
// https://api.openai.com/v1.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func orNotSpecified(s *string) string {
	if s == nil || *s == "" {
		return "Not specified"
	}
	return *s
}

// Extract performs one extraction call. Transport failures and server-side
// errors are returned as plain errors so the caller can retry; malformed
// model output and request-level rejections come back wrapped in
// retry.Permanent because retrying them is pointless.
func (c *Client) Extract(ctx context.Context, raw report.RawReport) (Extraction, error) {
	prompt := fmt.Sprintf(extractionPrompt,
		orNotSpecified(raw.DatePosted),
		orNotSpecified(raw.WeatherBadge),
		orNotSpecified(raw.LocationTag),
		raw.RawContent,
	)

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
		MaxTokens:   500,
	})
	if err != nil {
		return Extraction{}, &retry.Permanent{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Extraction{}, &retry.Permanent{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return Extraction{}, fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Extraction{}, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Extraction{}, fmt.Errorf("chat completion: status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return Extraction{}, &retry.Permanent{Err: fmt.Errorf("chat completion: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(respBody)))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Extraction{}, &retry.Permanent{Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Error != nil {
		return Extraction{}, &retry.Permanent{Err: fmt.Errorf("chat completion: %s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return Extraction{}, &retry.Permanent{Err: fmt.Errorf("chat completion: no choices in response")}
	}

	content := stripCodeFence(parsed.Choices[0].Message.Content)

	var ext Extraction
	if err := json.Unmarshal([]byte(content), &ext); err != nil {
		return Extraction{}, &retry.Permanent{Err: fmt.Errorf("model returned invalid JSON: %w", err)}
	}
	return ext, nil
}

// stripCodeFence unwraps ```json ... ``` fences the model sometimes insists
// on adding despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	parts := strings.Split(s, "```")
	if len(parts) < 2 {
		return s
	}
	inner := parts[1]
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}
