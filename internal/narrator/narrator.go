// Package narrator produces post-game trash talk through an
// OpenAI-compatible chat endpoint, with canned lines as the fallback. It is
// strictly best effort: no failure here ever reaches a caller.
package narrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"riftbot/internal/config"
	"riftbot/internal/domain"

	"github.com/rs/zerolog"
)

type Service struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

func New(cfg *config.Config, logger zerolog.Logger) *Service {
	return &Service{
		baseURL: strings.TrimRight(cfg.LLMBaseURL, "/"),
		apiKey:  cfg.LLMAPIKey,
		model:   cfg.LLMModel,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger.With().Str("component", "narrator").Logger(),
	}
}

const systemPrompt = "You write one-line, playful trash talk about a League of Legends match between friends. Keep it short, specific to the stats, and never mean-spirited."

func (s *Service) Narrate(ctx context.Context, analysis *domain.MatchAnalysis) []string {
	if s.apiKey == "" {
		return fallbackLines(analysis)
	}

	lines, err := s.generate(ctx, analysis)
	if err != nil {
		s.logger.Warn().Err(err).Str("match_id", analysis.MatchID).Msg("llm generation failed, using fallback")
		return fallbackLines(analysis)
	}
	return lines
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (s *Service) generate(ctx context.Context, analysis *domain.MatchAnalysis) ([]string, error) {
	payload := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: describeMatch(analysis)},
		},
		MaxTokens:   200,
		Temperature: 0.9,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("llm returned no choices")
	}

	var lines []string
	for _, line := range strings.Split(parsed.Choices[0].Message.Content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("llm returned empty content")
	}
	return lines, nil
}

func describeMatch(analysis *domain.MatchAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Match lasted %d minutes.\n", int(analysis.GameDuration.Minutes()))
	for _, p := range analysis.Participants {
		outcome := "lost"
		if p.Win {
			outcome = "won"
		}
		fmt.Fprintf(&b, "%s played %s, went %d/%d/%d and %s.\n",
			p.DiscordID, p.Champion, p.Kills, p.Deaths, p.Assists, outcome)
	}
	if analysis.MVP != nil {
		fmt.Fprintf(&b, "MVP: %s.\n", analysis.MVP.DiscordID)
	}
	if analysis.Feeder != nil {
		fmt.Fprintf(&b, "Worst performer: %s.\n", analysis.Feeder.DiscordID)
	}
	return b.String()
}

// fallbackLines keys canned commentary by outcome category: win, loss,
// feeder. Deterministic on the analysis contents.
func fallbackLines(analysis *domain.MatchAnalysis) []string {
	var lines []string
	if analysis.MVP != nil {
		p := analysis.MVP
		if p.Win {
			lines = append(lines, fmt.Sprintf("%s carried on %s with a %d/%d/%d scoreline.", p.DiscordID, p.Champion, p.Kills, p.Deaths, p.Assists))
		} else {
			lines = append(lines, fmt.Sprintf("%s did everything on %s (%d/%d/%d) and still couldn't save it.", p.DiscordID, p.Champion, p.Kills, p.Deaths, p.Assists))
		}
	}
	if analysis.Feeder != nil {
		p := analysis.Feeder
		lines = append(lines, fmt.Sprintf("%s went %d/%d/%d on %s. The enemy team sends their thanks.", p.DiscordID, p.Kills, p.Deaths, p.Assists, p.Champion))
	}
	if len(lines) == 0 {
		lines = append(lines, "Another game in the books.")
	}
	return lines
}
