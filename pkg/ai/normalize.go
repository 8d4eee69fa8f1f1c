package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Feedback entry kinds produced by normalization.
const (
	KindPositive    = "positive"
	KindImprovement = "improvement"
	KindError       = "error"
	KindSuggestion  = "suggestion"
)

// FeedbackEntry is one discrete comment extracted from the model output.
type FeedbackEntry struct {
	Title   string
	Content string
	Kind    string
	Order   int
}

// Result is the normalized outcome of one inference response. Score is on the
// scale the model answered with; rescaling onto the exercise's point scale is
// a downstream concern.
type Result struct {
	Score    float64
	Feedback string
	Items    []FeedbackEntry
	Detail   map[string]interface{}
}

var (
	scorePattern = regexp.MustCompile(`(?:score|note|grade)\s*:?\s*(\d+(?:[.,]\d+)?)\s*(?:/\s*20)?`)

	feedbackPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?s)(?:feedback|commentaire général)\s*:?\s*(.*?)(?:\n\n|\n[A-Z]|$)`),
		regexp.MustCompile(`(?s)(?:remarques générales)\s*:?\s*(.*?)(?:\n\n|\n[A-Z]|$)`),
	}
)

// Normalize converts raw inference output into a structured result. The raw
// payload is treated as canonical JSON when it parses as an object; otherwise
// heuristic extraction runs over the free text. The function is pure: the same
// input always yields the same result.
func Normalize(raw string) Result {
	trimmed := strings.TrimSpace(raw)

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil && payload != nil {
		return normalizeStructured(payload)
	}

	return normalizeText(trimmed)
}

func normalizeStructured(payload map[string]interface{}) Result {
	result := Result{
		Score:    numberByPrecedence(payload, "score", "grade"),
		Feedback: stringByPrecedence(payload, "feedback", "general_comment"),
		Detail:   payload,
	}

	result.Items = extractItems(payload)
	if len(result.Items) == 0 && result.Feedback != "" {
		result.Items = []FeedbackEntry{{
			Title:   "Évaluation globale",
			Content: result.Feedback,
			Kind:    KindSuggestion,
			Order:   0,
		}}
	}

	return result
}

func normalizeText(text string) Result {
	score := extractScore(text)
	feedback := extractFeedback(text)

	result := Result{
		Score:    score,
		Feedback: feedback,
		Detail: map[string]interface{}{
			"score":    score,
			"feedback": feedback,
			"details":  text,
		},
	}

	if feedback != "" {
		result.Items = []FeedbackEntry{{
			Title:   "Évaluation globale",
			Content: feedback,
			Kind:    KindSuggestion,
			Order:   0,
		}}
	}

	return result
}

// extractScore searches for patterns like "Score: 15/20" or "Note: 15". A
// captured value above 20 is assumed to be on a 0-100 scale and mapped back
// onto 20. Absence of a match yields zero.
func extractScore(text string) float64 {
	match := scorePattern.FindStringSubmatch(strings.ToLower(text))
	if match == nil {
		return 0
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", "."), 64)
	if err != nil {
		return 0
	}

	if value > 20 {
		value = (value / 100) * 20
	}

	return value
}

// extractFeedback looks for a labelled section such as "Feedback:" or
// "Commentaire général:", capturing text up to the next blank line. The
// labelled match runs on lowercased text and returns the lowercased capture;
// without a labelled section the first paragraph is returned as written.
func extractFeedback(text string) string {
	lowered := strings.ToLower(text)

	for _, pattern := range feedbackPatterns {
		if match := pattern.FindStringSubmatch(lowered); match != nil {
			return strings.TrimSpace(match[1])
		}
	}

	paragraphs := strings.SplitN(text, "\n\n", 2)
	if len(paragraphs) > 0 {
		return strings.TrimSpace(paragraphs[0])
	}

	return ""
}

// extractItems walks the structured payload in a fixed order: strengths, then
// weaknesses, then detailed feedback entries, assigning sequential zero-based
// display orders across the groups.
func extractItems(payload map[string]interface{}) []FeedbackEntry {
	items := make([]FeedbackEntry, 0)
	order := 0

	for _, entry := range listField(payload, "strengths") {
		items = append(items, FeedbackEntry{
			Title:   "Point fort",
			Content: stringify(entry),
			Kind:    KindPositive,
			Order:   order,
		})
		order++
	}

	for _, entry := range listField(payload, "weaknesses") {
		items = append(items, FeedbackEntry{
			Title:   "Point à améliorer",
			Content: stringify(entry),
			Kind:    KindImprovement,
			Order:   order,
		})
		order++
	}

	for _, entry := range listField(payload, "detailed_feedback") {
		switch value := entry.(type) {
		case map[string]interface{}:
			item := FeedbackEntry{
				Title:   stringOr(value, "title", "Commentaire"),
				Content: stringOr(value, "content", ""),
				Kind:    stringOr(value, "type", KindSuggestion),
				Order:   order,
			}
			items = append(items, item)
			order++
		case string:
			items = append(items, FeedbackEntry{
				Title:   "Commentaire",
				Content: value,
				Kind:    KindSuggestion,
				Order:   order,
			})
			order++
		}
	}

	return items
}

func listField(payload map[string]interface{}, key string) []interface{} {
	if value, ok := payload[key]; ok {
		if list, ok := value.([]interface{}); ok {
			return list
		}
	}
	return nil
}

func numberByPrecedence(payload map[string]interface{}, keys ...string) float64 {
	for _, key := range keys {
		value, ok := payload[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case float64:
			return v
		case string:
			if parsed, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", "."), 64); err == nil {
				return parsed
			}
		case json.Number:
			if parsed, err := v.Float64(); err == nil {
				return parsed
			}
		}
	}
	return 0
}

func stringByPrecedence(payload map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value, ok := payload[key]; ok {
			if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func stringOr(payload map[string]interface{}, key, fallback string) string {
	if value, ok := payload[key]; ok {
		if s, ok := value.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func stringify(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}
