package generation

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/isaomisk/HoroloGen/pkg/article"
)

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
var bareJSONPattern = regexp.MustCompile(`(?s)(\{.*\})`)

// pickToolInput finds the article tool invocation in a response. The
// named tool wins; any other tool_use block is accepted as a fallback.
func pickToolInput(msg *Message) map[string]string {
	var fallback map[string]string
	for _, b := range msg.Content {
		if b.Type != "tool_use" || len(b.Input) == 0 {
			continue
		}
		var data map[string]string
		if err := json.Unmarshal(b.Input, &data); err != nil {
			continue
		}
		if b.Name == ArticleToolName {
			return data
		}
		if fallback == nil {
			fallback = data
		}
	}
	return fallback
}

// messageText concatenates the text blocks of a response.
func messageText(msg *Message) string {
	var parts []string
	for _, b := range msg.Content {
		if b.Type != "text" {
			continue
		}
		if t := strings.TrimSpace(b.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// extractJSONObject pulls a JSON object out of free text: a fenced
// code block first, then the outermost brace span.
func extractJSONObject(text string) map[string]string {
	if text == "" {
		return nil
	}
	if m := fencedJSONPattern.FindStringSubmatch(text); m != nil {
		if d := decodeStringMap(m[1]); d != nil {
			return d
		}
	}
	if m := bareJSONPattern.FindStringSubmatch(text); m != nil {
		return decodeStringMap(m[1])
	}
	return nil
}

func decodeStringMap(s string) map[string]string {
	var d map[string]string
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil
	}
	return d
}

// draftFrom converts an extracted map to a draft. ok is false when the
// required fields are missing or blank.
func draftFrom(data map[string]string) (article.ArticleDraft, bool) {
	d := article.ArticleDraft{
		IntroText: strings.TrimSpace(data["intro_text"]),
		SpecsText: strings.TrimSpace(data["specs_text"]),
	}
	return d, d.Valid()
}

func mapKeys(data map[string]string) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
