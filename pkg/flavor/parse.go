package flavor

import (
	"encoding/json"
	"strings"
)

// Models wrap JSON in markdown fences or chatter often enough that batch
// parsing has to dig the array out of whatever came back. Items that fail to
// parse or carry empty text are dropped, never retried; a partially bad
// batch simply yields a shorter refill.

type rawBark struct {
	Line    string `json:"line"`
	Emotion string `json:"emotion"`
}

type rawGraffiti struct {
	Text  string `json:"text"`
	Style string `json:"style"`
}

// parseBarkBatch extracts well-formed bark items from a generator response.
func parseBarkBatch(response string) []BarkItem {
	var raws []rawBark
	if err := json.Unmarshal(extractJSONArray(response), &raws); err != nil {
		return nil
	}
	items := make([]BarkItem, 0, len(raws))
	for _, r := range raws {
		line := strings.TrimSpace(r.Line)
		if line == "" {
			continue
		}
		items = append(items, BarkItem{Line: line, Emotion: ParseEmotion(r.Emotion)})
	}
	return items
}

// parseGraffitiBatch extracts well-formed graffiti items from a generator
// response.
func parseGraffitiBatch(response string) []GraffitiItem {
	var raws []rawGraffiti
	if err := json.Unmarshal(extractJSONArray(response), &raws); err != nil {
		return nil
	}
	items := make([]GraffitiItem, 0, len(raws))
	for _, r := range raws {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		items = append(items, GraffitiItem{Text: text, Style: ParseGraffitiStyle(r.Style)})
	}
	return items
}

// parseSingleLine cleans up a one-line response (quip, commentary): strips
// fences, surrounding quotes and keeps only the first non-empty line.
func parseSingleLine(response string) string {
	s := strings.TrimSpace(response)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.Trim(line, `"'`)
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

// extractJSONArray returns the outermost [...] slice of the response, so
// fenced or prose-wrapped arrays still decode.
func extractJSONArray(response string) []byte {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start < 0 || end <= start {
		return []byte(response)
	}
	return []byte(response[start : end+1])
}
