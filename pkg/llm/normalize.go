package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var ErrMalformedLabel = errors.New("no usable title in label response")

type Label struct {
	Title string `json:"title"`
}

// labelStrategy extracts a label from raw model output, reporting whether it matched.
type labelStrategy func(raw string) (Label, bool)

// Order matters: structured parses first, lossy text fallbacks last.
var labelStrategies = []labelStrategy{
	fromTaggedFence,
	fromBareObject,
	fromFencedText,
	fromEmbeddedObject,
	fromPlainText,
}

var (
	fenceRe = regexp.MustCompile("(?s)```(?:([A-Za-z0-9_+-]+)[ \t]*\r?\n)?(.*?)```")

	// Only conversational openers are stripped: "Sure, ", "Okay! here it is:",
	// "Here's the title:", "Title:". Titles that merely start with those
	// words ("Here Comes the Sun: ...") are kept whole.
	leadInRe = regexp.MustCompile(`(?i)^(?:` +
		`(?:sure|okay|ok|certainly|of course|absolutely)[,!.]\s*(?:` + hereIs + `\s*:)?` +
		`|` + hereIs + `\s*:` +
		`|(?:the title is|title)\s*:` +
		`)\s*`)
)

const hereIs = `here(?:'s| is| it is| you go)(?: (?:the|a|your|my) (?:title|label))?`

// NormalizeLabel turns whatever the label generator produced into a Label.
// Models wrap JSON in markdown fences, add prose, or skip JSON entirely; each
// case is handled by one strategy and the first match wins.
func NormalizeLabel(raw string) (Label, error) {
	if strings.TrimSpace(raw) == "" {
		return Label{}, ErrMalformedLabel
	}

	for _, strategy := range labelStrategies {
		if label, ok := strategy(raw); ok {
			return label, nil
		}
	}

	return Label{}, ErrMalformedLabel
}

func fromTaggedFence(raw string) (Label, bool) {
	for _, m := range fenceRe.FindAllStringSubmatch(raw, -1) {
		if !strings.EqualFold(m[1], "json") {
			continue
		}
		if label, ok := parseLabelObject(m[2]); ok {
			return label, true
		}
	}
	return Label{}, false
}

func fromBareObject(raw string) (Label, bool) {
	return parseLabelObject(raw)
}

// fromFencedText takes the content of a fence that did not hold a usable
// object. Any language tag is dropped.
func fromFencedText(raw string) (Label, bool) {
	for _, m := range fenceRe.FindAllStringSubmatch(raw, -1) {
		if label, ok := parseLabelObject(m[2]); ok {
			return label, true
		}
		if strings.ContainsAny(m[2], "{}") {
			continue
		}
		if title := cleanTitle(m[2]); title != "" {
			return Label{Title: title}, true
		}
	}
	return Label{}, false
}

func fromEmbeddedObject(raw string) (Label, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Label{}, false
	}
	return parseLabelObject(raw[start : end+1])
}

func fromPlainText(raw string) (Label, bool) {
	text := strings.TrimSpace(strings.ReplaceAll(raw, "```", ""))
	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		// an object without a usable title is not a title either
		return Label{}, false
	}
	if stripped := leadInRe.ReplaceAllString(text, ""); strings.TrimSpace(stripped) != "" {
		text = stripped
	}

	title := cleanTitle(text)
	if title == "" {
		return Label{}, false
	}
	return Label{Title: title}, true
}

// parseLabelObject accepts an object with a non-empty string "title", or a
// single-key object whose only value is a non-empty string.
func parseLabelObject(s string) (Label, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return Label{}, false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return Label{}, false
	}

	if title, ok := obj["title"].(string); ok {
		if title = cleanTitle(title); title != "" {
			return Label{Title: title}, true
		}
		return Label{}, false
	}

	if len(obj) != 1 {
		return Label{}, false
	}
	for _, v := range obj {
		if title, ok := v.(string); ok {
			if title = cleanTitle(title); title != "" {
				return Label{Title: title}, true
			}
		}
	}
	return Label{}, false
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"`, `'`, "`"} {
		if len(s) >= 2 && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
