package domain

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	defaultExplanation = "No explanation provided"
	defaultAdvice      = "No specific advice provided"
)

var (
	fenceOpen  = regexp.MustCompile("^```(?:json)?\\s*\n")
	fenceClose = regexp.MustCompile("\n```\\s*$")

	labelClassification = regexp.MustCompile(`(?i)^\*{0,2}classification:\*{0,2}\s*`)
	labelExplanation    = regexp.MustCompile(`(?i)^\*{0,2}explanation:\*{0,2}\s*`)
	labelAdvice         = regexp.MustCompile(`(?i)^\*{0,2}advice:\*{0,2}\s*`)
)

// ParseContent extracts (category, explanation, advice) from a model reply.
//
// The expected shape is a JSON object
// {"classification": "...", "explanation": "...", "advice": "..."}, optionally
// wrapped in a markdown code fence. Replies in the older
// "Classification: ... / Explanation: ... / Advice: ..." line format are
// accepted as a fallback. An unrecognized or absent label yields
// CategoryUnknown rather than an error, so the reply is recorded, not dropped.
func ParseContent(content string) (Category, string, string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return CategoryUnknown, defaultExplanation, defaultAdvice
	}

	if category, explanation, advice, ok := parseJSONContent(content); ok {
		return category, explanation, advice
	}
	return parseLineContent(content)
}

func parseJSONContent(content string) (Category, string, string, bool) {
	cleaned := fenceClose.ReplaceAllString(fenceOpen.ReplaceAllString(content, ""), "")

	var reply struct {
		Classification string `json:"classification"`
		Explanation    string `json:"explanation"`
		Advice         string `json:"advice"`
	}
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return "", "", "", false
	}

	explanation := strings.TrimSpace(reply.Explanation)
	if explanation == "" {
		explanation = defaultExplanation
	}
	advice := strings.TrimSpace(reply.Advice)
	if advice == "" {
		advice = defaultAdvice
	}
	return ParseCategory(reply.Classification), explanation, advice, true
}

func parseLineContent(content string) (Category, string, string) {
	var rawCategory, explanation, advice string

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case labelClassification.MatchString(line):
			rawCategory = labelClassification.ReplaceAllString(line, "")
		case labelExplanation.MatchString(line):
			explanation = labelExplanation.ReplaceAllString(line, "")
		case labelAdvice.MatchString(line):
			advice = labelAdvice.ReplaceAllString(line, "")
		}
	}

	if explanation == "" {
		// Keep the raw reply so a malformed response stays auditable.
		explanation = content
	}
	if advice == "" {
		advice = defaultAdvice
	}
	return ParseCategory(rawCategory), explanation, advice
}
