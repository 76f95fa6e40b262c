package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSONFound is returned when no valid JSON object/array is found in the input
var ErrNoJSONFound = errors.New("no valid JSON object or array found in response")

// ExtractJSON extracts and validates JSON from LLM responses that may contain
// garbage characters, markdown formatting, or other non-JSON content.
//
// It handles common issues like:
// - Markdown code blocks (```json ... ```)
// - Prose before/after valid JSON
//
// The fallback is first-{/last-} matching, so text containing several
// independent JSON objects can mis-extract. Best effort, not a parser.
func ExtractJSON(response string) (string, error) {
	if response == "" {
		return "", ErrNoJSONFound
	}

	// Step 1: Strip markdown code fences, then try a strict parse
	cleaned := extractFromMarkdown(response)
	if json.Valid([]byte(cleaned)) {
		return cleaned, nil
	}

	// Step 2: Bracket matching to find a complete embedded JSON value
	jsonStr := extractJSONByBrackets(cleaned)
	if jsonStr != "" && json.Valid([]byte(jsonStr)) {
		return jsonStr, nil
	}

	// Step 3: Aggressive extraction - first { or [ to last } or ]
	jsonStr = aggressiveExtract(response)
	if jsonStr != "" && json.Valid([]byte(jsonStr)) {
		return jsonStr, nil
	}

	return "", fmt.Errorf("%w: response length=%d", ErrNoJSONFound, len(response))
}

// ExtractJSONTo extracts JSON from response and unmarshals it into the target
func ExtractJSONTo(response string, target interface{}) error {
	jsonStr, err := ExtractJSON(response)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(jsonStr), target); err != nil {
		return fmt.Errorf("%w: %v", ErrNoJSONFound, err)
	}
	return nil
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")

// extractFromMarkdown removes markdown code block formatting
func extractFromMarkdown(s string) string {
	s = strings.TrimSpace(s)

	if matches := fenceRe.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	// Unterminated fences
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}

// extractJSONByBrackets uses bracket matching to find complete JSON
func extractJSONByBrackets(s string) string {
	// Find the first { or [
	startObj := strings.Index(s, "{")
	startArr := strings.Index(s, "[")

	var start int
	var openChar, closeChar rune

	switch {
	case startObj == -1 && startArr == -1:
		return ""
	case startArr == -1 || (startObj != -1 && startObj < startArr):
		start = startObj
		openChar, closeChar = '{', '}'
	default:
		start = startArr
		openChar, closeChar = '[', ']'
	}

	// Scan for the matching close bracket, skipping string literals
	depth := 0
	inString := false
	escaped := false
	end := -1

	for i := start; i < len(s); i++ {
		c := rune(s[i])

		if escaped {
			escaped = false
			continue
		}

		if c == '\\' && inString {
			escaped = true
			continue
		}

		if c == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		if c == openChar {
			depth++
		} else if c == closeChar {
			depth--
			if depth == 0 {
				end = i + 1
				break
			}
		}
	}

	if end == -1 {
		return ""
	}

	return s[start:end]
}

// aggressiveExtract tries to find JSON by looking for first { and last }
func aggressiveExtract(s string) string {
	// Try object first
	firstBrace := strings.Index(s, "{")
	lastBrace := strings.LastIndex(s, "}")

	if firstBrace != -1 && lastBrace > firstBrace {
		candidate := s[firstBrace : lastBrace+1]
		if json.Valid([]byte(candidate)) {
			return candidate
		}
	}

	// Try array
	firstBracket := strings.Index(s, "[")
	lastBracket := strings.LastIndex(s, "]")

	if firstBracket != -1 && lastBracket > firstBracket {
		candidate := s[firstBracket : lastBracket+1]
		if json.Valid([]byte(candidate)) {
			return candidate
		}
	}

	return ""
}
