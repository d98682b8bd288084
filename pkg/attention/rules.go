package attention

import (
	"regexp"
	"strings"
)

var whWords = []string{"what", "why", "when", "where", "who", "how", "which", "whose"}

var auxiliaryVerbs = []string{"do", "does", "did", "can", "could", "will", "would", "should", "is", "are", "am"}

var formalAddressTerms = []string{"sir", "ma'am", "madam", "mister", "miss"}

var greetings = []string{"hey", "hi", "hello", "yo"}

// matchKeywords returns the configured keywords (or the configured user
// name) found in the lowercased transcript text.
func matchKeywords(lower string, keywords []string, userName string) []string {
	var matched []string
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			matched = append(matched, k)
		}
	}
	if userName != "" && strings.Contains(lower, userName) {
		matched = append(matched, userName)
	}
	return matched
}

// matchPatterns checks the built-in question/direct-address heuristics plus
// any caller-registered regex patterns, returning a label for each hit.
func matchPatterns(text, lower, userName string, questionPatterns, directPatterns []string) []string {
	var matched []string

	if isQuestionPattern(lower) {
		matched = append(matched, "question")
	}
	if isDirectAddressPattern(lower, userName) {
		matched = append(matched, "direct_address")
	}

	for _, p := range questionPatterns {
		if re, err := regexp.Compile(p); err == nil && re.MatchString(lower) {
			matched = append(matched, "custom_question:"+p)
		}
	}
	for _, p := range directPatterns {
		if re, err := regexp.Compile(p); err == nil && re.MatchString(lower) {
			matched = append(matched, "custom_direct_address:"+p)
		}
	}

	return matched
}

func isQuestionPattern(lower string) bool {
	trimmed := strings.TrimSpace(lower)
	if trimmed == "" {
		return false
	}
	terminalQuestion := strings.HasSuffix(trimmed, "?")

	firstWord := strings.Fields(trimmed)
	leadsWithQuestionWord := false
	if len(firstWord) > 0 {
		w := strings.Trim(firstWord[0], ",.!?")
		for _, wh := range whWords {
			if w == wh {
				leadsWithQuestionWord = true
				break
			}
		}
		if !leadsWithQuestionWord {
			for _, aux := range auxiliaryVerbs {
				if w == aux {
					leadsWithQuestionWord = true
					break
				}
			}
		}
	}

	containsYou := strings.Contains(trimmed, "you") || strings.Contains(trimmed, "your")

	if terminalQuestion {
		return true
	}
	if leadsWithQuestionWord {
		return true
	}
	if containsYou && strings.Contains(trimmed, "?") {
		return true
	}
	return false
}

func isDirectAddressPattern(lower, userName string) bool {
	trimmed := strings.TrimSpace(lower)
	if trimmed == "" {
		return false
	}

	if userName != "" {
		for _, g := range greetings {
			if strings.HasPrefix(trimmed, g+" "+userName) || strings.HasPrefix(trimmed, g+", "+userName) {
				return true
			}
		}
	}

	for _, term := range formalAddressTerms {
		if strings.Contains(trimmed, term) {
			return true
		}
	}

	if strings.Contains(trimmed, "excuse me") || strings.Contains(trimmed, "pardon me") {
		return true
	}

	fields := strings.Fields(trimmed)
	if len(fields) > 0 {
		w := strings.Trim(fields[0], ",.!?")
		if w == "look" || w == "listen" {
			return true
		}
	}

	return false
}

// ruleBasedConfidence scores soft signals per spec.md §4.4 step 3, clamped
// to at most 1.
func ruleBasedConfidence(text, lower string) float64 {
	var confidence float64

	if strings.Contains(lower, "?") {
		confidence += 0.2
	}
	if strings.Contains(lower, "you") {
		confidence += 0.15
	}
	if strings.Contains(lower, "your") {
		confidence += 0.1
	}
	if len(text) < 50 {
		confidence += 0.1
	}
	if len(text) > 0 {
		r := rune(text[0])
		if r >= 'A' && r <= 'Z' {
			confidence += 0.05
		}
	}

	if confidence > 1 {
		confidence = 1
	}
	return confidence
}
