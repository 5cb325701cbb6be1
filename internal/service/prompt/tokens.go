package prompt

import "unicode/utf8"

// runesPerToken approximates the provider's tokenizer at roughly four
// characters per token. The exact ratio matters less than determinism: the
// same text always costs the same number of tokens.
const runesPerToken = 4

// CountTokens returns the deterministic token cost of a message.
func CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + runesPerToken - 1) / runesPerToken
}

// TruncateToBudget cuts text down so its token cost does not exceed budget.
// A budget of zero or less yields an empty string.
func TruncateToBudget(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	maxRunes := budget * runesPerToken
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes])
}
