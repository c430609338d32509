package render

// DefaultStopwords is the shared stopword set for word-frequency artifacts.
// The gov-specific entries come first, then common English filler.
var DefaultStopwords = []string{
	"gds", "gov", "govuk", "gov.uk", "uk",
	"blog", "week", "weeks", "new", "day", "s",
	"and", "the", "for", "with", "from", "into", "our", "we",
	"in", "a", "an", "of", "to", "too", "on", "at", "by", "as",
	"is", "are", "was", "were", "be", "been", "being",
	"it", "its", "this", "that", "these", "those",
	"not", "no", "or", "but", "than", "then", "there", "here",
	"out", "up", "down", "over", "under",
	"what", "how",
}
