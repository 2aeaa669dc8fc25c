package completion

import "strings"

// FormatSources renders the attribution block appended to grounded answers.
// Sources without a URI are skipped, a missing title falls back to the URI,
// and repeated entries are listed once in first-seen order.
func FormatSources(sources []Source) string {
	seen := make(map[string]struct{}, len(sources))
	links := make([]string, 0, len(sources))

	for _, s := range sources {
		if s.URI == "" {
			continue
		}
		label := s.Title
		if label == "" {
			label = s.URI
		}
		link := "[" + label + "](" + s.URI + ")"
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}

	if len(links) == 0 {
		return ""
	}
	return "\n\n---\n*Information sourced from: " + strings.Join(links, ", ") + "*"
}
