package notes

import (
	"fmt"
	"strings"

	"github.com/shiplog/shiplog/internal/changeset"
)

// StyleConfig is the per-repository style configuration folded into every
// prompt. Zero values fall back to neutral defaults.
type StyleConfig struct {
	// Tone is the writing tone, e.g. "friendly", "formal", "playful".
	Tone string `json:"tone,omitempty"`
	// Language is the output language, e.g. "English", "German".
	Language string `json:"language,omitempty"`
	// ProductName is how the product is referred to in customer notes.
	ProductName string `json:"product_name,omitempty"`
}

// systemPrompt returns the fixed role and style rules for an audience.
func systemPrompt(audience Audience, style StyleConfig) string {
	tone := valueOr(style.Tone, "clear and professional")
	language := valueOr(style.Language, "English")
	product := valueOr(style.ProductName, "the product")

	var b strings.Builder
	b.WriteString("You are a release-notes writer. Output Markdown only, no preamble.\n")
	fmt.Fprintf(&b, "Write in %s with a %s tone.\n", language, tone)

	switch audience {
	case AudienceCustomer:
		fmt.Fprintf(&b, "Audience: customers of %s. ", product)
		b.WriteString("Describe what changed in terms of user benefit. ")
		b.WriteString("No commit hashes, no internal jargon, no file names. ")
		b.WriteString("Group changes under 'New', 'Improved', and 'Fixed' headings, skipping empty groups.\n")
	case AudienceDeveloper:
		b.WriteString("Audience: engineers integrating against this project. ")
		b.WriteString("Be precise and technical. Call out breaking changes first, then features, fixes, and internal changes. ")
		b.WriteString("Reference pull requests as (#N) where known.\n")
	case AudienceStakeholder:
		b.WriteString("Audience: non-technical business stakeholders. ")
		b.WriteString("Summarize the release in at most three short paragraphs focused on impact, risk, and customer value. ")
		b.WriteString("No bullet lists of individual changes.\n")
	}

	b.WriteString("If the change-set contains no commits, write a brief note that this release contains no significant changes.")
	return b.String()
}

// userPrompt serializes the change-set as structured context for the model.
func userPrompt(tag string, cs *changeset.ChangeSet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Generate release notes for tag %s", tag)
	if cs.PreviousTag != "" {
		fmt.Fprintf(&b, " (changes since %s)", cs.PreviousTag)
	}
	b.WriteString(".\n\n")

	if cs.ReleaseBody != "" {
		b.WriteString("Original release description:\n")
		b.WriteString(cs.ReleaseBody)
		b.WriteString("\n\n")
	}

	if len(cs.PullRequests) > 0 {
		b.WriteString("Pull requests:\n")
		for _, pr := range cs.PullRequests {
			fmt.Fprintf(&b, "- #%d %s by %s", pr.Number, pr.Title, valueOr(pr.AuthorLogin, "unknown"))
			if len(pr.Labels) > 0 {
				fmt.Fprintf(&b, " [%s]", strings.Join(pr.Labels, ", "))
			}
			b.WriteString("\n")
			if pr.Body != "" {
				b.WriteString("  ")
				b.WriteString(strings.ReplaceAll(firstLines(pr.Body, 6), "\n", "\n  "))
				b.WriteString("\n")
			}
		}
		if len(cs.PullRequests) == 20 {
			b.WriteString("(pull-request context truncated at 20 entries)\n")
		}
		b.WriteString("\n")
	}

	if len(cs.Commits) > 0 {
		b.WriteString("Commits, oldest first:\n")
		for _, c := range cs.Commits {
			shortSHA := c.SHA
			if len(shortSHA) > 8 {
				shortSHA = shortSHA[:8]
			}
			subject, _, _ := strings.Cut(c.Message, "\n")
			fmt.Fprintf(&b, "- %s by %s: %s\n", shortSHA, valueOr(c.AuthorName, "unknown"), subject)
		}
	} else {
		b.WriteString("No commits were found between the tags.\n")
	}

	return b.String()
}

// firstLines truncates text to at most n lines.
func firstLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[:n], "\n")
}

func valueOr(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
