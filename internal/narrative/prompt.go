package narrative

import (
	"fmt"
	"strings"
)

// BuildPrompt returns the instruction sent with slide n's image. story is the
// narrative accumulated from the slides already summarized.
func BuildPrompt(n int, story string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This is slide %d of a presentation.\n", n)
	b.WriteString("The slide contains an image that may provide context for the summary.\n")
	b.WriteString("The general context of the presentation is about monthly marketing performance analysis for a brand.\n")
	fmt.Fprintf(&b, "The story so far: \"%s\".\n", story)
	b.WriteString("Please summarize this slide's content in a way that continues the narrative logically and smoothly based on the slide with no more than 50 words.\n")
	b.WriteString("Try not to repeat information already provided in the story so far as well as the way of summarizing the previous slides.\n")
	b.WriteString("The summary should be concise and informative, focusing on the key points of the slide.\n")
	b.WriteString("Remember to focus on the current month's marketing performance and how it relates to the overall brand strategy.\n")
	b.WriteString("The tone should be professional and suitable for a business presentation.\n")
	return b.String()
}

// CleanResponse strips leading newlines and carriage returns. Nothing else is
// trimmed.
func CleanResponse(text string) string {
	return strings.TrimLeft(text, "\r\n")
}

// Advance returns the story after slide n contributed summary.
func Advance(story string, n int, summary string) string {
	return story + fmt.Sprintf(" Slide %d: %s", n, summary)
}
