// Package report writes transcripts and review overviews as markdown
// artifacts.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chatlens-ai/chatlens/internal/transcript"
	"github.com/chatlens-ai/chatlens/internal/util"
)

// RenderTranscript builds the markdown document for one conversation. The
// message contents are already escape-safe; the document only adds headings
// and metadata lines around them.
func RenderTranscript(conversationID string, messages []transcript.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Conversation %s\n", conversationID)

	for _, msg := range messages {
		b.WriteString("\n")
		heading := "###"
		if msg.Meta.ParentID != "" {
			heading = "####"
		}
		fmt.Fprintf(&b, "%s %s\n", heading, msg.Meta.Title)

		var details []string
		if msg.Meta.ID != "" {
			details = append(details, "span "+msg.Meta.ID)
		}
		if msg.Meta.DurationSec > 0 {
			details = append(details, fmt.Sprintf("%.3fs", msg.Meta.DurationSec))
		}
		if msg.Meta.Status != "" {
			details = append(details, msg.Meta.Status)
		}
		if len(details) > 0 {
			fmt.Fprintf(&b, "> %s\n", strings.Join(details, " · "))
		}

		if msg.Content != "" {
			b.WriteString("\n")
			b.WriteString(msg.Content)
			if !strings.HasSuffix(msg.Content, "\n") {
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// WriteTranscript writes the transcript document to path, creating parent
// directories as needed.
func WriteTranscript(conversationID string, messages []transcript.Message, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(RenderTranscript(conversationID, messages)), 0644)
}

// TranscriptFilename derives a stable artifact name for a conversation.
func TranscriptFilename(conversationID string) string {
	return util.Slugify(conversationID) + ".md"
}
