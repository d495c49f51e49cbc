package slack

import (
	"fmt"
	"strings"

	goslack "github.com/slack-go/slack"
)

// statusEmoji maps terminal run statuses to their notification marker.
func statusEmoji(status string) string {
	switch status {
	case "completed":
		return ":white_check_mark:"
	case "no_results":
		return ":mag:"
	case "cancelled":
		return ":no_entry_sign:"
	case "interrupted":
		return ":warning:"
	default:
		return ":x:"
	}
}

// BuildRunCompletedMessage renders the terminal notification blocks.
func BuildRunCompletedMessage(in RunCompletedInput, dashboardURL string) []goslack.Block {
	header := fmt.Sprintf("%s Search run #%d %s", statusEmoji(in.Status), in.RunID, in.Status)

	lines := []string{
		fmt.Sprintf("*Keywords:* %s", strings.Join(in.Keywords, ", ")),
	}
	if in.WinningAds > 0 || in.Status == "completed" {
		lines = append(lines, fmt.Sprintf("*Pages:* %d  *Winning ads:* %d", in.Pages, in.WinningAds))
	}
	if in.ErrorMessage != "" {
		lines = append(lines, fmt.Sprintf("*Error:* %s", truncate(in.ErrorMessage, 300)))
	}
	if dashboardURL != "" {
		lines = append(lines, fmt.Sprintf("<%s/runs/%d|View run>", dashboardURL, in.RunID))
	}

	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, header, false, false),
			nil, nil),
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, strings.Join(lines, "\n"), false, false),
			nil, nil),
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
