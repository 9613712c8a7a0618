package bot

import (
	"fmt"
	"strings"

	"github.com/qiweiii/github-custom-notifier/internal/model"
)

// ParseRepoArg extracts an `owner/repo` name from a command argument string.
func ParseRepoArg(args string) (string, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return "", fmt.Errorf("repository name is required")
	}
	name := strings.Fields(s)[0]
	if err := model.ValidateRepoName(name); err != nil {
		return "", err
	}
	return name, nil
}

// ParseRuleArgs extracts a repository name and a rule value.
// Format: <owner/repo> <value...>; the value may contain spaces.
func ParseRuleArgs(args string) (repoName, value string, err error) {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(parts) < 2 {
		return "", "", fmt.Errorf("usage: <owner/repo> <value>")
	}
	if err := model.ValidateRepoName(parts[0]); err != nil {
		return "", "", err
	}
	value = strings.TrimSpace(parts[1])
	if value == "" {
		return "", "", fmt.Errorf("rule value is required")
	}
	return parts[0], value, nil
}

// ParseItemIDArg extracts a notification item id from a command argument
// string. Ids are namespaced ("issueevent-123", "issuecomment-456").
func ParseItemIDArg(args string) (string, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return "", fmt.Errorf("notification id is required")
	}
	id := strings.Fields(s)[0]
	if !strings.HasPrefix(id, "issueevent-") && !strings.HasPrefix(id, "issuecomment-") {
		return "", fmt.Errorf("invalid notification id %q", id)
	}
	return id, nil
}
