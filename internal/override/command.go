// Package override gives a human operator a veto window over automated
// actions and a slash-command surface for forcing state changes with an
// audit trail.
package override

import (
	"strings"

	"github.com/wardenhq/warden/internal/types"
)

// commandNames maps the slash-command word to its type. The grammar is
// "/command [args...]" on the first line of a comment; anything else is a
// plain comment and ignored by this subsystem.
var commandNames = map[string]types.CommandType{
	"cancel-autofix": types.CommandCancelAutofix,
	"not-spam":       types.CommandNotSpam,
	"force-retry":    types.CommandForceRetry,
	"approve-spec":   types.CommandApproveSpec,
	"status":         types.CommandStatus,
	"help":           types.CommandHelp,
}

// ParseComment matches text against the slash-command grammar. It returns
// nil for free-text comments and unrecognized commands.
func ParseComment(text, author string) *types.ParsedCommand {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return nil
	}
	// Only the first line carries the command; a comment may elaborate below.
	line := trimmed
	if idx := strings.IndexAny(trimmed, "\r\n"); idx >= 0 {
		line = trimmed[:idx]
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	cmdType, ok := commandNames[name]
	if !ok {
		return nil
	}

	return &types.ParsedCommand{
		Command: cmdType,
		Args:    fields[1:],
		RawText: text,
		Author:  author,
	}
}

// HelpText enumerates all supported commands for posting back as a comment.
func HelpText() string {
	var b strings.Builder
	b.WriteString("warden commands:\n")
	b.WriteString("  /cancel-autofix [--reason <text>]  cancel the pending automated fix and its grace period\n")
	b.WriteString("  /not-spam [--reason <text>]        reverse a spam classification, back to triaged\n")
	b.WriteString("  /force-retry [--reason <text>]     re-approve the issue for an automated fix attempt\n")
	b.WriteString("  /approve-spec [--reason <text>]    approve the generated spec and unblock the fix\n")
	b.WriteString("  /status                            show the issue's lifecycle state and overrides\n")
	b.WriteString("  /help                              show this message\n")
	return b.String()
}
