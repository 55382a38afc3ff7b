package types

// CommandType identifies a slash command parsed from an issue comment.
type CommandType string

const (
	CommandCancelAutofix CommandType = "cancel-autofix"
	CommandNotSpam       CommandType = "not-spam"
	CommandForceRetry    CommandType = "force-retry"
	CommandApproveSpec   CommandType = "approve-spec"
	CommandStatus        CommandType = "status"
	CommandHelp          CommandType = "help"
)

// IsValid checks if the command type value is valid
func (c CommandType) IsValid() bool {
	switch c {
	case CommandCancelAutofix, CommandNotSpam, CommandForceRetry,
		CommandApproveSpec, CommandStatus, CommandHelp:
		return true
	}
	return false
}

// ReadOnly reports whether the command only reads state (no override record,
// no grace period interaction).
func (c CommandType) ReadOnly() bool {
	return c == CommandStatus || c == CommandHelp
}

// ParsedCommand is a recognized slash command from a comment. Transient:
// produced by parsing and consumed immediately by ExecuteCommand.
type ParsedCommand struct {
	Command CommandType `json:"command"`
	Args    []string    `json:"args"`
	RawText string      `json:"raw_text"`
	Author  string      `json:"author"`
}

// Reason extracts the value of a trailing "--reason <text...>" argument,
// or "" if none was given.
func (p *ParsedCommand) Reason() string {
	for i, arg := range p.Args {
		if arg == "--reason" && i+1 < len(p.Args) {
			reason := ""
			for j, tok := range p.Args[i+1:] {
				if j > 0 {
					reason += " "
				}
				reason += tok
			}
			return reason
		}
	}
	return ""
}
