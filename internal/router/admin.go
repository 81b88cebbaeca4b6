package router

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tbourn/go-line-uploader/internal/command"
)

// Fixed reply texts for admin command handling.
const (
	replyDenied      = "Error: You do not have permission to use this command."
	replyListEmpty   = "No secret codes are currently configured."
	replyListHeader  = "Registered codes:"
	replyUnknown     = "Error: Unknown command."
	replyAddedFmt    = "Success: Code %s has been added for group %s."
	replyRemovedFmt  = "Success: Code %s has been removed."
	replyNotFoundFmt = "Error: Code %s was not found and could not be removed."
)

// handleCommand executes an administrative command and sends exactly one
// reply to the triggering sender. List is open to everyone; Add and Remove
// require admin membership and mutate nothing when denied. Successful
// mutations are persisted before the reply goes out; reply failures are
// logged and not surfaced.
func (r *Router) handleCommand(ctx context.Context, cmd command.Command, sender, replyToken string) {
	var text string

	switch cmd.Action {
	case command.ActionList:
		text = r.renderCodeList()

	case command.ActionAdd:
		if !r.codes.IsAdmin(sender) {
			text = replyDenied
			break
		}
		r.codes.AddCode(cmd.Code, cmd.Destination)
		r.persistCodes(sender)
		text = fmt.Sprintf(replyAddedFmt, cmd.Code, cmd.Destination)

	case command.ActionRemove:
		if !r.codes.IsAdmin(sender) {
			text = replyDenied
			break
		}
		if !r.codes.RemoveCode(cmd.Code) {
			text = fmt.Sprintf(replyNotFoundFmt, cmd.Code)
			break
		}
		r.persistCodes(sender)
		text = fmt.Sprintf(replyRemovedFmt, cmd.Code)

	default:
		// Unreachable for commands produced by Parse; kept so a grammar
		// extension cannot silently drop a reply.
		text = replyUnknown
	}

	if err := r.messenger.SendReply(ctx, replyToken, text); err != nil {
		r.log.Error().Err(err).Str("sender", sender).Msg("command reply failed")
	}
}

// renderCodeList builds the sorted human-readable code enumeration.
func (r *Router) renderCodeList() string {
	codes := r.codes.Codes()
	if len(codes) == 0 {
		return replyListEmpty
	}

	keys := make([]string, 0, len(codes))
	for k := range codes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(replyListHeader)
	for _, k := range keys {
		b.WriteString("\n")
		b.WriteString(k)
		b.WriteString("  ")
		b.WriteString(codes[k])
	}
	return b.String()
}

// persistCodes writes the mutated code map to disk, logging on failure.
// The in-memory map is already updated; a failed write is an operational
// problem, not a reason to tell the admin the mutation did not happen.
func (r *Router) persistCodes(sender string) {
	if err := r.codes.Persist(); err != nil {
		r.log.Error().Err(err).Str("sender", sender).Msg("code map persistence failed")
	}
}
