// Package messages renders every text and keyboard the bot sends. Texts use
// legacy Telegram Markdown; user supplied content is always escaped.
package messages

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/relaybot/bot/command"
	"github.com/m3rciful/relaybot/core/telegram/format"
	"github.com/m3rciful/relaybot/core/telegram/keyboard"
)

const (
	TimedOut        = "⏰ Time is up. Send /start to try again."
	Failure         = "❌ Something went wrong. Please try again later."
	OperatorFailure = "❌ The operation failed, see the logs."
	ExchangeBusy    = "⏳ Finish the pending prompt first."

	ReplySent    = "✅ Reply sent to the user!"
	ReplyTimeout = "⏰ Waiting for the reply timed out."
	Blocked      = "🚫 User blocked!"
	Unblocked    = "✅ User unblocked!"

	BroadcastPrompt  = "📢 Write the message for the broadcast:"
	BroadcastTimeout = "⏰ Waiting for the broadcast message timed out."

	ReportGenerating = "📊 Generating the report..."
	ReportSent       = "✅ Report sent!"
	ReportFailed     = "❌ Report generation failed."
	ReportCaptionXLS = "📊 Feedback report .xlsx"
	ReportCaptionCSV = "📊 Feedback report .csv"

	AdminPanel   = "🛠 *Operator panel*\n\nChoose an action:"
	NoUsers      = "👥 No users found."
	usersHeader  = "👥 *User management:*\n\n"
	notSet       = "not set"
	noName       = "No name"
	noUsername   = "no username"
	labelBack    = "⬅️ Back"
	labelReply   = "✉️ Reply"
	labelBlock   = "🚫 Block"
	labelUnblock = "✅ Unblock"
)

// Profile is the sender metadata shown to the operator.
type Profile struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

func card(p Profile) string {
	username := p.Username
	if username == "" {
		username = notSet
	}
	name := strings.TrimSpace(p.FirstName)
	if name == "" {
		name = notSet
	}
	return fmt.Sprintf("*ID:* %d\n*Username:* @%s\n*Name:* %s\n",
		p.ID, format.Escape(username), format.Escape(name))
}

// Forward renders a relayed user message for the operator.
func Forward(p Profile, text string) string {
	return "💬 *Message from a user:*\n" + card(p) + "\n*Message:* " + format.Escape(text)
}

// Question renders the prompt for step i (zero based) of n. Configured
// prompts are plain text.
func Question(i, n int, prompt string) string {
	return fmt.Sprintf("*Question %d/%d:* %s", i+1, n, format.Escape(prompt))
}

// Plain escapes a configured text so it is sent verbatim.
func Plain(text string) string {
	return format.Escape(text)
}

// Transcript interleaves questions and answers into the stored plain-text form.
func Transcript(questions, answers []string) string {
	var b strings.Builder
	for i, q := range questions {
		a := ""
		if i < len(answers) {
			a = answers[i]
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s\nAnswer: %s", i+1, q, a)
	}
	return b.String()
}

// NewFeedback renders a completed questionnaire for the operator.
func NewFeedback(p Profile, transcript string) string {
	return "👤 *New feedback from a user:*\n" + card(p) + "\n📝 *Answers:*\n" + format.Escape(transcript)
}

// ReplyPrompt asks the operator for the reply to userID.
func ReplyPrompt(userID int64) string {
	return fmt.Sprintf("💬 Write your reply to user %d:", userID)
}

// ReplyToUser wraps the operator reply delivered to the user.
func ReplyToUser(text string) string {
	return "📨 *Reply from the operator:*\n\n" + format.Escape(text)
}

// BroadcastBody wraps a broadcast message.
func BroadcastBody(text string) string {
	return "📢 *Broadcast:*\n\n" + format.Escape(text)
}

// BroadcastDone reports the broadcast tally.
func BroadcastDone(sent, failed int) string {
	return fmt.Sprintf("✅ Broadcast finished!\nSent: %d\nFailed: %d", sent, failed)
}

func btn(text string, c command.Command) keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: text, Data: c.Payload()}
}

// UserActions returns the reply/block/unblock keyboard attached to every
// message the operator receives on behalf of a user.
func UserActions(userID int64) [][]keyboard.InlineBtn {
	return [][]keyboard.InlineBtn{
		{btn(labelReply, command.Command{Action: command.Reply, UserID: userID})},
		{
			btn(labelBlock, command.Command{Action: command.Block, UserID: userID}),
			btn(labelUnblock, command.Command{Action: command.Unblock, UserID: userID}),
		},
	}
}

// AdminPanelRows returns the root operator panel keyboard.
func AdminPanelRows() [][]keyboard.InlineBtn {
	return [][]keyboard.InlineBtn{
		{btn("👥 User management", command.Command{Action: command.UserManagement})},
		{btn("📢 Mass broadcast", command.Command{Action: command.Broadcast})},
		{btn("📊 Generate report", command.Command{Action: command.Report})},
	}
}

// UserEntry is one row of the user management view.
type UserEntry struct {
	Profile
	Blocked bool
}

// UserManagement renders the user list with a block/unblock toggle per user.
func UserManagement(users []UserEntry) (string, [][]keyboard.InlineBtn) {
	back := []keyboard.InlineBtn{btn(labelBack, command.Command{Action: command.BackToAdmin})}
	if len(users) == 0 {
		return NoUsers, [][]keyboard.InlineBtn{back}
	}
	var b strings.Builder
	b.WriteString(usersHeader)
	rows := make([][]keyboard.InlineBtn, 0, len(users)+1)
	for _, u := range users {
		status, action, label := "✅", command.Block, "Block"
		if u.Blocked {
			status, action, label = "🚫", command.Unblock, "Unblock"
		}
		name := u.FirstName
		if name == "" {
			name = noName
		}
		username := u.Username
		if username == "" {
			username = noUsername
		}
		fmt.Fprintf(&b, "%s %s (@%s) (ID: %d)\n", status, format.Escape(name), format.Escape(username), u.ID)
		rows = append(rows, []keyboard.InlineBtn{
			btn(label+" "+strconv.FormatInt(u.ID, 10), command.Command{Action: action, UserID: u.ID}),
		})
	}
	rows = append(rows, back)
	return b.String(), rows
}
