package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptKeepsOrder(t *testing.T) {
	got := Transcript([]string{"Name?", "Issue?"}, []string{"Alice", "Login bug"})
	assert.Equal(t, "1. Name?\nAnswer: Alice\n\n2. Issue?\nAnswer: Login bug", got)
}

func TestForwardEscapesUserText(t *testing.T) {
	msg := Forward(Profile{ID: 9, Username: "bob_x", FirstName: "Bob"}, "use *bold*")
	assert.Contains(t, msg, "*ID:* 9")
	assert.Contains(t, msg, "@bob\\_x")
	assert.Contains(t, msg, "use \\*bold\\*")
}

func TestConfiguredTextsAreEscaped(t *testing.T) {
	assert.Equal(t, "*Question 2/3:* your\\_name \\*now\\*?", Question(1, 3, "your_name *now*?"))
	assert.Equal(t, "see \\[docs]", Plain("see [docs]"))
}

func TestForwardMissingProfileFields(t *testing.T) {
	msg := Forward(Profile{ID: 9}, "hi")
	assert.Contains(t, msg, "@not set")
}

func TestUserActions(t *testing.T) {
	rows := UserActions(42)
	require.Len(t, rows, 2)
	assert.Equal(t, "reply_42", rows[0][0].Data)
	assert.Equal(t, "block_42", rows[1][0].Data)
	assert.Equal(t, "unblock_42", rows[1][1].Data)
}

func TestUserManagement(t *testing.T) {
	text, rows := UserManagement(nil)
	assert.Equal(t, NoUsers, text)
	require.Len(t, rows, 1)
	assert.Equal(t, "back_to_admin", rows[0][0].Data)

	text, rows = UserManagement([]UserEntry{
		{Profile: Profile{ID: 1, FirstName: "Ann", Username: "ann"}},
		{Profile: Profile{ID: 2}, Blocked: true},
	})
	assert.Contains(t, text, "✅ Ann (@ann) (ID: 1)")
	assert.Contains(t, text, "🚫 No name (@no username) (ID: 2)")
	require.Len(t, rows, 3)
	assert.Equal(t, "block_1", rows[0][0].Data)
	assert.Equal(t, "unblock_2", rows[1][0].Data)
	assert.Equal(t, "back_to_admin", rows[2][0].Data)
}

func TestAdminPanelRows(t *testing.T) {
	rows := AdminPanelRows()
	require.Len(t, rows, 3)
	assert.Equal(t, "user_management", rows[0][0].Data)
	assert.Equal(t, "mass_broadcast", rows[1][0].Data)
	assert.Equal(t, "generate_report", rows[2][0].Data)
}
