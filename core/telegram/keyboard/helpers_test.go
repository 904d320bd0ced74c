package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineButtonsRowsKeepsRawData(t *testing.T) {
	markup := InlineButtonsRows(
		[]InlineBtn{{Text: "Reply", Data: "reply_7"}, {Text: "Block", Data: "block_7"}},
		[]InlineBtn{{Text: "Back", Data: "back_to_admin"}},
	)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "block_7", markup.InlineKeyboard[0][1].Data)
	assert.Empty(t, markup.InlineKeyboard[0][1].Unique)
	assert.Equal(t, "Back", markup.InlineKeyboard[1][0].Text)
}

func TestInlineButtonsOnePerRow(t *testing.T) {
	markup := InlineButtons([]InlineBtn{{Text: "a"}, {Text: "b"}, {Text: "c"}})
	assert.Len(t, markup.InlineKeyboard, 3)
}

func TestRows(t *testing.T) {
	btns := []InlineBtn{{Text: "1"}, {Text: "2"}, {Text: "3"}}
	rows := Rows(btns, 2)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], 2)
	assert.Len(t, rows[1], 1)
	assert.Len(t, Rows(btns, 0), 3)
	assert.Empty(t, Rows(nil, 2))
}
