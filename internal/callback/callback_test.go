package callback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		data string
		want Payload
	}{
		{"new_post", Payload{Action: ActionNewPost}},
		{"cancel", Payload{Action: ActionCancel}},
		{"stats", Payload{Action: ActionStats}},
		{"manage_posts", Payload{Action: ActionManage}},
		{"back_to_menu", Payload{Action: ActionBackToMenu}},
		{"view_post_1700000000000", Payload{Action: ActionViewPost, PostID: "1700000000000"}},
		{"delete_post_1700000000000", Payload{Action: ActionDeletePost, PostID: "1700000000000"}},
		{"like_1700000000000", Payload{Action: ActionLike, PostID: "1700000000000"}},
		{"like_", Payload{}},
		{"view_post_", Payload{}},
		{"like", Payload{}},
		{"bogus", Payload{}},
		{"", Payload{}},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.data))
		})
	}
}

func TestEncode_BitExact(t *testing.T) {
	assert.Equal(t, "new_post", NewPost())
	assert.Equal(t, "cancel", Cancel())
	assert.Equal(t, "stats", Stats())
	assert.Equal(t, "manage_posts", Manage())
	assert.Equal(t, "back_to_menu", BackToMenu())
	assert.Equal(t, "view_post_123", ViewPost("123"))
	assert.Equal(t, "delete_post_123", DeletePost("123"))
	assert.Equal(t, "like_123", Like("123"))
}

func TestEncodeParse_PostActions(t *testing.T) {
	for _, data := range []string{ViewPost("42"), DeletePost("42"), Like("42")} {
		p := Parse(data)
		assert.Equal(t, "42", p.PostID)
		assert.Equal(t, data, p.Encode())
	}
}

func TestLikeKeyboard(t *testing.T) {
	kb := LikeKeyboard("42", 3, "https://t.me/channel")
	require.Len(t, kb, 1)
	require.Len(t, kb[0], 2)
	assert.Equal(t, "❤️ Like (3)", kb[0][0].Text)
	assert.Equal(t, "like_42", kb[0][0].Data)
	assert.Equal(t, "https://t.me/channel", kb[0][1].URL)

	bare := LikeKeyboard("42", 0, "")
	require.Len(t, bare[0], 1)
	assert.Equal(t, "❤️ Like (0)", bare[0][0].Text)
}

func TestMainMenu(t *testing.T) {
	kb := MainMenu()
	require.Len(t, kb, 3)
	assert.Equal(t, "new_post", kb[0][0].Data)
	assert.Equal(t, "manage_posts", kb[1][0].Data)
	assert.Equal(t, "stats", kb[2][0].Data)
}
