package config

// Comment widget selectors.
// These are isolated here because the site changes its DOM frequently.
// Update these when extraction breaks, or override them in config.toml.
const (
	TitleSelector = `h1`

	// One rendered comment; roots and replies share the class
	CommentSelector = `.comment-info`
	// Wraps the replies of one root comment
	ReplyListSelector = `.replay-list`

	// Fields inside a comment container
	AuthorSelector = `.name`
	TextSelector   = `.content`
	LikesSelector  = `.ttp-comment-like span`
	TimeSelector   = `.time`

	// "Show more replies" under a root comment
	ShowMoreRepliesSelector = `.check-more-reply`
)

// DefaultSelectors returns the selectors for the Toutiao comment widget
func DefaultSelectors() SelectorsConfig {
	return SelectorsConfig{
		Title:           TitleSelector,
		Comment:         CommentSelector,
		ReplyList:       ReplyListSelector,
		Author:          AuthorSelector,
		Text:            TextSelector,
		Likes:           LikesSelector,
		Time:            TimeSelector,
		ShowMoreReplies: ShowMoreRepliesSelector,

		LoadMore:         []string{`[class*='more']`, `[class*='load']`},
		LoadMoreKeywords: []string{"更多", "more", "加载", "load"},

		CommentButtons: []string{
			`.side-drawer-btn`,
			`.comment-btn`,
			`.show-comment`,
			`[class*='comment']`,
			`[class*='drawer']`,
			`button[class*='comment']`,
			`div[class*='comment']`,
		},
		CommentButtonKeywords: []string{"评论", "comment", "查看", "全部"},
	}
}
