package domain

// EventType names a realtime event delivered to clients.
type EventType string

const (
	EventPostNew     EventType = "post:new"
	EventPostLiked   EventType = "post:liked"
	EventCommentNew  EventType = "comment:new"
	EventFollowNew   EventType = "follow:new"
	EventTipReceived EventType = "tip:received"
)

// Event is published on a realtime channel.
type Event struct {
	Type         EventType `json:"type"`
	Data         any       `json:"data"`
	TargetWallet string    `json:"targetWallet,omitempty"`
}

// UserChannel is the personal channel of a wallet.
func UserChannel(wallet string) string {
	return "user:" + wallet
}

// FollowersChannel reaches every follower of a wallet.
func FollowersChannel(wallet string) string {
	return "user:" + wallet + ":followers"
}

type (
	LikeData struct {
		PostID      string `json:"postId"`
		LikerWallet string `json:"likerWallet"`
	}

	CommentData struct {
		PostID  string   `json:"postId"`
		Comment *Comment `json:"comment"`
	}

	FollowData struct {
		FollowerWallet string `json:"followerWallet"`
	}

	TipData struct {
		FromWallet string  `json:"fromWallet"`
		Amount     float64 `json:"amount"`
		PostID     string  `json:"postId,omitempty"`
	}
)
