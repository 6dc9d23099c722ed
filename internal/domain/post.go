package domain

import "time"

// Profile is a user as joined onto posts.
type Profile struct {
	Wallet          string     `json:"wallet"`
	Username        *string    `json:"username,omitempty"`
	Bio             *string    `json:"bio,omitempty"`
	ProfileImageURI *string    `json:"profileImageUri,omitempty"`
	FollowerCount   int        `json:"followerCount"`
	FollowingCount  int        `json:"followingCount"`
	PostCount       int        `json:"postCount"`
	IsVerified      bool       `json:"isVerified"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
}

// Post is a post record. AI-derived fields stay nil until analysis completes.
type Post struct {
	ID            string    `json:"id"`
	CreatorWallet string    `json:"creatorWallet"`
	ContentURI    string    `json:"contentUri"`
	ContentType   string    `json:"contentType"`
	Caption       *string   `json:"caption,omitempty"`
	Likes         int       `json:"likes"`
	Comments      int       `json:"comments"`
	TipsReceived  int64     `json:"tipsReceived"`
	Timestamp     time.Time `json:"timestamp"`

	LLMDescription *string  `json:"llmDescription,omitempty"`
	AutoTags       []string `json:"autoTags,omitempty"`
	SceneType      *string  `json:"sceneType,omitempty"`
	Mood           *string  `json:"mood,omitempty"`
	SafetyScore    *float64 `json:"safetyScore,omitempty"`
	AltText        *string  `json:"altText,omitempty"`

	Creator *Profile `json:"creator,omitempty"`
}

// Comment is a comment on a post.
type Comment struct {
	ID              string    `json:"id"`
	PostID          string    `json:"postId"`
	CommenterWallet string    `json:"commenterWallet"`
	Text            string    `json:"text"`
	Timestamp       time.Time `json:"timestamp"`
}

// Transaction statuses.
const (
	TransactionPending   = "pending"
	TransactionConfirmed = "confirmed"
	TransactionFailed    = "failed"
)
