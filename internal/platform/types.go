package platform

import "time"

// PublishedPost is the platform's response to a successful publish call.
type PublishedPost struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// TokenResponse is the platform's response to an OAuth2 token refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// PublicMetrics carries the engagement counters the platform exposes per post.
type PublicMetrics struct {
	LikeCount       int `json:"like_count"`
	RepostCount     int `json:"retweet_count"`
	ReplyCount      int `json:"reply_count"`
	ImpressionCount int `json:"impression_count"`
}

// TimelinePost is one post in a user's recent timeline, with metrics.
type TimelinePost struct {
	ID            string        `json:"id"`
	Text          string        `json:"text"`
	CreatedAt     time.Time     `json:"created_at"`
	PublicMetrics PublicMetrics `json:"public_metrics"`
}
