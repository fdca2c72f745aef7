package dto

import "time"

type BlockUserRequest struct {
	TargetID int64  `json:"target_id"`
	Reason   string `json:"reason"`
}

type BlockResponse struct {
	ID            int64     `json:"id"`
	BlockedUserID int64     `json:"blocked_user_id"`
	Reason        *string   `json:"reason,omitempty"`
	Mutual        bool      `json:"is_mutual"`
	CreatedAt     time.Time `json:"created_at"`
}

type BlockCreatedResponse struct {
	Block   BlockResponse `json:"block"`
	Created bool          `json:"created"`
}

type BlockedListResponse struct {
	Items []BlockResponse `json:"items"`
}
