package dto

import "time"

type SendConnectionRequest struct {
	ToUserID int64  `json:"to_user_id"`
	Message  string `json:"message"`
}

type ConnectionRequestResponse struct {
	ID         int64     `json:"id"`
	FromUserID int64     `json:"from_user_id"`
	ToUserID   int64     `json:"to_user_id"`
	Status     string    `json:"status"`
	Message    *string   `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type ConnectionRequestsResponse struct {
	Items []ConnectionRequestResponse `json:"items"`
}

type ConnectionResponse struct {
	ID        int64     `json:"id"`
	UserAID   int64     `json:"user_a_id"`
	UserBID   int64     `json:"user_b_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type ConnectionsResponse struct {
	Items []ConnectionResponse `json:"items"`
}

type AcceptConnectionResponse struct {
	Request    ConnectionRequestResponse `json:"request"`
	Connection ConnectionResponse        `json:"connection"`
}
