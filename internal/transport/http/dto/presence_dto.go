package dto

type PresenceUpdateRequest struct {
	State string `json:"state"`
}

type PresenceResponse struct {
	UserID int64  `json:"user_id"`
	State  string `json:"state"`
}

type TypingRequest struct {
	RoomID int64 `json:"room_id"`
}

type RoomTypingResponse struct {
	RoomID  int64   `json:"room_id"`
	UserIDs []int64 `json:"user_ids"`
}
