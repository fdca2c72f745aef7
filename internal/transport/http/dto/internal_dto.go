package dto

type ProvisionUserRequest struct {
	UserID int64 `json:"user_id"`
}

type ProvisionUserResponse struct {
	OK bool `json:"ok"`
}
