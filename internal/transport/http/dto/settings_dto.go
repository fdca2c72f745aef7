package dto

import "time"

type PrivacySettingsResponse struct {
	UserID                    int64      `json:"user_id"`
	Verified                  bool       `json:"is_verified"`
	Active                    bool       `json:"is_active"`
	ShowOnlyTodayShip         bool       `json:"show_only_today_ship"`
	AllowFutureShipVisibility bool       `json:"allow_future_ship_visibility"`
	DeclineRequestsSilently   bool       `json:"decline_requests_silently"`
	BlockEnforcesInvisibility bool       `json:"block_enforces_invisibility"`
	VerificationStatus        string     `json:"verification_status"`
	VerifiedAt                *time.Time `json:"verified_at,omitempty"`
	LastActiveAt              time.Time  `json:"last_active_at"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}

type UpdatePrivacySettingsRequest struct {
	ShowOnlyTodayShip         bool `json:"show_only_today_ship"`
	AllowFutureShipVisibility bool `json:"allow_future_ship_visibility"`
	DeclineRequestsSilently   bool `json:"decline_requests_silently"`
	BlockEnforcesInvisibility bool `json:"block_enforces_invisibility"`
}

type VisibilityResponse struct {
	TargetUserID      int64 `json:"target_user_id"`
	CanSeeRoster      bool  `json:"can_see_roster"`
	CanSeeTodayShip   bool  `json:"can_see_today_ship"`
	CanSeeFutureShips bool  `json:"can_see_future_ships"`
}
