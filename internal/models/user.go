package models

// DefaultUsername is shown when the backend has no username for the user.
const DefaultUsername = "User"

// UserData is the user's public profile as returned by get_user_data.
// The home controller replaces it wholesale on every successful fetch.
type UserData struct {
	Username string `json:"username"`           // Telegram username; may be empty.
	Balance  int64  `json:"balance"`            // Point balance, never negative.
	Language string `json:"language,omitempty"` // Preferred language code, e.g. "bn".
	Timezone string `json:"timezone,omitempty"` // IANA timezone name when known.
}

// DisplayName returns the username or DefaultUsername when it is empty.
func (u UserData) DisplayName() string {
	if u.Username == "" {
		return DefaultUsername
	}
	return u.Username
}
