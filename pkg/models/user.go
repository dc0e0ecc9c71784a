package models

// User is the identity projection consumed from the directory collaborator.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// NotifyPrefs holds per-user push-notification preferences, consumed by the
// offline-notification collaborator.
type NotifyPrefs struct {
	UserID  string `json:"user_id"`
	Enabled bool   `json:"enabled"`
	// MutedCrews lists crew ids the user muted; empty means none.
	MutedCrews []string `json:"muted_crews,omitempty"`
}
