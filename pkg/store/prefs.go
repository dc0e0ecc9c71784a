package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"crewchat/pkg/models"
)

func notifyKey(userID string) string { return "notify:" + userID }

// GetNotifyPrefs returns the stored notification preferences for
// userID. Users with no stored row get notifications enabled and no
// muted crews.
func GetNotifyPrefs(userID string) (models.NotifyPrefs, error) {
	p := models.NotifyPrefs{UserID: userID, Enabled: true}
	if db == nil {
		return p, fmt.Errorf("pebble not opened")
	}
	v, closer, err := db.Get([]byte(notifyKey(userID)))
	if errors.Is(err, pebble.ErrNotFound) {
		return p, nil
	}
	if err != nil {
		return p, err
	}
	defer closer.Close()
	err = json.Unmarshal(v, &p)
	return p, err
}

// PutNotifyPrefs stores p, replacing any existing row.
func PutNotifyPrefs(p models.NotifyPrefs) error {
	if db == nil {
		return fmt.Errorf("pebble not opened")
	}
	if p.UserID == "" {
		return fmt.Errorf("prefs missing user id")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return db.Set([]byte(notifyKey(p.UserID)), b, pebble.Sync)
}

// Muted reports whether userID has muted crewID or disabled
// notifications outright.
func Muted(userID, crewID string) (bool, error) {
	p, err := GetNotifyPrefs(userID)
	if err != nil {
		return false, err
	}
	if !p.Enabled {
		return true, nil
	}
	for _, c := range p.MutedCrews {
		if c == crewID {
			return true, nil
		}
	}
	return false, nil
}
