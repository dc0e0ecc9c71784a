// Package store provides the Pebble-backed persistence layer for crew
// messages, read receipts and notification preferences.
//
// Key layout:
//
//	crew:<crewID>:msg:<ts><seq>   message JSON, ordered per crew
//	msg:<msgID>                   message JSON, point lookup
//	msgkey:<msgID>                the crew-ordered key for the message
//	receipt:<msgID>:<readerID>    read receipt JSON
//	notify:<userID>               notification preferences JSON
package store

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"crewchat/pkg/logger"
	"crewchat/pkg/models"
)

var (
	db     *pebble.DB
	dbPath string
	msgSeq uint64
)

// Open opens (or creates) the Pebble database at path.
func Open(path string) error {
	d, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return err
	}
	db = d
	dbPath = path
	logger.Info("store_opened", "path", path)
	return nil
}

// Close closes the database if open.
func Close() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// Ready reports whether the store is usable.
func Ready() bool { return db != nil }

// Path returns the path the store was opened with.
func Path() string { return dbPath }

func crewMsgKey(crewID string, ts int64) string {
	seq := atomic.AddUint64(&msgSeq, 1)
	return fmt.Sprintf("crew:%s:msg:%020d-%06d", crewID, ts, seq%1000000)
}

func msgKey(id string) string    { return "msg:" + id }
func msgKeyRef(id string) string { return "msgkey:" + id }

// SaveMessage persists m under both the crew-ordered key and the point
// lookup key. The message must already carry its ID and timestamp.
func SaveMessage(m models.Message) error {
	if db == nil {
		return fmt.Errorf("pebble not opened")
	}
	if m.ID == "" || m.Crew == "" {
		return fmt.Errorf("message missing id or crew")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	ck := crewMsgKey(m.Crew, m.TS)
	batch := db.NewBatch()
	defer batch.Close()
	if err := batch.Set([]byte(ck), b, nil); err != nil {
		return err
	}
	if err := batch.Set([]byte(msgKey(m.ID)), b, nil); err != nil {
		return err
	}
	if err := batch.Set([]byte(msgKeyRef(m.ID)), []byte(ck), nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}
	logger.Debug("message_saved", "id", m.ID, "crew", m.Crew)
	return nil
}

// GetMessage returns the message by ID, or an error if absent.
func GetMessage(id string) (models.Message, error) {
	var m models.Message
	if db == nil {
		return m, fmt.Errorf("pebble not opened")
	}
	v, closer, err := db.Get([]byte(msgKey(id)))
	if err != nil {
		return m, err
	}
	defer closer.Close()
	err = json.Unmarshal(v, &m)
	return m, err
}

// ListMessages returns up to limit messages for crewID in descending
// timestamp order. When beforeTS > 0 only messages strictly older than
// beforeTS are returned; that is the paging cursor.
func ListMessages(crewID string, limit int, beforeTS int64) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened")
	}
	if limit <= 0 {
		limit = 50
	}
	prefix := fmt.Sprintf("crew:%s:msg:", crewID)
	upper := prefix + "\xff"
	if beforeTS > 0 {
		upper = fmt.Sprintf("crew:%s:msg:%020d", crewID, beforeTS)
	}
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: []byte(upper),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make([]models.Message, 0, limit)
	for ok := iter.Last(); ok && len(out) < limit; ok = iter.Prev() {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Warn("message_decode_failed", "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, m)
	}
	return out, iter.Error()
}

// RecentMessages returns the newest limit messages for crewID in
// ascending timestamp order, suitable for seeding a joining client.
func RecentMessages(crewID string, limit int) ([]models.Message, error) {
	desc, err := ListMessages(crewID, limit, 0)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(desc)-1; i < j; i, j = i+1, j-1 {
		desc[i], desc[j] = desc[j], desc[i]
	}
	return desc, nil
}

// SoftDeleteMessage marks the message deleted in place. The row stays
// in both indexes; readers filter on the flag. Receipts are untouched.
func SoftDeleteMessage(id string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened")
	}
	m, err := GetMessage(id)
	if err != nil {
		return err
	}
	m.Deleted = true
	m.Body = ""
	return rewriteMessage(m)
}

// DetachCrewMessages nulls the crew reference on every message of a
// torn-down crew. The crew-ordered index entries are removed; the point
// lookup rows survive so receipts keep resolving.
func DetachCrewMessages(crewID string) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("pebble not opened")
	}
	prefix := fmt.Sprintf("crew:%s:msg:", crewID)
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: []byte(prefix + "\xff"),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	n := 0
	batch := db.NewBatch()
	defer batch.Close()
	for ok := iter.First(); ok; ok = iter.Next() {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		m.Crew = ""
		b, err := json.Marshal(m)
		if err != nil {
			continue
		}
		if err := batch.Set([]byte(msgKey(m.ID)), b, nil); err != nil {
			return n, err
		}
		if err := batch.Delete([]byte(msgKeyRef(m.ID)), nil); err != nil {
			return n, err
		}
		if err := batch.Delete(append([]byte(nil), iter.Key()...), nil); err != nil {
			return n, err
		}
		n++
	}
	if err := iter.Error(); err != nil {
		return n, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return n, err
	}
	logger.Info("crew_messages_detached", "crew", crewID, "count", n)
	return n, nil
}

// rewriteMessage writes m back under all keys it is indexed by.
func rewriteMessage(m models.Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	batch := db.NewBatch()
	defer batch.Close()
	if err := batch.Set([]byte(msgKey(m.ID)), b, nil); err != nil {
		return err
	}
	if ck, closer, err := db.Get([]byte(msgKeyRef(m.ID))); err == nil {
		key := append([]byte(nil), ck...)
		closer.Close()
		if err := batch.Set(key, b, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}
