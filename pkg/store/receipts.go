package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"crewchat/pkg/models"
)

// ReceiptOutcome reports what a MarkRead call actually did.
type ReceiptOutcome int

const (
	// ReceiptInserted means a new receipt row was written.
	ReceiptInserted ReceiptOutcome = iota
	// ReceiptExists means the receipt was already present; nothing changed.
	ReceiptExists
)

func (o ReceiptOutcome) String() string {
	if o == ReceiptInserted {
		return "inserted"
	}
	return "exists"
}

// receiptMu stripes check-then-set on receipt keys so concurrent marks
// of the same (message, reader) pair report one insert and the rest as
// existing. The key itself is the uniqueness constraint; the stripes
// only make the outcome accurate.
var receiptMu [64]sync.Mutex

func receiptStripe(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &receiptMu[h.Sum32()%64]
}

func receiptKey(messageID, readerID string) string {
	return "receipt:" + messageID + ":" + readerID
}

// MarkRead records that readerID has read messageID. The first write
// wins; repeats keep the original timestamp and report ReceiptExists.
func MarkRead(messageID, readerID string) (ReceiptOutcome, error) {
	if db == nil {
		return ReceiptExists, fmt.Errorf("pebble not opened")
	}
	if messageID == "" || readerID == "" {
		return ReceiptExists, fmt.Errorf("receipt missing message or reader id")
	}
	key := receiptKey(messageID, readerID)
	mu := receiptStripe(key)
	mu.Lock()
	defer mu.Unlock()

	if _, closer, err := db.Get([]byte(key)); err == nil {
		closer.Close()
		return ReceiptExists, nil
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return ReceiptExists, err
	}
	r := models.ReadReceipt{
		MessageID: messageID,
		ReaderID:  readerID,
		ReadTS:    time.Now().UTC().UnixNano(),
	}
	b, err := json.Marshal(r)
	if err != nil {
		return ReceiptExists, err
	}
	if err := db.Set([]byte(key), b, pebble.Sync); err != nil {
		return ReceiptExists, err
	}
	return ReceiptInserted, nil
}

// MarkManyRead marks every message in ids read for readerID and returns
// the number of new receipts written. Unknown IDs are skipped.
func MarkManyRead(ids []string, readerID string) (int, error) {
	inserted := 0
	for _, id := range ids {
		out, err := MarkRead(id, readerID)
		if err != nil {
			return inserted, err
		}
		if out == ReceiptInserted {
			inserted++
		}
	}
	return inserted, nil
}

// MarkAllAfter marks every message in crewID at or after the timestamp
// of afterID as read for readerID. Used for "caught up to here".
func MarkAllAfter(crewID, afterID, readerID string) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("pebble not opened")
	}
	anchor, err := GetMessage(afterID)
	if err != nil {
		return 0, err
	}
	prefix := fmt.Sprintf("crew:%s:msg:", crewID)
	lower := fmt.Sprintf("crew:%s:msg:%020d", crewID, anchor.TS)
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(lower),
		UpperBound: []byte(prefix + "\xff"),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	inserted := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		out, err := MarkRead(m.ID, readerID)
		if err != nil {
			return inserted, err
		}
		if out == ReceiptInserted {
			inserted++
		}
	}
	return inserted, iter.Error()
}

// HasRead reports whether readerID holds a receipt for messageID.
func HasRead(messageID, readerID string) (bool, error) {
	if db == nil {
		return false, fmt.Errorf("pebble not opened")
	}
	_, closer, err := db.Get([]byte(receiptKey(messageID, readerID)))
	if err == nil {
		closer.Close()
		return true, nil
	}
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// MessageReaders returns the reader IDs holding receipts for messageID.
func MessageReaders(messageID string) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened")
	}
	prefix := "receipt:" + messageID + ":"
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: []byte(prefix + "\xff"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []string
	for ok := iter.First(); ok; ok = iter.Next() {
		out = append(out, string(iter.Key()[len(prefix):]))
	}
	return out, iter.Error()
}

// UnreadCount returns how many messages in crewID the reader has not
// read. The reader's own messages and soft-deleted messages are never
// counted as unread.
func UnreadCount(crewID, readerID string) (int, error) {
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
	for ok := iter.First(); ok; ok = iter.Next() {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if m.Deleted || m.Sender == readerID {
			continue
		}
		read, err := HasRead(m.ID, readerID)
		if err != nil {
			return n, err
		}
		if !read {
			n++
		}
	}
	return n, iter.Error()
}
