package connectdb

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
)

// JoinedNetwork is a network the device successfully joined
type JoinedNetwork struct {
	Ssid      string    `json:"ssid"`
	Interface string    `json:"interface"`
	Attempts  int       `json:"attempts"`
	Joined    time.Time `json:"joined"`
}

// Attempt is the outcome of joining a network with submitted credentials
type Attempt struct {
	Ssid    string    `json:"ssid"`
	Success bool      `json:"success"`
	Reason  string    `json:"reason,omitempty"`
	Time    time.Time `json:"time"`
}

func (db *DB) SetLastJoined(network *JoinedNetwork) error {
	err := db.setJSON(networksBucket, lastJoinedKey, network)
	if err != nil {
		return errors.Errorf("could not save joined network: %v", err)
	}

	return nil
}

// GetLastJoined returns nil if no network was ever joined
func (db *DB) GetLastJoined() (*JoinedNetwork, error) {
	network := &JoinedNetwork{}

	found, err := db.getJSON(networksBucket, lastJoinedKey, network)
	if err != nil {
		return nil, errors.Errorf("could not read joined network: %v", err)
	}

	if !found {
		return nil, nil
	}

	return network, nil
}

func (db *DB) AddAttempt(attempt *Attempt) error {
	payload, err := json.Marshal(attempt)
	if err != nil {
		return errors.Errorf("could not marshal attempt: %v", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(attemptsBucket)
		if err != nil {
			return err
		}

		id, err := bucket.NextSequence()
		if err != nil {
			return err
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, id)

		return bucket.Put(key, payload)
	})
	if err != nil {
		return errors.Errorf("could not save attempt: %v", err)
	}

	return nil
}

// ListAttempts returns all recorded attempts, oldest first
func (db *DB) ListAttempts() ([]*Attempt, error) {
	attempts := []*Attempt{}

	err := db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(attemptsBucket)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			attempt := &Attempt{}

			err := json.Unmarshal(v, attempt)
			if err != nil {
				return err
			}

			attempts = append(attempts, attempt)

			return nil
		})
	})
	if err != nil {
		return nil, errors.Errorf("could not list attempts: %v", err)
	}

	return attempts, nil
}
