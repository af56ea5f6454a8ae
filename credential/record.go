package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const recordFormatVersionCurrent = 1

// ErrCorrupt is returned when a stored blob cannot be decoded.
var ErrCorrupt = errors.New("credential record corrupt")

// Record is one remembered credential.
type Record struct {
	Username string
	Password string
	SavedAt  time.Time
}

type wireRecord struct {
	U string `json:"u"`
	P string `json:"p"`
	T int64  `json:"t"`
}

// Encode serializes r with the current schema version prefix.
func Encode(r Record) ([]byte, error) {
	if r.Username == "" {
		return nil, errors.New("username required")
	}
	body, err := json.Marshal(wireRecord{
		U: r.Username,
		P: r.Password,
		T: r.SavedAt.Unix(),
	})
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, recordFormatVersionCurrent)
	return append(out, body...), nil
}

// Decode parses a blob produced by Encode.
func Decode(data []byte) (Record, error) {
	if len(data) < 2 {
		return Record{}, ErrCorrupt
	}
	if data[0] != recordFormatVersionCurrent {
		return Record{}, fmt.Errorf("unsupported credential schema version %d: %w", data[0], ErrCorrupt)
	}

	var w wireRecord
	if err := json.Unmarshal(data[1:], &w); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if w.U == "" {
		return Record{}, ErrCorrupt
	}
	return Record{
		Username: w.U,
		Password: w.P,
		SavedAt:  time.Unix(w.T, 0).UTC(),
	}, nil
}
