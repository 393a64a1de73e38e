package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CurrentSchemaVersion is written into every encoded record.
const CurrentSchemaVersion = 1

// ErrRecordCorrupt is returned when a stored blob cannot be decoded.
var ErrRecordCorrupt = errors.New("session record corrupt")

type envelope struct {
	Version int             `json:"v"`
	Record  *RefreshSession `json:"r"`
}

// Encode serializes a record with the current schema version.
func Encode(s *RefreshSession) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	if s.SessionID == "" || s.SubjectID == "" {
		return nil, errors.New("session id and subject id required")
	}
	return json.Marshal(envelope{Version: CurrentSchemaVersion, Record: s})
}

// Decode parses a blob produced by Encode. Unknown schema versions are rejected.
func Decode(data []byte) (*RefreshSession, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	if env.Version != CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported session schema version %d", ErrRecordCorrupt, env.Version)
	}
	if env.Record == nil || env.Record.SessionID == "" || env.Record.SubjectID == "" {
		return nil, fmt.Errorf("%w: missing identity fields", ErrRecordCorrupt)
	}
	return env.Record, nil
}
