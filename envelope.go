package nutcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// envelopeVersion is bumped whenever the stored shape changes; entries with
// any other version are treated as malformed and recomputed.
const envelopeVersion = 1

var errMalformedEnvelope = errors.New("nutcache: malformed envelope")

// envelope is the stored form of an entry:
//
//	{"v":1,"d":<codec output>,"e":<unix milliseconds>}
//
// A missing "e" means the entry never expires.
type envelope struct {
	Version int             `json:"v"`
	Data    json.RawMessage `json:"d"`
	Expiry  *int64          `json:"e,omitempty"`
}

func encodeEnvelope(data []byte, expiresAt time.Time) (string, error) {
	env := envelope{Version: envelopeVersion, Data: data}
	if !expiresAt.IsZero() {
		ms := expiresAt.UnixMilli()
		env.Expiry = &ms
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("nutcache: encode envelope: %w", err)
	}
	return string(b), nil
}

// decodeEnvelope returns the codec payload and the expiry instant (zero for
// never).
func decodeEnvelope(raw string) ([]byte, time.Time, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", errMalformedEnvelope, err)
	}
	if env.Version != envelopeVersion {
		return nil, time.Time{}, fmt.Errorf("%w: version %d", errMalformedEnvelope, env.Version)
	}
	if len(env.Data) == 0 {
		return nil, time.Time{}, fmt.Errorf("%w: missing value", errMalformedEnvelope)
	}
	var at time.Time
	if env.Expiry != nil {
		at = time.UnixMilli(*env.Expiry)
	}
	return env.Data, at, nil
}

// stale reports whether an entry expiring at at is a miss at now.
func stale(at, now time.Time) bool {
	return !at.IsZero() && !now.Before(at)
}
