package etl

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// RawRecord is one unit of data exactly as a source returned it. It only
// lives for the duration of a single pipeline pass.
type RawRecord struct {
	ID        string
	Payload   map[string]interface{}
	FetchedAt time.Time
}

// CanonicalRecord is the normalized form of a RawRecord. It is immutable
// once produced by a transformer.
type CanonicalRecord struct {
	ID          string
	Source      string
	Fields      map[string]interface{}
	Fingerprint string
	ModifiedAt  time.Time
}

// Key returns the cache/upsert key: source name plus stable identifier.
func (r CanonicalRecord) Key() string {
	return r.Source + ":" + r.ID
}

// FingerprintFields hashes the normalized field mapping deterministically.
// Keys are sorted so that map iteration order never changes the hash.
// Volatile values (fetch timestamps) are not part of Fields and therefore
// never reach the hash.
func FingerprintFields(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := md5.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v;", k, fields[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
