package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/tally/internal/domain/errs"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// dateLayout is accepted wherever a timestamp is, meaning midnight.
const dateLayout = "2006-01-02"

func decodeJSON(w http.ResponseWriter, r *http.Request, op string, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Validationf(op, "invalid JSON body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, op string) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Validationf(op, "id must be a positive integer, got %q", raw)
	}
	return id, nil
}

// queryInt64 returns the integer under key; ok is false when key is absent.
func queryInt64(r *http.Request, op, key string) (v int64, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, errs.Validationf(op, "%s must be an integer, got %q", key, raw)
	}
	return v, true, nil
}

// queryTime returns the instant under key, RFC 3339 or a bare date in loc;
// ok is false when key is absent.
func queryTime(r *http.Request, op, key string, loc *time.Location) (t time.Time, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, false, nil
	}
	if t, err = time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, true, nil
	}
	if t, err = time.ParseInLocation(dateLayout, raw, loc); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, errs.Validationf(op, "%s must be an RFC 3339 timestamp or a YYYY-MM-DD date, got %q", key, raw)
}
