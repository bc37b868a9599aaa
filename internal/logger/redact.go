package logger

import (
	"bytes"
	"io"
	"sync"
)

const redactedMarker = "[REDACTED]"

var secrets = struct {
	sync.RWMutex
	values [][]byte
}{}

// RegisterSecret masks value in everything written by loggers from New.
// Values shorter than four bytes are ignored.
func RegisterSecret(value string) {
	if len(value) < 4 {
		return
	}

	secrets.Lock()
	defer secrets.Unlock()
	for _, existing := range secrets.values {
		if string(existing) == value {
			return
		}
	}
	secrets.values = append(secrets.values, []byte(value))
}

type redactingWriter struct {
	w io.Writer
}

func (r redactingWriter) Write(p []byte) (int, error) {
	secrets.RLock()
	out := p
	for _, secret := range secrets.values {
		if bytes.Contains(out, secret) {
			out = bytes.ReplaceAll(out, secret, []byte(redactedMarker))
		}
	}
	secrets.RUnlock()

	if _, err := r.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}
