package wire

import (
	"net/http"

	"github.com/vmihailenco/msgpack/v5"
)

// Decode reads a MessagePack-encoded body into v.
func Decode(r *http.Request, v any) error {
	dec := msgpack.NewDecoder(r.Body)
	return dec.Decode(v)
}

// Encode writes v as a MessagePack body with the given status.
func Encode(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/msgpack")
	w.WriteHeader(status)
	return msgpack.NewEncoder(w).Encode(v)
}

// EncodeError writes an ErrorResponse body with the given status.
func EncodeError(w http.ResponseWriter, status int, message string) error {
	return Encode(w, status, ErrorResponse{Error: message})
}
