package sandbox

import (
	"encoding/json"
	"io"
)

// The host and the worker speak a narrow serialized protocol: exactly one
// request line on the worker's stdin, exactly one response line on its
// stdout. Parameters in, result or error out; nothing else crosses the
// boundary. Worker stderr passes through for diagnostics only.

type request struct {
	Code       string         `json:"code"`
	Parameters map[string]any `json:"parameters"`
}

type response struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func writeMessage(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// readMessage decodes one JSON message, preserving numbers as json.Number
// so integers survive the round trip.
func readMessage(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec.Decode(v)
}
