package transport

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
)

// MaxFrameSize bounds a single frame's JSON body, guarding against a
// malformed or hostile length prefix driving an unbounded allocation.
// Analogous to the teacher's internal/net/server.go MAX_RECV_SIZE, sized up
// since JSON payloads run larger than the teacher's packed binary frames.
const MaxFrameSize = 64 * 1024

var ErrFrameTooLarge = errors.New("transport: frame exceeds MaxFrameSize")

// writeFrame writes a length-prefixed JSON frame for verb/payload to w.
func writeFrame(w io.Writer, verb Verb, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env, err := json.Marshal(Envelope{Type: verb, Payload: body})
	if err != nil {
		return err
	}
	if len(env) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(env)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err = w.Write(env)
	return err
}

// readFrame reads one length-prefixed JSON frame from r and decodes its
// envelope. The payload remains raw JSON for the caller to unmarshal once
// the verb is known.
func readFrame(r io.Reader) (Envelope, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return Envelope{}, err
	}
	size := binary.BigEndian.Uint32(lenPrefix[:])
	if size > MaxFrameSize {
		return Envelope{}, ErrFrameTooLarge
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Envelope{}, err
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
