package transport

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"

	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// Stream framing: one JSON object per line. A frame is either a
// request/response or a prompt exchange discriminated by "kind".
const (
	frameKindPrompt = "prompt"
	frameKindInput  = "input"
)

// maxFrameSize bounds a single JSON-lines frame.
const maxFrameSize = 16 << 20

// frame is the superset of every message that can appear on a stream.
type frame struct {
	Kind string `json:"kind,omitempty"`

	// Prompt exchange fields.
	Text  string `json:"text,omitempty"`
	Value string `json:"value,omitempty"`

	// Request fields.
	Target string            `json:"target,omitempty"`
	Method string            `json:"method,omitempty"`
	Args   []json.RawMessage `json:"args,omitempty"`
	Scope  *Scope            `json:"scope,omitempty"`

	// Response fields.
	ID     string          `json:"id,omitempty"`
	OK     *bool           `json:"ok,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *maxerrors.Wire `json:"error,omitempty"`
}

func (f *frame) isResponse() bool { return f.Kind == "" && f.OK != nil }

func (f *frame) isRequest() bool { return f.Kind == "" && f.OK == nil && f.Method != "" }

// frameReader yields frames from a byte stream. Reads are chunk-safe: bytes
// buffer until a newline delimiter is seen.
type frameReader struct {
	scanner *bufio.Scanner
}

func newFrameReader(r io.Reader) *frameReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxFrameSize)
	return &frameReader{scanner: scanner}
}

// next returns the next frame, io.EOF at end of stream, or a decode error
// for a malformed line.
func (fr *frameReader) next() (*frame, error) {
	for fr.scanner.Scan() {
		line := fr.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var f frame
		if err := json.Unmarshal(line, &f); err != nil {
			return nil, errDecode.Wrap(err, nil)
		}
		return &f, nil
	}
	if err := fr.scanner.Err(); err != nil {
		return nil, errIO.Wrap(err, nil)
	}
	return nil, io.EOF
}

// frameWriter serializes frames onto a stream. Writes from concurrent
// dispatch goroutines are queued through a buffered writer guarded by a
// mutex.
type frameWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func newFrameWriter(w io.Writer) *frameWriter {
	return &frameWriter{w: bufio.NewWriter(w)}
}

func (fw *frameWriter) write(v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return errDecode.Wrap(err, nil)
	}
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if _, err := fw.w.Write(append(encoded, '\n')); err != nil {
		return errIO.Wrap(err, nil)
	}
	if err := fw.w.Flush(); err != nil {
		return errIO.Wrap(err, nil)
	}
	return nil
}
