// Package capture records the traffic of a line as CBOR records.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/glog"

	"github.com/robotalks/radar.go/pkg/uart"
)

// Direction of recorded bytes.
type Direction uint8

// Directions.
const (
	Received Direction = iota
	Sent
)

func (d Direction) String() string {
	if d == Sent {
		return "SND"
	}
	return "RCV"
}

// Record is one chunk of traffic.
type Record struct {
	Time      time.Time `cbor:"1,keyasint"`
	Direction Direction `cbor:"2,keyasint"`
	Bytes     []byte    `cbor:"3,keyasint"`
}

var encMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	mode, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	encMode = mode
}

// Writer appends records to a stream.
type Writer struct {
	enc  *cbor.Encoder
	lock sync.Mutex
}

// NewWriter creates a Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: encMode.NewEncoder(w)}
}

// Write appends one record.
func (w *Writer) Write(rec Record) error {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.enc.Encode(&rec)
}

// Reader reads records from a stream.
type Reader struct {
	dec *cbor.Decoder
}

// NewReader creates a Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Read returns the next record, io.EOF at the end.
func (r *Reader) Read() (*Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decode capture record: %w", err)
	}
	return &rec, nil
}

// Tap records the traffic of a DataHandler.
type Tap struct {
	Writer  *Writer
	Handler uart.DataHandler
}

type tapWriter struct {
	io.Writer
	tap *Tap
}

func (w *tapWriter) Write(p []byte) (int, error) {
	w.tap.record(Sent, p)
	return w.Writer.Write(p)
}

func (t *Tap) record(dir Direction, p []byte) {
	rec := Record{Time: time.Now(), Direction: dir, Bytes: append([]byte(nil), p...)}
	if err := t.Writer.Write(rec); err != nil {
		glog.Errorf("capture %s failed: %v", dir, err)
	}
}

// HandleData implements uart.DataHandler.
func (t *Tap) HandleData(ctx context.Context, w io.Writer, data []byte) {
	t.record(Received, data)
	t.Handler.HandleData(ctx, &tapWriter{Writer: w, tap: t}, data)
}
