// Package archive exports ledger entries as zstd-compressed JSON lines
// for offline analysis.
package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/louisbranch/carddex/internal/storage"
)

// Entry is the JSON shape of one exported ledger line.
type Entry struct {
	Seq           int64     `json:"seq"`
	Timestamp     time.Time `json:"ts"`
	ActorID       string    `json:"actor_id"`
	Kind          string    `json:"kind"`
	ItemKind      string    `json:"item_kind,omitempty"`
	ItemID        string    `json:"item_id,omitempty"`
	CoinDelta     int64     `json:"coin_delta"`
	XPDelta       int64     `json:"xp_delta"`
	QuantityDelta int64     `json:"quantity_delta"`
	Ref           string    `json:"ref,omitempty"`
}

// Streamer is the slice of the ledger store an export reads from.
type Streamer interface {
	StreamLedger(ctx context.Context, sinceSeq int64, fn func(storage.LedgerEntry) error) error
}

// Writer emits one JSON line per ledger entry through a zstd stream.
type Writer struct {
	enc *zstd.Encoder
	buf *bufio.Writer
}

// NewWriter wraps w with a zstd encoder. Close finishes the frame but
// leaves w open.
func NewWriter(w io.Writer) (*Writer, error) {
	if w == nil {
		return nil, fmt.Errorf("writer is required")
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	return &Writer{enc: enc, buf: bufio.NewWriterSize(enc, 128*1024)}, nil
}

// Write appends one entry as a JSON line.
func (w *Writer) Write(entry storage.LedgerEntry) error {
	b, err := json.Marshal(exportEntry(entry))
	if err != nil {
		return err
	}
	if _, err := w.buf.Write(b); err != nil {
		return err
	}
	return w.buf.WriteByte('\n')
}

// Close flushes buffered lines and finishes the zstd frame.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		_ = w.enc.Close()
		return err
	}
	return w.enc.Close()
}

// Export writes every ledger entry with sequence above sinceSeq to w and
// reports how many lines it wrote.
func Export(ctx context.Context, store Streamer, w io.Writer, sinceSeq int64) (int64, error) {
	if store == nil {
		return 0, fmt.Errorf("store is required")
	}
	aw, err := NewWriter(w)
	if err != nil {
		return 0, err
	}
	var written int64
	streamErr := store.StreamLedger(ctx, sinceSeq, func(entry storage.LedgerEntry) error {
		if err := aw.Write(entry); err != nil {
			return err
		}
		written++
		return nil
	})
	if err := aw.Close(); err != nil && streamErr == nil {
		streamErr = err
	}
	return written, streamErr
}

func exportEntry(entry storage.LedgerEntry) Entry {
	out := Entry{
		Seq:           entry.Seq,
		Timestamp:     entry.Timestamp.UTC(),
		ActorID:       entry.ActorID,
		Kind:          string(entry.Kind),
		CoinDelta:     entry.CoinDelta,
		XPDelta:       entry.XPDelta,
		QuantityDelta: entry.QuantityDelta,
		Ref:           entry.Ref,
	}
	if entry.Item.Kind != "" {
		out.ItemKind = string(entry.Item.Kind)
		out.ItemID = entry.Item.ID
	}
	return out
}
