// Package auditlog writes a tamper-evident record of device operations. Each
// line is a JSON entry holding a record, the hash of the previous entry, its
// own hash and an Ed25519 signature over all three.
package auditlog

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chardev/chardev/internal/chardevd/eventbus"
	"github.com/chardev/chardev/internal/common/uuid"
	"github.com/chardev/chardev/internal/device/store"
	jsonitor "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

// Record is the audited view of one store event.
type Record struct {
	Seq       uint64 `json:"seq"`
	Op        string `json:"op"`
	SessionID string `json:"sessionId"`
	Offset    int64  `json:"offset"`
	Position  int64  `json:"position"`
	Count     int    `json:"count"`
	Error     string `json:"error,omitempty"`
	TimeMs    int64  `json:"timeMs"`
}

// Entry is one line of the log.
type Entry struct {
	Record    Record `json:"record"`
	PrevHash  string `json:"prevHash"`
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
}

type hashInput struct {
	Record   Record `json:"record"`
	PrevHash string `json:"prevHash"`
}

type signInput struct {
	Record   Record `json:"record"`
	PrevHash string `json:"prevHash"`
	Hash     string `json:"hash"`
}

// Writer appends signed entries to a log file, buffering up to flushEvery
// entries between writes.
type Writer struct {
	mu         sync.Mutex
	file       io.WriteCloser
	path       string
	flushEvery int
	buffer     []Entry
	prevHash   string
	seq        uint64
	privKey    ed25519.PrivateKey
	closed     bool
}

// NewWriter opens path for appending.
func NewWriter(path string, flushEvery int, privKey ed25519.PrivateKey) (*Writer, error) {
	if len(privKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key: must be %d bytes, got %d", ed25519.PrivateKeySize, len(privKey))
	}
	if flushEvery < 1 {
		flushEvery = 1
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &Writer{
		file:       f,
		path:       path,
		flushEvery: flushEvery,
		buffer:     make([]Entry, 0, flushEvery),
		privKey:    privKey,
	}, nil
}

// Create starts a new log in dir under a fresh name, signed with a key pair
// generated for this log. The public key is written next to the log file.
func Create(dir string, flushEvery int) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	path := filepath.Join(dir, "chardevd-"+uuid.New().String()+".tlog")
	if err := WritePublicKey(path+PublicKeySuffix, pubKey); err != nil {
		return nil, err
	}
	return NewWriter(path, flushEvery, privKey)
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Append chains and signs rec. Seq is assigned by the writer.
func (w *Writer) Append(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return os.ErrClosed
	}

	w.seq++
	rec.Seq = w.seq
	entry, err := sealEntry(rec, w.prevHash, w.privKey)
	if err != nil {
		return err
	}
	w.prevHash = entry.Hash
	w.buffer = append(w.buffer, entry)
	if len(w.buffer) >= w.flushEvery {
		return w.flushLocked()
	}
	return nil
}

func sealEntry(rec Record, prevHash string, privKey ed25519.PrivateKey) (Entry, error) {
	entry := Entry{Record: rec, PrevHash: prevHash}

	data, err := json.Marshal(hashInput{Record: rec, PrevHash: prevHash})
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal entry: %w", err)
	}
	entry.Hash = fmt.Sprintf("%x", sha256.Sum256(data))

	data, err = json.Marshal(signInput{Record: rec, PrevHash: prevHash, Hash: entry.Hash})
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal sign input: %w", err)
	}
	entry.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(privKey, data))
	return entry, nil
}

// flushLocked must be called with w.mu held. Entries written before a
// failure leave the buffer so a later flush does not repeat them.
func (w *Writer) flushLocked() error {
	for i, entry := range w.buffer {
		b, err := json.Marshal(entry)
		if err == nil {
			_, err = w.file.Write(append(b, '\n'))
		}
		if err != nil {
			w.buffer = w.buffer[:copy(w.buffer, w.buffer[i:])]
			return fmt.Errorf("failed to write entry %d: %w", entry.Record.Seq, err)
		}
	}
	w.buffer = w.buffer[:0]
	return nil
}

func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	return w.flushLocked()
}

// Close flushes buffered entries and closes the file. It is safe to call
// more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.flushLocked(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// RecordFromEvent converts a store event.
func RecordFromEvent(e store.Event) Record {
	return Record{
		Op:        string(e.Op),
		SessionID: e.SessionID.String(),
		Offset:    e.Offset,
		Position:  e.Position,
		Count:     e.Count,
		Error:     e.Error,
		TimeMs:    e.Time.UnixMilli(),
	}
}

// OpDropped marks a record standing in for store events the audit
// subscription lost. Count holds how many.
const OpDropped = "dropped"

// Consume appends every store event delivered to sub until ctx is done or the
// subscription closes, then flushes the log. Events the bus could not
// deliver since the last entry are recorded as one OpDropped entry.
func (w *Writer) Consume(ctx context.Context, sub *eventbus.Subscriber) {
	var seen uint64
	recordDrops := func() {
		dropped := sub.Dropped()
		if dropped == seen {
			return
		}
		lost := dropped - seen
		seen = dropped
		log.Ctx(ctx).Warn().Uint64("lost", lost).Str("audit_log_path", w.path).Msg("audit subscription dropped store events")
		if err := w.Append(Record{Op: OpDropped, Count: int(lost), TimeMs: time.Now().UnixMilli()}); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to append audit entry")
		}
	}
	defer func() {
		recordDrops()
		if err := w.Flush(); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("audit_log_path", w.path).Msg("failed to flush audit log")
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Channel:
			if !ok {
				return
			}
			se, ok := ev.Data.(store.Event)
			if !ok {
				continue
			}
			if err := w.Append(RecordFromEvent(se)); err != nil {
				log.Ctx(ctx).Error().Err(err).Msg("failed to append audit entry")
			}
			recordDrops()
		}
	}
}
