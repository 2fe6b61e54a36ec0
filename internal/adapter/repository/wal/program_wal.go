package wal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/V4T54L/agent-relay/internal/domain"
)

const (
	segmentPrefix = "programs-"
	segmentSuffix = ".jsonl"
	filePerm      = 0o644
)

// ProgramWAL is a file-based Write-Ahead Log of programs that could not be
// saved to their store. It implements domain.WALRepository.
type ProgramWAL struct {
	dir            string
	maxSegmentSize int64
	maxTotalSize   int64
	logger         *slog.Logger

	mu          sync.Mutex
	segment     *os.File
	segmentSize int64
	closedSize  int64 // bytes in segments other than the open one
	nextSeq     int
}

// Open creates dir if needed and appends to its newest segment.
func Open(dir string, maxSegmentSize, maxTotalSize int64, logger *slog.Logger) (*ProgramWAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory %s: %w", dir, err)
	}

	w := &ProgramWAL{
		dir:            dir,
		maxSegmentSize: maxSegmentSize,
		maxTotalSize:   maxTotalSize,
		logger:         logger.With("component", "program_wal"),
	}
	if err := w.resume(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write appends a program to the current segment.
func (w *ProgramWAL) Write(ctx context.Context, program domain.Program) error {
	data, err := json.Marshal(program)
	if err != nil {
		return fmt.Errorf("failed to marshal program for WAL: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.segment == nil {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	if w.maxTotalSize > 0 && w.closedSize+w.segmentSize+int64(len(data)) > w.maxTotalSize {
		return fmt.Errorf("WAL max total size exceeded (%d bytes)", w.maxTotalSize)
	}

	n, err := w.segment.Write(data)
	w.segmentSize += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write to WAL segment: %w", err)
	}

	if w.maxSegmentSize > 0 && w.segmentSize >= w.maxSegmentSize {
		if err := w.rotate(); err != nil {
			w.logger.Error("Failed to rotate WAL segment", "error", err)
		}
	}
	return nil
}

// Replay hands every logged program, oldest first, to handler. It stops at the
// first handler error so nothing is lost before Truncate.
func (w *ProgramWAL) Replay(ctx context.Context, handler func(program domain.Program) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.segment != nil {
		if err := w.segment.Sync(); err != nil {
			w.logger.Warn("Failed to sync WAL segment before replay", "error", err)
		}
	}

	segments, err := w.segments()
	if err != nil {
		return err
	}

	replayed := 0
	for _, path := range segments {
		n, err := replaySegment(ctx, path, handler, w.logger)
		replayed += n
		if err != nil {
			return err
		}
	}
	if replayed > 0 {
		w.logger.Info("WAL replay completed", "segments", len(segments), "programs", replayed)
	}
	return nil
}

func replaySegment(ctx context.Context, path string, handler func(domain.Program) error, logger *slog.Logger) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open segment %s for replay: %w", path, err)
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		var p domain.Program
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			logger.Warn("Skipping corrupt WAL entry", "segment", filepath.Base(path), "error", err)
			continue
		}
		if err := handler(p); err != nil {
			return n, fmt.Errorf("replay handler failed: %w", err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("error scanning segment %s: %w", path, err)
	}
	return n, nil
}

// Truncate removes every segment and starts a fresh one.
func (w *ProgramWAL) Truncate(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closeSegment()
	segments, err := w.segments()
	if err != nil {
		return err
	}
	for _, path := range segments {
		if err := os.Remove(path); err != nil {
			w.logger.Error("Failed to remove WAL segment", "path", path, "error", err)
		}
	}
	w.closedSize = 0

	w.logger.Info("WAL truncated", "segments", len(segments))
	return w.rotate()
}

// Close closes the open segment.
func (w *ProgramWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.segment == nil {
		return nil
	}
	err := w.segment.Close()
	w.segment = nil
	return err
}

func (w *ProgramWAL) closeSegment() {
	if w.segment == nil {
		return
	}
	if err := w.segment.Sync(); err != nil {
		w.logger.Error("Failed to sync WAL segment", "error", err)
	}
	if err := w.segment.Close(); err != nil {
		w.logger.Error("Failed to close WAL segment", "error", err)
	}
	w.segment = nil
}

func (w *ProgramWAL) rotate() error {
	if w.segment != nil {
		w.closeSegment()
		w.closedSize += w.segmentSize
	}

	path := filepath.Join(w.dir, fmt.Sprintf("%s%08d%s", segmentPrefix, w.nextSeq, segmentSuffix))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create WAL segment %s: %w", path, err)
	}
	w.nextSeq++
	w.segment = f
	w.segmentSize = 0
	w.logger.Debug("Opened new WAL segment", "path", path)
	return nil
}

// resume sizes existing segments and reopens the newest one for appending.
func (w *ProgramWAL) resume() error {
	segments, err := w.segments()
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return w.rotate()
	}

	for _, path := range segments {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat WAL segment %s: %w", path, err)
		}
		w.closedSize += info.Size()
	}

	latest := segments[len(segments)-1]
	var seq int
	if _, err := fmt.Sscanf(filepath.Base(latest), segmentPrefix+"%d"+segmentSuffix, &seq); err != nil {
		return fmt.Errorf("unrecognized WAL segment name %s: %w", latest, err)
	}
	w.nextSeq = seq + 1

	f, err := os.OpenFile(latest, os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open WAL segment %s: %w", latest, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat WAL segment %s: %w", latest, err)
	}
	w.segment = f
	w.segmentSize = info.Size()
	w.closedSize -= w.segmentSize
	w.logger.Info("Resumed WAL", "segments", len(segments), "bytes", w.closedSize+w.segmentSize)

	if w.maxSegmentSize > 0 && w.segmentSize >= w.maxSegmentSize {
		return w.rotate()
	}
	return nil
}

func (w *ProgramWAL) segments() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAL directory: %w", err)
	}

	var out []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, segmentPrefix) && strings.HasSuffix(name, segmentSuffix) {
			out = append(out, filepath.Join(w.dir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}
