// Package checkpoint persists and restores crawl progress: the pending
// frontier, the processed keyword set and the seen link set.
package checkpoint

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Names of the three persisted lists.
const (
	linksName     = "links"
	processedName = "processed"
	frontierName  = "frontier"
)

// snapshotName is the single document file and object stores write. The
// per-list names above are only read, from checkpoints written before it.
const snapshotName = "snapshot"

const (
	snapshotHeader  = "kwcrawler-checkpoint v1"
	snapshotTrailer = "end"
)

// Snapshot is the persisted crawl state.
type Snapshot struct {
	Frontier  []string
	Processed []string
	Links     []string
}

// Empty reports whether the snapshot holds no state at all.
func (s Snapshot) Empty() bool {
	return len(s.Frontier) == 0 && len(s.Processed) == 0 && len(s.Links) == 0
}

// Store reads and writes snapshots. Load returns an empty Snapshot when no
// state has been saved yet.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// encodeSnapshot writes all three lists as one document: a header line,
// then per list a "<name> <count>" line followed by count entries, then a
// trailer. Counts make entries that look like section lines unambiguous.
func encodeSnapshot(w io.Writer, snap Snapshot) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, snapshotHeader)
	for _, list := range snapshotLists(&snap) {
		fmt.Fprintf(bw, "%s %d\n", list.name, len(*list.entries))
		for _, entry := range *list.entries {
			bw.WriteString(entry)
			bw.WriteByte('\n')
		}
	}
	fmt.Fprintln(bw, snapshotTrailer)
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// decodeSnapshot parses a document written by encodeSnapshot. A missing
// section or trailer is an error, so a torn document is never applied.
func decodeSnapshot(r io.Reader) (Snapshot, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	next := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		return strings.TrimRight(scanner.Text(), "\r"), true
	}

	if line, ok := next(); !ok || line != snapshotHeader {
		return Snapshot{}, readErr(scanner, "missing snapshot header")
	}
	var snap Snapshot
	for _, list := range snapshotLists(&snap) {
		line, ok := next()
		if !ok {
			return Snapshot{}, readErr(scanner, "missing %s section", list.name)
		}
		var (
			name  string
			count int
		)
		if _, err := fmt.Sscanf(line, "%s %d", &name, &count); err != nil || name != list.name || count < 0 {
			return Snapshot{}, fmt.Errorf("bad %s section line %q", list.name, line)
		}
		for i := 0; i < count; i++ {
			entry, ok := next()
			if !ok {
				return Snapshot{}, readErr(scanner, "%s section truncated at %d of %d", list.name, i, count)
			}
			if entry = strings.TrimSpace(entry); entry != "" {
				*list.entries = append(*list.entries, entry)
			}
		}
	}
	if line, ok := next(); !ok || line != snapshotTrailer {
		return Snapshot{}, readErr(scanner, "missing snapshot trailer")
	}
	return snap, nil
}

type namedList struct {
	name    string
	entries *[]string
}

func snapshotLists(snap *Snapshot) []namedList {
	return []namedList{
		{linksName, &snap.Links},
		{processedName, &snap.Processed},
		{frontierName, &snap.Frontier},
	}
}

func readErr(scanner *bufio.Scanner, format string, args ...any) error {
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	return fmt.Errorf("read snapshot: "+format, args...)
}

// readList reads a legacy newline-delimited list, skipping blank lines.
func readList(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var out []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read list: %w", err)
	}
	return out, nil
}
