package gridsim

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/statecache/id"
)

// Compression selects the stream codec of a snapshot.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionLZ4
	CompressionZSTD
)

// ErrUnknownCompression is returned for an unsupported Compression value.
var ErrUnknownCompression = errors.New("gridsim: unknown compression")

// CompressionFor picks the codec from a file extension: .lz4, .zst or none.
func CompressionFor(path string) Compression {
	switch filepath.Ext(path) {
	case ".lz4":
		return CompressionLZ4
	case ".zst", ".zstd":
		return CompressionZSTD
	default:
		return CompressionNone
	}
}

// WriteSnapshot writes robots as JSON lines through the chosen codec.
func WriteSnapshot(w io.Writer, robots []Robot, comp Compression) error {
	var (
		sink  io.Writer
		flush func() error
	)
	switch comp {
	case CompressionNone:
		bw := bufio.NewWriter(w)
		sink, flush = bw, bw.Flush
	case CompressionLZ4:
		zw := lz4.NewWriter(w)
		sink, flush = zw, zw.Close
	case CompressionZSTD:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		sink, flush = zw, zw.Close
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCompression, comp)
	}

	enc := json.NewEncoder(sink)
	for _, r := range robots {
		if err := enc.Encode(snapshotRecord(r)); err != nil {
			return fmt.Errorf("encode robot %s: %w", r.Key, err)
		}
	}
	return flush()
}

// ReadSnapshot reads robots written by WriteSnapshot.
func ReadSnapshot(r io.Reader, comp Compression) ([]Robot, error) {
	var src io.Reader
	switch comp {
	case CompressionNone:
		src = bufio.NewReader(r)
	case CompressionLZ4:
		src = lz4.NewReader(r)
	case CompressionZSTD:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		src = zr
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, comp)
	}

	var robots []Robot
	dec := json.NewDecoder(src)
	for {
		var rec record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return robots, nil
			}
			return nil, fmt.Errorf("decode robot %d: %w", len(robots), err)
		}
		r, err := rec.robot()
		if err != nil {
			return nil, fmt.Errorf("decode robot %d: %w", len(robots), err)
		}
		robots = append(robots, r)
	}
}

type record struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Cell   [2]int  `json:"cell"`
	Next   *[2]int `json:"next,omitempty"`
	Status string  `json:"status"`
}

func snapshotRecord(r Robot) record {
	rec := record{
		ID:     r.Key.Int64(),
		Name:   r.Name,
		Cell:   [2]int{r.Cell.X, r.Cell.Y},
		Status: r.Status.String(),
	}
	if r.HasNext {
		rec.Next = &[2]int{r.Next.X, r.Next.Y}
	}
	return rec
}

func (rec record) robot() (Robot, error) {
	st, err := ParseStatus(rec.Status)
	if err != nil {
		return Robot{}, err
	}
	r := Robot{
		Key:    id.New[Robot](rec.ID),
		Name:   rec.Name,
		Cell:   Cell{X: rec.Cell[0], Y: rec.Cell[1]},
		Status: st,
	}
	if rec.Next != nil {
		r.Next = Cell{X: rec.Next[0], Y: rec.Next[1]}
		r.HasNext = true
	}
	return r, nil
}
