package indexer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"txhistory/internal/model"
)

// BlockSource yields decoded blocks in chain order. Next returns io.EOF
// after the last block.
type BlockSource interface {
	Next(ctx context.Context) (*model.Block, error)
}

// JSONLSource reads one decoded block per line.
type JSONLSource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// NewJSONLSource reads blocks from r.
func NewJSONLSource(r io.Reader) *JSONLSource {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)
	return &JSONLSource{scanner: scanner}
}

// OpenJSONLSource opens path, or stdin for "-".
func OpenJSONLSource(path string) (*JSONLSource, error) {
	if path == "-" {
		return NewJSONLSource(os.Stdin), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	source := NewJSONLSource(file)
	source.closer = file
	return source, nil
}

func (s *JSONLSource) Next(ctx context.Context) (*model.Block, error) {
	for s.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.line++
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var block model.Block
		if err := json.Unmarshal(line, &block); err != nil {
			return nil, fmt.Errorf("decode block at line %d: %w", s.line, err)
		}
		return &block, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	return nil, io.EOF
}

func (s *JSONLSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
