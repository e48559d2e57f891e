package indexer

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"

	"txhistory/internal/amount"
	"txhistory/internal/calls"
	"txhistory/internal/history"
	"txhistory/internal/model"
)

// Process error reasons, used as metric labels.
const (
	ReasonMalformedCall    = "malformed_call"
	ReasonCallTreeTooDeep  = "call_tree_too_deep"
	ReasonMissingExecuted  = "missing_executed_event"
	ReasonInvalidExtrinsic = "invalid_extrinsic"
)

// classify maps a per-extrinsic data error to its reason and log level. ok
// is false for errors that do not come from the extrinsic itself; those stop
// the run so the block is processed again on restart.
func classify(err error) (reason string, level zapcore.Level, ok bool) {
	switch {
	case errors.Is(err, calls.ErrMalformedCallArguments):
		return ReasonMalformedCall, zapcore.ErrorLevel, true
	case errors.Is(err, calls.ErrCallTreeTooDeep):
		return ReasonCallTreeTooDeep, zapcore.ErrorLevel, true
	case errors.Is(err, history.ErrMissingExecutedEvent):
		return ReasonMissingExecuted, zapcore.WarnLevel, true
	case errors.Is(err, history.ErrInvalidExecutedEvent), errors.Is(err, amount.ErrInvalidAmount):
		return ReasonInvalidExtrinsic, zapcore.ErrorLevel, true
	default:
		return "", zapcore.ErrorLevel, false
	}
}

func buildProcessError(xc model.ExtrinsicContext, err error) model.ProcessError {
	return model.ProcessError{
		BlockNumber:   xc.Block.Number,
		ExtrinsicIdx:  xc.Extrinsic.Idx,
		ExtrinsicHash: xc.Extrinsic.Hash,
		Module:        xc.Extrinsic.Method.Module,
		Call:          xc.Extrinsic.Method.Function,
		Error:         err.Error(),
	}
}

// ErrorWriter appends process errors as JSON lines.
type ErrorWriter struct {
	file   *os.File
	writer *bufio.Writer
}

func NewErrorWriter(path string, appendMode bool) (*ErrorWriter, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &ErrorWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *ErrorWriter) Write(record model.ProcessError) error {
	if w == nil {
		return nil
	}
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *ErrorWriter) Flush() error {
	if w == nil {
		return nil
	}
	return w.writer.Flush()
}

func (w *ErrorWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
