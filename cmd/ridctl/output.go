package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/BearBump/RIDBox/internal/models"
)

// Exit codes for ridctl commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // sync or build aborted
	ExitCommandError = 2 // missing store, bad flags or config
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// exitCode maps an Execute error to a process exit code. Anything that is
// not an ExitError comes from cobra itself (unknown flag, bad args).
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// classify picks the exit code for an error coming out of the store or the
// sync engine.
func classify(message string, err error) error {
	if errors.Is(err, models.ErrInvalidArgument) || errors.Is(err, models.ErrStoreUnavailable) {
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func field(w io.Writer, width int, label, value string) {
	fmt.Fprintf(w, "%-*s %s\n", width, label+":", value)
}

func orDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func writeLookupText(w io.Writer, res models.LookupResult) {
	const width = 13
	field(w, width, "serial", res.SerialNumber)
	field(w, width, "found", fmt.Sprint(res.Found))
	field(w, width, "source", string(res.Source))
	if !res.Found {
		return
	}
	field(w, width, "rid tracking", orDash(res.RIDTracking))
	field(w, width, "description", orDash(res.Description))
	field(w, width, "status", orDash(res.Status))
	field(w, width, "make", orDash(res.Make))
	field(w, width, "model", orDash(res.Model))
	field(w, width, "mfr serial", orDash(res.MfrSerial))
}

func writeReportText(w io.Writer, title string, rep models.SyncReport) {
	const width = 16
	fmt.Fprintln(w, title)
	mode := "write"
	if rep.DryRun {
		mode = "dry run"
	}
	field(w, width, "mode", mode)
	field(w, width, "records checked", fmt.Sprint(rep.RecordsChecked))
	field(w, width, "records updated", fmt.Sprint(rep.RecordsUpdated))
	field(w, width, "exact added", fmt.Sprint(rep.ExactAdded))
	field(w, width, "exact updated", fmt.Sprint(rep.ExactUpdated))
	field(w, width, "ranges added", fmt.Sprint(rep.RangeAdded))
	field(w, width, "ranges updated", fmt.Sprint(rep.RangeUpdated))
	field(w, width, "api calls", fmt.Sprint(rep.APICalls))
	field(w, width, "errors", fmt.Sprint(rep.Errors))
	if rep.FinishedAt != nil {
		field(w, width, "duration", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond).String())
	}
}

func writeStatsText(w io.Writer, st models.StoreStats) {
	const width = 14
	field(w, width, "exact serials", fmt.Sprint(st.ExactSerials))
	field(w, width, "serial ranges", fmt.Sprint(st.SerialRanges))
	if len(st.Metadata) == 0 {
		field(w, width, "metadata", "-")
		return
	}
	fmt.Fprintln(w, "metadata:")
	keys := make([]string, 0, len(st.Metadata))
	for k := range st.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-20s %s\n", k+":", st.Metadata[k])
	}
}
