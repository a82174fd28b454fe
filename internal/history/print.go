package history

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const dayFormat = "2006-01-02"

// PrintHuman renders records for the terminal, newest first as stored.
func PrintHuman(recs []*Record, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "imapurge history — %d runs\n", len(recs))
	for _, rec := range recs {
		fmt.Fprintf(&builder, "\n%s  %s\n", rec.StartedAt.Format(time.RFC3339), rec.RunID)
		fmt.Fprintf(&builder, "  %s/%s  %s..%s  max-delete %d\n",
			rec.Host, rec.Mailbox,
			rec.After.Format(dayFormat), rec.Before.Format(dayFormat),
			rec.MaxDelete)
		fmt.Fprintf(&builder, "  %-9s  read %d  deleted %d  errors %d  restarts %d  pages %d",
			rec.Outcome, rec.Read, rec.Deleted, rec.Errors, rec.Restarts, rec.Pages)
		if rec.Committed {
			fmt.Fprintf(&builder, "  expunged %d\n", rec.Expunged)
		} else {
			builder.WriteString("  not expunged\n")
		}
	}
	if _, err := io.WriteString(w, builder.String()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WriteJSON serializes records to disk.
func WriteJSON(recs []*Record, path string) error {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return fmt.Errorf("path must not be empty")
	}
	clean = filepath.Clean(clean)
	if filepath.IsAbs(clean) {
		return fmt.Errorf("output path must be relative, got %s", clean)
	}
	if strings.HasPrefix(clean, "..") {
		return fmt.Errorf("output path %s escapes working directory", clean)
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	abs := filepath.Join(wd, clean)
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create %s: %w", abs, err)
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if encodeErr := enc.Encode(recs); encodeErr != nil {
		return fmt.Errorf("encode records: %w", encodeErr)
	}
	return nil
}
