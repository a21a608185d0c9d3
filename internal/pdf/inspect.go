package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	pdfreader "github.com/ledongthuc/pdf"
)

var (
	ErrNotPDF     = errors.New("file is not a PDF")
	ErrUnreadable = errors.New("pdf cannot be read")
	ErrEncrypted  = errors.New("pdf is encrypted")
	ErrTooLong    = errors.New("pdf has too many pages")
	ErrNoPages    = errors.New("pdf has no pages")
)

type Inspection struct {
	PageCount int
	Text      string
}

// Inspect parses an uploaded document before it is sent for extraction. Text is
// best effort: scanned sheets usually carry none.
func Inspect(ctx context.Context, data []byte, maxPages int) (inspection *Inspection, err error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return nil, ErrNotPDF
	}

	// the reader panics on some malformed object graphs
	defer func() {
		if r := recover(); r != nil {
			inspection, err = nil, fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	reader, err := pdfreader.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if bytes.Contains(data, []byte("/Encrypt")) {
			return nil, ErrEncrypted
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if !reader.Trailer().Key("Encrypt").IsNull() {
		return nil, ErrEncrypted
	}

	pageCount := reader.NumPage()
	if pageCount == 0 {
		return nil, ErrNoPages
	}
	if maxPages > 0 && pageCount > maxPages {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooLong, pageCount, maxPages)
	}

	var sb strings.Builder
	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if content = strings.TrimSpace(content); content != "" {
			fmt.Fprintf(&sb, "[page %d]\n%s\n", i, content)
		}
	}
	return &Inspection{PageCount: pageCount, Text: sb.String()}, nil
}
