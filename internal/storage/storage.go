// Package storage keeps uploaded bill images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrUnsupportedContentType = errors.New("unsupported bill content type")

// BillStore persists a bill image and returns the URL it is served from.
type BillStore interface {
	PutBill(ctx context.Context, orderID uuid.UUID, contentType string, body io.Reader) (string, error)
}

var billExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// billKey names the object for one upload. Re-uploads after a rejection get a new key.
func billKey(orderID uuid.UUID, contentType string, now time.Time) (string, error) {
	ext, ok := billExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	return path.Join("bills", orderID.String(), now.UTC().Format("20060102T150405.000000000")+ext), nil
}
