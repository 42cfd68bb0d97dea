package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalBillStore writes bills under a directory served at baseURL.
type LocalBillStore struct {
	dir     string
	baseURL string
	now     func() time.Time
}

func NewLocalBillStore(dir, baseURL string) (*LocalBillStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create bill directory: %w", err)
	}
	return &LocalBillStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}, nil
}

func (s *LocalBillStore) PutBill(ctx context.Context, orderID uuid.UUID, contentType string, body io.Reader) (string, error) {
	key, err := billKey(orderID, contentType, s.now())
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", fmt.Errorf("failed to create bill directory: %w", err)
	}

	file, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("failed to create bill file: %w", err)
	}
	if _, err := io.Copy(file, body); err != nil {
		_ = file.Close()      //nolint:errcheck
		_ = os.Remove(target) //nolint:errcheck
		return "", fmt.Errorf("failed to write bill: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close bill file: %w", err)
	}

	return s.baseURL + "/" + strings.TrimPrefix(key, "bills/"), nil
}

// Dir is the root the HTTP layer serves bills from.
func (s *LocalBillStore) Dir() string {
	return filepath.Join(s.dir, "bills")
}
