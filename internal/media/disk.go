package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DiskStore writes photos under a root directory, organized per submitter
// and listing: <root>/user_<phone>/listing_<id>/<uuid>.<ext>.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: root}
}

func (d *DiskStore) Store(ctx context.Context, data []byte, ownerPhone string, listingID int64, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(d.root,
		"user_"+sanitizePhone(ownerPhone),
		fmt.Sprintf("listing_%d", listingID),
	)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("media: create photo dir: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+extensionFor(contentType))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("media: write photo: %w", err)
	}
	return path, nil
}

func sanitizePhone(phone string) string {
	r := strings.NewReplacer("+", "", ":", "", "whatsapp", "", "/", "", " ", "")
	return r.Replace(phone)
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
