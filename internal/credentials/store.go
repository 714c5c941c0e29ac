package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
)

// Store reads and writes credential documents addressed by path.
//
// Load must fail softly: a missing or unparsable document yields an error
// matching common.ErrCredentialUnavailable. Save must replace the document
// atomically.
type Store interface {
	Load(ctx context.Context, path string, v any) error
	Save(ctx context.Context, path string, v any) error
}

func unavailable(path string, cause error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrCredentialUnavailable, path, cause)
}

// Router dispatches to the S3 store for s3:// paths and to the file store
// for everything else.
type Router struct {
	File Store
	S3   Store
}

func (r *Router) pick(path string) (Store, error) {
	if strings.HasPrefix(path, s3Scheme) {
		if r.S3 == nil {
			return nil, fmt.Errorf("%w: %s: s3 credential store is not configured", common.ErrConfig, path)
		}
		return r.S3, nil
	}
	if r.File == nil {
		return nil, errors.New("file credential store is not configured")
	}
	return r.File, nil
}

func (r *Router) Load(ctx context.Context, path string, v any) error {
	s, err := r.pick(path)
	if err != nil {
		return unavailable(path, err)
	}
	return s.Load(ctx, path, v)
}

func (r *Router) Save(ctx context.Context, path string, v any) error {
	s, err := r.pick(path)
	if err != nil {
		return err
	}
	return s.Save(ctx, path, v)
}

// LoadServer loads the server credential at path.
func LoadServer(ctx context.Context, s Store, path string) (*ServerCredential, error) {
	var c ServerCredential
	if err := s.Load(ctx, path, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveServer replaces the server credential at path.
func SaveServer(ctx context.Context, s Store, path string, c *ServerCredential) error {
	if c == nil {
		return errors.New("server credential was nil")
	}
	return s.Save(ctx, path, c)
}

// LoadDownloader loads the downloader credential at path.
func LoadDownloader(ctx context.Context, s Store, path string) (*DownloaderCredential, error) {
	var c DownloaderCredential
	if err := s.Load(ctx, path, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveDownloader replaces the downloader credential at path, keeping any
// fields the downloader wrote that this package does not model.
func SaveDownloader(ctx context.Context, s Store, path string, c *DownloaderCredential) error {
	if c == nil {
		return errors.New("downloader credential was nil")
	}
	return s.Save(ctx, path, c)
}
