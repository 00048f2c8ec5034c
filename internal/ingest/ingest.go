// Package ingest turns uploaded bytes into stored datasets.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/dataset"
	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/parser"
	"github.com/KaramelBytes/dataglimpse/internal/store"
	"github.com/KaramelBytes/dataglimpse/internal/utils"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
)

// ErrTooLarge is matched by every TooLargeError.
var ErrTooLarge = errors.New("upload too large")

// TooLargeError reports an upload over the configured size limit.
type TooLargeError struct {
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("upload exceeds the %d byte limit", e.Limit)
}

func (e *TooLargeError) Is(target error) bool { return target == ErrTooLarge }

// Ingestor spools uploads to disk, parses them and records the dataset.
type Ingestor struct {
	datasets *dataset.Manager
	sessions store.SessionStore
	dir      string
	maxBytes int64
	log      *zap.Logger
	now      func() time.Time
}

// New builds an Ingestor that spools into dir. A maxBytes of 0 disables the
// size limit.
func New(datasets *dataset.Manager, sessions store.SessionStore, dir string, maxBytes int64, log *zap.Logger) *Ingestor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingestor{datasets: datasets, sessions: sessions, dir: dir, maxBytes: maxBytes, log: log, now: time.Now}
}

// Ingest stores the upload named filename for owner. Guest uploads are added
// to the owner's session, which is created on first use. The spooled copy is
// removed before Ingest returns.
func (i *Ingestor) Ingest(ctx context.Context, filename string, r io.Reader, owner model.Owner) (*model.Dataset, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if !parser.Supported(name) {
		return nil, &parser.UnsupportedFormatError{Ext: strings.ToLower(filepath.Ext(name))}
	}
	path, checksum, err := i.spool(name, r)
	if path != "" {
		defer func() {
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				i.log.Warn("spooled upload not removed", zap.String("path", path), zap.Error(rmErr))
			}
		}()
	}
	if err != nil {
		return nil, err
	}

	tbl, err := parser.ParseFile(path)
	if err != nil {
		var pe *parser.ParseError
		if errors.As(err, &pe) {
			// Report the uploaded name, not the spool file.
			pe.File = name
			return nil, pe
		}
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	ds, err := i.datasets.Create(ctx, name, tbl, owner, checksum)
	if err != nil {
		return nil, err
	}
	if owner.Kind == model.OwnerGuest {
		if err := i.sessions.AddSessionDataset(ctx, owner.ID, ds.ID, i.now().UTC()); err != nil {
			return nil, fmt.Errorf("record guest upload: %w", err)
		}
	}
	return ds, nil
}

// IngestFile ingests a file already on disk.
func (i *Ingestor) IngestFile(ctx context.Context, path string, owner model.Owner) (*model.Dataset, error) {
	if !parser.Supported(path) {
		return nil, &parser.UnsupportedFormatError{Ext: strings.ToLower(filepath.Ext(path))}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return i.Ingest(ctx, filepath.Base(path), f, owner)
}

// spool copies r into a temp file that keeps the upload's extension so the
// parser registry can select on it.
func (i *Ingestor) spool(name string, r io.Reader) (string, string, error) {
	dir := i.dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := utils.EnsurePrivateDir(dir); err != nil {
		return "", "", fmt.Errorf("upload dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "upload-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return "", "", fmt.Errorf("spool upload: %w", err)
	}
	path := f.Name()

	src := r
	if i.maxBytes > 0 {
		src = io.LimitReader(r, i.maxBytes+1)
	}
	h := xxh3.New()
	n, err := io.Copy(io.MultiWriter(f, h), src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return path, "", fmt.Errorf("spool upload: %w", err)
	}
	if i.maxBytes > 0 && n > i.maxBytes {
		return path, "", &TooLargeError{Limit: i.maxBytes}
	}
	i.log.Debug("upload spooled", zap.String("file", name), zap.Int64("bytes", n))
	return path, strconv.FormatUint(h.Sum64(), 16), nil
}
