package tarot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ErrAsset is matched by every *AssetError.
var ErrAsset = errors.New("tarot: card asset unavailable")

// AssetError reports a missing or unreadable card image.
type AssetError struct {
	Index int
	Err   error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("tarot: card %02d asset: %v", e.Index, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }

func (e *AssetError) Is(target error) bool { return target == ErrAsset }

func (e *AssetError) Code() string { return "TAROT_ASSET" }

// Asset is the raw artwork for one card.
type Asset struct {
	Index    int
	Filename string
	Data     []byte
}

// AssetStore resolves card artwork by deck index.
type AssetStore interface {
	CardImage(ctx context.Context, index int) (Asset, error)
}

// FSStore reads "<NN><ext>" files (two-digit zero-padded index) from an fs.FS.
type FSStore struct {
	fsys fs.FS
	ext  string
}

// NewFSStore returns a store over fsys. An empty ext defaults to ".jpg".
func NewFSStore(fsys fs.FS, ext string) *FSStore {
	if ext == "" {
		ext = ".jpg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &FSStore{fsys: fsys, ext: ext}
}

// Filename returns the asset file name for index.
func (s *FSStore) Filename(index int) string {
	return fmt.Sprintf("%02d%s", index, s.ext)
}

func (s *FSStore) CardImage(ctx context.Context, index int) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return Asset{}, err
	}
	if index < 0 || index >= DeckSize {
		return Asset{}, &AssetError{Index: index, Err: errors.New("index out of range")}
	}
	name := s.Filename(index)
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return Asset{}, &AssetError{Index: index, Err: err}
	}
	if len(data) == 0 {
		return Asset{}, &AssetError{Index: index, Err: errors.New("empty file")}
	}
	return Asset{Index: index, Filename: name, Data: data}, nil
}

// ValidateDeck checks that every card in the deck has artwork and returns all failures joined.
func ValidateDeck(ctx context.Context, store AssetStore) error {
	var errs []error
	for i := 0; i < DeckSize; i++ {
		if _, err := store.CardImage(ctx, i); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
