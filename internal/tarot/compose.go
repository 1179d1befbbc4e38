package tarot

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"
)

// CardImage is a drawn card's artwork ready to send, already rotated when reversed.
type CardImage struct {
	Card     DrawnCard
	Filename string
	Data     []byte
}

// Compose renders every card or none. Upright artwork is passed through
// byte-for-byte; reversed artwork is decoded, rotated 180° and re-encoded in
// the source format. The first failure aborts with an *AssetError.
func Compose(ctx context.Context, store AssetStore, cards []DrawnCard) ([]CardImage, error) {
	out := make([]CardImage, 0, len(cards))
	for _, c := range cards {
		asset, err := store.CardImage(ctx, c.Index)
		if err != nil {
			return nil, err
		}
		data := asset.Data
		if c.Orientation == Reversed {
			if data, err = rotate180(asset); err != nil {
				return nil, &AssetError{Index: c.Index, Err: err}
			}
		}
		out = append(out, CardImage{Card: c, Filename: asset.Filename, Data: data})
	}
	return out, nil
}

func rotate180(a Asset) ([]byte, error) {
	format, err := imaging.FormatFromFilename(a.Filename)
	if err != nil {
		format = imaging.JPEG
	}
	img, err := imaging.Decode(bytes.NewReader(a.Data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Rotate180(img), format); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}
