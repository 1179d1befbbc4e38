package bot

import (
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/m3rciful/dreambot/internal/gateway"

	tele "gopkg.in/telebot.v4"
)

// maxDownload is the Bot API file download cap.
const maxDownload = 20 << 20

var errTooLarge = errors.New("bot: file exceeds download limit")

// Downloader fetches a Telegram file's content.
type Downloader func(c tele.Context, file *tele.File) (io.ReadCloser, error)

func telegramDownload(c tele.Context, file *tele.File) (io.ReadCloser, error) {
	return c.Bot().File(file)
}

func (b *Bot) fetch(c tele.Context, file *tele.File) ([]byte, error) {
	if file.FileSize > maxDownload {
		return nil, errTooLarge
	}
	rc, err := b.download(c, file)
	if err != nil {
		return nil, fmt.Errorf("bot: download %s: %w", file.FileID, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("bot: read %s: %w", file.FileID, err)
	}
	if len(data) > maxDownload {
		return nil, errTooLarge
	}
	return data, nil
}

func (b *Bot) voice(c tele.Context) (gateway.Audio, error) {
	msg := c.Message()
	switch {
	case msg == nil:
		return gateway.Audio{}, errors.New("bot: no message")
	case msg.Voice != nil:
		data, err := b.fetch(c, &msg.Voice.File)
		if err != nil {
			return gateway.Audio{}, err
		}
		return gateway.Audio{Data: data, Filename: "voice.ogg", MIME: orDefault(msg.Voice.MIME, "audio/ogg")}, nil
	case msg.Audio != nil:
		data, err := b.fetch(c, &msg.Audio.File)
		if err != nil {
			return gateway.Audio{}, err
		}
		name := msg.Audio.FileName
		if name == "" {
			name = "audio" + extFor(msg.Audio.MIME)
		}
		return gateway.Audio{Data: data, Filename: path.Base(name), MIME: msg.Audio.MIME}, nil
	}
	return gateway.Audio{}, errors.New("bot: message has no audio")
}

func (b *Bot) photo(c tele.Context) (gateway.Image, error) {
	msg := c.Message()
	switch {
	case msg == nil:
		return gateway.Image{}, errors.New("bot: no message")
	case msg.Photo != nil:
		data, err := b.fetch(c, &msg.Photo.File)
		if err != nil {
			return gateway.Image{}, err
		}
		return gateway.Image{Data: data, MIME: "image/jpeg"}, nil
	case msg.Document != nil:
		data, err := b.fetch(c, &msg.Document.File)
		if err != nil {
			return gateway.Image{}, err
		}
		return gateway.Image{Data: data, MIME: orDefault(msg.Document.MIME, "image/jpeg")}, nil
	}
	return gateway.Image{}, errors.New("bot: message has no image")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func extFor(mime string) string {
	switch mime {
	case "audio/mpeg":
		return ".mp3"
	case "audio/mp4", "audio/x-m4a":
		return ".m4a"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	default:
		return ".ogg"
	}
}
