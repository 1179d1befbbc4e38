package ark

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/dreambot/internal/gateway"
)

type fakeModel struct {
	got []*schema.Message
	out *schema.Message
	err error
}

func (f *fakeModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.got = in
	return f.out, f.err
}

func TestCompleteTextPrependsSystem(t *testing.T) {
	fm := &fakeModel{out: schema.AssistantMessage(" stars align ", nil)}
	c := &Client{chat: fm, system: "mystic"}

	out, err := c.CompleteText(context.Background(), "tell me")
	require.NoError(t, err)
	require.Equal(t, "stars align", out)
	require.Len(t, fm.got, 2)
	require.Equal(t, schema.System, fm.got[0].Role)
	require.Equal(t, "tell me", fm.got[1].Content)
}

func TestAnalyzeImageBuildsMultiContent(t *testing.T) {
	fm := &fakeModel{out: schema.AssistantMessage("a fish", nil)}
	c := &Client{chat: fm}

	_, err := c.AnalyzeImage(context.Background(), gateway.Image{Data: []byte("img"), MIME: "image/png"}, "read")
	require.NoError(t, err)
	parts := fm.got[0].MultiContent
	require.Len(t, parts, 2)
	require.Equal(t, "read", parts[0].Text)
	require.Equal(t, "data:image/png;base64,aW1n", parts[1].ImageURL.URL)

	_, err = c.AnalyzeImage(context.Background(), gateway.Image{}, "read")
	require.Equal(t, gateway.KindMalformed, gateway.KindOf(err))
}

func TestErrorsAreClassified(t *testing.T) {
	c := &Client{chat: &fakeModel{err: errors.New("status 429: quota exceeded")}}
	_, err := c.CompleteText(context.Background(), "x")
	require.Equal(t, gateway.KindQuota, gateway.KindOf(err))

	c = &Client{chat: &fakeModel{err: context.DeadlineExceeded}}
	_, err = c.CompleteText(context.Background(), "x")
	require.Equal(t, gateway.KindTimeout, gateway.KindOf(err))

	c = &Client{chat: &fakeModel{out: schema.AssistantMessage("", nil)}}
	_, err = c.CompleteText(context.Background(), "x")
	require.Equal(t, gateway.KindMalformed, gateway.KindOf(err))
}

func TestConfigEnabled(t *testing.T) {
	require.False(t, Config{Model: "m"}.Enabled())
	require.True(t, Config{Model: "m", APIKey: "k"}.Enabled())
	require.True(t, Config{Model: "m", AccessKey: "a", SecretKey: "s"}.Enabled())
}
