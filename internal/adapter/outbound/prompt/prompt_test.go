package prompt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/outbound"
)

type MockTextProvider struct {
	mock.Mock
}

var _ outbound.TextProviderPort = (*MockTextProvider)(nil)

func (m *MockTextProvider) Name() string             { return "mock" }
func (m *MockTextProvider) Kind() model.Mode         { return model.ModeText }
func (m *MockTextProvider) RequiresCredential() bool { return false }

func (m *MockTextProvider) Invoke(ctx context.Context, prompt string, opts *model.InvokeOptions) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}

type recordingImage struct {
	prompts []string
}

func (r *recordingImage) Name() string             { return "img" }
func (r *recordingImage) Kind() model.Mode         { return model.ModeImage }
func (r *recordingImage) RequiresCredential() bool { return false }

func (r *recordingImage) Invoke(_ context.Context, prompt string, _ *model.InvokeOptions) (*model.ImagePayload, error) {
	r.prompts = append(r.prompts, prompt)
	return &model.ImagePayload{Data: []byte{1}, MimeType: "image/png"}, nil
}

func TestSuffix_Transform(t *testing.T) {
	out, err := Suffix("digital art, highly detailed").Transform(context.Background(), "a cat, ")
	require.NoError(t, err)
	assert.Equal(t, "a cat, digital art, highly detailed", out)

	out, err = Suffix("  ").Transform(context.Background(), "a cat")
	require.NoError(t, err)
	assert.Equal(t, "a cat", out)
}

func TestTranslator_Transform(t *testing.T) {
	p := new(MockTextProvider)
	p.On("Invoke", mock.Anything, "一隻戴帽子的貓", mock.MatchedBy(func(o *model.InvokeOptions) bool {
		return o.SystemPrompt == translateInstruction
	})).Return(`"A cat wearing a hat"`, nil)

	out, err := NewTranslator(p).Transform(context.Background(), "一隻戴帽子的貓")

	require.NoError(t, err)
	assert.Equal(t, "A cat wearing a hat", out)
	p.AssertExpectations(t)
}

func TestTranslator_SkipsEnglish(t *testing.T) {
	p := new(MockTextProvider)

	out, err := NewTranslator(p).Transform(context.Background(), "a cat")

	require.NoError(t, err)
	assert.Equal(t, "a cat", out)
	p.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestWrap_FallsBackOnTranslationFailure(t *testing.T) {
	p := new(MockTextProvider)
	p.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("quota"))
	img := &recordingImage{}

	wrapped := Wrap[*model.ImagePayload](img, nil, NewTranslator(p), Suffix("watercolor"))
	_, err := wrapped.Invoke(context.Background(), "一隻貓", nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"一隻貓, watercolor"}, img.prompts)
	assert.Equal(t, "img", wrapped.Name())
}

func TestWrap_NoTransformersReturnsProvider(t *testing.T) {
	img := &recordingImage{}

	assert.Same(t, img, Wrap[*model.ImagePayload](img, nil).(*recordingImage))
}
