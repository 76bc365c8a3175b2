package generation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/outbound"
)

// MockTextProvider is a mock implementation of outbound.TextProviderPort.
type MockTextProvider struct {
	mock.Mock
	name string
}

var _ outbound.TextProviderPort = (*MockTextProvider)(nil)

func newMockText(name string) *MockTextProvider {
	return &MockTextProvider{name: name}
}

func (m *MockTextProvider) Name() string             { return m.name }
func (m *MockTextProvider) Kind() model.Mode         { return model.ModeText }
func (m *MockTextProvider) RequiresCredential() bool { return true }

func (m *MockTextProvider) Invoke(ctx context.Context, prompt string, opts *model.InvokeOptions) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}

// stubImage is a scripted image provider.
type stubImage struct {
	name    string
	payload *model.ImagePayload
	err     error
	panics  bool
	calls   atomic.Int32
}

var _ outbound.ImageProviderPort = (*stubImage)(nil)

func (s *stubImage) Name() string             { return s.name }
func (s *stubImage) Kind() model.Mode         { return model.ModeImage }
func (s *stubImage) RequiresCredential() bool { return false }

func (s *stubImage) Invoke(context.Context, string, *model.InvokeOptions) (*model.ImagePayload, error) {
	s.calls.Add(1)
	if s.panics {
		panic("boom")
	}
	return s.payload, s.err
}

func okImage(name string) *stubImage {
	return &stubImage{name: name, payload: &model.ImagePayload{Data: []byte{0x89, 'P', 'N', 'G'}, MimeType: "image/png"}}
}

func failingImage(name string, err error) *stubImage {
	return &stubImage{name: name, err: err}
}

var timeNow = time.Now
