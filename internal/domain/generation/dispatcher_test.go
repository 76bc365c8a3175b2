package generation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/genrelay/server/internal/domain/quota"
	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/outbound"
)

type usageMap struct {
	mu      sync.Mutex
	records map[string]model.UsageRecord
}

func newUsageMap() *usageMap {
	return &usageMap{records: map[string]model.UsageRecord{}}
}

func (u *usageMap) Get(_ context.Context, id string) (*model.UsageRecord, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if r, ok := u.records[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (u *usageMap) Set(_ context.Context, r *model.UsageRecord) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.records[r.SubjectID] = *r
	return nil
}

func (u *usageMap) CompareAndSwap(_ context.Context, id string, old, next *model.UsageRecord) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	var current *model.UsageRecord
	if r, ok := u.records[id]; ok {
		current = &r
	}
	if !current.Same(old) {
		return false, nil
	}
	u.records[id] = *next
	return true, nil
}

func (u *usageMap) count(id string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.records[id].Count
}

type fakeBlobs struct {
	saved [][]byte
	err   error
}

func (f *fakeBlobs) Save(_ context.Context, data []byte, mime string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, data)
	return "https://cdn.example.com/img.png", nil
}

type dispatcherFixture struct {
	usage      *usageMap
	blobs      *fakeBlobs
	dispatcher *Dispatcher
}

func newFixture(t *testing.T, text []outbound.TextProviderPort, image []outbound.ImageProviderPort) *dispatcherFixture {
	t.Helper()
	usage := newUsageMap()
	blobs := &fakeBlobs{}
	logger := zap.NewNop()
	tracker := quota.NewTracker(usage, nil, quota.DefaultConfig(), logger)
	d := NewDispatcher(
		NewClassifier(),
		NewTextChain(text, ChainOptions{Logger: logger}),
		NewImageChain(image, ChainOptions{Logger: logger}),
		tracker,
		blobs,
		DefaultConfig(),
		logger,
	)
	return &dispatcherFixture{usage: usage, blobs: blobs, dispatcher: d}
}

var alice = model.Subject{ID: "alice", Tier: model.PlanTierFree}

func TestDispatcher_Text(t *testing.T) {
	p := newMockText("openai")
	p.On("Invoke", mock.Anything, "什麼是光合作用", mock.Anything).Return("植物利用光能…", nil)
	f := newFixture(t, []outbound.TextProviderPort{p}, nil)

	result := f.dispatcher.Handle(context.Background(), &model.GenerationRequest{Message: "  什麼是光合作用  "}, alice)

	assert.True(t, result.OK)
	assert.Equal(t, model.ModeText, result.Mode)
	assert.Equal(t, "植物利用光能…", result.Reply)
	assert.Equal(t, "openai", result.Engine)
	assert.Equal(t, 0, f.usage.count(alice.ID))
}

func TestDispatcher_TextPassesSystemPrompt(t *testing.T) {
	p := newMockText("openai")
	p.On("Invoke", mock.Anything, "hi", mock.MatchedBy(func(o *model.InvokeOptions) bool {
		return o != nil && o.SystemPrompt == "be nice"
	})).Return("hello", nil)

	cfg := DefaultConfig()
	cfg.TextSystemPrompt = "be nice"
	d := NewDispatcher(nil, NewTextChain([]outbound.TextProviderPort{p}, ChainOptions{}), nil,
		quota.NewTracker(newUsageMap(), nil, nil, nil), &fakeBlobs{}, cfg, nil)

	result := d.Handle(context.Background(), &model.GenerationRequest{Message: "hi"}, alice)

	assert.True(t, result.OK)
	p.AssertExpectations(t)
}

func TestDispatcher_TextExhaustedDegrades(t *testing.T) {
	a := newMockText("a")
	b := newMockText("b")
	a.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("500"))
	b.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return("", nil)
	f := newFixture(t, []outbound.TextProviderPort{a, b}, nil)

	result := f.dispatcher.Handle(context.Background(), &model.GenerationRequest{Message: "hello"}, alice)

	assert.False(t, result.OK)
	assert.Equal(t, model.ModeText, result.Mode)
	assert.Equal(t, DefaultMessages().TextFallback, result.Reply)
	assert.NotEmpty(t, result.Reply)
	assert.Equal(t, model.FailureChainExhausted, result.FailureKindOf())
	assert.Len(t, result.Attempts, 2)
}

func TestDispatcher_Validation(t *testing.T) {
	img := okImage("img")
	f := newFixture(t, nil, []outbound.ImageProviderPort{img})

	for _, msg := range []string{"", "   ", "\n\t"} {
		result := f.dispatcher.Handle(context.Background(), &model.GenerationRequest{Message: msg}, alice)
		assert.False(t, result.OK)
		assert.Equal(t, model.FailureValidation, result.FailureKindOf())
	}

	result := f.dispatcher.Handle(context.Background(), nil, alice)
	assert.Equal(t, model.FailureValidation, result.FailureKindOf())
	assert.Equal(t, int32(0), img.calls.Load())
}

func TestDispatcher_ImagePromptTooShort(t *testing.T) {
	img := okImage("img")
	f := newFixture(t, nil, []outbound.ImageProviderPort{img})
	mode := model.ModeImage

	result := f.dispatcher.Handle(context.Background(), &model.GenerationRequest{Message: "貓", Mode: &mode}, alice)

	assert.Equal(t, model.FailureValidation, result.FailureKindOf())
	assert.Equal(t, DefaultMessages().PromptTooShort, result.Reply)
	assert.Equal(t, int32(0), img.calls.Load())
	assert.Equal(t, 0, f.usage.count(alice.ID))
}

func TestDispatcher_ImageWithoutSubjectIDIsValidation(t *testing.T) {
	img := okImage("img")
	f := newFixture(t, nil, []outbound.ImageProviderPort{img})

	result := f.dispatcher.Handle(context.Background(), &model.GenerationRequest{Message: "draw a cat"}, model.Subject{Tier: model.PlanTierFree})

	assert.False(t, result.OK)
	assert.Equal(t, model.FailureValidation, result.FailureKindOf())
	assert.Equal(t, DefaultMessages().InvalidSubject, result.Reply)
	assert.Equal(t, int32(0), img.calls.Load())
}

func TestDispatcher_ImageSuccessChargesOnce(t *testing.T) {
	a := failingImage("a", errors.New("timeout"))
	b := failingImage("b", errors.New("no image"))
	c := okImage("c")
	f := newFixture(t, nil, []outbound.ImageProviderPort{a, b, c})

	result := f.dispatcher.Handle(context.Background(), &model.GenerationRequest{Message: "請幫我畫一隻貓"}, alice)

	require.True(t, result.OK)
	assert.Equal(t, model.ModeImage, result.Mode)
	assert.Equal(t, "c", result.Engine)
	assert.Equal(t, "https://cdn.example.com/img.png", result.ImageURL)
	assert.Len(t, result.Attempts, 3)
	assert.Equal(t, 1, f.usage.count(alice.ID))
	assert.Len(t, f.blobs.saved, 1)
}

func TestDispatcher_ImageExhaustedDoesNotCharge(t *testing.T) {
	a := failingImage("a", errors.New("x"))
	b := failingImage("b", errors.New("y"))
	f := newFixture(t, nil, []outbound.ImageProviderPort{a, b})

	result := f.dispatcher.Handle(context.Background(), &model.GenerationRequest{Message: "draw a cat"}, alice)

	assert.False(t, result.OK)
	assert.Equal(t, model.FailureChainExhausted, result.FailureKindOf())
	assert.Equal(t, DefaultMessages().ImageFailed, result.Reply)
	assert.Equal(t, 0, f.usage.count(alice.ID))
	assert.Empty(t, f.blobs.saved)
}

func TestDispatcher_QuotaGate(t *testing.T) {
	img := okImage("img")
	f := newFixture(t, nil, []outbound.ImageProviderPort{img})
	require.NoError(t, f.usage.Set(context.Background(), &model.UsageRecord{
		SubjectID: alice.ID,
		PeriodKey: quota.NewTracker(f.usage, nil, nil, nil).PeriodKey(timeNow()),
		Count:     10,
	}))

	result := f.dispatcher.Handle(context.Background(), &model.GenerationRequest{Message: "畫一隻狗"}, alice)

	assert.False(t, result.OK)
	assert.Equal(t, model.FailureQuotaDenied, result.FailureKindOf())
	assert.Contains(t, result.Reply, "10/10")
	assert.Equal(t, int32(0), img.calls.Load())
	assert.Equal(t, 10, f.usage.count(alice.ID))
}

func TestDispatcher_StorageFailureReleases(t *testing.T) {
	f := newFixture(t, nil, []outbound.ImageProviderPort{okImage("img")})
	f.blobs.err = errors.New("disk full")

	result := f.dispatcher.Handle(context.Background(), &model.GenerationRequest{Message: "draw a cat"}, alice)

	assert.False(t, result.OK)
	assert.Equal(t, model.FailureStorage, result.FailureKindOf())
	assert.Equal(t, 0, f.usage.count(alice.ID))
}

func TestDispatcher_NoImageProvider(t *testing.T) {
	f := newFixture(t, nil, nil)

	result := f.dispatcher.Handle(context.Background(), &model.GenerationRequest{Message: "draw a cat"}, alice)

	assert.Equal(t, model.FailureNoProvider, result.FailureKindOf())
	assert.Equal(t, 0, f.usage.count(alice.ID))
}

func TestDispatcher_NoTextProvider(t *testing.T) {
	f := newFixture(t, nil, nil)

	result := f.dispatcher.Handle(context.Background(), &model.GenerationRequest{Message: "hello"}, alice)

	assert.False(t, result.OK)
	assert.Equal(t, model.FailureNoProvider, result.FailureKindOf())
	assert.Equal(t, DefaultMessages().TextFallback, result.Reply)
}

func TestDispatcher_ModeOverride(t *testing.T) {
	p := newMockText("openai")
	p.On("Invoke", mock.Anything, "draw me a poem", mock.Anything).Return("roses are red", nil)
	img := okImage("img")
	f := newFixture(t, []outbound.TextProviderPort{p}, []outbound.ImageProviderPort{img})
	text := model.ModeText

	result := f.dispatcher.Handle(context.Background(), &model.GenerationRequest{Message: "draw me a poem", Mode: &text}, alice)

	assert.True(t, result.OK)
	assert.Equal(t, model.ModeText, result.Mode)
	assert.Equal(t, int32(0), img.calls.Load())
}

func TestDispatcher_AdminUnlimited(t *testing.T) {
	img := okImage("img")
	f := newFixture(t, nil, []outbound.ImageProviderPort{img})
	admin := model.Subject{ID: "root", Tier: model.PlanTierAdmin}

	for i := 0; i < 1000; i++ {
		result := f.dispatcher.Handle(context.Background(), &model.GenerationRequest{Message: "draw a cat"}, admin)
		require.True(t, result.OK, "request %d", i)
	}
	assert.Equal(t, int32(1000), img.calls.Load())
	assert.Equal(t, 0, f.usage.count(admin.ID))
}

func TestDispatcher_Chains(t *testing.T) {
	f := newFixture(t, []outbound.TextProviderPort{newMockText("openai"), newMockText("gemini")}, []outbound.ImageProviderPort{okImage("pollinations")})

	chains := f.dispatcher.Chains()

	assert.Equal(t, []string{"openai", "gemini"}, chains[model.ModeText])
	assert.Equal(t, []string{"pollinations"}, chains[model.ModeImage])
}
