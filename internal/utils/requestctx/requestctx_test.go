package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/genrelay/server/internal/model"
)

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "r-1")

	assert.Equal(t, "r-1", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))
}

func TestSubject(t *testing.T) {
	_, ok := Subject(context.Background())
	assert.False(t, ok)

	ctx := WithSubject(context.Background(), model.Subject{ID: "u1", Tier: model.PlanTierGold})
	s, ok := Subject(ctx)

	assert.True(t, ok)
	assert.Equal(t, "u1", s.ID)
	assert.Equal(t, model.PlanTierGold, s.Tier)
}
