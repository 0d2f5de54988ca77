package einoEmbedding

import (
	"context"
	"errors"
	"testing"

	einoEmbed "github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	out [][]float64
	err error
}

func (f *fakeEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...einoEmbed.Option) ([][]float64, error) {
	return f.out, f.err
}

func TestWrap_ConvertsToFloat32(t *testing.T) {
	e := Wrap(&fakeEmbedder{out: [][]float64{{0.5, 1}, {2, 3}}}, 2)

	vecs, err := e.BatchEmbedding(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 1}, {2, 3}}, vecs)
	assert.Equal(t, uint64(2), e.Dimension())
}

func TestWrap_CountMismatch(t *testing.T) {
	e := Wrap(&fakeEmbedder{out: [][]float64{{1}}}, 1)
	_, err := e.BatchEmbedding(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestWrap_PropagatesError(t *testing.T) {
	e := Wrap(&fakeEmbedder{err: errors.New("boom")}, 1)
	_, err := e.GetEmbedding(context.Background(), "a")
	assert.ErrorContains(t, err, "boom")
}
