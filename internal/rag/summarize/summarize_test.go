package summarize

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/naming"
	"github.com/akolanti/DocsetAgent/internal/prompts"
	"github.com/akolanti/DocsetAgent/internal/rag/llm"
)

type mockLLM struct {
	calls      int32
	inFlight   int32
	maxFlight  int32
	delay      time.Duration
	OnComplete func(ctx context.Context, req llm.Request) (string, error)
}

func (m *mockLLM) Model() string { return "mock-small" }

func (m *mockLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	atomic.AddInt32(&m.calls, 1)
	n := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		old := atomic.LoadInt32(&m.maxFlight)
		if n <= old || atomic.CompareAndSwapInt32(&m.maxFlight, old, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.OnComplete != nil {
		return m.OnComplete(ctx, req)
	}
	return "summary of: " + req.User[:10], nil
}

func options(model llm.Provider) Options {
	return Options{
		Tier:                 "chunk",
		SystemPrompt:         prompts.ChunkSummarySystem,
		QueryPrompt:          prompts.ChunkSummaryQuery,
		Model:                model,
		MinLengthToSummarize: 20,
		MaxLengthCutoff:      50,
		Workers:              2,
		Policy:               config.SkipAndContinue,
	}
}

func doc(id, text string) docModel.Document {
	return docModel.Document{ID: id, Text: text, Metadata: docModel.Metadata{ID: id, Source: id + ".pdf", Tag: "Lease"}}
}

func TestBuildSummaryMappings_ThresholdSplit(t *testing.T) {
	docs := map[string]docModel.Document{
		"s1": doc("s1", "short one"),
		"s2": doc("s2", "short two"),
		"s3": doc("s3", "short three"),
		"l1": doc("l1", strings.Repeat("a", 30)),
		"l2": doc("l2", strings.Repeat("b", 80)),
	}
	m := &mockLLM{}

	res, err := BuildSummaryMappings(context.Background(), docs, options(m))
	require.NoError(t, err)

	assert.Len(t, res.Summaries, 5)
	assert.Equal(t, 3, res.ModelCalls)
	assert.Equal(t, int32(3), atomic.LoadInt32(&m.calls))
	assert.Empty(t, res.Failures)

	for _, id := range []string{"s1", "s2", "s3"} {
		s := res.Summaries[id]
		assert.Equal(t, docModel.SummaryGenerated, s.Kind, id)
		assert.True(t, strings.HasPrefix(s.Text, "summary of: "), id)
		assert.Equal(t, id, s.Metadata.ParentDocID)
	}

	assert.Equal(t, strings.Repeat("a", 30), res.Summaries["l1"].Text)
	//l2 is cut to the 50 rune cutoff and then used verbatim
	assert.Equal(t, strings.Repeat("b", 50), res.Summaries["l2"].Text)
	assert.Equal(t, docModel.SummaryVerbatim, res.Summaries["l2"].Kind)
}

func TestBuildSummaryMappings_ThresholdAfterTruncation(t *testing.T) {
	//100 runes truncated to 10 is below the threshold of 20 and goes to the model
	opts := options(&mockLLM{})
	opts.MaxLengthCutoff = 10
	res, err := BuildSummaryMappings(context.Background(), map[string]docModel.Document{"x": doc("x", strings.Repeat("z", 100))}, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ModelCalls)
	assert.Equal(t, docModel.SummaryGenerated, res.Summaries["x"].Kind)
}

func TestBuildSummaryMappings_ExactThresholdIsVerbatim(t *testing.T) {
	m := &mockLLM{}
	text := strings.Repeat("q", 20)
	res, err := BuildSummaryMappings(context.Background(), map[string]docModel.Document{"x": doc("x", text)}, options(m))
	require.NoError(t, err)
	assert.Equal(t, 0, res.ModelCalls)
	assert.Equal(t, text, res.Summaries["x"].Text)
}

func TestBuildSummaryMappings_IDsAreContentHashes(t *testing.T) {
	long := strings.Repeat("c", 60)
	docs := map[string]docModel.Document{
		"first":  doc("first", long),
		"second": doc("second", long+"different tail beyond the cutoff"),
	}
	res, err := BuildSummaryMappings(context.Background(), docs, options(&mockLLM{}))
	require.NoError(t, err)

	a, b := res.Summaries["first"], res.Summaries["second"]
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, naming.ContentID(strings.Repeat("c", 50)), a.ID)
	assert.Equal(t, a.ID, a.Metadata.ID)
	assert.Equal(t, "first", a.Metadata.ParentDocID)
	assert.Equal(t, "second", b.Metadata.ParentDocID)
	//other metadata is carried over and the source is untouched
	assert.Equal(t, "first.pdf", a.Metadata.Source)
	assert.Equal(t, "first", docs["first"].Metadata.ID)
}

func TestBuildSummaryMappings_SkipAndContinue(t *testing.T) {
	m := &mockLLM{OnComplete: func(ctx context.Context, req llm.Request) (string, error) {
		if strings.Contains(req.User, "bad") {
			return "", errors.New("rate limited")
		}
		return "ok", nil
	}}
	docs := map[string]docModel.Document{
		"good": doc("good", "good text"),
		"bad":  doc("bad", "bad text"),
	}

	res, err := BuildSummaryMappings(context.Background(), docs, options(m))
	require.NoError(t, err)
	require.Len(t, res.Summaries, 2)
	require.Len(t, res.Failures, 1)

	assert.Equal(t, "bad", res.Failures[0].DocID)
	assert.Equal(t, "bad text", res.Summaries["bad"].Text)
	assert.Equal(t, docModel.SummaryVerbatim, res.Summaries["bad"].Kind)
	assert.Equal(t, "ok", res.Summaries["good"].Text)
}

func TestBuildSummaryMappings_FailFast(t *testing.T) {
	m := &mockLLM{OnComplete: func(ctx context.Context, req llm.Request) (string, error) {
		return "", errors.New("provider down")
	}}
	opts := options(m)
	opts.Policy = config.FailFast

	_, err := BuildSummaryMappings(context.Background(), map[string]docModel.Document{"a": doc("a", "tiny")}, opts)
	var mce *docModel.ModelCallError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, "a", mce.DocID)
	assert.Equal(t, "mock-small", mce.Model)
}

func TestBuildSummaryMappings_BoundedConcurrency(t *testing.T) {
	m := &mockLLM{delay: 10 * time.Millisecond}
	docs := make(map[string]docModel.Document)
	for i := 0; i < 12; i++ {
		id := string(rune('a' + i))
		docs[id] = doc(id, "short "+id)
	}
	opts := options(m)
	opts.Workers = 3

	res, err := BuildSummaryMappings(context.Background(), docs, opts)
	require.NoError(t, err)
	assert.Len(t, res.Summaries, 12)
	assert.LessOrEqual(t, atomic.LoadInt32(&m.maxFlight), int32(3))
}

func TestBuildSummaryMappings_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := BuildSummaryMappings(ctx, map[string]docModel.Document{"a": doc("a", "tiny")}, options(&mockLLM{}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildSummaryMappings_ConcurrentCallsShareNothing(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := BuildSummaryMappings(context.Background(), map[string]docModel.Document{"a": doc("a", "tiny")}, options(&mockLLM{}))
			assert.NoError(t, err)
			assert.Len(t, res.Summaries, 1)
		}()
	}
	wg.Wait()
}
