package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dubbing/internal/logging"
	"dubbing/internal/timeline"
)

type askFunc func(ctx context.Context, system, user string) (string, error)

type fakeTranslator struct {
	mu       sync.Mutex
	fn       askFunc
	calls    []string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeTranslator) Ask(ctx context.Context, system, user string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, user)
	f.mu.Unlock()
	return f.fn(ctx, system, user)
}

func (f *fakeTranslator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// upperTags answers the tag protocol correctly by upper-casing the document.
func upperTags(_ context.Context, system, user string) (string, error) {
	return strings.ToUpper(user), nil
}

func newTimeline(texts ...string) *timeline.Timeline {
	entries := make([]timeline.Entry, len(texts))
	for i, text := range texts {
		entries[i] = timeline.Entry{Index: i + 1, Start: float64(i), End: float64(i) + 0.8, Text: text}
	}
	return timeline.New(entries)
}

func TestTranslateLinesFallsBackAfterMalformedTags(t *testing.T) {
	fake := &fakeTranslator{fn: func(_ context.Context, system, user string) (string, error) {
		if strings.Contains(system, "HTML") {
			return "<L1>only one</L1>", nil
		}
		return "甲乙丙", nil
	}}
	b := NewBatcher(fake, Options{TagAttempts: 2}, logging.NewNop())

	got, err := b.TranslateLines(context.Background(), []string{"a", "b", "c"}, "Chinese")
	if err != nil {
		t.Fatalf("TranslateLines: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(got), got)
	}
	if strings.Join(got, "") != "甲乙丙" {
		t.Fatalf("fallback lost text: %q", got)
	}
	if fake.callCount() != 3 {
		t.Fatalf("expected 2 tag attempts and 1 fallback, got %d calls", fake.callCount())
	}
	if fake.calls[2] != "a b c" {
		t.Fatalf("fallback document = %q", fake.calls[2])
	}
}

func TestTranslateLinesTagProtocol(t *testing.T) {
	fake := &fakeTranslator{fn: upperTags}
	b := NewBatcher(fake, Options{TagAttempts: 2}, logging.NewNop())

	got, err := b.TranslateLines(context.Background(), []string{"one", "two"}, "English")
	if err != nil {
		t.Fatalf("TranslateLines: %v", err)
	}
	if strings.Join(got, "|") != "ONE|TWO" {
		t.Fatalf("unexpected lines: %q", got)
	}
	if fake.callCount() != 1 {
		t.Fatalf("expected a single request, got %d", fake.callCount())
	}
	if fake.calls[0] != "<L1>one</L1>\n<L2>two</L2>" {
		t.Fatalf("unexpected tag document %q", fake.calls[0])
	}
}

func TestTranslateLinesWithoutTagAttempts(t *testing.T) {
	fake := &fakeTranslator{fn: func(_ context.Context, system, _ string) (string, error) {
		if strings.Contains(system, "HTML") {
			t.Error("tag protocol used with zero attempts")
		}
		return "一二三……", nil
	}}
	b := NewBatcher(fake, Options{}, logging.NewNop())

	got, err := b.TranslateLines(context.Background(), []string{"hello world", "foo"}, "Chinese")
	if err != nil {
		t.Fatalf("TranslateLines: %v", err)
	}
	if len(got) != 2 || got[0] != "一二" || got[1] != "三" {
		t.Fatalf("unexpected split: %q", got)
	}
}

func TestTranslateLinesEmptyReplyKeepsCount(t *testing.T) {
	fake := &fakeTranslator{fn: func(context.Context, string, string) (string, error) { return "", nil }}
	b := NewBatcher(fake, Options{TagAttempts: 1}, logging.NewNop())

	got, err := b.TranslateLines(context.Background(), []string{"a", "b", "c", "d"}, "x")
	if err != nil {
		t.Fatalf("TranslateLines: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 lines, got %q", got)
	}
}

func TestTranslateLinesPropagatesTranslatorError(t *testing.T) {
	boom := errors.New("boom")
	fake := &fakeTranslator{fn: func(context.Context, string, string) (string, error) { return "", boom }}
	b := NewBatcher(fake, Options{TagAttempts: 2}, logging.NewNop())

	if _, err := b.TranslateLines(context.Background(), []string{"a"}, "x"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if fake.callCount() != 1 {
		t.Fatalf("translator errors should not be retried here, got %d calls", fake.callCount())
	}
}

func TestTranslateKeepsOrderAndTiming(t *testing.T) {
	texts := make([]string, 37)
	for i := range texts {
		texts[i] = fmt.Sprintf("line %d", i)
	}
	src := newTimeline(texts...)
	fake := &fakeTranslator{fn: func(ctx context.Context, system, user string) (string, error) {
		// Later batches finish first.
		delay := time.Duration(40-strings.Count(user, "<L")) * time.Millisecond / 4
		if strings.Contains(user, "line 0") {
			delay += 20 * time.Millisecond
		}
		time.Sleep(delay)
		return strings.ToUpper(user), nil
	}}
	b := NewBatcher(fake, Options{BatchSize: 5, Concurrency: 3, TagAttempts: 1}, logging.NewNop())

	got, err := b.Translate(context.Background(), src, "English")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got.Len() != src.Len() {
		t.Fatalf("entry count changed: %d -> %d", src.Len(), got.Len())
	}
	for i, e := range got.Entries {
		want := src.Entries[i]
		if e.Start != want.Start || e.End != want.End || e.Index != want.Index {
			t.Fatalf("entry %d timing changed: %+v vs %+v", i, e, want)
		}
		if e.Text != strings.ToUpper(want.Text) {
			t.Fatalf("entry %d text = %q, want %q", i, e.Text, strings.ToUpper(want.Text))
		}
	}
	if fake.callCount() != 8 {
		t.Fatalf("expected 8 batches, got %d", fake.callCount())
	}
	if peak := fake.peak.Load(); peak > 3 {
		t.Fatalf("concurrency bound exceeded: %d in flight", peak)
	}
	if src.Entries[0].Text != "line 0" {
		t.Fatal("source timeline mutated")
	}
}

func TestTranslateBatchesStayWithinSections(t *testing.T) {
	src := timeline.New([]timeline.Entry{
		{Index: 1, Start: 0, End: 1, Text: "a"},
		{Index: 2, Start: 1, End: 2, Text: "b"},
		{Index: 3, Start: 30, End: 31, Text: "c"},
	})
	fake := &fakeTranslator{fn: upperTags}
	b := NewBatcher(fake, Options{BatchSize: 10, TagAttempts: 1, SectionGap: 10}, logging.NewNop())

	got, err := b.Translate(context.Background(), src, "English")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if strings.Join(got.Texts(), "") != "ABC" {
		t.Fatalf("unexpected texts %q", got.Texts())
	}
	if fake.callCount() != 2 {
		t.Fatalf("expected one batch per section, got %d", fake.callCount())
	}
	for _, user := range fake.calls {
		if strings.Contains(user, "a") && strings.Contains(user, "c") {
			t.Fatalf("batch crossed a section boundary: %q", user)
		}
	}
}

func TestTranslateStopsAdmittingAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	fake := &fakeTranslator{fn: func(context.Context, string, string) (string, error) { return "", boom }}
	texts := make([]string, 20)
	for i := range texts {
		texts[i] = "x"
	}
	b := NewBatcher(fake, Options{BatchSize: 1, Concurrency: 1}, logging.NewNop())

	if _, err := b.Translate(context.Background(), newTimeline(texts...), "x"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if fake.callCount() >= len(texts) {
		t.Fatalf("every batch ran after the first failure (%d calls)", fake.callCount())
	}
}

func TestTranslateEmptyTimeline(t *testing.T) {
	fake := &fakeTranslator{fn: upperTags}
	b := NewBatcher(fake, Options{}, logging.NewNop())
	got, err := b.Translate(context.Background(), &timeline.Timeline{}, "x")
	if err != nil || got.Len() != 0 || fake.callCount() != 0 {
		t.Fatalf("unexpected result %v %v calls=%d", got, err, fake.callCount())
	}
}

type memoryCache struct {
	entries map[string]string
	readErr error
	stores  int
}

func (m *memoryCache) CachedTranslation(_ context.Context, key string) (string, bool, error) {
	if m.readErr != nil {
		return "", false, m.readErr
	}
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *memoryCache) StoreTranslation(_ context.Context, key, _, _, response string) error {
	m.stores++
	m.entries[key] = response
	return nil
}

func TestCachingTranslatorReusesResponses(t *testing.T) {
	fake := &fakeTranslator{fn: upperTags}
	cache := &memoryCache{entries: map[string]string{}}
	ct := NewCachingTranslator(fake, cache, "gpt", "English", logging.NewNop())

	for range 2 {
		got, err := ct.Ask(context.Background(), "sys", "hello")
		if err != nil || got != "HELLO" {
			t.Fatalf("Ask = %q, %v", got, err)
		}
	}
	if fake.callCount() != 1 {
		t.Fatalf("expected one upstream call, got %d", fake.callCount())
	}
	if _, err := ct.Ask(context.Background(), "other", "hello"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if fake.callCount() != 2 || cache.stores != 2 {
		t.Fatalf("system prompt should be part of the key: calls=%d stores=%d", fake.callCount(), cache.stores)
	}
}

func TestCachingTranslatorIgnoresCacheFaults(t *testing.T) {
	fake := &fakeTranslator{fn: upperTags}
	cache := &memoryCache{entries: map[string]string{}, readErr: errors.New("disk gone")}
	ct := NewCachingTranslator(fake, cache, "gpt", "English", logging.NewNop())

	got, err := ct.Ask(context.Background(), "sys", "hi")
	if err != nil || got != "HI" {
		t.Fatalf("Ask = %q, %v", got, err)
	}
}

func TestCachingTranslatorSkipsRejectedTagReplies(t *testing.T) {
	var attempts atomic.Int32
	fake := &fakeTranslator{fn: func(ctx context.Context, system, user string) (string, error) {
		if attempts.Add(1) == 1 {
			return "<L1>only one</L1>", nil
		}
		return upperTags(ctx, system, user)
	}}
	cache := &memoryCache{entries: map[string]string{}}
	ct := NewCachingTranslator(fake, cache, "gpt", "English", logging.NewNop())
	b := NewBatcher(ct, Options{TagAttempts: 3}, logging.NewNop())

	got, err := b.TranslateLines(context.Background(), []string{"plain", "text"}, "English")
	if err != nil {
		t.Fatalf("TranslateLines: %v", err)
	}
	if strings.Join(got, "|") != "PLAIN|TEXT" {
		t.Fatalf("expected the second tag reply, got %q", got)
	}
	if fake.callCount() != 2 || cache.stores != 1 {
		t.Fatalf("calls=%d stores=%d, want 2 and 1", fake.callCount(), cache.stores)
	}

	rerun := NewBatcher(ct, Options{TagAttempts: 3}, logging.NewNop())
	got, err = rerun.TranslateLines(context.Background(), []string{"plain", "text"}, "English")
	if err != nil || strings.Join(got, "|") != "PLAIN|TEXT" {
		t.Fatalf("rerun = %q, %v", got, err)
	}
	if fake.callCount() != 2 {
		t.Fatalf("rerun should be served from cache, calls=%d", fake.callCount())
	}
}

func TestCachingTranslatorIgnoresStoredMalformedReply(t *testing.T) {
	fake := &fakeTranslator{fn: upperTags}
	cache := &memoryCache{entries: map[string]string{}}
	ct := NewCachingTranslator(fake, cache, "gpt", "English", logging.NewNop())
	ctx := withReplyCheck(context.Background(), func(reply string) bool {
		_, err := parseTags(reply, 1)
		return err == nil
	})
	cache.entries[ct.key("sys", "<L1>hi</L1>")] = "garbled"

	got, err := ct.Ask(ctx, "sys", "<L1>hi</L1>")
	if err != nil || got != "<L1>HI</L1>" {
		t.Fatalf("Ask = %q, %v", got, err)
	}
	if fake.callCount() != 1 {
		t.Fatalf("expected the stored reply to be bypassed, calls=%d", fake.callCount())
	}
}
