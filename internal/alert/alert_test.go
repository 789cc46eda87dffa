package alert

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"srtools/internal/models"
	"srtools/internal/reddit"
)

func TestMatcher(t *testing.T) {
	m, err := NewMatcher([]string{"Go", "café", "c++", "go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c++", "cafe", "go"}, m.Keywords())

	tests := []struct {
		body    string
		want    string
		matched bool
	}{
		{body: "I love Go", want: "go", matched: true},
		{body: "GO!", want: "go", matched: true},
		{body: "golang is fine", matched: false},
		{body: "let's go-kart", want: "go", matched: true},
		{body: "meet at the Café", want: "cafe", matched: true},
		{body: "meet at the cafe", want: "cafe", matched: true},
		{body: "writing C++ today", want: "c++", matched: true},
		{body: "ago", matched: false},
		{body: "", matched: false},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			got, ok := m.Match(tt.body)
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewMatcher_NoKeywords(t *testing.T) {
	_, err := NewMatcher([]string{" ", ""})
	require.ErrorIs(t, err, ErrNoKeywords)
}

func TestStreamName(t *testing.T) {
	assert.Equal(t, "all", StreamName(nil))
	assert.Equal(t, "golang+rust", StreamName([]string{"rust", "golang", "rust"}))
}

func TestCommentURL(t *testing.T) {
	c := models.Comment{ID: "c1", Subreddit: "golang", LinkID: "t3_abc"}
	assert.Equal(t, "https://www.reddit.com/r/golang/comments/abc/_/c1?context=3", CommentURL(c))
}

type fakeStream struct {
	batches [][]models.Comment
	err     error
	calls   int
	sub     string
	onPoll  func()
}

func (f *fakeStream) RecentComments(_ context.Context, subreddit string, _ reddit.ListingOptions) iter.Seq2[models.Comment, error] {
	return func(yield func(models.Comment, error) bool) {
		f.sub = subreddit
		f.calls++

		if f.onPoll != nil {
			defer f.onPoll()
		}

		if f.err != nil {
			yield(models.Comment{}, f.err)
			return
		}

		if len(f.batches) == 0 {
			return
		}

		batch := f.batches[0]
		if len(f.batches) > 1 {
			f.batches = f.batches[1:]
		}

		for _, c := range batch {
			if !yield(c, nil) {
				return
			}
		}
	}
}

type sent struct {
	to, subject, text string
}

type fakeMessenger struct {
	sent  []sent
	fails int
}

func (f *fakeMessenger) SendMessage(_ context.Context, to, subject, text string) error {
	if f.fails > 0 {
		f.fails--
		return errors.New("service unavailable")
	}

	f.sent = append(f.sent, sent{to, subject, text})

	return nil
}

func comment(id, author, body string) models.Comment {
	return models.Comment{ID: id, Author: author, Body: body, Subreddit: "golang", LinkID: "t3_s1"}
}

func newWatcher(t *testing.T, stream *fakeStream, msg Messenger, opts Options) (*Watcher, *bytes.Buffer) {
	t.Helper()

	m, err := NewMatcher([]string{"gopher"})
	require.NoError(t, err)

	var out bytes.Buffer

	w, err := NewWatcher(stream, msg, m, &out, nil, opts)
	require.NoError(t, err)

	return w, &out
}

func TestWatcher_PollDedupesAndIgnores(t *testing.T) {
	// listings are newest first
	stream := &fakeStream{batches: [][]models.Comment{
		{comment("c3", "Bob", "a gopher again"), comment("c2", "AutoModerator", "gopher"), comment("c1", "alice", "hello gopher")},
		{comment("c4", "carol", "Gopher!"), comment("c3", "Bob", "a gopher again")},
	}}

	w, out := newWatcher(t, stream, nil, Options{IgnoreUsers: []string{"automoderator"}})

	n, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, "all", stream.sub)
	assert.Equal(t,
		"gopher: https://www.reddit.com/r/golang/comments/s1/_/c1?context=3\n"+
			"gopher: https://www.reddit.com/r/golang/comments/s1/_/c3?context=3\n"+
			"gopher: https://www.reddit.com/r/golang/comments/s1/_/c4?context=3\n",
		out.String())
}

func TestWatcher_SendsMessage(t *testing.T) {
	stream := &fakeStream{batches: [][]models.Comment{{comment("c1", "alice", "hello gopher")}}}
	msg := &fakeMessenger{}

	w, _ := newWatcher(t, stream, msg, Options{MessageTo: "me", Subreddits: []string{"golang"}})

	_, err := w.Poll(context.Background())
	require.NoError(t, err)

	require.Len(t, msg.sent, 1)
	assert.Equal(t, "me", msg.sent[0].to)
	assert.Equal(t, "Reddit Alert: gopher", msg.sent[0].subject)
	assert.Equal(t, "https://www.reddit.com/r/golang/comments/s1/_/c1?context=3\n\nby /u/alice\n\n---\n\nhello gopher", msg.sent[0].text)
	assert.Equal(t, "golang", stream.sub)
}

func TestWatcher_RetriesFailedMessage(t *testing.T) {
	batch := []models.Comment{comment("c2", "bob", "gopher two"), comment("c1", "alice", "gopher one")}
	stream := &fakeStream{batches: [][]models.Comment{batch}}
	msg := &fakeMessenger{fails: 1}

	w, _ := newWatcher(t, stream, msg, Options{MessageTo: "me"})

	_, err := w.Poll(context.Background())
	require.Error(t, err)
	assert.Empty(t, msg.sent)

	n, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, msg.sent, 2)
	assert.Equal(t, "Reddit Alert: gopher", msg.sent[0].subject)
	assert.Contains(t, msg.sent[0].text, "gopher one")
	assert.Contains(t, msg.sent[1].text, "gopher two")

	n, err = w.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, msg.sent, 2)
}

func TestNewWatcher_Validation(t *testing.T) {
	m, err := NewMatcher([]string{"x"})
	require.NoError(t, err)

	_, err = NewWatcher(&fakeStream{}, nil, m, &bytes.Buffer{}, nil, Options{Interval: -time.Second})
	require.ErrorIs(t, err, ErrInterval)

	_, err = NewWatcher(&fakeStream{}, nil, m, &bytes.Buffer{}, nil, Options{MessageTo: "me"})
	require.Error(t, err)
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := &fakeStream{err: errors.New("boom")}
	stream.onPoll = func() {
		if stream.calls == 2 {
			cancel()
		}
	}

	w, _ := newWatcher(t, stream, nil, Options{Interval: time.Millisecond})

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}

	assert.GreaterOrEqual(t, stream.calls, 2)
}
