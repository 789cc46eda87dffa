package mod

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"srtools/internal/models"
	"srtools/internal/reddit"
)

type message struct {
	to, subject, text string
}

type fakeClient struct {
	flair        []models.Flair
	flairErr     error
	flairFetches int
	users        map[string][]models.User
	added        map[string][]string
	deleted      []string
	cleared      int
	templates    []models.FlairTemplate
	messages     []message
	addErr       error
}

func (f *fakeClient) FlairList(_ context.Context, _ string) iter.Seq2[models.Flair, error] {
	return func(yield func(models.Flair, error) bool) {
		f.flairFetches++

		if f.flairErr != nil {
			yield(models.Flair{}, f.flairErr)
			return
		}

		for _, fl := range f.flair {
			if !yield(fl, nil) {
				return
			}
		}
	}
}

func (f *fakeClient) ClearFlairTemplates(context.Context, string) error {
	f.cleared++
	f.templates = nil

	return nil
}

func (f *fakeClient) AddFlairTemplate(_ context.Context, _ string, t models.FlairTemplate) error {
	f.templates = append(f.templates, t)
	return nil
}

func (f *fakeClient) DeleteFlair(_ context.Context, _, user string) error {
	f.deleted = append(f.deleted, user)
	return nil
}

func (f *fakeClient) Relationship(_ context.Context, _, category string) iter.Seq2[models.User, error] {
	return func(yield func(models.User, error) bool) {
		for _, u := range f.users[category] {
			if !yield(u, nil) {
				return
			}
		}
	}
}

func (f *fakeClient) AddRelationship(_ context.Context, _, category, user string) error {
	if f.addErr != nil && user == "fails" {
		return f.addErr
	}

	if f.added == nil {
		f.added = map[string][]string{}
	}

	f.added[category] = append(f.added[category], user)

	return nil
}

func (f *fakeClient) SendMessage(_ context.Context, to, subject, text string) error {
	f.messages = append(f.messages, message{to: to, subject: subject, text: text})
	return nil
}

func newUtils(client *fakeClient) (*Utils, *bytes.Buffer) {
	var out bytes.Buffer

	return NewUtils(client, "test", &out, nil), &out
}

func TestFlairCache_FetchesOnce(t *testing.T) {
	client := &fakeClient{flair: []models.Flair{{User: "a", Text: "x"}}}
	cache := NewFlairCache(client, "test", nil)

	for i := 0; i < 3; i++ {
		got, err := cache.Get(context.Background())
		require.NoError(t, err)
		assert.Len(t, got, 1)
	}

	assert.Equal(t, 1, client.flairFetches)
}

func TestFlairCache_RetriesAfterError(t *testing.T) {
	client := &fakeClient{flairErr: errors.New("boom")}
	u, _ := newUtils(client)

	_, err := u.flair.Get(context.Background())
	require.Error(t, err)

	client.flairErr = nil
	client.flair = []models.Flair{{User: "a"}}

	got, err := u.flair.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 2, client.flairFetches)
}

func TestParseNames(t *testing.T) {
	assert.Equal(t, []string{"alice", "bob_2", "Carol"}, ParseNames("  alice, bob_2\nCarol  "))
	assert.Equal(t, []string{"u", "dave"}, ParseNames("u/dave"))
	assert.Empty(t, ParseNames(" ,;\n"))
}

func TestAddUsers(t *testing.T) {
	client := &fakeClient{}
	u, out := newUtils(client)

	added, err := u.AddUsers(context.Background(), reddit.Banned, "spammer1 spammer2")
	require.NoError(t, err)
	assert.Equal(t, []string{"spammer1", "spammer2"}, added)
	assert.Equal(t, []string{"spammer1", "spammer2"}, client.added[reddit.Banned])
	assert.Contains(t, out.String(), "Added \"spammer1\" to banned\n")

	_, err = u.AddUsers(context.Background(), "friends", "x")
	require.ErrorIs(t, err, ErrInvalidCategory)

	client.addErr = errors.New("forbidden")
	added, err = u.AddUsers(context.Background(), reddit.Contributor, "ok fails later")
	require.Error(t, err)
	assert.Equal(t, []string{"ok"}, added)
}

func TestListUsers(t *testing.T) {
	client := &fakeClient{users: map[string][]models.User{
		reddit.Moderator: {{Name: "alice"}, {Name: "bob"}},
	}}
	u, out := newUtils(client)

	require.NoError(t, u.ListUsers(context.Background(), reddit.Moderator))
	assert.Equal(t, "moderator users:\n  alice\n  bob\n", out.String())
}

func TestClearEmpty(t *testing.T) {
	client := &fakeClient{flair: []models.Flair{
		{User: "a", Text: "x"},
		{User: "b"},
		{User: "c", CSSClass: "red"},
		{User: "d"},
	}}
	u, _ := newUtils(client)

	n, err := u.ClearEmpty(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"b", "d"}, client.deleted)
}

func TestOutputFlair(t *testing.T) {
	client := &fakeClient{flair: []models.Flair{
		{User: "zed", Text: "Z", CSSClass: "z"},
		{User: "amy", Text: "A", CSSClass: "a"},
	}}

	u, out := newUtils(client)
	require.NoError(t, u.OutputFlair(context.Background(), false))
	assert.Equal(t, "amy\n  Text: A\n   CSS: a\nzed\n  Text: Z\n   CSS: z\n", out.String())

	u, out = newUtils(client)
	require.NoError(t, u.OutputFlair(context.Background(), true))
	assert.JSONEq(t, `[
		{"user": "amy", "flair_text": "A", "flair_css_class": "a"},
		{"user": "zed", "flair_text": "Z", "flair_css_class": "z"}
	]`, out.String())
	assert.Contains(t, out.String(), "\n    {")
}

func TestFlairStats(t *testing.T) {
	client := &fakeClient{flair: []models.Flair{
		{User: "1", Text: "Go", CSSClass: "blue"},
		{User: "2", Text: "Go", CSSClass: "blue"},
		{User: "3", Text: "Rust", CSSClass: "red"},
		{User: "4", Text: "Go", CSSClass: "green"},
		{User: "5", Text: "", CSSClass: "red"},
		{User: "6", Text: "Zig", CSSClass: ""},
	}}
	u, out := newUtils(client)

	css, text, err := u.FlairStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Count{{"green", 1}, {"blue", 2}, {"red", 2}}, css)
	assert.Equal(t, []Count{{"Go", 3}, {"Zig", 1}, {"Rust", 1}}, text)

	require.NoError(t, u.OutputFlairStats(context.Background()))
	assert.Equal(t, "Flair CSS Statistics\n  1 green\n  2 blue\n  2 red\n"+
		"Flair Text Statistics\n  3 Go\n  1 Zig\n  1 Rust\n", out.String())
	assert.Equal(t, 1, client.flairFetches, "flair list is cached across operations")
}

func TestSyncTemplates(t *testing.T) {
	flair := []models.Flair{
		{User: "1", Text: "Go", CSSClass: "blue"},
		{User: "2", Text: "Go", CSSClass: "blue"},
		{User: "3", Text: "Rust", CSSClass: "red"},
		{User: "4", Text: "Rust", CSSClass: "red"},
		{User: "5", Text: "Rust", CSSClass: "red"},
		{User: "6", Text: "Zig", CSSClass: "orange"},
		{User: "7"},
		{User: "8"},
	}

	tests := []struct {
		name    string
		opts    SyncOptions
		want    []models.FlairTemplate
		wantErr error
	}{
		{
			name: "alpha text and css",
			opts: SyncOptions{Sort: SortAlpha, Limit: 2, UseText: true, UseCSS: true},
			want: []models.FlairTemplate{{Text: "Go", CSSClass: "blue"}, {Text: "Rust", CSSClass: "red"}},
		},
		{
			name: "size with static",
			opts: SyncOptions{Sort: SortSize, Limit: 2, UseText: true, UseCSS: true, Static: []string{"Mod, green"}, Editable: true},
			want: []models.FlairTemplate{
				{Text: "Rust", CSSClass: "red", Editable: true},
				{Text: "Go", CSSClass: "blue", Editable: true},
				{Text: "Mod", CSSClass: "green", Editable: true},
			},
		},
		{
			name: "css only",
			opts: SyncOptions{Sort: SortAlpha, Limit: 1, UseCSS: true},
			want: []models.FlairTemplate{{CSSClass: "blue"}, {CSSClass: "orange"}, {CSSClass: "red"}},
		},
		{
			name:    "no field",
			opts:    SyncOptions{Sort: SortAlpha},
			wantErr: ErrNoFlairField,
		},
		{
			name:    "bad sort",
			opts:    SyncOptions{Sort: "random", UseText: true},
			wantErr: ErrInvalidSort,
		},
		{
			name:    "bad static",
			opts:    SyncOptions{Sort: SortAlpha, UseText: true, UseCSS: true, Static: []string{"only-text"}},
			wantErr: ErrStaticFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{flair: flair}
			u, _ := newUtils(client)

			got, err := u.SyncTemplates(context.Background(), tt.opts)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, client.cleared, "validation happens before any change")

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, client.templates)
			assert.Equal(t, 1, client.cleared)
		})
	}
}

func TestMessage(t *testing.T) {
	client := &fakeClient{users: map[string][]models.User{
		reddit.Contributor: {{Name: "alice"}, {Name: "bob"}},
	}}

	u, _ := newUtils(client)

	var shown string

	n, err := u.Message(context.Background(), reddit.Contributor, "Hello", "Body", func(users []models.User) bool {
		shown = UserNames(users)
		return false
	})
	require.ErrorIs(t, err, ErrAborted)
	assert.Zero(t, n)
	assert.Equal(t, "alice, bob", shown)
	assert.Empty(t, client.messages)

	n, err = u.Message(context.Background(), reddit.Contributor, "Hello", "Body", func([]models.User) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []message{{"alice", "Hello", "Body"}, {"bob", "Hello", "Body"}}, client.messages)

	u, out := newUtils(client)
	n, err = u.Message(context.Background(), reddit.Banned, "Hello", "Body", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "There are no banned users on test.\n", out.String())
}
