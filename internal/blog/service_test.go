package blog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkpress/inkpress/internal/shared"
)

type memoryBlogRepo struct {
	posts    map[int64]Post
	comments []Comment
	users    map[int64]bool
	nextID   int64
	getCalls int
	listErr  error
}

func newMemoryBlogRepo() *memoryBlogRepo {
	return &memoryBlogRepo{
		posts: make(map[int64]Post),
		users: map[int64]bool{1: true, 2: true, 3: false, 9: true},
	}
}

func (r *memoryBlogRepo) summaries(keep func(Post) bool, page shared.PageRequest) ([]PostSummary, int) {
	var out []PostSummary
	for _, p := range r.posts {
		if keep(p) {
			out = append(out, PostSummary{ID: p.ID, UserID: p.UserID, Title: p.Title, Summary: p.Summary, Author: p.Author, Category: p.Category, IsActive: p.IsActive})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	start := min(page.Offset(), total)
	end := min(start+page.Limit(), total)
	return out[start:end], total
}

func (r *memoryBlogRepo) ListPosts(ctx context.Context, filter ListFilter) ([]PostSummary, int, error) {
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	needle := strings.ToLower(filter.Search)
	items, total := r.summaries(func(p Post) bool {
		if !p.IsActive {
			return false
		}
		hay := strings.ToLower(p.Title + " " + p.Summary + " " + p.Author + " " + string(p.Category))
		return needle == "" || strings.Contains(hay, needle)
	}, filter.PageRequest)
	return items, total, nil
}

func (r *memoryBlogRepo) ListPostsByUser(ctx context.Context, userID int64, page shared.PageRequest) ([]PostSummary, int, error) {
	items, total := r.summaries(func(p Post) bool { return p.UserID == userID }, page)
	return items, total, nil
}

func (r *memoryBlogRepo) GetPost(ctx context.Context, id int64) (Post, error) {
	r.getCalls++
	p, ok := r.posts[id]
	if !ok {
		return Post{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryBlogRepo) CreatePost(ctx context.Context, in NewPost) (Post, error) {
	r.nextID++
	p := Post{
		ID:          r.nextID,
		UserID:      in.UserID,
		Title:       in.Title,
		Summary:     in.Summary,
		Author:      in.Author,
		Category:    in.Category,
		ImgURL:      in.ImgURL,
		MainContent: in.MainContent,
		IsActive:    true,
		CreatedAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	r.posts[p.ID] = p
	return p, nil
}

func (r *memoryBlogRepo) UpdatePost(ctx context.Context, id int64, changes PostChanges) (Post, error) {
	p, ok := r.posts[id]
	if !ok {
		return Post{}, shared.ErrNotFound
	}
	if changes.Title != nil {
		p.Title = *changes.Title
	}
	if changes.Summary != nil {
		p.Summary = *changes.Summary
	}
	if changes.Author != nil {
		p.Author = *changes.Author
	}
	if changes.Category != nil {
		p.Category = *changes.Category
	}
	if changes.ImgURL != nil {
		p.ImgURL = *changes.ImgURL
	}
	if changes.MainContent != nil {
		p.MainContent = *changes.MainContent
	}
	r.posts[id] = p
	return p, nil
}

func (r *memoryBlogRepo) DeactivatePost(ctx context.Context, id int64) error {
	p, ok := r.posts[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.IsActive = false
	r.posts[id] = p
	return nil
}

func (r *memoryBlogRepo) UserActive(ctx context.Context, userID int64) (bool, error) {
	active, ok := r.users[userID]
	if !ok {
		return false, shared.ErrNotFound
	}
	return active, nil
}

func (r *memoryBlogRepo) CreateComment(ctx context.Context, in NewComment) (Comment, error) {
	c := Comment{ID: int64(len(r.comments) + 1), PostID: in.PostID, UserID: in.UserID, Body: in.Body}
	r.comments = append(r.comments, c)
	return c, nil
}

func (r *memoryBlogRepo) ListComments(ctx context.Context, postID int64) ([]Comment, error) {
	out := make([]Comment, 0)
	for _, c := range r.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

var (
	author  = shared.Principal{UserID: 1, Role: "registered_user", Email: "author@example.com"}
	other   = shared.Principal{UserID: 2, Role: "registered_user", Email: "other@example.com"}
	dormant = shared.Principal{UserID: 3, Role: "registered_user", Email: "dormant@example.com"}
	manager = shared.Principal{UserID: 9, Role: "manager", Email: "boss@example.com"}
)

func samplePost() NewPost {
	return NewPost{
		Title:       "Go in production",
		Summary:     "Lessons learned running Go services",
		Author:      "Ada",
		Category:    CategoryTechnology,
		MainContent: "Long form content",
	}
}

func newCachedService(t *testing.T, repo *memoryBlogRepo) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(repo, NewPostCache(client, time.Minute, nil), nil), mr
}

func TestCreatePostUsesCallerAsOwner(t *testing.T) {
	repo := newMemoryBlogRepo()
	svc := NewService(repo, nil, nil)

	in := samplePost()
	in.UserID = 42
	post, err := svc.CreatePost(context.Background(), author, in)
	require.NoError(t, err)
	assert.Equal(t, int64(1), post.UserID)
	assert.True(t, post.IsActive)

	_, err = svc.CreatePost(context.Background(), dormant, samplePost())
	assert.ErrorIs(t, err, ErrUserInactive)

	_, err = svc.CreatePost(context.Background(), shared.Principal{UserID: 77}, samplePost())
	assert.ErrorIs(t, err, ErrUserNotFound)

	bad := samplePost()
	bad.Category = "cooking"
	_, err = svc.CreatePost(context.Background(), author, bad)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestGetPostIsCached(t *testing.T) {
	repo := newMemoryBlogRepo()
	svc, mr := newCachedService(t, repo)
	created, err := svc.CreatePost(context.Background(), author, samplePost())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		post, err := svc.GetPost(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Go in production", post.Title)
	}
	assert.Equal(t, 1, repo.getCalls)
	assert.True(t, mr.Exists(postKey(created.ID)))
}

func TestGetPostMissingIsNotCached(t *testing.T) {
	repo := newMemoryBlogRepo()
	svc, mr := newCachedService(t, repo)

	_, err := svc.GetPost(context.Background(), 404)
	assert.ErrorIs(t, err, ErrPostNotFound)
	assert.False(t, mr.Exists(postKey(404)))
}

func TestUpdatePostInvalidatesCache(t *testing.T) {
	repo := newMemoryBlogRepo()
	svc, mr := newCachedService(t, repo)
	created, err := svc.CreatePost(context.Background(), author, samplePost())
	require.NoError(t, err)
	_, err = svc.GetPost(context.Background(), created.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(postKey(created.ID)))

	title := "Go in production, revisited"
	updated, err := svc.UpdatePost(context.Background(), author, created.ID, PostChanges{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.False(t, mr.Exists(postKey(created.ID)))

	post, err := svc.GetPost(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, title, post.Title)
}

func TestUpdatePostOwnership(t *testing.T) {
	repo := newMemoryBlogRepo()
	svc := NewService(repo, nil, nil)
	created, err := svc.CreatePost(context.Background(), author, samplePost())
	require.NoError(t, err)

	title := "Hijacked"
	_, err = svc.UpdatePost(context.Background(), other, created.ID, PostChanges{Title: &title})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdatePost(context.Background(), manager, created.ID, PostChanges{Title: &title})
	assert.NoError(t, err)

	_, err = svc.UpdatePost(context.Background(), author, 999, PostChanges{Title: &title})
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestDeletePostHidesItFromPublicReads(t *testing.T) {
	repo := newMemoryBlogRepo()
	svc, _ := newCachedService(t, repo)
	created, err := svc.CreatePost(context.Background(), author, samplePost())
	require.NoError(t, err)
	_, err = svc.GetPost(context.Background(), created.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeletePost(context.Background(), author, created.ID))

	_, err = svc.GetPost(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrPostNotFound)

	page, err := svc.ListPosts(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	mine, err := svc.ListPostsByUser(context.Background(), author.UserID, shared.PageRequest{})
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	assert.False(t, mine.Items[0].IsActive)
}

func TestListPostsSearch(t *testing.T) {
	repo := newMemoryBlogRepo()
	svc := NewService(repo, nil, nil)
	_, err := svc.CreatePost(context.Background(), author, samplePost())
	require.NoError(t, err)
	travel := samplePost()
	travel.Title = "Lisbon in spring"
	travel.Summary = "Trams and pastries"
	travel.Category = CategoryTravel
	_, err = svc.CreatePost(context.Background(), author, travel)
	require.NoError(t, err)

	page, err := svc.ListPosts(context.Background(), ListFilter{Search: "travel"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Lisbon in spring", page.Items[0].Title)
	assert.Equal(t, 1, page.Pagination.Total)

	repo.listErr = errors.New("boom")
	_, err = svc.ListPosts(context.Background(), ListFilter{})
	assert.Error(t, err)
}

func TestComments(t *testing.T) {
	repo := newMemoryBlogRepo()
	svc := NewService(repo, nil, nil)
	created, err := svc.CreatePost(context.Background(), author, samplePost())
	require.NoError(t, err)

	comment, err := svc.CreateComment(context.Background(), other, created.ID, "Great write-up, thanks!")
	require.NoError(t, err)
	assert.Equal(t, other.UserID, comment.UserID)

	_, err = svc.CreateComment(context.Background(), dormant, created.ID, "I should not be able to post")
	assert.ErrorIs(t, err, ErrUserInactive)

	_, err = svc.CreateComment(context.Background(), other, 999, "Commenting on nothing at all")
	assert.ErrorIs(t, err, ErrPostNotFound)

	comments, err := svc.ListComments(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Great write-up, thanks!", comments[0].Body)

	_, err = svc.ListComments(context.Background(), 999)
	assert.ErrorIs(t, err, ErrPostNotFound)
}
