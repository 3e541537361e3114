package bot

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/pressbot/core/conversation"
	"github.com/m3rciful/pressbot/core/store"
)

// publishPost writes, fills and publishes a post in the Travel Notes
// category.
func (h *harness) publishPost(title string) store.Post {
	h.t.Helper()
	h.writePost(title)
	h.text("Ann")
	h.press(ActChoice, "happy")
	require.Contains(h.t, h.press(ActPublish, "").Text, "Published: ")
	return h.postTitled(title)
}

func (h *harness) postTitled(title string) store.Post {
	h.t.Helper()
	posts, err := h.repos.Posts.ListBySite(context.Background(), h.site().ID, 0)
	require.NoError(h.t, err)
	for _, p := range posts {
		if p.Title == title {
			return p
		}
	}
	h.t.Fatalf("no post titled %q", title)
	return store.Post{}
}

func buttonFor(t *testing.T, r Reply, text string) Button {
	t.Helper()
	for _, row := range r.Buttons {
		for _, b := range row {
			if b.Text == text {
				return b
			}
		}
	}
	t.Fatalf("no button %q in %v", text, r.Buttons)
	return Button{}
}

func TestCategoryManagement(t *testing.T) {
	h := newHarness(t)
	h.withTemplate()
	ctx := context.Background()

	menu := last(h.call(h.svc.Categories, Input{}))
	assert.Contains(t, menu.Text, "No categories yet")
	assert.Equal(t, conversation.PhaseManagingCategories, h.phase())
	assert.Equal(t, [][]Button{{{Text: "New category", Action: ActCatNew}}, doneRow()}, menu.Buttons)

	assert.Equal(t, "Name of the new category?", h.press(ActCatNew, "").Text)
	assert.Contains(t, h.text("!!!").Text, "Invalid name")
	assert.Equal(t, "Color of Travel Notes, like #FF0000?", h.text("Travel Notes").Text)
	assert.Contains(t, h.text("red").Text, "Invalid color")
	menu = h.text("#0a0")
	assert.Contains(t, menu.Text, "Created Travel Notes.")
	assert.Contains(t, menu.Text, "1. Travel Notes  #0a0  (0 posts)")

	h.press(ActCatNew, "")
	assert.Equal(t, "Invalid name: another category is already called that.", h.text("travel notes").Text)
	assert.Equal(t, "Done.", h.press(ActDone, "").Text)
	assert.Equal(t, conversation.PhaseIdle, h.phase())

	// the category prompt of a new post offers the site's categories
	h.call(h.svc.NewPost, Input{})
	h.text("Hello World")
	h.text("A first post")
	h.text("https://img.example.com/a.png")
	prompt := h.text("-")
	assert.Equal(t, fieldPrompts[fieldCategory], prompt.Text)
	assert.Equal(t, Button{Text: "Travel Notes", Action: ActChoice, Arg: "Travel Notes"}, prompt.Buttons[0][0])
	assert.Equal(t, fieldPrompts[fieldContent], h.press(ActChoice, "Travel Notes").Text)
	h.text("Some words.")
	h.text("-")
	h.text("-")
	h.text("Ann")
	h.press(ActChoice, "happy")
	assert.Equal(t, "Published: https://blog.example.com/travel-notes/hello-world.html", h.press(ActPublish, "").Text)

	cats, err := h.repos.Categories.List(ctx, h.site().ID)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, 1, cats[0].Posts)
	id := strconv.FormatInt(cats[0].ID, 10)

	h.call(h.svc.Categories, Input{})
	assert.Equal(t, "New name for Travel Notes?", h.press(ActCatRename, id).Text)
	menu = h.text("Journeys")
	assert.Contains(t, menu.Text, "Renamed to Journeys. 1 post refiled")
	assert.Equal(t, "Journeys", h.postTitled("Hello World").Category)

	assert.Contains(t, h.press(ActCatColor, id).Text, "It is #0a0 now.")
	assert.Contains(t, h.text("#123456").Text, "Color changed to #123456.")

	menu = h.press(ActCatDelete, id)
	assert.Contains(t, menu.Text, "Deleted Journeys. 1 post moved to general.")
	assert.Contains(t, menu.Text, "No categories yet")
	assert.Equal(t, "general", h.postTitled("Hello World").Category)
	assert.Contains(t, h.press(ActCatDelete, id).Text, "That category no longer exists.")
	assert.Equal(t, msgExpired, h.press(ActCatRename, "abc").Text)
}

func TestEditPublishedPost(t *testing.T) {
	h := newHarness(t)
	h.withTemplate()
	first := h.publishPost("Hello World")
	h.publishPost("Second")

	list := last(h.call(h.svc.EditPost, Input{}))
	assert.Equal(t, "Which post do you want to edit?", list.Text)
	assert.Equal(t, conversation.PhaseEditingContent, h.phase())
	assert.Equal(t, "Pick the post to edit with the buttons above, or press Cancel.", h.text("x").Text)
	assert.Equal(t, msgExpired, h.press(ActEditField, "title").Text)

	open := buttonFor(t, list, "Hello World")
	assert.Equal(t, first.ID.String(), open.Arg)
	assert.Equal(t, "Which field do you want to change?", h.press(ActOpenPost, open.Arg).Text)
	assert.Equal(t, msgExpired, h.press(ActOpenPost, open.Arg).Text)

	h.press(ActEditField, "title")
	summary := h.text("Hello Again")
	assert.Contains(t, summary.Text, "Revising a published post.")
	assert.Contains(t, summary.Text, "Category: Travel Notes")
	assert.Contains(t, summary.Text, "Mood: happy")
	assert.Contains(t, summary.Text, "Date: 2025-01-31")

	assert.Equal(t, "Updated: https://blog.example.com/travel-notes/hello-again.html", h.press(ActPublish, "").Text)
	assert.Equal(t, conversation.PhaseIdle, h.phase())

	_, err := os.Stat(filepath.Join(h.root, "blog", "travel-notes", "hello-world.html"))
	assert.True(t, os.IsNotExist(err))
	page, err := os.ReadFile(filepath.Join(h.root, "blog", "travel-notes", "hello-again.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>Hello Again</title>")

	revised := h.postTitled("Hello Again")
	assert.Equal(t, first.ID, revised.ID)
	assert.Equal(t, "travel-notes/hello-again.html", revised.Path)

	// moving onto the address of another post is refused before delivery
	list = last(h.call(h.svc.EditPost, Input{}))
	h.press(ActOpenPost, buttonFor(t, list, "Second").Arg)
	h.press(ActEditField, "title")
	h.text("Hello Again")
	reply := h.press(ActPublish, "")
	assert.Equal(t, "Another post is already published at https://blog.example.com/travel-notes/hello-again.html. Change the title or the category.", reply.Text)
	assert.Equal(t, conversation.PhaseConfirmingPublish, h.phase())
	page, err = os.ReadFile(filepath.Join(h.root, "blog", "travel-notes", "hello-again.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>Hello Again</title>")
	assert.FileExists(t, filepath.Join(h.root, "blog", "travel-notes", "second.html"))
}

func TestEditPostWithoutStoredArticle(t *testing.T) {
	h := newHarness(t)
	h.withTemplate()
	old := &store.Post{SiteID: h.site().ID, Title: "Legacy", Slug: "legacy", Category: "general", Path: "general/legacy.html"}
	require.NoError(t, h.repos.Posts.Record(context.Background(), old))

	list := last(h.call(h.svc.EditPost, Input{}))
	reply := h.press(ActOpenPost, buttonFor(t, list, "Legacy").Arg)
	assert.Contains(t, reply.Text, "cannot be edited")
	assert.Equal(t, conversation.PhaseEditingContent, h.phase())
}

func TestFeaturedPosts(t *testing.T) {
	h := newHarness(t)
	h.withTemplate()
	assert.Equal(t, "No posts yet. Write one with /newpost.", last(h.call(h.svc.Featured, Input{})).Text)
	post := h.publishPost("Hello World")

	list := last(h.call(h.svc.Featured, Input{}))
	assert.Equal(t, conversation.PhaseManagingFeatured, h.phase())
	assert.Equal(t, Button{Text: "☆ Hello World", Action: ActFeature, Arg: post.ID.String()}, list.Buttons[0][0])
	assert.Equal(t, "Tap a post to mark it, or press Done.", h.text("x").Text)

	list = h.press(ActFeature, post.ID.String())
	assert.Contains(t, list.Text, "Hello World is featured.")
	assert.Equal(t, "★ Hello World", list.Buttons[0][0].Text)
	assert.True(t, h.postTitled("Hello World").Featured)

	assert.Equal(t, msgExpired, h.press(ActFeature, "nope").Text)
	assert.Equal(t, "Done.", h.press(ActDone, "").Text)
	assert.Equal(t, conversation.PhaseIdle, h.phase())
	assert.Contains(t, last(h.call(h.svc.Posts, Input{})).Text, "★ Hello World")
	assert.Equal(t, msgExpired, h.press(ActDone, "").Text)
}

func TestImageUpload(t *testing.T) {
	h := newHarness(t)
	h.withTemplate()

	h.call(h.svc.NewPost, Input{})
	h.text("Hello World")
	prompt := h.text("A first post")
	assert.Equal(t, Button{Text: "Upload a file", Action: ActUpload}, prompt.Buttons[0][0])

	assert.Contains(t, h.press(ActUpload, "").Text, "Send the image as a file")
	assert.Equal(t, conversation.PhaseUploadingImage, h.phase())
	upload := func(name string, data []byte) Reply {
		return last(h.call(h.svc.HandleMessage, Input{Document: &Document{Name: name, Data: data}}))
	}
	assert.Equal(t, "Please send a PNG, JPEG, GIF, WebP or SVG file.", upload("notes.txt", []byte("x")).Text)
	assert.Equal(t, "The file is empty.", upload("a.png", nil).Text)

	assert.Equal(t, fieldPrompts[fieldImageAlt], upload("My Photo.PNG", []byte("png")).Text)
	assert.Equal(t, conversation.PhaseCreatingContent, h.phase())
	data, err := os.ReadFile(filepath.Join(h.root, "blog", "images", "my-photo-20250201100000.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
	assert.Equal(t, "https://blog.example.com/images/my-photo-20250201100000.png",
		h.svc.States().Snapshot(authorID).Post.FeatureImage)

	// a pasted URL works while editing too
	for _, v := range []string{"-", "-", "Words.", "-", "-", "Ann"} {
		h.text(v)
	}
	h.press(ActChoice, "happy")
	h.press(ActEdit, "")
	h.press(ActEditField, "image")
	h.press(ActUpload, "")
	summary := h.text("https://img.example.com/b.png")
	assert.Equal(t, conversation.PhaseConfirmingPublish, h.phase())
	assert.Contains(t, summary.Text, "Title: Hello World")
	assert.Equal(t, "https://img.example.com/b.png", h.svc.States().Snapshot(authorID).Post.FeatureImage)
}
