package main

import (
	"net/http"
	"strconv"
)

type postForm struct {
	Title   string
	Content string
	Status  string
}

func readPostForm(r *http.Request) postForm {
	form := postForm{
		Title:   r.FormValue("title"),
		Content: r.FormValue("content"),
		Status:  r.FormValue("status"),
	}
	if form.Status == "" {
		form.Status = StatusDraft
	}
	return form
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

func (b *Blog) Dashboard(w http.ResponseWriter, r *http.Request) {
	session, err := b.session(r)
	if err != nil {
		b.serverError(w, "reading session", err)
		return
	}
	b.renderDashboard(w, r, session, "")
}

// renderDashboard renders the session's pending snapshot if there is one,
// otherwise it fetches the full post list.
func (b *Blog) renderDashboard(w http.ResponseWriter, r *http.Request, session *Session, alert string) {
	data := map[string]any{
		"Title":           "Admin Dashboard",
		"IsAuthenticated": true,
		"Alert":           alert,
		"CSRFToken":       b.ensureCSRFToken(w, r),
	}

	posts, ok := b.dashboards.take(session.ID)
	if !ok {
		resp, err := b.api.WithSession(session).GetAllPosts(r.Context())
		if err != nil {
			data["Error"] = b.apiError(r, err, "Failed to load posts")
		} else {
			posts = resp.Posts
			b.dashboards.store(session.ID, posts)
		}
	}
	data["Posts"] = posts

	b.render(w, "dashboard.html", data)
}

func (b *Blog) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	if r.Method == http.MethodGet {
		data := map[string]any{
			"Title":           "Delete Post",
			"ID":              id,
			"IsAuthenticated": true,
			"CSRFToken":       b.ensureCSRFToken(w, r),
		}
		b.render(w, "delete.html", data)
		return
	}

	if !parseFormWithCSRF(w, r) {
		return
	}

	session, err := b.session(r)
	if err != nil {
		b.serverError(w, "reading session", err)
		return
	}

	if _, err := b.api.WithSession(session).DeletePost(r.Context(), id); err != nil {
		b.dashboards.reuse(session.ID)
		b.renderDashboard(w, r, session, b.apiError(r, err, "Failed to delete post"))
		return
	}

	b.dashboards.remove(session.ID, id)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (b *Blog) Create(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Title":           "Create New Post",
		"Action":          "/admin/posts/new",
		"BackLink":        "/admin",
		"Form":            postForm{Status: StatusDraft},
		"IsAuthenticated": true,
	}

	if r.Method == http.MethodPost {
		if !parseFormWithCSRF(w, r) {
			return
		}

		session, err := b.session(r)
		if err != nil {
			b.serverError(w, "reading session", err)
			return
		}

		form := readPostForm(r)
		_, err = b.api.WithSession(session).CreatePost(r.Context(), form.Title, form.Content, form.Status)
		if err == nil {
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
			return
		}
		data["Form"] = form
		data["Error"] = b.apiError(r, err, "Failed to create post")
	}

	data["CSRFToken"] = b.ensureCSRFToken(w, r)
	b.render(w, "create.html", data)
}

// QuickCreate is the standalone create page: instead of returning to the
// dashboard it reports the new post's id.
func (b *Blog) QuickCreate(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Title":           "Create Post",
		"Action":          "/posts/new",
		"Form":            postForm{Status: StatusDraft},
		"IsAuthenticated": true,
	}

	if r.Method == http.MethodPost {
		if !parseFormWithCSRF(w, r) {
			return
		}

		session, err := b.session(r)
		if err != nil {
			b.serverError(w, "reading session", err)
			return
		}

		form := readPostForm(r)
		resp, err := b.api.WithSession(session).CreatePost(r.Context(), form.Title, form.Content, form.Status)
		if err == nil {
			b.render(w, "created.html", map[string]any{
				"Title":           "Post Created!",
				"Post":            resp.Post,
				"IsAuthenticated": true,
			})
			return
		}
		data["Form"] = form
		data["Error"] = b.apiError(r, err, "Failed to create post")
	}

	data["CSRFToken"] = b.ensureCSRFToken(w, r)
	b.render(w, "create.html", data)
}

func (b *Blog) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	session, err := b.session(r)
	if err != nil {
		b.serverError(w, "reading session", err)
		return
	}
	api := b.api.WithSession(session)

	data := map[string]any{
		"Title":           "Edit Post",
		"ID":              id,
		"IsAuthenticated": true,
	}

	if r.Method == http.MethodGet {
		resp, err := api.GetPost(r.Context(), id)
		if err != nil {
			data["Form"] = postForm{Status: StatusDraft}
			data["Error"] = b.apiError(r, err, "Failed to load post")
		} else {
			data["Form"] = postForm{Title: resp.Post.Title, Content: resp.Post.Content, Status: resp.Post.Status}
		}
		data["CSRFToken"] = b.ensureCSRFToken(w, r)
		b.render(w, "edit.html", data)
		return
	}

	if !parseFormWithCSRF(w, r) {
		return
	}

	form := readPostForm(r)
	update := PostUpdate{Title: &form.Title, Content: &form.Content, Status: &form.Status}
	if _, err := api.UpdatePost(r.Context(), id, update); err != nil {
		data["Form"] = form
		data["Error"] = b.apiError(r, err, "Failed to update post")
		data["CSRFToken"] = b.ensureCSRFToken(w, r)
		b.render(w, "edit.html", data)
		return
	}

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}
