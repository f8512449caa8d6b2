package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"postgen/internal/domain"
)

const maxPostRunes = 3000

type postBody struct {
	Content string `json:"content"`
}

func (b postBody) validate() error {
	content := strings.TrimSpace(b.Content)
	if content == "" {
		return fmt.Errorf("%w: content is required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(content) > maxPostRunes {
		return fmt.Errorf("%w: content exceeds %d characters", domain.ErrValidation, maxPostRunes)
	}
	return nil
}

func (a *App) PostsCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	var body postBody
	if !a.decode(w, r, &body) {
		return
	}
	if err := body.validate(); err != nil {
		a.fail(w, r, err)
		return
	}
	id, err := a.Posts.Save(r.Context(), userID, strings.TrimSpace(body.Content))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	post, err := a.Posts.Get(r.Context(), userID, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, post)
}

func (a *App) PostsList(w http.ResponseWriter, r *http.Request) {
	posts, err := a.Posts.List(r.Context(), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, posts)
}

func (a *App) PostsGet(w http.ResponseWriter, r *http.Request) {
	post, err := a.Posts.Get(r.Context(), a.currentUserID(r), chi.URLParam(r, "post_id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, post)
}

func (a *App) PostsUpdate(w http.ResponseWriter, r *http.Request) {
	var body postBody
	if !a.decode(w, r, &body) {
		return
	}
	if err := body.validate(); err != nil {
		a.fail(w, r, err)
		return
	}
	post, err := a.Posts.Update(r.Context(), a.currentUserID(r), chi.URLParam(r, "post_id"), strings.TrimSpace(body.Content))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, post)
}

func (a *App) PostsDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.Posts.Delete(r.Context(), a.currentUserID(r), chi.URLParam(r, "post_id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
