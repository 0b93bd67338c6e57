package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"submita/internal/api"
	"submita/internal/apiclient"
	"submita/internal/authz"
	"submita/internal/fetch"
	"submita/internal/forms"
	"submita/internal/notify"
	"submita/internal/pages"
	"submita/internal/upload"
	"submita/internal/views"
)

// fileError picks the message for a failed upload: validation problems are
// explained locally, backend failures keep the backend's text.
func fileError(err error) string {
	if _, ok := apiclient.AsError(err); ok {
		return apiclient.Message(err)
	}
	return upload.Message(err)
}

func splitKeywords(s string) []string {
	var out []string
	for _, k := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func (h HandlerSet) MyArticles(c *gin.Context) {
	r := h.pages.Begin(c)
	articles := fetch.New(func(ctx context.Context, _ none) ([]api.Article, error) {
		return r.Backend.Articles.Mine(ctx)
	})
	if r.Load(pages.Mount(articles, none{})) {
		return
	}
	r.Render(http.StatusOK, views.PageMyArticles, views.Page{Title: "Meus artigos", Data: articles.Snapshot()})
}

type articlesData struct {
	Status   string
	Statuses []string
	Articles fetch.State[[]api.Article]
}

func (h HandlerSet) Articles(c *gin.Context) {
	r := h.pages.Begin(c)
	status := c.Query("status")
	valid := false
	for _, s := range articleStatuses {
		valid = valid || s == status
	}
	if !valid {
		status = ""
	}

	articles := fetch.New(func(ctx context.Context, status string) ([]api.Article, error) {
		return r.Backend.Articles.List(ctx, status)
	})
	if r.Load(pages.Mount(articles, status)) {
		return
	}
	r.Render(http.StatusOK, views.PageArticles, views.Page{
		Title: "Artigos",
		Data:  articlesData{Status: status, Statuses: articleStatuses, Articles: articles.Snapshot()},
	})
}

type articleData struct {
	Article     fetch.State[api.Article]
	Evaluations fetch.State[[]api.Evaluation]
	CanDelete   bool
	CanEvaluate bool
	CanAssign   bool
}

func (h HandlerSet) Article(c *gin.Context) {
	r := h.pages.Begin(c)
	id := c.Param("id")
	role := authz.Role(r.State().Role())

	article := fetch.New(func(ctx context.Context, id string) (api.Article, error) {
		return r.Backend.Articles.Get(ctx, id)
	})
	evaluations := fetch.New(func(ctx context.Context, id string) ([]api.Evaluation, error) {
		return r.Backend.Evaluations.ByArticle(ctx, id)
	})

	loaders := []pages.Loader{pages.Mount(article, id)}
	if role != authz.RoleEvaluator {
		loaders = append(loaders, pages.Mount(evaluations, id))
	}
	if r.Load(loaders...) {
		return
	}

	data := articleData{Article: article.Snapshot(), Evaluations: evaluations.Snapshot()}
	title := "Artigo"
	if data.Article.HasData {
		a := data.Article.Data
		title = a.Title
		data.CanDelete = role == authz.RoleCoordinator || (role == authz.RoleStudent && a.Status == api.ArticleSubmitted)
		data.CanEvaluate = role == authz.RoleEvaluator && a.Status != api.ArticleApproved && a.Status != api.ArticleRejected
		data.CanAssign = role == authz.RoleCoordinator
	}
	r.Render(http.StatusOK, views.PageArticle, views.Page{Title: title, Data: data})
}

func (h HandlerSet) DeleteArticle(c *gin.Context) {
	r := h.pages.Begin(c)
	if r.Load() {
		return
	}
	id := c.Param("id")
	back := "/meus-artigos"
	if r.State().Role() == string(authz.RoleCoordinator) {
		back = "/artigos"
	}

	if err := r.Backend.Articles.Delete(c.Request.Context(), id); err != nil {
		if r.Failure("Excluir artigo", err) {
			return
		}
		r.Redirect("/artigos/"+id, "", "")
		return
	}
	r.Redirect(back, notify.Success, "Artigo excluído.")
}

type articleForm struct {
	Title    string `form:"title" binding:"required,min=5,max=300"`
	Summary  string `form:"summary" binding:"required,min=20,max=5000"`
	Keywords string `form:"keywords" binding:"max=300"`
}

type submitData struct {
	Event    api.Event
	MaxSize  int64
	Accepted []string
}

func (h HandlerSet) eventHook(r *pages.Request) *fetch.Hook[string, api.Event] {
	return fetch.New(func(ctx context.Context, id string) (api.Event, error) {
		return r.Backend.Events.Get(ctx, id)
	})
}

// openEvent loads the event and sends the student back when submissions are
// closed. It reports whether the request was answered.
func (h HandlerSet) openEvent(r *pages.Request, id string) (api.Event, bool) {
	event := h.eventHook(r)
	if r.Load(pages.Mount(event, id)) {
		return api.Event{}, true
	}
	snap := event.Snapshot()
	if !snap.HasData {
		r.Redirect("/eventos", notify.Error, notify.ActionMessage("Carregar evento", errors.New(snap.Err)))
		return api.Event{}, true
	}
	if !snap.Data.SubmissionOpen(time.Now()) {
		r.Redirect("/eventos/"+id, notify.Warning, "As submissões para este evento estão encerradas.")
		return api.Event{}, true
	}
	return snap.Data, false
}

func (h HandlerSet) SubmitArticlePage(c *gin.Context) {
	r := h.pages.Begin(c)
	event, done := h.openEvent(r, c.Param("id"))
	if done {
		return
	}
	r.Render(http.StatusOK, views.PageSubmit, views.Page{
		Title: "Submeter artigo",
		Form:  articleForm{},
		Data:  submitData{Event: event, MaxSize: h.policy.MaxSize, Accepted: h.policy.Allowed(upload.CategoryPDF)},
	})
}

func (h HandlerSet) SubmitArticle(c *gin.Context) {
	r := h.pages.Begin(c)
	event, done := h.openEvent(r, c.Param("id"))
	if done {
		return
	}
	render := func(status int, form articleForm, errs forms.Errors) {
		r.Render(status, views.PageSubmit, views.Page{
			Title:  "Submeter artigo",
			Form:   form,
			Errors: errs,
			Data:   submitData{Event: event, MaxSize: h.policy.MaxSize, Accepted: h.policy.Allowed(upload.CategoryPDF)},
		})
	}

	var form articleForm
	errs := forms.Bind(c, &form)
	if errs == nil {
		errs = forms.Errors{}
	}
	fh, _ := c.FormFile("file")
	file, fileErr := h.policy.ValidateHeader(upload.CategoryPDF, fh)
	if fileErr != nil {
		errs.Add("file", fileError(fileErr))
	}
	if errs.Any() {
		render(http.StatusUnprocessableEntity, form, errs)
		return
	}

	ctx := c.Request.Context()
	ref, err := r.Backend.Files.UploadPDF(ctx, file, upload.LogQuarters(h.log, file.Name))
	if err == nil {
		_, err = r.Backend.Articles.Create(ctx, api.ArticleInput{
			Title:    form.Title,
			Summary:  form.Summary,
			Keywords: splitKeywords(form.Keywords),
			EventID:  event.ID,
			File:     &ref,
		})
	}
	if err != nil {
		if r.Failure("Submeter artigo", err) {
			return
		}
		render(formFailureStatus(err), form, fieldErrors(err))
		return
	}
	r.Redirect("/meus-artigos", notify.Success, "Artigo submetido com sucesso.")
}

type assignForm struct {
	Evaluators []string `form:"evaluators" binding:"required,min=1,max=5,dive,required"`
}

type assignData struct {
	Article    fetch.State[api.Article]
	Evaluators fetch.State[[]api.User]
	Selected   []string
}

func (h HandlerSet) assignHooks(r *pages.Request) (*fetch.Hook[string, api.Article], *fetch.Hook[none, []api.User]) {
	article := fetch.New(func(ctx context.Context, id string) (api.Article, error) {
		return r.Backend.Articles.Get(ctx, id)
	})
	evaluators := fetch.New(func(ctx context.Context, _ none) ([]api.User, error) {
		return r.Backend.Users.List(ctx, string(authz.RoleEvaluator))
	})
	return article, evaluators
}

func (h HandlerSet) AssignPage(c *gin.Context) {
	r := h.pages.Begin(c)
	article, evaluators := h.assignHooks(r)
	if r.Load(pages.Mount(article, c.Param("id")), pages.Mount(evaluators, none{})) {
		return
	}
	data := assignData{Article: article.Snapshot(), Evaluators: evaluators.Snapshot()}
	for _, e := range data.Article.Data.Evaluators {
		data.Selected = append(data.Selected, e.ID)
	}
	r.Render(http.StatusOK, views.PageAssign, views.Page{Title: "Atribuir avaliadores", Data: data})
}

func (h HandlerSet) AssignEvaluators(c *gin.Context) {
	r := h.pages.Begin(c)
	id := c.Param("id")

	var form assignForm
	errs := forms.Bind(c, &form)
	if errs != nil {
		article, evaluators := h.assignHooks(r)
		if r.Load(pages.Mount(article, id), pages.Mount(evaluators, none{})) {
			return
		}
		r.Render(http.StatusUnprocessableEntity, views.PageAssign, views.Page{
			Title:  "Atribuir avaliadores",
			Errors: errs,
			Data:   assignData{Article: article.Snapshot(), Evaluators: evaluators.Snapshot(), Selected: form.Evaluators},
		})
		return
	}
	if r.Load() {
		return
	}

	if _, err := r.Backend.Articles.AssignEvaluators(c.Request.Context(), id, form.Evaluators); err != nil {
		if r.Failure("Atribuir avaliadores", err) {
			return
		}
		r.Redirect("/artigos/"+id+"/avaliadores", "", "")
		return
	}
	r.Redirect("/artigos/"+id, notify.Success, "Avaliadores atribuídos.")
}
