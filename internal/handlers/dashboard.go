package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"submita/internal/api"
	"submita/internal/authz"
	"submita/internal/fetch"
	"submita/internal/pages"
	"submita/internal/views"
)

type statusCount struct {
	Status string
	Count  int
}

var articleStatuses = []string{api.ArticleSubmitted, api.ArticleUnderEvaluation, api.ArticleApproved, api.ArticleRejected}

func countByStatus(articles []api.Article) []statusCount {
	counts := make(map[string]int, len(articleStatuses))
	for _, a := range articles {
		counts[a.Status]++
	}
	out := make([]statusCount, 0, len(articleStatuses))
	for _, s := range articleStatuses {
		out = append(out, statusCount{Status: s, Count: counts[s]})
	}
	return out
}

type dashboardData struct {
	Role       string
	Articles   fetch.State[[]api.Article]
	Events     fetch.State[[]api.Event]
	Users      fetch.State[[]api.User]
	ByStatus   []statusCount
	OpenEvents []api.Event
	// Pending counts assigned articles still without a submitted evaluation.
	Pending int
}

type none struct{}

func (h HandlerSet) Dashboard(c *gin.Context) {
	r := h.pages.Begin(c)
	role := r.State().Role()

	articles := fetch.New(func(ctx context.Context, _ none) ([]api.Article, error) {
		switch authz.Role(role) {
		case authz.RoleStudent:
			return r.Backend.Articles.Mine(ctx)
		case authz.RoleEvaluator:
			return r.Backend.Articles.Assigned(ctx)
		}
		return r.Backend.Articles.List(ctx, "")
	})
	events := fetch.New(func(ctx context.Context, _ none) ([]api.Event, error) {
		return r.Backend.Events.List(ctx)
	})
	users := fetch.New(func(ctx context.Context, _ none) ([]api.User, error) {
		return r.Backend.Users.List(ctx, "")
	})
	evaluations := fetch.New(func(ctx context.Context, _ none) ([]api.Evaluation, error) {
		return r.Backend.Evaluations.List(ctx)
	})

	loaders := []pages.Loader{pages.Mount(articles, none{})}
	switch authz.Role(role) {
	case authz.RoleStudent:
		loaders = append(loaders, pages.Mount(events, none{}))
	case authz.RoleEvaluator:
		loaders = append(loaders, pages.Mount(evaluations, none{}))
	case authz.RoleCoordinator:
		loaders = append(loaders, pages.Mount(events, none{}), pages.Mount(users, none{}))
	}
	if r.Load(loaders...) {
		return
	}

	data := dashboardData{
		Role:     role,
		Articles: articles.Snapshot(),
		Events:   events.Snapshot(),
		Users:    users.Snapshot(),
	}
	data.ByStatus = countByStatus(data.Articles.Data)
	now := time.Now()
	for _, e := range data.Events.Data {
		if e.SubmissionOpen(now) {
			data.OpenEvents = append(data.OpenEvents, e)
		}
	}
	if ev := evaluations.Snapshot(); ev.HasData {
		data.Pending = pendingEvaluations(data.Articles.Data, ev.Data)
	}

	r.Render(http.StatusOK, views.PageDashboard, views.Page{Title: "Início", Data: data})
}

func pendingEvaluations(assigned []api.Article, done []api.Evaluation) int {
	submitted := make(map[string]bool, len(done))
	for _, e := range done {
		if !e.IsDraft {
			submitted[e.ArticleID] = true
		}
	}
	pending := 0
	for _, a := range assigned {
		if !submitted[a.ID] {
			pending++
		}
	}
	return pending
}
