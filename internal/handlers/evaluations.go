package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"submita/internal/api"
	"submita/internal/fetch"
	"submita/internal/forms"
	"submita/internal/notify"
	"submita/internal/pages"
	"submita/internal/views"
)

const (
	evaluationPending   = "pending"
	evaluationDraft     = "draft"
	evaluationSubmitted = "submitted"
)

type assignedItem struct {
	Article api.Article
	State   string
}

type assignedData struct {
	Items   fetch.State[[]api.Article]
	Rows    []assignedItem
	Pending int
}

func (h HandlerSet) Assigned(c *gin.Context) {
	r := h.pages.Begin(c)
	articles := fetch.New(func(ctx context.Context, _ none) ([]api.Article, error) {
		return r.Backend.Articles.Assigned(ctx)
	})
	evaluations := fetch.New(func(ctx context.Context, _ none) ([]api.Evaluation, error) {
		return r.Backend.Evaluations.List(ctx)
	})
	if r.Load(pages.Mount(articles, none{}), pages.Mount(evaluations, none{})) {
		return
	}

	data := assignedData{Items: articles.Snapshot()}
	states := make(map[string]string)
	for _, e := range evaluations.Snapshot().Data {
		if e.IsDraft {
			if states[e.ArticleID] == "" {
				states[e.ArticleID] = evaluationDraft
			}
			continue
		}
		states[e.ArticleID] = evaluationSubmitted
	}
	for _, a := range data.Items.Data {
		state := states[a.ID]
		if state == "" {
			state = evaluationPending
		}
		if state != evaluationSubmitted {
			data.Pending++
		}
		data.Rows = append(data.Rows, assignedItem{Article: a, State: state})
	}
	r.Render(http.StatusOK, views.PageAssigned, views.Page{Title: "Avaliações", Data: data})
}

// evaluationContext is everything the evaluation form needs: the article,
// the checklist of its event and the evaluator's previous work.
type evaluationContext struct {
	Article   api.Article
	Checklist *api.Checklist
	// Current is the draft or submitted evaluation the form starts from.
	Current   *api.Evaluation
	Submitted bool
}

type evaluateData struct {
	Context fetch.State[evaluationContext]
	Answers map[string]api.Answer
}

func (h HandlerSet) loadEvaluation(ctx context.Context, backend *api.Backend, articleID string) (evaluationContext, error) {
	var out evaluationContext
	article, err := backend.Articles.Get(ctx, articleID)
	if err != nil {
		return out, err
	}
	out.Article = article

	if article.EventID != "" {
		event, err := backend.Events.Get(ctx, article.EventID)
		if err != nil {
			return out, err
		}
		out.Checklist = event.Checklist
		if out.Checklist == nil && event.ChecklistID != "" {
			cl, err := backend.Checklists.Get(ctx, event.ChecklistID)
			if err != nil {
				return out, err
			}
			out.Checklist = &cl
		}
	}

	mine, err := backend.Evaluations.List(ctx)
	if err != nil {
		return out, err
	}
	for i := range mine {
		if mine[i].ArticleID == articleID && !mine[i].IsDraft {
			out.Current = &mine[i]
			out.Submitted = true
			return out, nil
		}
	}

	draft, ok, err := backend.Evaluations.GetDraft(ctx, articleID)
	if err != nil {
		return out, err
	}
	if ok {
		out.Current = &draft
	}
	return out, nil
}

func answersByQuestion(e *api.Evaluation) map[string]api.Answer {
	out := map[string]api.Answer{}
	if e == nil {
		return out
	}
	for _, a := range e.Answers {
		out[a.QuestionID] = a
	}
	return out
}

func (h HandlerSet) evaluationHook(r *pages.Request) *fetch.Hook[string, evaluationContext] {
	return fetch.New(func(ctx context.Context, id string) (evaluationContext, error) {
		return h.loadEvaluation(ctx, r.Backend, id)
	})
}

type evaluationForm struct {
	Grade    float64 `form:"grade" binding:"gte=0,lte=10"`
	Comments string  `form:"comments" binding:"max=5000"`
	Action   string  `form:"action" binding:"required,oneof=draft submit discard"`
}

func (h HandlerSet) EvaluatePage(c *gin.Context) {
	r := h.pages.Begin(c)
	hook := h.evaluationHook(r)
	if r.Load(pages.Mount(hook, c.Param("id"))) {
		return
	}

	snap := hook.Snapshot()
	form := evaluationForm{}
	if cur := snap.Data.Current; cur != nil {
		form.Grade, form.Comments = cur.Grade, cur.Comments
	}
	r.Render(http.StatusOK, views.PageEvaluate, views.Page{
		Title: "Avaliar artigo",
		Form:  form,
		Data:  evaluateData{Context: snap, Answers: answersByQuestion(snap.Data.Current)},
	})
}

func (h HandlerSet) Evaluate(c *gin.Context) {
	r := h.pages.Begin(c)
	articleID := c.Param("id")
	hook := h.evaluationHook(r)
	if r.Load(pages.Mount(hook, articleID)) {
		return
	}
	snap := hook.Snapshot()
	if !snap.HasData {
		r.Redirect("/avaliacoes", notify.Error, "Carregar avaliação: "+snap.Err)
		return
	}
	ec := snap.Data

	var form evaluationForm
	errs := forms.Bind(c, &form)
	in := api.EvaluationInput{
		ArticleID: articleID,
		Grade:     form.Grade,
		Comments:  strings.TrimSpace(form.Comments),
		Answers:   postedAnswers(c),
	}
	if errs == nil && form.Action == "submit" && in.Comments == "" {
		errs = forms.Errors{}
		errs.Add("comments", "Campo obrigatório.")
	}
	if errs != nil {
		posted := &api.Evaluation{Grade: in.Grade, Comments: in.Comments, Answers: in.Answers}
		r.Render(http.StatusUnprocessableEntity, views.PageEvaluate, views.Page{
			Title:  "Avaliar artigo",
			Form:   form,
			Errors: errs,
			Data:   evaluateData{Context: snap, Answers: answersByQuestion(posted)},
		})
		return
	}

	ctx := c.Request.Context()
	var (
		err     error
		action  string
		message string
		next    = "/avaliacoes"
	)
	switch {
	case form.Action == "discard":
		action, message, next = "Descartar rascunho", "Rascunho descartado.", "/avaliar/"+articleID
		if ec.Current != nil && ec.Current.IsDraft && ec.Current.ID != "" {
			err = r.Backend.Evaluations.Delete(ctx, ec.Current.ID)
		}
	case form.Action == "draft":
		action, message, next = "Salvar rascunho", "Rascunho salvo.", "/avaliar/"+articleID
		_, err = r.Backend.Evaluations.SaveDraft(ctx, in)
	case ec.Submitted:
		action, message = "Atualizar avaliação", "Avaliação atualizada."
		_, err = r.Backend.Evaluations.Update(ctx, ec.Current.ID, in)
	default:
		action, message = "Enviar avaliação", "Avaliação enviada."
		_, err = r.Backend.Evaluations.Create(ctx, in)
	}
	if err != nil {
		if r.Failure(action, err) {
			return
		}
		r.Render(formFailureStatus(err), views.PageEvaluate, views.Page{
			Title:  "Avaliar artigo",
			Form:   form,
			Errors: fieldErrors(err),
			Data:   evaluateData{Context: snap, Answers: answersByQuestion(&api.Evaluation{Answers: in.Answers})},
		})
		return
	}
	r.Redirect(next, notify.Success, message)
}

// postedAnswers reads answer[<question>] checkboxes and comment[<question>]
// fields for every question listed in the hidden "question" inputs.
func postedAnswers(c *gin.Context) []api.Answer {
	checked := c.PostFormMap("answer")
	comments := c.PostFormMap("comment")
	var out []api.Answer
	for _, qid := range c.PostFormArray("question") {
		if qid == "" {
			continue
		}
		out = append(out, api.Answer{
			QuestionID: qid,
			Value:      checked[qid] != "",
			Comment:    strings.TrimSpace(comments[qid]),
		})
	}
	return out
}
