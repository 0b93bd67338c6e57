package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"submita/internal/api"
	"submita/internal/fetch"
	"submita/internal/forms"
	"submita/internal/notify"
	"submita/internal/pages"
	"submita/internal/views"
)

type checklistForm struct {
	Name        string `form:"name" binding:"required,min=3,max=200"`
	Description string `form:"description" binding:"max=2000"`
}

type questionForm struct {
	Text  string `form:"text" binding:"required,min=3,max=500"`
	Order int    `form:"order" binding:"gte=0,lte=1000"`
}

func (h HandlerSet) renderChecklists(r *pages.Request, status int, form checklistForm, errs forms.Errors) {
	checklists := h.checklistsHook(r)
	if r.Load(pages.Mount(checklists, none{})) {
		return
	}
	r.Render(status, views.PageChecklists, views.Page{Title: "Checklists", Form: form, Errors: errs, Data: checklists.Snapshot()})
}

func (h HandlerSet) Checklists(c *gin.Context) {
	h.renderChecklists(h.pages.Begin(c), http.StatusOK, checklistForm{}, nil)
}

func (h HandlerSet) CreateChecklist(c *gin.Context) {
	r := h.pages.Begin(c)

	var form checklistForm
	if errs := forms.Bind(c, &form); errs != nil {
		h.renderChecklists(r, http.StatusUnprocessableEntity, form, errs)
		return
	}
	if r.Load() {
		return
	}

	created, err := r.Backend.Checklists.Create(c.Request.Context(), api.ChecklistInput{Name: form.Name, Description: form.Description})
	if err != nil {
		if r.Failure("Criar checklist", err) {
			return
		}
		h.renderChecklists(r, formFailureStatus(err), form, fieldErrors(err))
		return
	}
	r.Redirect("/checklists/"+created.ID, notify.Success, "Checklist criado.")
}

type checklistData struct {
	Checklist fetch.State[api.Checklist]
	Question  questionForm
}

func (h HandlerSet) renderChecklist(r *pages.Request, status int, form checklistForm, question questionForm, errs forms.Errors) {
	checklist := fetch.New(func(ctx context.Context, id string) (api.Checklist, error) {
		return r.Backend.Checklists.Get(ctx, id)
	})
	if r.Load(pages.Mount(checklist, r.C.Param("id"))) {
		return
	}
	snap := checklist.Snapshot()
	if !snap.HasData {
		r.Redirect("/checklists", notify.Error, notify.ActionMessage("Carregar checklist", errors.New(snap.Err)))
		return
	}
	if form.Name == "" {
		form = checklistForm{Name: snap.Data.Name, Description: snap.Data.Description}
	}
	if question.Order == 0 {
		question.Order = len(snap.Data.Questions) + 1
	}
	r.Render(status, views.PageChecklist, views.Page{
		Title:  snap.Data.Name,
		Form:   form,
		Errors: errs,
		Data:   checklistData{Checklist: snap, Question: question},
	})
}

func (h HandlerSet) Checklist(c *gin.Context) {
	h.renderChecklist(h.pages.Begin(c), http.StatusOK, checklistForm{}, questionForm{}, nil)
}

func (h HandlerSet) UpdateChecklist(c *gin.Context) {
	r := h.pages.Begin(c)
	id := c.Param("id")

	var form checklistForm
	if errs := forms.Bind(c, &form); errs != nil {
		h.renderChecklist(r, http.StatusUnprocessableEntity, form, questionForm{}, errs)
		return
	}
	if r.Load() {
		return
	}

	if _, err := r.Backend.Checklists.Update(c.Request.Context(), id, api.ChecklistInput{Name: form.Name, Description: form.Description}); err != nil {
		if r.Failure("Salvar checklist", err) {
			return
		}
		h.renderChecklist(r, formFailureStatus(err), form, questionForm{}, fieldErrors(err))
		return
	}
	r.Redirect("/checklists/"+id, notify.Success, "Checklist atualizado.")
}

func (h HandlerSet) DeleteChecklist(c *gin.Context) {
	r := h.pages.Begin(c)
	if r.Load() {
		return
	}
	id := c.Param("id")
	if err := r.Backend.Checklists.Delete(c.Request.Context(), id); err != nil {
		if r.Failure("Excluir checklist", err) {
			return
		}
		r.Redirect("/checklists/"+id, "", "")
		return
	}
	r.Redirect("/checklists", notify.Success, "Checklist excluído.")
}

func (h HandlerSet) AddQuestion(c *gin.Context) {
	r := h.pages.Begin(c)
	id := c.Param("id")

	var question questionForm
	if errs := forms.Bind(c, &question); errs != nil {
		h.renderChecklist(r, http.StatusUnprocessableEntity, checklistForm{}, question, errs)
		return
	}
	if r.Load() {
		return
	}

	if _, err := r.Backend.Checklists.AddQuestion(c.Request.Context(), id, api.QuestionInput{Text: question.Text, Order: question.Order}); err != nil {
		if r.Failure("Adicionar pergunta", err) {
			return
		}
		h.renderChecklist(r, formFailureStatus(err), checklistForm{}, question, fieldErrors(err))
		return
	}
	r.Redirect("/checklists/"+id, notify.Success, "Pergunta adicionada.")
}

func (h HandlerSet) UpdateQuestion(c *gin.Context) {
	r := h.pages.Begin(c)
	if r.Load() {
		return
	}
	id, qid := c.Param("id"), c.Param("qid")

	var question questionForm
	if errs := forms.Bind(c, &question); errs != nil {
		msg := "Verifique os dados da pergunta."
		for _, m := range errs {
			msg = "Salvar pergunta: " + m
			break
		}
		r.Redirect("/checklists/"+id, notify.Error, msg)
		return
	}

	if _, err := r.Backend.Checklists.UpdateQuestion(c.Request.Context(), id, qid, api.QuestionInput{Text: question.Text, Order: question.Order}); err != nil {
		if r.Failure("Salvar pergunta", err) {
			return
		}
		r.Redirect("/checklists/"+id, "", "")
		return
	}
	r.Redirect("/checklists/"+id, notify.Success, "Pergunta atualizada.")
}

func (h HandlerSet) DeleteQuestion(c *gin.Context) {
	r := h.pages.Begin(c)
	if r.Load() {
		return
	}
	id, qid := c.Param("id"), c.Param("qid")
	if err := r.Backend.Checklists.DeleteQuestion(c.Request.Context(), id, qid); err != nil {
		if r.Failure("Excluir pergunta", err) {
			return
		}
		r.Redirect("/checklists/"+id, "", "")
		return
	}
	r.Redirect("/checklists/"+id, notify.Success, "Pergunta excluída.")
}
