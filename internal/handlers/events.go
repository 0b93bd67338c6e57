package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"submita/internal/api"
	"submita/internal/authz"
	"submita/internal/fetch"
	"submita/internal/forms"
	"submita/internal/notify"
	"submita/internal/pages"
	"submita/internal/upload"
	"submita/internal/views"
)

type eventForm struct {
	Name               string    `form:"name" binding:"required,min=3,max=200"`
	Description        string    `form:"description" binding:"max=5000"`
	StartDate          time.Time `form:"startDate" time_format:"2006-01-02" binding:"required"`
	EndDate            time.Time `form:"endDate" time_format:"2006-01-02" binding:"required,gtefield=StartDate"`
	SubmissionDeadline time.Time `form:"submissionDeadline" time_format:"2006-01-02" binding:"required"`
	EvaluationDeadline time.Time `form:"evaluationDeadline" time_format:"2006-01-02" binding:"required,gtefield=SubmissionDeadline"`
	ChecklistID        string    `form:"checklistId"`
	Status             string    `form:"status" binding:"omitempty,oneof=OPEN IN_EVALUATION CLOSED"`
}

func eventFormFrom(e api.Event) eventForm {
	return eventForm{
		Name:               e.Name,
		Description:        e.Description,
		StartDate:          e.StartDate.Time,
		EndDate:            e.EndDate.Time,
		SubmissionDeadline: e.SubmissionDeadline.Time,
		EvaluationDeadline: e.EvaluationDeadline.Time,
		ChecklistID:        e.ChecklistID,
		Status:             e.Status,
	}
}

func (f eventForm) input(banner *api.FileRef) api.EventInput {
	return api.EventInput{
		Name:               f.Name,
		Description:        f.Description,
		Banner:             banner,
		StartDate:          api.Time{Time: f.StartDate},
		EndDate:            api.Time{Time: f.EndDate},
		SubmissionDeadline: api.Time{Time: f.SubmissionDeadline},
		EvaluationDeadline: api.Time{Time: f.EvaluationDeadline},
		ChecklistID:        f.ChecklistID,
		Status:             f.Status,
	}
}

type eventFormData struct {
	Event      *api.Event
	Checklists fetch.State[[]api.Checklist]
}

type eventData struct {
	Event          fetch.State[api.Event]
	Articles       fetch.State[[]api.Article]
	SubmissionOpen bool
}

func (h HandlerSet) Events(c *gin.Context) {
	r := h.pages.Begin(c)
	events := fetch.New(func(ctx context.Context, _ none) ([]api.Event, error) {
		return r.Backend.Events.List(ctx)
	})
	if r.Load(pages.Mount(events, none{})) {
		return
	}
	r.Render(http.StatusOK, views.PageEvents, views.Page{Title: "Eventos", Data: events.Snapshot()})
}

func (h HandlerSet) Event(c *gin.Context) {
	r := h.pages.Begin(c)
	id := c.Param("id")
	coordinator := r.State().Role() == string(authz.RoleCoordinator)

	event := fetch.New(func(ctx context.Context, id string) (api.Event, error) {
		return r.Backend.Events.Get(ctx, id)
	})
	articles := fetch.New(func(ctx context.Context, id string) ([]api.Article, error) {
		return r.Backend.Articles.ByEvent(ctx, id)
	})

	loaders := []pages.Loader{pages.Mount(event, id)}
	if coordinator {
		loaders = append(loaders, pages.Mount(articles, id))
	}
	if r.Load(loaders...) {
		return
	}

	data := eventData{Event: event.Snapshot(), Articles: articles.Snapshot()}
	if !data.Event.HasData {
		r.Render(http.StatusOK, views.PageEvent, views.Page{Title: "Evento", Data: data})
		return
	}
	data.SubmissionOpen = data.Event.Data.SubmissionOpen(time.Now())
	r.Render(http.StatusOK, views.PageEvent, views.Page{Title: data.Event.Data.Name, Data: data})
}

func (h HandlerSet) checklistsHook(r *pages.Request) *fetch.Hook[none, []api.Checklist] {
	return fetch.New(func(ctx context.Context, _ none) ([]api.Checklist, error) {
		return r.Backend.Checklists.List(ctx)
	})
}

func (h HandlerSet) NewEventPage(c *gin.Context) {
	r := h.pages.Begin(c)
	checklists := h.checklistsHook(r)
	if r.Load(pages.Mount(checklists, none{})) {
		return
	}
	r.Render(http.StatusOK, views.PageEventForm, views.Page{
		Title: "Novo evento",
		Form:  eventForm{Status: api.EventStatusOpen},
		Data:  eventFormData{Checklists: checklists.Snapshot()},
	})
}

func (h HandlerSet) CreateEvent(c *gin.Context) {
	r := h.pages.Begin(c)
	if r.Load() {
		return
	}

	var form eventForm
	errs := forms.Bind(c, &form)
	banner, bannerErr := h.uploadBanner(r, errs.Any())
	if bannerErr != nil {
		if r.Handled(bannerErr) {
			return
		}
		if errs == nil {
			errs = forms.Errors{}
		}
		errs.Add("banner", fileError(bannerErr))
	}
	if errs != nil {
		h.renderEventForm(r, http.StatusUnprocessableEntity, "Novo evento", nil, form, errs)
		return
	}

	created, err := r.Backend.Events.Create(c.Request.Context(), form.input(banner))
	if err != nil {
		if r.Failure("Criar evento", err) {
			return
		}
		h.renderEventForm(r, formFailureStatus(err), "Novo evento", nil, form, fieldErrors(err))
		return
	}
	r.Redirect("/eventos/"+created.ID, notify.Success, "Evento criado.")
}

func (h HandlerSet) EditEventPage(c *gin.Context) {
	r := h.pages.Begin(c)
	event := fetch.New(func(ctx context.Context, id string) (api.Event, error) {
		return r.Backend.Events.Get(ctx, id)
	})
	checklists := h.checklistsHook(r)
	if r.Load(pages.Mount(event, c.Param("id")), pages.Mount(checklists, none{})) {
		return
	}

	snap := event.Snapshot()
	if !snap.HasData {
		r.Redirect("/eventos", notify.Error, notify.ActionMessage("Carregar evento", errors.New(snap.Err)))
		return
	}
	r.Render(http.StatusOK, views.PageEventForm, views.Page{
		Title: "Editar evento",
		Form:  eventFormFrom(snap.Data),
		Data:  eventFormData{Event: &snap.Data, Checklists: checklists.Snapshot()},
	})
}

func (h HandlerSet) UpdateEvent(c *gin.Context) {
	r := h.pages.Begin(c)
	if r.Load() {
		return
	}
	id := c.Param("id")

	var form eventForm
	errs := forms.Bind(c, &form)
	banner, bannerErr := h.uploadBanner(r, errs.Any())
	if bannerErr != nil {
		if r.Handled(bannerErr) {
			return
		}
		if errs == nil {
			errs = forms.Errors{}
		}
		errs.Add("banner", fileError(bannerErr))
	}
	current := &api.Event{ID: id}
	if errs != nil {
		h.renderEventForm(r, http.StatusUnprocessableEntity, "Editar evento", current, form, errs)
		return
	}

	if _, err := r.Backend.Events.Update(c.Request.Context(), id, form.input(banner)); err != nil {
		if r.Failure("Salvar evento", err) {
			return
		}
		h.renderEventForm(r, formFailureStatus(err), "Editar evento", current, form, fieldErrors(err))
		return
	}
	r.Redirect("/eventos/"+id, notify.Success, "Evento atualizado.")
}

func (h HandlerSet) DeleteEvent(c *gin.Context) {
	r := h.pages.Begin(c)
	if r.Load() {
		return
	}
	id := c.Param("id")
	if err := r.Backend.Events.Delete(c.Request.Context(), id); err != nil {
		if r.Failure("Excluir evento", err) {
			return
		}
		r.Redirect("/eventos/"+id, "", "")
		return
	}
	r.Redirect("/eventos", notify.Success, "Evento excluído.")
}

func (h HandlerSet) renderEventForm(r *pages.Request, status int, title string, event *api.Event, form eventForm, errs forms.Errors) {
	checklists := h.checklistsHook(r)
	checklists.Mount(r.Context(), true, none{})
	if r.Finish() {
		return
	}
	r.Render(status, views.PageEventForm, views.Page{
		Title:  title,
		Form:   form,
		Errors: errs,
		Data:   eventFormData{Event: event, Checklists: checklists.Snapshot()},
	})
}

// uploadBanner forwards the optional banner image. Nothing is uploaded when
// the rest of the form is already invalid.
func (h HandlerSet) uploadBanner(r *pages.Request, formInvalid bool) (*api.FileRef, error) {
	fh, err := r.C.FormFile("banner")
	if err != nil || fh.Size == 0 {
		return nil, nil
	}
	file, err := h.policy.ValidateHeader(upload.CategoryImage, fh)
	if err != nil || formInvalid {
		return nil, err
	}
	ref, err := r.Backend.Files.UploadImage(r.Context(), file, upload.LogQuarters(h.log, file.Name))
	if err != nil {
		return nil, err
	}
	return &ref, nil
}
