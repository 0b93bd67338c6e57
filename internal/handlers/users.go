package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"submita/internal/api"
	"submita/internal/authz"
	"submita/internal/fetch"
	"submita/internal/forms"
	"submita/internal/notify"
	"submita/internal/pages"
	"submita/internal/views"
)

type userForm struct {
	Name        string `form:"name" binding:"required,min=3,max=120"`
	Email       string `form:"email" binding:"required,email"`
	Role        string `form:"role" binding:"required,oneof=STUDENT EVALUATOR COORDINATOR"`
	Institution bool   `form:"institution"`
}

type usersData struct {
	Role  string
	Roles []authz.Role
	Users fetch.State[[]api.User]
	Self  string
}

func roleFilter(role string) string {
	if authz.Role(role).Known() {
		return role
	}
	return ""
}

func (h HandlerSet) renderUsers(r *pages.Request, status int, form userForm, errs forms.Errors) {
	role := roleFilter(r.C.Query("role"))
	users := fetch.New(func(ctx context.Context, role string) ([]api.User, error) {
		return r.Backend.Users.List(ctx, role)
	})
	if r.Load(pages.Mount(users, role)) {
		return
	}
	r.Render(status, views.PageUsers, views.Page{
		Title:  "Usuários",
		Form:   form,
		Errors: errs,
		Data:   usersData{Role: role, Roles: authz.KnownRoles, Users: users.Snapshot(), Self: r.State().Subject()},
	})
}

func (h HandlerSet) Users(c *gin.Context) {
	h.renderUsers(h.pages.Begin(c), http.StatusOK, userForm{Role: string(authz.RoleStudent)}, nil)
}

func (h HandlerSet) CreateUser(c *gin.Context) {
	r := h.pages.Begin(c)

	var form userForm
	if errs := forms.Bind(c, &form); errs != nil {
		h.renderUsers(r, http.StatusUnprocessableEntity, form, errs)
		return
	}
	if r.Load() {
		return
	}

	created, err := r.Backend.Users.Create(c.Request.Context(), api.CreateUserRequest{
		Name:              form.Name,
		Email:             form.Email,
		Role:              form.Role,
		IsFromInstitution: form.Institution,
	})
	if err != nil {
		if r.Failure("Criar usuário", err) {
			return
		}
		h.renderUsers(r, formFailureStatus(err), form, fieldErrors(err))
		return
	}
	r.Redirect("/usuarios", notify.Success, "Usuário "+created.Name+" criado. A senha provisória foi enviada por e-mail.")
}

type activeForm struct {
	Active *bool `form:"active" binding:"required"`
}

func (h HandlerSet) SetUserActive(c *gin.Context) {
	r := h.pages.Begin(c)
	if r.Load() {
		return
	}
	id := c.Param("id")

	var form activeForm
	if errs := forms.Bind(c, &form); errs != nil {
		r.Redirect("/usuarios", notify.Error, "Alterar status: requisição inválida.")
		return
	}
	if id == r.State().Subject() && !*form.Active {
		r.Redirect("/usuarios", notify.Warning, "Você não pode desativar a sua própria conta.")
		return
	}

	u, err := r.Backend.Users.SetActive(c.Request.Context(), id, *form.Active)
	if err != nil {
		if r.Failure("Alterar status", err) {
			return
		}
		r.Redirect("/usuarios", "", "")
		return
	}
	msg := "Usuário desativado."
	if u.IsActive {
		msg = "Usuário ativado."
	}
	r.Redirect("/usuarios", notify.Success, msg)
}
