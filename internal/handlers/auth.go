package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"submita/internal/api"
	"submita/internal/apiclient"
	"submita/internal/audit"
	"submita/internal/authz"
	"submita/internal/forms"
	"submita/internal/middleware"
	"submita/internal/notify"
	"submita/internal/pages"
	"submita/internal/session"
	"submita/internal/views"
)

type loginForm struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
	Next     string `form:"next"`
}

func (h HandlerSet) LoginPage(c *gin.Context) {
	r := h.pages.Begin(c)
	if r.Load() {
		return
	}
	r.Render(http.StatusOK, views.PageLogin, views.Page{Title: "Entrar", Form: loginForm{Next: c.Query("next")}})
}

func (h HandlerSet) Login(c *gin.Context) {
	r := h.pages.Begin(c)

	var form loginForm
	if errs := forms.Bind(c, &form); errs != nil {
		form.Password = ""
		r.Render(http.StatusUnprocessableEntity, views.PageLogin, views.Page{Title: "Entrar", Form: form, Errors: errs})
		return
	}

	ctx := c.Request.Context()
	resp, err := r.Backend.Auth.Login(ctx, api.LoginRequest{Email: form.Email, Password: form.Password})
	if err == nil && resp.Token == "" {
		err = &apiclient.Error{Status: http.StatusBadGateway, Message: "O servidor não retornou uma sessão válida."}
	}
	if err != nil {
		r.Audit(audit.LoginFailed, form.Email)
		form.Password = ""
		r.Render(loginFailureStatus(err), views.PageLogin, views.Page{Title: "Entrar", Form: form, Errors: backendErrors(err)})
		return
	}

	state := session.Inspect(resp.Token, nil)
	firstLogin := state.Claims.FirstLogin
	if resp.User.ID != "" {
		firstLogin = resp.User.IsFirstLogin
	}

	h.cookies.Write(c.Writer, resp.Token, firstLogin)
	h.pages.Profiles.Replace(ctx, resp.User)
	h.pages.Audit.Record(ctx, middleware.AuditEvent(c, audit.Login, state))

	location := authz.SafeNext(form.Next)
	if firstLogin {
		location = authz.ResetPasswordPath
	}
	c.Redirect(http.StatusSeeOther, location)
}

func loginFailureStatus(err error) int {
	if apiErr, ok := apiclient.AsError(err); ok && apiErr.Status >= 400 && apiErr.Status < 500 {
		return http.StatusUnauthorized
	}
	return http.StatusBadGateway
}

// backendErrors turns a failed backend call into inline form errors.
func backendErrors(err error) forms.Errors {
	errs := forms.Errors{}
	errs.Add(forms.FormKey, apiclient.Message(err))
	if apiErr, ok := apiclient.AsError(err); ok {
		errs.Merge(apiErr.Errors)
	}
	return errs
}

// fieldErrors keeps only the per-field part of a backend failure; the
// message itself is already shown as a toast.
func fieldErrors(err error) forms.Errors {
	errs := forms.Errors{}
	if apiErr, ok := apiclient.AsError(err); ok {
		errs.Merge(apiErr.Errors)
	}
	return errs
}

// Logout is not a gated page: it only needs whatever token the browser holds.
func (h HandlerSet) Logout(c *gin.Context) {
	token, mirror := h.cookies.Read(c.Request)
	state := session.Inspect(token, mirror)

	h.cookies.Clear(c.Writer)
	if subject := state.Subject(); subject != "" {
		if err := h.pages.Profiles.Invalidate(c.Request.Context(), subject); err != nil {
			h.log.Warn().Err(err).Msg("profile cache not invalidated")
		}
		h.pages.Audit.Record(c.Request.Context(), middleware.AuditEvent(c, audit.Logout, state))
	}
	h.pages.Notify.Flash(c, notify.Info, "Você saiu da sua conta.")
	c.Redirect(http.StatusSeeOther, authz.LoginPath)
}

type registerForm struct {
	Name        string `form:"name" binding:"required,min=3,max=120"`
	Email       string `form:"email" binding:"required,email"`
	Password    string `form:"password" binding:"required,min=8,max=72"`
	Confirm     string `form:"confirm" binding:"required,eqfield=Password"`
	Institution bool   `form:"institution"`
}

func (h HandlerSet) RegisterPage(c *gin.Context) {
	r := h.pages.Begin(c)
	if r.Load() {
		return
	}
	r.Render(http.StatusOK, views.PageRegister, views.Page{Title: "Criar conta", Form: registerForm{}})
}

func (h HandlerSet) SignUp(c *gin.Context) {
	r := h.pages.Begin(c)

	var form registerForm
	errs := forms.Bind(c, &form)
	password := form.Password
	form.Password, form.Confirm = "", ""
	if errs != nil {
		r.Render(http.StatusUnprocessableEntity, views.PageRegister, views.Page{Title: "Criar conta", Form: form, Errors: errs})
		return
	}

	_, err := r.Backend.Auth.Register(c.Request.Context(), api.RegisterRequest{
		Name:              form.Name,
		Email:             form.Email,
		Password:          password,
		IsFromInstitution: form.Institution,
	})
	if err != nil {
		r.Render(formFailureStatus(err), views.PageRegister, views.Page{Title: "Criar conta", Form: form, Errors: backendErrors(err)})
		return
	}
	r.Redirect(authz.LoginPath, notify.Success, "Cadastro realizado. Faça login para continuar.")
}

func formFailureStatus(err error) int {
	if apiErr, ok := apiclient.AsError(err); ok && apiErr.Status >= 400 && apiErr.Status < 500 {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

type resetPasswordForm struct {
	Current string `form:"current" binding:"required"`
	New     string `form:"new" binding:"required,min=8,max=72,nefield=Current"`
	Confirm string `form:"confirm" binding:"required,eqfield=New"`
}

func (h HandlerSet) ResetPasswordPage(c *gin.Context) {
	r := h.pages.Begin(c)
	if r.Load() {
		return
	}
	r.Render(http.StatusOK, views.PageResetPassword, views.Page{Title: "Redefinir senha", Form: resetPasswordForm{}})
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	r := h.pages.Begin(c)
	if r.Load() {
		return
	}

	var form resetPasswordForm
	if errs := forms.Bind(c, &form); errs != nil {
		r.Render(http.StatusUnprocessableEntity, views.PageResetPassword, views.Page{Title: "Redefinir senha", Errors: errs})
		return
	}

	ctx := c.Request.Context()
	err := r.Backend.Auth.ChangePassword(ctx, api.ChangePasswordRequest{CurrentPassword: form.Current, NewPassword: form.New})
	if r.Handled(err) {
		return
	}
	if err != nil {
		r.Render(formFailureStatus(err), views.PageResetPassword, views.Page{Title: "Redefinir senha", Errors: backendErrors(err)})
		return
	}

	// The backend keeps the old token, so the mirror is what lifts the lock.
	h.cookies.SetFirstLogin(c.Writer, false)
	if err := h.pages.Profiles.Invalidate(ctx, r.State().Subject()); err != nil {
		h.log.Warn().Err(err).Msg("profile cache not invalidated")
	}
	r.Audit(audit.PasswordChanged, "")
	r.Redirect(authz.DashboardPath, notify.Success, "Senha alterada com sucesso.")
}

func (h HandlerSet) Profile(c *gin.Context) {
	r := h.pages.Begin(c)
	if r.Load() {
		return
	}
	r.Render(http.StatusOK, views.PageProfile, views.Page{Title: "Perfil", Data: profileView(r, time.Now())})
}

type profileData struct {
	ExpiresAt time.Time
	Allowed   []string
}

func profileView(r *pages.Request, now time.Time) profileData {
	state := r.State()
	d := profileData{Allowed: authz.Routes.AllowList(authz.Role(state.Role()))}
	if exp := state.Claims.Expiry(); exp.After(now) {
		d.ExpiresAt = exp
	}
	return d
}
