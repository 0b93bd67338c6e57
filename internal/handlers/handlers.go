package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"submita/internal/apiclient"
	"submita/internal/config"
	"submita/internal/pages"
	"submita/internal/session"
	"submita/internal/storage"
	"submita/internal/upload"
)

type HandlerSet struct {
	log     zerolog.Logger
	cfg     *config.AppConfig
	pages   *pages.Pipeline
	client  *apiclient.Client
	cookies session.Cookies
	cache   *redis.Client
	store   *storage.ObjectStore
	policy  upload.Policy
}

// NewHandlerSet wires the page handlers. cache and store may be nil: flash
// toasts and profile caching are then disabled and files are streamed
// through the backend.
func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, pipeline *pages.Pipeline, cache *redis.Client, store *storage.ObjectStore) HandlerSet {
	return HandlerSet{
		log:     log,
		cfg:     cfg,
		pages:   pipeline,
		client:  pipeline.Client,
		cookies: pipeline.Cookies,
		cache:   cache,
		store:   store,
		policy:  upload.NewPolicy(cfg.Upload.MaxSize, cfg.Upload.ImageTypes, cfg.Upload.PDFTypes),
	}
}

func (h HandlerSet) Register(router gin.IRouter) {
	router.GET("/healthz", h.Health)

	router.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/dashboard") })

	router.GET("/login", h.LoginPage)
	router.POST("/login", h.Login)
	router.GET("/cadastro", h.RegisterPage)
	router.POST("/cadastro", h.SignUp)
	router.POST("/logout", h.Logout)
	router.GET("/redefinir-senha", h.ResetPasswordPage)
	router.POST("/redefinir-senha", h.ResetPassword)
	router.GET("/perfil", h.Profile)

	router.GET("/dashboard", h.Dashboard)

	router.GET("/eventos", h.Events)
	router.GET("/eventos/novo", h.NewEventPage)
	router.POST("/eventos/novo", h.CreateEvent)
	router.GET("/eventos/:id", h.Event)
	router.GET("/eventos/:id/editar", h.EditEventPage)
	router.POST("/eventos/:id/editar", h.UpdateEvent)
	router.POST("/eventos/:id/excluir", h.DeleteEvent)
	router.GET("/eventos/:id/submeter", h.SubmitArticlePage)
	router.POST("/eventos/:id/submeter", h.SubmitArticle)

	router.GET("/meus-artigos", h.MyArticles)
	router.GET("/artigos", h.Articles)
	router.GET("/artigos/:id", h.Article)
	router.POST("/artigos/:id/excluir", h.DeleteArticle)
	router.GET("/artigos/:id/avaliadores", h.AssignPage)
	router.POST("/artigos/:id/avaliadores", h.AssignEvaluators)

	router.GET("/avaliacoes", h.Assigned)
	router.GET("/avaliar/:id", h.EvaluatePage)
	router.POST("/avaliar/:id", h.Evaluate)

	router.GET("/usuarios", h.Users)
	router.POST("/usuarios", h.CreateUser)
	router.POST("/usuarios/:id/status", h.SetUserActive)

	router.GET("/checklists", h.Checklists)
	router.POST("/checklists", h.CreateChecklist)
	router.GET("/checklists/:id", h.Checklist)
	router.POST("/checklists/:id", h.UpdateChecklist)
	router.POST("/checklists/:id/excluir", h.DeleteChecklist)
	router.POST("/checklists/:id/perguntas", h.AddQuestion)
	router.POST("/checklists/:id/perguntas/:qid", h.UpdateQuestion)
	router.POST("/checklists/:id/perguntas/:qid/excluir", h.DeleteQuestion)

	router.GET("/arquivos/:bucket/:filename", h.File)
}
