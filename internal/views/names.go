package views

// Template names, one per page.
const (
	PageLogin         = "login"
	PageRegister      = "register"
	PageResetPassword = "reset_password"
	PageDashboard     = "dashboard"
	PageProfile       = "profile"
	PageEvents        = "events"
	PageEvent         = "event"
	PageEventForm     = "event_form"
	PageSubmit        = "submit_article"
	PageMyArticles    = "my_articles"
	PageArticles      = "articles"
	PageArticle       = "article"
	PageAssign        = "assign_evaluators"
	PageAssigned      = "assigned"
	PageEvaluate      = "evaluate"
	PageUsers         = "users"
	PageChecklists    = "checklists"
	PageChecklist     = "checklist"
	PageError         = "error"
)
