// Package api maps the Submita backend endpoints onto typed calls.
package api

import (
	"bytes"
	"context"
	"net/url"

	"submita/internal/apiclient"
	"submita/internal/upload"
)

// Backend groups every service over one (per-session) client.
type Backend struct {
	Auth        Auth
	Events      Events
	Articles    Articles
	Evaluations Evaluations
	Checklists  Checklists
	Users       Users
	Files       Files
}

func New(c *apiclient.Client) *Backend {
	return &Backend{
		Auth:        Auth{c: c},
		Events:      Events{c: c},
		Articles:    Articles{c: c},
		Evaluations: Evaluations{c: c},
		Checklists:  Checklists{c: c},
		Users:       Users{c: c},
		Files:       Files{c: c},
	}
}

func seg(id string) string { return url.PathEscape(id) }

type Auth struct{ c *apiclient.Client }

func (s Auth) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	var out LoginResponse
	err := s.c.Post(ctx, "/auth/login", req, &out)
	return out, err
}

func (s Auth) Register(ctx context.Context, req RegisterRequest) (User, error) {
	var out User
	err := s.c.Post(ctx, "/auth/register", req, &out)
	return out, err
}

func (s Auth) Profile(ctx context.Context) (User, error) {
	var out User
	err := s.c.Get(ctx, "/auth/profile", nil, &out)
	return out, err
}

func (s Auth) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	return s.c.Patch(ctx, "/auth/change-password", req, nil)
}

type Events struct{ c *apiclient.Client }

func (s Events) List(ctx context.Context) ([]Event, error) {
	var out []Event
	err := s.c.Get(ctx, "/events", nil, &out)
	return out, err
}

func (s Events) Get(ctx context.Context, id string) (Event, error) {
	var out Event
	err := s.c.Get(ctx, "/events/"+seg(id), nil, &out)
	return out, err
}

func (s Events) Create(ctx context.Context, in EventInput) (Event, error) {
	var out Event
	err := s.c.Post(ctx, "/events", in, &out)
	return out, err
}

func (s Events) Update(ctx context.Context, id string, in EventInput) (Event, error) {
	var out Event
	err := s.c.Put(ctx, "/events/"+seg(id), in, &out)
	return out, err
}

func (s Events) Delete(ctx context.Context, id string) error {
	return s.c.Delete(ctx, "/events/"+seg(id), nil)
}

type Articles struct{ c *apiclient.Client }

// List returns every article; coordinators may filter by status.
func (s Articles) List(ctx context.Context, status string) ([]Article, error) {
	var query url.Values
	if status != "" {
		query = url.Values{"status": {status}}
	}
	var out []Article
	err := s.c.Get(ctx, "/articles", query, &out)
	return out, err
}

func (s Articles) Mine(ctx context.Context) ([]Article, error) {
	var out []Article
	err := s.c.Get(ctx, "/articles/mine", nil, &out)
	return out, err
}

func (s Articles) ByEvent(ctx context.Context, eventID string) ([]Article, error) {
	var out []Article
	err := s.c.Get(ctx, "/events/"+seg(eventID)+"/articles", nil, &out)
	return out, err
}

func (s Articles) Assigned(ctx context.Context) ([]Article, error) {
	var out []Article
	err := s.c.Get(ctx, "/articles/assigned", nil, &out)
	return out, err
}

func (s Articles) Get(ctx context.Context, id string) (Article, error) {
	var out Article
	err := s.c.Get(ctx, "/articles/"+seg(id), nil, &out)
	return out, err
}

func (s Articles) Create(ctx context.Context, in ArticleInput) (Article, error) {
	var out Article
	err := s.c.Post(ctx, "/articles", in, &out)
	return out, err
}

func (s Articles) Update(ctx context.Context, id string, in ArticleInput) (Article, error) {
	var out Article
	err := s.c.Put(ctx, "/articles/"+seg(id), in, &out)
	return out, err
}

func (s Articles) Delete(ctx context.Context, id string) error {
	return s.c.Delete(ctx, "/articles/"+seg(id), nil)
}

func (s Articles) AssignEvaluators(ctx context.Context, id string, evaluatorIDs []string) (Article, error) {
	var out Article
	err := s.c.Post(ctx, "/articles/"+seg(id)+"/evaluators", AssignEvaluatorsRequest{EvaluatorIDs: evaluatorIDs}, &out)
	return out, err
}

type Evaluations struct{ c *apiclient.Client }

func (s Evaluations) List(ctx context.Context) ([]Evaluation, error) {
	var out []Evaluation
	err := s.c.Get(ctx, "/evaluations", nil, &out)
	return out, err
}

func (s Evaluations) ByArticle(ctx context.Context, articleID string) ([]Evaluation, error) {
	var out []Evaluation
	err := s.c.Get(ctx, "/articles/"+seg(articleID)+"/evaluations", nil, &out)
	return out, err
}

func (s Evaluations) Get(ctx context.Context, id string) (Evaluation, error) {
	var out Evaluation
	err := s.c.Get(ctx, "/evaluations/"+seg(id), nil, &out)
	return out, err
}

func (s Evaluations) Create(ctx context.Context, in EvaluationInput) (Evaluation, error) {
	var out Evaluation
	err := s.c.Post(ctx, "/evaluations", in, &out)
	return out, err
}

func (s Evaluations) Update(ctx context.Context, id string, in EvaluationInput) (Evaluation, error) {
	var out Evaluation
	err := s.c.Put(ctx, "/evaluations/"+seg(id), in, &out)
	return out, err
}

func (s Evaluations) Delete(ctx context.Context, id string) error {
	return s.c.Delete(ctx, "/evaluations/"+seg(id), nil)
}

// SaveDraft stores an unfinished evaluation; the backend keeps one draft per
// evaluator and article.
func (s Evaluations) SaveDraft(ctx context.Context, in EvaluationInput) (Evaluation, error) {
	var out Evaluation
	err := s.c.Post(ctx, "/evaluations/draft", in, &out)
	return out, err
}

// GetDraft returns the caller's draft for an article. A missing draft is
// reported as ok=false, not as an error.
func (s Evaluations) GetDraft(ctx context.Context, articleID string) (Evaluation, bool, error) {
	var out Evaluation
	err := s.c.Get(ctx, "/evaluations/draft/"+seg(articleID), nil, &out)
	if apiErr, ok := apiclient.AsError(err); ok && apiErr.NotFound() {
		return Evaluation{}, false, nil
	}
	if err != nil {
		return Evaluation{}, false, err
	}
	return out, out.ID != "" || len(out.Answers) > 0, nil
}

type Checklists struct{ c *apiclient.Client }

func (s Checklists) List(ctx context.Context) ([]Checklist, error) {
	var out []Checklist
	err := s.c.Get(ctx, "/checklists", nil, &out)
	return out, err
}

func (s Checklists) Get(ctx context.Context, id string) (Checklist, error) {
	var out Checklist
	err := s.c.Get(ctx, "/checklists/"+seg(id), nil, &out)
	return out, err
}

func (s Checklists) Create(ctx context.Context, in ChecklistInput) (Checklist, error) {
	var out Checklist
	err := s.c.Post(ctx, "/checklists", in, &out)
	return out, err
}

func (s Checklists) Update(ctx context.Context, id string, in ChecklistInput) (Checklist, error) {
	var out Checklist
	err := s.c.Put(ctx, "/checklists/"+seg(id), in, &out)
	return out, err
}

func (s Checklists) Delete(ctx context.Context, id string) error {
	return s.c.Delete(ctx, "/checklists/"+seg(id), nil)
}

func (s Checklists) AddQuestion(ctx context.Context, checklistID string, in QuestionInput) (Question, error) {
	var out Question
	err := s.c.Post(ctx, "/checklists/"+seg(checklistID)+"/questions", in, &out)
	return out, err
}

func (s Checklists) UpdateQuestion(ctx context.Context, checklistID, questionID string, in QuestionInput) (Question, error) {
	var out Question
	err := s.c.Put(ctx, "/checklists/"+seg(checklistID)+"/questions/"+seg(questionID), in, &out)
	return out, err
}

func (s Checklists) DeleteQuestion(ctx context.Context, checklistID, questionID string) error {
	return s.c.Delete(ctx, "/checklists/"+seg(checklistID)+"/questions/"+seg(questionID), nil)
}

type Users struct{ c *apiclient.Client }

// List returns accounts, optionally restricted to one role.
func (s Users) List(ctx context.Context, role string) ([]User, error) {
	var query url.Values
	if role != "" {
		query = url.Values{"role": {role}}
	}
	var out []User
	err := s.c.Get(ctx, "/users", query, &out)
	return out, err
}

func (s Users) Create(ctx context.Context, in CreateUserRequest) (User, error) {
	var out User
	err := s.c.Post(ctx, "/users", in, &out)
	return out, err
}

func (s Users) SetActive(ctx context.Context, id string, active bool) (User, error) {
	var out User
	err := s.c.Patch(ctx, "/users/"+seg(id)+"/status", SetActiveRequest{IsActive: active}, &out)
	return out, err
}

type Files struct{ c *apiclient.Client }

func (s Files) UploadPDF(ctx context.Context, f upload.File, progress upload.ProgressFunc) (FileRef, error) {
	return s.upload(ctx, "/files/upload/pdf", f, progress)
}

func (s Files) UploadImage(ctx context.Context, f upload.File, progress upload.ProgressFunc) (FileRef, error) {
	return s.upload(ctx, "/files/upload/image", f, progress)
}

func (s Files) upload(ctx context.Context, path string, f upload.File, progress upload.ProgressFunc) (FileRef, error) {
	var out FileRef
	err := s.c.Upload(ctx, path, apiclient.FilePart{
		Field:       "file",
		FileName:    f.Name,
		ContentType: f.MIME,
		Content:     bytes.NewReader(f.Data),
	}, progress, &out)
	return out, err
}

func filePath(bucket, filename string) string {
	return "/files/" + seg(bucket) + "/" + seg(filename)
}

// Get streams a stored file. Callers close the body.
func (s Files) Get(ctx context.Context, bucket, filename string) (*apiclient.RawResponse, error) {
	return s.c.Raw(ctx, filePath(bucket, filename))
}

// Authorize checks with the backend that the session may read the file.
// It must succeed before any direct object store link is handed out.
func (s Files) Authorize(ctx context.Context, bucket, filename string) error {
	return s.c.Head(ctx, filePath(bucket, filename))
}
