package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Time accepts RFC 3339 timestamps and plain dates, which the backend mixes.
type Time struct {
	time.Time
}

func (t *Time) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return &time.ParseError{Layout: time.RFC3339, Value: s, Message: ": unsupported date"}
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// User is the portal's projection of a backend account.
type User struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Role              string `json:"role"`
	IsFirstLogin      bool   `json:"isFirstLogin"`
	IsActive          bool   `json:"isActive"`
	IsFromInstitution bool   `json:"isFromInstitution"`
	CreatedAt         Time   `json:"createdAt"`
}

type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type RegisterRequest struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	IsFromInstitution bool   `json:"isFromInstitution"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

const (
	EventStatusOpen       = "OPEN"
	EventStatusEvaluation = "IN_EVALUATION"
	EventStatusClosed     = "CLOSED"
)

type Event struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Description        string      `json:"description"`
	Banner             *FileRef    `json:"banner,omitempty"`
	Status             string      `json:"status"`
	StartDate          Time        `json:"startDate"`
	EndDate            Time        `json:"endDate"`
	SubmissionDeadline Time        `json:"submissionDeadline"`
	EvaluationDeadline Time        `json:"evaluationDeadline"`
	ChecklistID        string      `json:"checklistId,omitempty"`
	Checklist          *Checklist  `json:"checklist,omitempty"`
	Coordinator        *UserRef    `json:"coordinator,omitempty"`
	Stats              *EventStats `json:"stats,omitempty"`
}

type EventStats struct {
	Articles  int `json:"articles"`
	Evaluated int `json:"evaluated"`
}

// SubmissionOpen reports whether students can still submit at now.
func (e Event) SubmissionOpen(now time.Time) bool {
	if e.Status != "" && e.Status != EventStatusOpen {
		return false
	}
	return e.SubmissionDeadline.IsZero() || !now.After(e.SubmissionDeadline.Time)
}

type EventInput struct {
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	Banner             *FileRef `json:"banner,omitempty"`
	StartDate          Time     `json:"startDate"`
	EndDate            Time     `json:"endDate"`
	SubmissionDeadline Time     `json:"submissionDeadline"`
	EvaluationDeadline Time     `json:"evaluationDeadline"`
	ChecklistID        string   `json:"checklistId,omitempty"`
	Status             string   `json:"status,omitempty"`
}

const (
	ArticleSubmitted       = "SUBMITTED"
	ArticleUnderEvaluation = "UNDER_EVALUATION"
	ArticleApproved        = "APPROVED"
	ArticleRejected        = "REJECTED"
)

type Article struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	Keywords   []string  `json:"keywords"`
	Status     string    `json:"status"`
	EventID    string    `json:"eventId"`
	Event      *EventRef `json:"event,omitempty"`
	Author     *UserRef  `json:"author,omitempty"`
	File       *FileRef  `json:"file,omitempty"`
	Evaluators []UserRef `json:"evaluators,omitempty"`
	Grade      *float64  `json:"grade,omitempty"`
	CreatedAt  Time      `json:"createdAt"`
	UpdatedAt  Time      `json:"updatedAt"`
}

type EventRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ArticleInput struct {
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
	EventID  string   `json:"eventId"`
	File     *FileRef `json:"file,omitempty"`
}

type AssignEvaluatorsRequest struct {
	EvaluatorIDs []string `json:"evaluatorIds"`
}

type Answer struct {
	QuestionID string `json:"questionId"`
	Value      bool   `json:"value"`
	Comment    string `json:"comment,omitempty"`
}

type Evaluation struct {
	ID        string   `json:"id"`
	ArticleID string   `json:"articleId"`
	Evaluator *UserRef `json:"evaluator,omitempty"`
	Grade     float64  `json:"grade"`
	Comments  string   `json:"comments"`
	Answers   []Answer `json:"answers"`
	IsDraft   bool     `json:"isDraft"`
	CreatedAt Time     `json:"createdAt"`
	UpdatedAt Time     `json:"updatedAt"`
}

type EvaluationInput struct {
	ArticleID string   `json:"articleId"`
	Grade     float64  `json:"grade"`
	Comments  string   `json:"comments"`
	Answers   []Answer `json:"answers"`
}

type Checklist struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

type Question struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Order int    `json:"order"`
}

type ChecklistInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type QuestionInput struct {
	Text  string `json:"text"`
	Order int    `json:"order"`
}

type CreateUserRequest struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Role              string `json:"role"`
	IsFromInstitution bool   `json:"isFromInstitution"`
}

type SetActiveRequest struct {
	IsActive bool `json:"isActive"`
}

// FileRef points at a stored file; the portal serves it under
// /arquivos/{bucket}/{filename}.
type FileRef struct {
	Bucket   string `json:"bucket"`
	Filename string `json:"filename"`
}

func (f FileRef) Path() string {
	if f.Bucket == "" || f.Filename == "" {
		return ""
	}
	return "/arquivos/" + f.Bucket + "/" + f.Filename
}
