package model

import (
	"encoding/json"
	"time"
)

// Question types. The set is closed: owners pick one of these, nothing else.
const (
	TypeText           = "text"
	TypeMultipleChoice = "multiple_choice"
	TypeCheckbox       = "checkbox"
	TypeNumber         = "number"
)

const (
	AccessPublic  = "public"
	AccessPrivate = "private"
)

const (
	RoleAdmin = 1
	RoleUser  = 2
)

var Categories = []string{"education", "health", "technology", "entertainment", "other"}

type Template struct {
	ID          int        `json:"id,omitempty"`
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description" validate:"required"`
	AccessType  string     `json:"accessType"`
	Category    string     `json:"category"`
	CreatedBy   int        `json:"createdBy,omitempty"`
	Author      string     `json:"author,omitempty"`
	Tags        []string   `json:"tags"`
	Questions   []Question `json:"questions"`

	// Private templates only: users granted access besides the creator.
	AuthorizedUsers []int `json:"authorizedUsers,omitempty"`
}

type Question struct {
	ID           int      `json:"id,omitempty"`
	TemplateID   int      `json:"templateId,omitempty"`
	QuestionText string   `json:"questionText"`
	QuestionType string   `json:"questionType"`
	Options      []string `json:"options,omitempty"`
	MinValue     *int     `json:"minValue,omitempty"`
	MaxValue     *int     `json:"maxValue,omitempty"`
}

type Form struct {
	ID             int       `json:"id"`
	UserID         int       `json:"userId"`
	TemplateID     int       `json:"templateId"`
	SubmissionTime time.Time `json:"submissionTime"`
	User           string    `json:"user,omitempty"`
	Template       string    `json:"template,omitempty"`
	Answers        []Answer  `json:"answers"`
}

type Answer struct {
	ID         int             `json:"id,omitempty"`
	FormID     int             `json:"formId,omitempty"`
	QuestionID int             `json:"questionId"`
	Response   json.RawMessage `json:"response"`
}

type User struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Status string `json:"status"`
	RoleID int    `json:"roleId"`
}

// StatsReport is the on-demand aggregate over every answer submitted
// against one template's questions.
type StatsReport struct {
	TotalForms         int               `json:"totalForms"`
	TotalAnswers       int               `json:"totalAnswers"`
	MostRepeatedAnswer string            `json:"mostRepeatedAnswer,omitempty"`
	MostChosenAnswer   string            `json:"mostChosenAnswer,omitempty"`
	OptionPercentages  map[string]string `json:"optionPercentages,omitempty"`
}
