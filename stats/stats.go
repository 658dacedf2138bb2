// Package stats computes the aggregate report for one template's
// submissions. The aggregation is pure over rows the caller already
// loaded; nothing is precomputed or cached, every request pays
// O(answers) for its template.
package stats

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quizme/quizme/model"
)

// ErrNoSubmissions is reported when a template has no forms at all: an
// empty report would be indistinguishable from a template whose answers
// were all blank.
var ErrNoSubmissions = errors.New("no forms have been submitted for this template")

// counter tallies string keys while remembering first-seen order, so
// that ties on the maximum count resolve deterministically to the key
// encountered first.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: map[string]int{}}
}

func (c *counter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *counter) max() string {
	best := ""
	bestCount := 0
	for _, key := range c.order {
		if c.counts[key] > bestCount {
			best, bestCount = key, c.counts[key]
		}
	}
	return best
}

// Compute builds the report for a template from its current questions,
// every answer referencing those questions, and the number of forms
// submitted against it.
func Compute(questions []model.Question, answers []model.Answer, totalForms int) (model.StatsReport, error) {
	if totalForms == 0 {
		return model.StatsReport{}, ErrNoSubmissions
	}

	typeByQuestion := make(map[int]string, len(questions))
	for _, q := range questions {
		typeByQuestion[q.ID] = q.QuestionType
	}

	texts := newCounter()
	choices := newCounter()
	totalChoiceAnswers := 0

	for _, a := range answers {
		switch typeByQuestion[a.QuestionID] {
		case model.TypeText:
			texts.add(literal(a.Response))
		case model.TypeMultipleChoice:
			totalChoiceAnswers++
			for _, opt := range resolveOptions(a.Response) {
				choices.add(opt)
			}
		}
	}

	report := model.StatsReport{
		TotalForms:         totalForms,
		TotalAnswers:       len(answers),
		MostRepeatedAnswer: texts.max(),
		MostChosenAnswer:   choices.max(),
	}
	if totalChoiceAnswers > 0 {
		report.OptionPercentages = make(map[string]string, len(choices.counts))
		for _, opt := range choices.order {
			report.OptionPercentages[opt] = percent(choices.counts[opt], totalChoiceAnswers)
		}
	}
	return report, nil
}

func percent(count, total int) string {
	return fmt.Sprintf("%.2f%%", float64(count)*100/float64(total))
}

// literal renders a stored response as its plain string form: text
// answers are stored as JSON strings, so unwrap the quoting; anything
// else keeps its raw encoding as the frequency key.
func literal(response json.RawMessage) string {
	var s string
	if err := json.Unmarshal(response, &s); err == nil {
		return s
	}
	return string(response)
}

// resolveOptions recovers the chosen option(s) from a stored response.
// Responses are normally single option strings, but arrays are accepted
// too so that rows written while a question was still a checkbox keep
// counting after a migration to multiple choice.
func resolveOptions(response json.RawMessage) []string {
	var many []string
	if err := json.Unmarshal(response, &many); err == nil {
		return many
	}
	var one string
	if err := json.Unmarshal(response, &one); err == nil {
		return []string{one}
	}
	return []string{string(response)}
}
