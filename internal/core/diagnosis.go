package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/valter-silva-au/focus/pkg/models"
)

// Question is one diagnosis question. Options are keyed A, B and C.
type Question struct {
	Index   int
	Text    string
	Options [3]string
}

// Choices are the valid answer keys, in option order.
var Choices = []string{"A", "B", "C"}

// Questions is the diagnosis questionnaire.
var Questions = []Question{
	{1, "When you start a new project, you...", [3]string{
		"make a detailed plan first",
		"just start and adjust as you go",
		"start naturally when the mood strikes",
	}},
	{2, "When a deadline is close, you...", [3]string{
		"check the schedule and work through it in order",
		"focus hard and finish it in one go",
		"stay calm and keep your own pace",
	}},
	{3, "When you are interrupted mid-task, you...", [3]string{
		"note where you were so you can pick it up later",
		"ignore the interruption and keep going",
		"accept it and move on to something else",
	}},
	{4, "With several tasks on your plate, you...", [3]string{
		"set priorities and handle them in order",
		"start with the most interesting one",
		"pick whichever fits your mood",
	}},
	{5, "Your ideal workspace is...", [3]string{
		"tidy and organised",
		"a bit messy is fine if you can focus",
		"relaxed and natural",
	}},
	{6, "When learning a new skill, you...", [3]string{
		"learn the basics systematically",
		"learn by doing",
		"start with the parts that interest you",
	}},
	{7, "When it comes to goals, you...", [3]string{
		"set concrete, measurable targets",
		"hit them with short bursts of focus",
		"keep going at a sustainable pace",
	}},
}

// TypeAdvice is the headline and suggestion shown for a productivity type.
type TypeAdvice struct {
	Title   string
	Message string
}

var typeAdvice = map[models.SortType]TypeAdvice{
	models.SortPlanner: {
		Title:   "Planner",
		Message: "Work through your tasks as planned. Check today's priorities first.",
	},
	models.SortSprinter: {
		Title:   "Sprinter",
		Message: "Knock tasks out in short focused bursts. Try a 25-minute session.",
	},
	models.SortFlow: {
		Title:   "Flow",
		Message: "Relax and follow the natural flow of your work. Keep a pace you can sustain.",
	},
}

// AdviceFor returns the advice for t. ok is false when no diagnosis has
// been taken.
func AdviceFor(t models.SortType) (TypeAdvice, bool) {
	a, ok := typeAdvice[t]
	return a, ok
}

// choiceType maps an answer key to the type it scores for.
var choiceType = map[string]models.SortType{
	"A": models.SortPlanner,
	"B": models.SortSprinter,
	"C": models.SortFlow,
}

// Diagnosis walks through the questionnaire one answer at a time.
type Diagnosis struct {
	backend ProfileBackend
	events  EventLogger
	answers []models.DiagnosisAnswer
}

// NewDiagnosis starts an empty questionnaire.
func NewDiagnosis(backend ProfileBackend, events EventLogger) *Diagnosis {
	return &Diagnosis{backend: backend, events: events, answers: make([]models.DiagnosisAnswer, len(Questions))}
}

// Answer records choice for question q (1-based). Re-answering overwrites.
func (d *Diagnosis) Answer(q int, choice string) error {
	if q < 1 || q > len(Questions) {
		return fmt.Errorf("question %d out of range 1..%d: %w", q, len(Questions), ErrInvalidInput)
	}
	choice = strings.ToUpper(strings.TrimSpace(choice))
	if _, ok := choiceType[choice]; !ok {
		return fmt.Errorf("choice %q must be one of %s: %w", choice, strings.Join(Choices, ", "), ErrInvalidInput)
	}
	d.answers[q-1] = models.DiagnosisAnswer{QIndex: q, Choice: choice}
	return nil
}

// Current returns the first unanswered question, or false when all are
// answered.
func (d *Diagnosis) Current() (Question, bool) {
	for i, a := range d.answers {
		if a.QIndex == 0 {
			return Questions[i], true
		}
	}
	return Question{}, false
}

// Done reports whether every question is answered.
func (d *Diagnosis) Done() bool {
	_, pending := d.Current()
	return !pending
}

// Progress returns how many questions are answered and the total.
func (d *Diagnosis) Progress() (answered, total int) {
	for _, a := range d.answers {
		if a.QIndex != 0 {
			answered++
		}
	}
	return answered, len(d.answers)
}

// Answers returns the recorded answers in question order.
func (d *Diagnosis) Answers() []models.DiagnosisAnswer {
	out := make([]models.DiagnosisAnswer, 0, len(d.answers))
	for _, a := range d.answers {
		if a.QIndex != 0 {
			out = append(out, a)
		}
	}
	return out
}

// Submit sends the answers. All questions must be answered.
func (d *Diagnosis) Submit(ctx context.Context) (*models.DiagnosisResult, error) {
	if q, pending := d.Current(); pending {
		return nil, fmt.Errorf("question %d is unanswered: %w", q.Index, ErrInvalidInput)
	}
	res, err := d.backend.SubmitDiagnosis(ctx, d.Answers())
	if err != nil {
		return nil, fmt.Errorf("submitting diagnosis: %w", err)
	}
	logEvent(d.events, EventDiagnosisDone, map[string]any{"main_type": string(res.MainType), "sub_type": res.SubType})
	return res, nil
}

// ParseAnswers reads a compact answer string such as "ABCABCA" or
// "A,B,C,A,B,C,A" into a filled Diagnosis.
func (d *Diagnosis) ParseAnswers(s string) error {
	s = strings.NewReplacer(",", "", " ", "").Replace(s)
	if len(s) != len(Questions) {
		return fmt.Errorf("expected %d answers, got %d: %w", len(Questions), len(s), ErrInvalidInput)
	}
	for i, r := range s {
		if err := d.Answer(i+1, string(r)); err != nil {
			return err
		}
	}
	return nil
}

// LocalScore tallies answers the way the backend does: each A counts for
// planner, B for sprinter and C for flow. The first type with the highest
// count wins; on a tie SubType lists every tied type joined by "/".
func LocalScore(answers []models.DiagnosisAnswer) models.DiagnosisResult {
	scores := make(map[models.SortType]int, len(models.SortTypes))
	for _, a := range answers {
		if t, ok := choiceType[a.Choice]; ok {
			scores[t]++
		}
	}
	best := 0
	for _, t := range models.SortTypes {
		if scores[t] > best {
			best = scores[t]
		}
	}
	var top []string
	for _, t := range models.SortTypes {
		if scores[t] == best {
			top = append(top, string(t))
		}
	}
	res := models.DiagnosisResult{MainType: models.SortType(top[0])}
	if len(top) > 1 {
		res.SubType = strings.Join(top, "/")
	}
	return res
}
