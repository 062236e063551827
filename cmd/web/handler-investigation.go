package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/normicyte/normicyte/internal/catalog"
	"github.com/normicyte/normicyte/internal/contexthelpers"
	"github.com/normicyte/normicyte/internal/errors"
	"github.com/normicyte/normicyte/internal/investigation"
	"github.com/normicyte/normicyte/internal/models"
	"github.com/normicyte/normicyte/internal/repositories"
)

type questionView struct {
	Index    int
	Question models.Question
	Answer   models.Answer
	Answered bool
}

type investigateTemplateData struct {
	BaseTemplateData

	Case          models.Case
	Progress      models.CaseProgress
	Questions     []questionView
	Current       *questionView
	ReviewReady   bool
	QuestionCount int
}

// startInvestigation opens (or resumes) the investigation and sends the player
// to the first unanswered question.
func (app *application) startInvestigation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := r.PathValue("caseID")
	userID := contexthelpers.AuthenticatedUserID(ctx)

	if _, err := app.investigations.Start(ctx, userID, caseID); err != nil {
		if errors.Is(err, catalog.ErrCaseNotFound) {
			app.notFound(w, r)
			return
		}
		app.serverError(w, r, err)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/cases/%s/investigate", caseID), http.StatusSeeOther)
}

func (app *application) investigateData(r *http.Request) (*investigateTemplateData, error) {
	ctx := r.Context()
	caseID := r.PathValue("caseID")
	userID := contexthelpers.AuthenticatedUserID(ctx)

	caseRecord, err := app.catalog.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	questions, err := app.catalog.CaseQuestions(ctx, caseID)
	if err != nil {
		return nil, err
	}
	progress, err := app.investigations.Get(ctx, userID, caseID)
	if err != nil {
		return nil, err
	}

	views := make([]questionView, len(questions))
	for i, question := range questions {
		answer := progress.Response(i)
		views[i] = questionView{
			Index:    i,
			Question: question,
			Answer:   answer,
			Answered: !answer.IsEmpty(),
		}
	}

	data := investigateTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Case:             *caseRecord,
		Progress:         *progress,
		Questions:        views,
		QuestionCount:    len(questions),
	}

	// An explicit q parameter lets the player revisit an earlier question.
	// Going backward never persists anything by itself.
	cursor := progress.CurrentQuestion
	if q := r.URL.Query().Get("q"); q != "" {
		if parsed, err := strconv.Atoi(q); err == nil && parsed >= 0 && parsed < len(questions) {
			cursor = parsed
		}
	}
	if cursor < len(questions) {
		data.Current = &views[cursor]
	} else {
		data.ReviewReady = true
	}
	return &data, nil
}

// investigate renders the current question, or the answered/skipped summary
// once the player has walked past the last question.
func (app *application) investigate(w http.ResponseWriter, r *http.Request) {
	data, err := app.investigateData(r)
	if errors.Is(err, repositories.ErrProgressNotFound) {
		// Not started yet, back to the briefing.
		http.Redirect(w, r, fmt.Sprintf("/cases/%s", r.PathValue("caseID")), http.StatusSeeOther)
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if data.Progress.Status == models.ProgressStatusReviewed {
		http.Redirect(w, r, fmt.Sprintf("/cases/%s/verdict", data.Case.ID), http.StatusSeeOther)
		return
	}
	app.render(w, r, http.StatusOK, "investigate", data)
}

// parseAnswerForm builds the tagged answer from the submitted form. The form
// field set depends on the question type.
func parseAnswerForm(r *http.Request, questionType models.QuestionType) models.Answer {
	switch questionType {
	case models.QuestionTypeMultipleChoice, models.QuestionTypeYesNoReasoning:
		return models.SingleChoice(r.PostForm.Get("answer"))
	case models.QuestionTypeMultiSelect:
		return models.MultiChoice(r.PostForm["answer"])
	case models.QuestionTypeShortAnswer:
		return models.FreeText(r.PostForm.Get("answer"))
	default:
		return models.Unanswered()
	}
}

// recordAnswer persists one answer and advances to the next question. With
// htmx the question block swaps in place, otherwise the whole page reloads.
func (app *application) recordAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := r.PathValue("caseID")
	userID := contexthelpers.AuthenticatedUserID(ctx)

	if err := r.ParseForm(); err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(r.PostForm.Get("index"))
	if err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}

	questions, err := app.catalog.CaseQuestions(ctx, caseID)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if index < 0 || index >= len(questions) {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}

	answer := parseAnswerForm(r, questions[index].QuestionType)
	_, err = app.investigations.RecordAnswer(ctx, userID, caseID, index, answer)
	switch {
	case errors.Is(err, investigation.ErrEmptyAnswer):
		app.clientError(w, r, http.StatusUnprocessableEntity)
		return
	case errors.Is(err, investigation.ErrQuestionOutOfRange):
		app.clientError(w, r, http.StatusBadRequest)
		return
	case errors.Is(err, investigation.ErrAlreadyReviewed):
		app.clientError(w, r, http.StatusConflict)
		return
	case err != nil:
		app.serverError(w, r, err)
		return
	}

	h := app.htmx.NewHandler(w, r)
	if h.IsHxRequest() {
		data, err := app.investigateData(r)
		if err != nil {
			app.serverError(w, r, err)
			return
		}
		app.renderPartial(w, r, "investigate", "question", data)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/cases/%s/investigate", caseID), http.StatusSeeOther)
}

// submitInvestigation moves the case to the answered/skipped review step.
func (app *application) submitInvestigation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := r.PathValue("caseID")
	userID := contexthelpers.AuthenticatedUserID(ctx)

	_, err := app.investigations.Submit(ctx, userID, caseID)
	if errors.Is(err, investigation.ErrAlreadyReviewed) {
		http.Redirect(w, r, fmt.Sprintf("/cases/%s/verdict", caseID), http.StatusSeeOther)
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/cases/%s/investigate", caseID), http.StatusSeeOther)
}

type verdictTemplateData struct {
	BaseTemplateData

	Case     models.Case
	Score    int
	Verdict  models.Verdict
	Feedback []models.QuestionFeedback
	Profile  models.Profile
}

// reviewInvestigation grades the case. Exactly one submission wins; a
// duplicate lands on the verdict page of the winning one.
func (app *application) reviewInvestigation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := r.PathValue("caseID")
	userID := contexthelpers.AuthenticatedUserID(ctx)

	_, err := app.investigations.Review(ctx, userID, caseID)
	if err != nil && !errors.Is(err, investigation.ErrAlreadyReviewed) {
		app.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/cases/%s/verdict", caseID), http.StatusSeeOther)
}

// verdict shows the graded outcome with per-question feedback.
func (app *application) verdict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := r.PathValue("caseID")
	userID := contexthelpers.AuthenticatedUserID(ctx)

	caseRecord, err := app.catalog.GetCase(ctx, caseID)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	progress, err := app.investigations.Get(ctx, userID, caseID)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if progress.Status != models.ProgressStatusReviewed || progress.Score == nil || progress.Verdict == nil {
		http.Redirect(w, r, fmt.Sprintf("/cases/%s/investigate", caseID), http.StatusSeeOther)
		return
	}
	profile, err := app.profiles.Get(ctx, userID)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	data := verdictTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Case:             *caseRecord,
		Score:            *progress.Score,
		Verdict:          *progress.Verdict,
		Feedback:         progress.Feedback,
		Profile:          *profile,
	}
	app.render(w, r, http.StatusOK, "verdict", data)
}
