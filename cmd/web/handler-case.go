package main

import (
	"net/http"

	"github.com/normicyte/normicyte/internal/catalog"
	"github.com/normicyte/normicyte/internal/contexthelpers"
	"github.com/normicyte/normicyte/internal/errors"
	"github.com/normicyte/normicyte/internal/models"
	"github.com/normicyte/normicyte/internal/repositories"
)

type caseDetailTemplateData struct {
	BaseTemplateData

	Case          models.Case
	Evidence      []models.Evidence
	QuestionCount int
	Progress      *models.CaseProgress
}

// caseDetail shows the briefing and the evidence for one case.
func (app *application) caseDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := r.PathValue("caseID")

	caseRecord, err := app.catalog.GetCase(ctx, caseID)
	if errors.Is(err, catalog.ErrCaseNotFound) {
		app.notFound(w, r)
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	evidence, err := app.catalog.CaseEvidence(ctx, caseID)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	questions, err := app.catalog.CaseQuestions(ctx, caseID)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	data := caseDetailTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Case:             *caseRecord,
		Evidence:         evidence,
		QuestionCount:    len(questions),
	}

	if contexthelpers.IsAuthenticated(ctx) {
		progress, err := app.investigations.Get(ctx, contexthelpers.AuthenticatedUserID(ctx), caseID)
		if err != nil && !errors.Is(err, repositories.ErrProgressNotFound) {
			app.serverError(w, r, err)
			return
		}
		data.Progress = progress
	}

	app.render(w, r, http.StatusOK, "case", data)
}
