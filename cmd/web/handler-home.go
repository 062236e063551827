package main

import (
	"net/http"

	"github.com/normicyte/normicyte/internal/contexthelpers"
	"github.com/normicyte/normicyte/internal/models"
)

type caseListItem struct {
	Case   models.Case
	Status models.ProgressStatus
	Score  *int
}

type homeTemplateData struct {
	BaseTemplateData

	Cases []caseListItem
}

// home lists the case catalog with the signed-in player's progress per case.
func (app *application) home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cases, err := app.catalog.ListCases(ctx)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	items := make([]caseListItem, len(cases))
	for i, caseRecord := range cases {
		items[i] = caseListItem{Case: caseRecord}
	}

	if contexthelpers.IsAuthenticated(ctx) {
		userID := contexthelpers.AuthenticatedUserID(ctx)
		history, err := app.investigations.History(ctx, userID)
		if err != nil {
			app.serverError(w, r, err)
			return
		}
		byCase := make(map[string]models.CaseProgress, len(history))
		for _, progress := range history {
			byCase[progress.CaseID] = progress
		}
		for i := range items {
			if progress, ok := byCase[items[i].Case.ID]; ok {
				items[i].Status = progress.Status
				items[i].Score = progress.Score
			}
		}
	}

	data := homeTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Cases:            items,
	}
	app.render(w, r, http.StatusOK, "home", data)
}
