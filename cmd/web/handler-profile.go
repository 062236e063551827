package main

import (
	"net/http"

	"github.com/normicyte/normicyte/internal/contexthelpers"
	"github.com/normicyte/normicyte/internal/models"
)

const recentActivityLimit = 20

type badgeView struct {
	Definition models.BadgeDefinition
	Earned     *models.EarnedBadge
}

type profileTemplateData struct {
	BaseTemplateData

	Profile    models.Profile
	Badges     []badgeView
	Activities []models.Activity
}

// profile shows the aggregate stats, the full badge board with earned ones
// highlighted, and the recent activity feed.
func (app *application) profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := contexthelpers.AuthenticatedUserID(ctx)

	profile, err := app.profiles.Get(ctx, userID)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	definitions, err := app.catalog.BadgeDefinitions(ctx)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	earned, err := app.profiles.EarnedBadges(ctx, userID)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	activities, err := app.activities.Recent(ctx, userID, recentActivityLimit)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	earnedByID := make(map[string]models.EarnedBadge, len(earned))
	for _, badge := range earned {
		earnedByID[badge.BadgeID] = badge
	}
	badges := make([]badgeView, len(definitions))
	for i, definition := range definitions {
		badges[i] = badgeView{Definition: definition}
		if earnedBadge, ok := earnedByID[definition.ID]; ok {
			badges[i].Earned = &earnedBadge
		}
	}

	data := profileTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Profile:          *profile,
		Badges:           badges,
		Activities:       activities,
	}
	app.render(w, r, http.StatusOK, "profile", data)
}
