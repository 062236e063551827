package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/normicyte/normicyte/internal/catalog"
	"github.com/normicyte/normicyte/internal/contexthelpers"
	"github.com/normicyte/normicyte/internal/errors"
)

// mentorStreamID scopes one advice stream to a single player and case so
// concurrent investigations never cross wires.
func mentorStreamID(userID []byte, caseID string) string {
	return hex.EncodeToString(userID) + ":" + caseID
}

// askMentor starts an advice stream for the player's question. The tokens are
// published to the broker and consumed by streamMentor over SSE.
func (app *application) askMentor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := r.PathValue("caseID")
	userID := contexthelpers.AuthenticatedUserID(ctx)

	if err := r.ParseForm(); err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	question := strings.TrimSpace(r.PostForm.Get("question"))
	if question == "" {
		app.clientError(w, r, http.StatusUnprocessableEntity)
		return
	}

	caseRecord, err := app.catalog.GetCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, catalog.ErrCaseNotFound) {
			app.notFound(w, r)
			return
		}
		app.serverError(w, r, err)
		return
	}

	// The advice outlives this request, so the stream runs on the server
	// lifetime context rather than the request context.
	tokens, err := app.mentorAdvisor.Advise(app.baseContext, caseRecord, question)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	streamID := mentorStreamID(userID, caseID)
	out := make(chan string)
	app.mentorBroker.Publish(streamID, out)
	go func() {
		defer app.mentorBroker.Unpublish(streamID)
		for token := range tokens {
			select {
			case out <- token:
			case <-app.baseContext.Done():
				return
			}
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

// streamMentor relays the published advice tokens to the browser as
// server-sent events. The stream ends when the advisor finishes.
func (app *application) streamMentor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := r.PathValue("caseID")
	userID := contexthelpers.AuthenticatedUserID(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		app.serverError(w, r, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var tokens chan string
	select {
	case <-ctx.Done():
		return
	case tokens = <-app.mentorBroker.Subscribe(mentorStreamID(userID, caseID)):
	}
	if tokens == nil {
		// The producer unpublished before we got a channel.
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case token, ok := <-tokens:
			if !ok {
				if _, err := fmt.Fprint(w, "event: done\ndata:\n\n"); err != nil {
					app.logger.LogAttrs(ctx, slog.LevelWarn, "write SSE terminator", errors.SlogError(err))
				}
				flusher.Flush()
				return
			}
			for _, line := range strings.Split(token, "\n") {
				if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
					app.logger.LogAttrs(ctx, slog.LevelWarn, "write SSE token", errors.SlogError(err))
					return
				}
			}
			if _, err := fmt.Fprint(w, "\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
