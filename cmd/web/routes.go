package main

import (
	"net/http"

	"github.com/justinas/alice"
	"github.com/normicyte/normicyte/ui"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	fileServer := http.FileServer(http.FS(ui.Files))
	mux.Handle("GET /static/", alice.New(cacheForeverHeaders).Then(fileServer))

	base := alice.New(app.sessionManager.LoadAndSave, noSurf, app.webAuthnHandler.AuthenticateMiddleware, commonContext)
	authenticated := base.Append(app.requireAuthentication)
	// scs needs a different loader for SSE, the default one buffers the response.
	stream := alice.New(app.serverSentEventMiddleware, app.webAuthnHandler.AuthenticateMiddleware, commonContext)

	mux.Handle("GET /{$}", base.ThenFunc(app.home))
	mux.Handle("GET /cases/{caseID}", base.ThenFunc(app.caseDetail))

	mux.Handle("POST /cases/{caseID}/start", authenticated.ThenFunc(app.startInvestigation))
	mux.Handle("GET /cases/{caseID}/investigate", authenticated.ThenFunc(app.investigate))
	mux.Handle("POST /cases/{caseID}/answer", authenticated.ThenFunc(app.recordAnswer))
	mux.Handle("POST /cases/{caseID}/submit", authenticated.ThenFunc(app.submitInvestigation))
	mux.Handle("POST /cases/{caseID}/review", authenticated.ThenFunc(app.reviewInvestigation))
	mux.Handle("GET /cases/{caseID}/verdict", authenticated.ThenFunc(app.verdict))

	mux.Handle("GET /profile", authenticated.ThenFunc(app.profile))

	mux.Handle("POST /cases/{caseID}/mentor", authenticated.ThenFunc(app.askMentor))
	mux.Handle("GET /cases/{caseID}/mentor/stream", stream.ThenFunc(app.streamMentor))

	mux.Handle("POST /api/registration/start", base.ThenFunc(app.beginRegistration))
	mux.Handle("POST /api/registration/finish", base.ThenFunc(app.finishRegistration))
	mux.Handle("POST /api/login/start", base.ThenFunc(app.beginLogin))
	mux.Handle("POST /api/login/finish", base.ThenFunc(app.finishLogin))
	mux.Handle("POST /api/logout", base.ThenFunc(app.logout))
	mux.Handle("GET /api/healthy", base.ThenFunc(app.healthy))

	return app.recoverPanic(app.logRequest(app.secureHeaders(mux)))
}
