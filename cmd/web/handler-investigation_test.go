package main

import (
	"net/http"
	url2 "net/url"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

const testCasePath = "/cases/payroll-phish"

// answerQuestion posts one answer from the investigation page.
func answerQuestion(t *testing.T, srv *testServer, index string, values url2.Values) {
	t.Helper()
	values.Set("index", index)
	resp := srv.PostForm(t, testCasePath+"/investigate", testCasePath+"/answer", values)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func Test_application_investigationFlow(t *testing.T) {
	srv := startTestServer(t, os.Stdout, testLookupEnv)
	srv.Register(t)

	// The case page offers to open the investigation.
	doc := srv.GetDoc(t, testCasePath)
	require.Equal(t, 1, doc.Find("form[action='/cases/payroll-phish/start']").Length())
	require.Contains(t, doc.Text(), "nor-micorp.com")

	resp := srv.PostForm(t, testCasePath, testCasePath+"/start", nil)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Starting again is a no-op and lands back on the investigation.
	resp = srv.PostForm(t, testCasePath, testCasePath+"/start", nil)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc = srv.GetDoc(t, testCasePath+"/investigate")
	require.Contains(t, doc.Text(), "Question 1 of 5")

	// Four correct answers, the last question left skipped.
	answerQuestion(t, &srv, "0", url2.Values{"answer": {"Business email compromise"}})
	answerQuestion(t, &srv, "1", url2.Values{"answer": {"No"}})
	answerQuestion(t, &srv, "2", url2.Values{"answer": {
		"Lookalike sender domain",
		"Recently registered domain",
		"Recently opened destination account",
	}})
	answerQuestion(t, &srv, "3", url2.Values{"answer": {"HR should call Mia to verify the request."}})

	// An empty answer is rejected.
	resp = srv.PostForm(t, testCasePath+"/investigate", testCasePath+"/answer",
		url2.Values{"index": {"4"}, "answer": {""}})
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Walk past the last question to reach the review step.
	doc = srv.GetDoc(t, testCasePath+"/investigate?q=4")
	require.Contains(t, doc.Text(), "Question 5 of 5")
	answerQuestion(t, &srv, "4", url2.Values{"answer": {"It does not matter"}})

	doc = srv.GetDoc(t, testCasePath + "/investigate")
	require.Equal(t, 1, doc.Find("form[action='/cases/payroll-phish/review']").Length())

	resp = srv.PostForm(t, testCasePath+"/investigate", testCasePath+"/review", nil)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Four of five correct rounds to 80, which counts as solved.
	doc = srv.GetDoc(t, testCasePath + "/verdict")
	require.Contains(t, doc.Text(), "Score: 80%")
	require.Contains(t, doc.Text(), "Case closed")
	require.Equal(t, 4, doc.Find(".feedback .correct").Length())
	require.Equal(t, 1, doc.Find(".feedback .incorrect").Length())

	// Review is graded exactly once; a replay lands on the same verdict.
	resp = srv.PostForm(t, testCasePath+"/verdict", testCasePath+"/review", nil)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc = srv.GetDoc(t, testCasePath + "/verdict")
	require.Contains(t, doc.Text(), "Score: 80%")

	// The profile reflects the solved case.
	doc = srv.GetDoc(t, "/profile")
	require.Contains(t, doc.Text(), "Cases solved")
	require.Contains(t, doc.Text(), "120 XP")
	require.Equal(t, 1, doc.Find(".badges li.earned").Length())

	// The home page shows the reviewed status.
	doc = srv.GetDoc(t, "/")
	require.Contains(t, doc.Find(".case-list").Text(), "reviewed")
}

func Test_application_investigationRequiresAuthentication(t *testing.T) {
	srv := startTestServer(t, os.Stdout, testLookupEnv)

	client := http.Client{
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(srv.url + testCasePath + "/investigate")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
}
