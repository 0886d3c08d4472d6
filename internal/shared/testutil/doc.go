// Package testutil holds helpers shared by the package tests.
//
// BufferedSlogHandler captures slog records so a test can assert on what
// was logged:
//
//	logger, logs := testutil.NewTestLogger(t)
//	wb := workbench.New("s1", engine, workbench.Options{Logger: logger})
//	...
//	testutil.AssertLogContains(t, logs, slog.LevelInfo, "Analysis started")
//	testutil.AssertNoErrors(t, logs)
//
// EngineServer is an httptest stand-in for the analysis engine. Responses
// are scripted per path, and every request is recorded with its decoded
// JSON body or multipart file names:
//
//	engine := testutil.NewEngineServer(t)
//	engine.RespondJSON("/api/analyze", http.StatusOK, testutil.AnalysisPayload())
//	...
//	req := engine.Last(t, "/api/analyze")
package testutil
