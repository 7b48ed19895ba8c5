package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/cardscan/internal/framesource"
	"github.com/MeKo-Tech/cardscan/internal/geometry"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
	"github.com/MeKo-Tech/cardscan/internal/server"
	"github.com/MeKo-Tech/cardscan/internal/testutil"
)

// HTTPTestServerWrapper runs a server.Server backed by a live pipeline
// with scripted detectors.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
	Mailbox    *framesource.Mailbox

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// scriptedDetectors returns a locator that always finds one line and a
// recognizer that reads "427" from it.
func scriptedDetectors() (*testutil.ScriptedDetector, *testutil.ScriptedDetector) {
	locator := testutil.Always(testutil.Box(geometry.SpaceLocatorInput, "", 0, 0.9, 40, 60, 240, 80))
	recognizer := testutil.Always(
		testutil.Digit("7", 400),
		testutil.Digit("4", 100),
		testutil.Digit("2", 250),
	)
	return locator, recognizer
}

// startTestHTTPServer wires mailbox, pipeline and server the way serve does.
func (testCtx *TestContext) startTestHTTPServer(uploadRate float64, uploadBurst int) error {
	if testCtx.HTTPTestServer != nil {
		return errors.New("test server already running")
	}

	mailbox := framesource.NewMailbox()
	srv := server.NewServer(server.Config{
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		ModelsDir:   testCtx.TempPath("models"),
		Version:     "test",
		FrameFormat: pixbuf.FormatRGBA32,
		Frames:      mailbox,
		UploadRate:  uploadRate,
		UploadBurst: uploadBurst,
	})

	locator, recognizer := scriptedDetectors()
	p, err := pipeline.NewBuilder().
		WithConfig(pipeline.DefaultConfig()).
		WithIntervals(0, 0).
		WithLocator(locator).
		WithRecognizer(recognizer).
		WithPresenter(srv).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	ctx, cancel := context.WithCancel(context.Background())
	wrapper := &HTTPTestServerWrapper{
		Server:     httptest.NewServer(mux),
		TestServer: srv,
		Mailbox:    mailbox,
		cancel:     cancel,
	}
	wrapper.wg.Add(1)
	go func() {
		defer wrapper.wg.Done()
		_ = p.Run(ctx, mailbox, srv.Record)
	}()

	testCtx.HTTPTestServer = wrapper
	return nil
}

func (testCtx *TestContext) stopTestHTTPServer() error {
	w := testCtx.HTTPTestServer
	if w == nil {
		return nil
	}
	w.Server.Close()
	err := w.TestServer.Close()
	w.cancel()
	w.Mailbox.Close()
	w.wg.Wait()
	testCtx.HTTPTestServer = nil
	return err
}

func (testCtx *TestContext) aRunningScanServer() error {
	return testCtx.startTestHTTPServer(0, 0)
}

func (testCtx *TestContext) aRunningScanServerLimitedTo(burst int) error {
	// One token per hour leaves only the burst within a scenario.
	return testCtx.startTestHTTPServer(1.0/3600, burst)
}

func (testCtx *TestContext) serverURL(path string) (string, error) {
	if testCtx.HTTPTestServer == nil {
		return "", errors.New("test server not running")
	}
	return testCtx.HTTPTestServer.Server.URL + path, nil
}

// recordResponse stores status, body and headers of resp.
func (testCtx *TestContext) recordResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for name := range resp.Header {
		testCtx.LastHTTPHeaders[name] = resp.Header.Get(name)
	}
	return nil
}

func (testCtx *TestContext) iSendAGETRequestTo(path string) error {
	url, err := testCtx.serverURL(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return testCtx.recordResponse(resp)
}

// iUploadACardFrame posts a synthetic card photo to /api/frames.
func (testCtx *TestContext) iUploadACardFrame() error {
	url, err := testCtx.serverURL("/api/frames")
	if err != nil {
		return err
	}

	var img bytes.Buffer
	if err := png.Encode(&img, testutil.GenerateCardImage(testutil.DefaultCardImageConfig())); err != nil {
		return err
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("frame", "card.png")
	if err != nil {
		return err
	}
	if _, err := part.Write(img.Bytes()); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST /api/frames: %w", err)
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) iUploadCardFrames(n int) error {
	for range n {
		if err := testCtx.iUploadACardFrame(); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("expected status %d, got %d\nBody: %s", code, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != value {
		return fmt.Errorf("header %s = %q, want %q", name, got, value)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// theLatestResultShouldReportDigits polls /api/latest until the pipeline
// has recorded a result with the given digits.
func (testCtx *TestContext) theLatestResultShouldReportDigits(want string) error {
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := testCtx.iSendAGETRequestTo("/api/latest"); err != nil {
			return err
		}
		if testCtx.LastHTTPStatusCode == http.StatusOK {
			var latest server.LatestResponse
			if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &latest); err != nil {
				return fmt.Errorf("invalid latest response: %w", err)
			}
			if latest.Result != nil && latest.Result.Digits.String() == want {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("latest result never reported digits %q\nLast body (%d): %s",
				want, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func (testCtx *TestContext) theRetryAfterHeaderShouldBePositive() error {
	v, err := strconv.Atoi(testCtx.LastHTTPHeaders["Retry-After"])
	if err != nil {
		return fmt.Errorf("Retry-After missing or not an integer: %w", err)
	}
	if v <= 0 {
		return fmt.Errorf("Retry-After = %d, want > 0", v)
	}
	return nil
}

// RegisterServerSteps registers steps for the in-process HTTP server.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a running scan server$`, testCtx.aRunningScanServer)
	sc.Step(`^a running scan server allowing (\d+) uploads$`, testCtx.aRunningScanServerLimitedTo)
	sc.Step(`^I send a GET request to "([^"]*)"$`, testCtx.iSendAGETRequestTo)
	sc.Step(`^I upload a card frame$`, testCtx.iUploadACardFrame)
	sc.Step(`^I upload (\d+) card frames$`, testCtx.iUploadCardFrames)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the latest result should report digits "([^"]*)"$`, testCtx.theLatestResultShouldReportDigits)
	sc.Step(`^the Retry-After header should be positive$`, testCtx.theRetryAfterHeaderShouldBePositive)
}
