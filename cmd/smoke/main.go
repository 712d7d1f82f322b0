package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type createResp struct {
	EvaluationID string `json:"evaluation_id"`
	Status       string `json:"status"`
	UploadToken  string `json:"upload_token"`
}

type evaluationResp struct {
	EvaluationID string          `json:"evaluation_id"`
	Status       string          `json:"status"`
	PassStatus   string          `json:"pass_status"`
	Percentage   *float64        `json:"percentage"`
	Error        string          `json:"error"`
	Report       json.RawMessage `json:"report"`
}

const sampleTranscript = `Hi, I'm going to walk you through our new analytics dashboard.
First, we log in and land on the overview page, which shows weekly active users,
revenue and churn side by side. Clicking a chart drills down into the segment view,
where you can filter by region or plan. The export button produces a CSV that opens
directly in your spreadsheet tool. Customers told us this saves them about two hours
every Monday, because they no longer stitch three reports together by hand.`

func main() {
	base := envOr("API_BASE_URL", "http://localhost:8000")
	token := envOr("API_TOKEN", "dev-secret-token")

	baseFlag := flag.String("base", base, "API base URL (e.g., http://localhost:8000)")
	tokenFlag := flag.String("token", token, "API token")
	rubricFlag := flag.String("rubric", "", "rubric name (default rubric when empty)")
	audioFlag := flag.String("audio", "", "upload this audio file instead of sending a transcript")
	wait := flag.Duration("wait", 3*time.Minute, "How long to poll for the evaluation result")
	flag.Parse()

	httpc := &http.Client{Timeout: 2 * time.Minute}

	// 1) Create evaluation
	body := map[string]any{
		"rubric": *rubricFlag,
		"submitter": map[string]string{
			"first_name":   "Smoke",
			"last_name":    "Tester",
			"partner_name": "Example Co",
		},
	}
	if *audioFlag == "" {
		body["transcript"] = sampleTranscript
	}
	var created createResp
	if err := postJSON(httpc, *baseFlag+"/evaluations", *tokenFlag, body, &created); err != nil {
		fatalf("create evaluation: %v", err)
	}
	fmt.Printf("✅ Created evaluation: id=%s status=%s\n", created.EvaluationID, created.Status)

	// 2) Upload audio (with upload token)
	if *audioFlag != "" {
		if err := uploadAudio(httpc, fmt.Sprintf("%s/evaluations/%s/audio", *baseFlag, created.EvaluationID), created.UploadToken, *audioFlag); err != nil {
			fatalf("upload audio: %v", err)
		}
		fmt.Printf("✅ Uploaded %s\n", filepath.Base(*audioFlag))
	}

	// 3) Poll until the worker finishes
	deadline := time.Now().Add(*wait)
	var ev evaluationResp
	for {
		if err := getJSON(httpc, fmt.Sprintf("%s/evaluations/%s", *baseFlag, created.EvaluationID), *tokenFlag, &ev); err != nil {
			fatalf("get evaluation: %v", err)
		}
		if ev.Status == "completed" || ev.Status == "failed" {
			break
		}
		if time.Now().After(deadline) {
			fatalf("evaluation still %s after %s", ev.Status, *wait)
		}
		time.Sleep(3 * time.Second)
	}

	if ev.Status == "failed" {
		fatalf("evaluation failed: %s", ev.Error)
	}
	pct := 0.0
	if ev.Percentage != nil {
		pct = *ev.Percentage
	}
	fmt.Printf("✅ Evaluation complete: status=%s percentage=%.1f%%\n", ev.PassStatus, pct)
	fmt.Printf("🎉 Smoke run OK. EvaluationID=%s\n", created.EvaluationID)
}

// --- helpers ---

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func postJSON(c *http.Client, url, bearer string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return post(c, url, bearer, "application/json", bytes.NewReader(b), out)
}

func uploadAudio(c *http.Client, url, uploadToken, path string) error {
	if uploadToken == "" {
		return errors.New("upload token required")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return post(c, url, uploadToken, mw.FormDataContentType(), &buf, nil)
}

func post(c *http.Client, url, bearer, contentType string, r io.Reader, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, r)
	req.Header.Set("Content-Type", contentType)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("POST %s -> %d: %s", url, res.StatusCode, string(b))
	}
	if out != nil {
		return json.NewDecoder(res.Body).Decode(out)
	}
	return nil
}

func getJSON(c *http.Client, url, bearer string, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("GET %s -> %d: %s", url, res.StatusCode, string(b))
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func fatalf(format string, args ...any) {
	fmt.Printf("❌ "+format+"\n", args...)
	os.Exit(1)
}
