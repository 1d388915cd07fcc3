package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/siherrmann/handbot"
	"github.com/siherrmann/handbot/helper"
	"github.com/siherrmann/handbot/server"
)

const sampleContent1 = `Employee Handbook

All employees are covered by the medical insurance from their first working day.
Office hours are Monday to Friday from 8:00 to 17:00.`

const sampleContent2 = `Remote Work Policy

Employees may work remotely two days per week with approval from their manager.
Remote work requires a secure VPN connection and a company laptop.`

func main() {
	ctx := context.Background()

	// Write the sample documents
	dir, err := os.MkdirTemp("", "handbot-advanced")
	if err != nil {
		log.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)
	for name, content := range map[string]string{"handbook.txt": sampleContent1, "remote.txt": sampleContent2} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			log.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	// Memory store, static identities and a file request log, no database needed
	config := helper.DefaultConfiguration()
	config.Documents.Path = dir
	config.Documents.Chunker = "character"
	config.Documents.ChunkSize = 200
	config.Documents.ChunkOverlap = 40
	config.Identity.Backend = "static"
	config.Identity.Employees = []helper.EmployeeCredentials{
		{EmployeeID: "E100", IDNumber: "0801199012345", EmployeeCode: "12345", HireDate: "2015-03-09"},
	}
	config.RequestLog.Path = filepath.Join(dir, "request_log.jsonl")
	config.LLM.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	if config.LLM.OpenAI.APIKey == "" {
		config.LLM.Backend = "local"
	}

	h, err := handbot.New(ctx, config)
	if err != nil {
		log.Fatalf("Failed to create handbot: %v", err)
	}
	defer h.Close()

	// Serve the API in process
	srv := server.New(h, config.Server, slog.Default())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	fmt.Println("Ingesting documents...")
	post(ts.URL+"/ingest", nil)

	fmt.Println("\nBank chatbot:")
	for _, question := range []string{
		"hello",
		"my id number is 0801199012345 and my employee code is 12345",
		"How do I get a loan?",
		"Can I work from home?",
	} {
		post(ts.URL+"/ask", map[string]string{"question": question, "sender": "demo"})
	}

	fmt.Println("\nDocument QA with memory:")
	post(ts.URL+"/chat", map[string]string{"question": "What does remote work require?", "sender": "demo"})
	post(ts.URL+"/chat", map[string]string{"question": "And how many days per week?", "sender": "demo"})

	fmt.Println("\nMarketing assistant:")
	post(ts.URL+"/marketing", map[string]string{"idea": "A savings account for freelancers"})

	fmt.Println("\nRequest log:")
	get(ts.URL + "/history/demo")
	get(ts.URL + "/stats/categories")
	get(ts.URL + "/health")
}

func post(url string, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Fatalf("Failed to marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		log.Fatalf("Request to %s failed: %v", url, err)
	}
	printResponse(url, resp)
}

func get(url string) {
	resp, err := http.Get(url)
	if err != nil {
		log.Fatalf("Request to %s failed: %v", url, err)
	}
	printResponse(url, resp)
}

func printResponse(url string, resp *http.Response) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}
	fmt.Printf("%s %d\n%s\n", url, resp.StatusCode, body)
}
