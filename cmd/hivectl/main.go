package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type taskView struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	AssignedNode string `json:"assigned_node"`
	Result       string `json:"result"`
	Error        string `json:"error"`
	RetryCount   int    `json:"retry_count"`
}

type nodeView struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Endpoint  string   `json:"endpoint"`
	Arch      string   `json:"arch"`
	Status    string   `json:"status"`
	LatencyMs int64    `json:"latency_ms"`
	Caps      []string `json:"capabilities"`
}

func apiCall(method, path string, payload any) ([]byte, error) {
	base := os.Getenv("HIVEMIND_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, base+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if pass := os.Getenv("HIVEMIND_PASSWORD"); pass != "" {
		req.SetBasicAuth("hivectl", pass)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s", apiErr.Error)
		}
		return nil, fmt.Errorf("coordinator returned %d", resp.StatusCode)
	}

	return data, nil
}

func parseArgs(args []string) map[string]string {
	result := make(map[string]string)
	for i := 0; i < len(args); i++ {
		if len(args[i]) > 2 && args[i][:2] == "--" && i+1 < len(args) {
			result[args[i][2:]] = args[i+1]
			i++
		}
	}
	return result
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, `  hivectl submit --type "inference" --input '{"prompt":"..."}'`)
	fmt.Fprintln(os.Stderr, `  hivectl status --id "..."`)
	fmt.Fprintln(os.Stderr, "  hivectl nodes")
	fmt.Fprintln(os.Stderr, "  hivectl stats")
	fmt.Fprintln(os.Stderr, "  hivectl topology")
	os.Exit(1)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	command := os.Args[1]
	rest := os.Args[2:]

	switch command {
	case "submit":
		args := parseArgs(rest)
		if args["type"] == "" {
			fatal("--type is required")
		}
		payload := map[string]any{"type": args["type"]}
		if raw := args["input"]; raw != "" {
			var input map[string]any
			if err := json.Unmarshal([]byte(raw), &input); err != nil {
				fatal("invalid --input JSON: %v", err)
			}
			payload["input"] = input
		}
		data, err := apiCall(http.MethodPost, "/api/tasks", payload)
		if err != nil {
			fatal("%v", err)
		}
		var out struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(data, &out); err != nil {
			fatal("unmarshal response: %v", err)
		}
		fmt.Printf("Task submitted: %s\n", out.ID)

	case "status":
		args := parseArgs(rest)
		if args["id"] == "" {
			fatal("--id is required")
		}
		data, err := apiCall(http.MethodGet, "/api/tasks/"+args["id"], nil)
		if err != nil {
			fatal("%v", err)
		}
		var t taskView
		if err := json.Unmarshal(data, &t); err != nil {
			fatal("unmarshal response: %v", err)
		}
		fmt.Printf("  %s  %s  %s", t.ID, t.Type, t.Status)
		if t.AssignedNode != "" {
			fmt.Printf("  node=%s", t.AssignedNode)
		}
		if t.RetryCount > 0 {
			fmt.Printf("  retries=%d", t.RetryCount)
		}
		fmt.Println()
		if t.Result != "" {
			fmt.Printf("  result: %s\n", t.Result)
		}
		if t.Error != "" {
			fmt.Printf("  error: %s\n", t.Error)
		}

	case "nodes":
		data, err := apiCall(http.MethodGet, "/api/nodes", nil)
		if err != nil {
			fatal("%v", err)
		}
		var nodes []nodeView
		if err := json.Unmarshal(data, &nodes); err != nil {
			fatal("unmarshal response: %v", err)
		}
		if len(nodes) == 0 {
			fmt.Println("No nodes registered.")
			return
		}
		for _, n := range nodes {
			fmt.Printf("  %s  %s  %s  %s  %dms  %v\n", n.ID, n.Status, n.Arch, n.Endpoint, n.LatencyMs, n.Caps)
		}

	case "stats", "topology":
		data, err := apiCall(http.MethodGet, "/api/"+command, nil)
		if err != nil {
			fatal("%v", err)
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, data, "", "  "); err != nil {
			fatal("format response: %v", err)
		}
		fmt.Println(pretty.String())

	default:
		fatal("unknown command: %s", command)
	}
}
