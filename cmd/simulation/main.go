package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fatih/color"
)

const baseURL = "http://localhost:3000/api/chat/v1"

const tenantID = "7b0e9c74-4b3e-4c8e-9a51-2f6cf1f2a001"

// Simplified DTOs for the script
type SendChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	TenantID  string `json:"tenant_id"`
}

type SendChatResponse struct {
	Data struct {
		Response  string                 `json:"response"`
		SessionID string                 `json:"session_id"`
		Stage     string                 `json:"stage"`
		Degraded  bool                   `json:"degraded"`
		Metadata  map[string]interface{} `json:"metadata"`
	} `json:"data"`
}

// A scripted walk through the sales funnel, greeting to checkout.
var script = []string{
	"hi there",
	"I'm looking for wireless headphones for running",
	"can you recommend something under $100",
	"that sounds good but is the battery life really 30 hours?",
	"ok add the second one to my cart",
	"I want to checkout now",
	"ship it to 42 Elm Street, Springfield. Then confirm the total and finally place the order",
	"goodbye",
}

func main() {
	color.Cyan("🚀 Sales Funnel Simulation Client\n")
	color.White("Tenant: %s", tenantID)

	sessionID := ""
	for _, text := range script {
		color.Yellow("\nUSER: %s", text)

		start := time.Now()
		res, err := sendChat(sessionID, text)
		elapsed := time.Since(start)

		if err != nil {
			color.Red("Error: %v", err)
			continue
		}

		sessionID = res.Data.SessionID
		stageTag := fmt.Sprintf("[%s]", res.Data.Stage)
		if res.Data.Degraded {
			stageTag += " (degraded)"
		}
		color.Green("AI %s (%v): %s", stageTag, elapsed.Round(time.Millisecond), res.Data.Response)

		if hit, ok := res.Data.Metadata["cache_hit"].(bool); ok && hit {
			color.White("  cache hit")
		}
		if steps, ok := res.Data.Metadata["plan_steps"]; ok {
			color.White("  agent plan: %v steps (%v)", steps, res.Data.Metadata["plan_status"])
		}

		time.Sleep(500 * time.Millisecond)
	}

	color.Cyan("\nDone. Session: %s", sessionID)
}

func sendChat(sessionID, text string) (*SendChatResponse, error) {
	payload := SendChatRequest{
		Message:   text,
		SessionID: sessionID,
		TenantID:  tenantID,
	}
	jsonBytes, _ := json.Marshal(payload)

	req, _ := http.NewRequest("POST", baseURL, bytes.NewBuffer(jsonBytes))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API Error %d: %s", resp.StatusCode, string(body))
	}

	var res SendChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}
