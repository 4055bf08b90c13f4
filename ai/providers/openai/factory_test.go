package openai

import (
	"testing"
	"time"

	"github.com/itsneelabh/nl2sparql/ai"
)

func TestFactory_Name(t *testing.T) {
	factory := &Factory{}
	if factory.Name() != "openai" {
		t.Errorf("expected name 'openai', got %q", factory.Name())
	}
	if factory.Description() == "" {
		t.Error("expected non-empty description")
	}
}

func TestFactory_Registered(t *testing.T) {
	if _, ok := ai.GetProvider("openai"); !ok {
		t.Fatal("openai provider should register itself in init")
	}
}

func TestFactory_DetectEnvironment(t *testing.T) {
	tests := []struct {
		name      string
		apiKey    string
		baseURL   string
		wantPrio  int
		wantAvail bool
	}{
		{name: "with OPENAI_API_KEY", apiKey: "test-key", wantPrio: 100, wantAvail: true},
		{name: "with custom base URL only", baseURL: "http://localhost:11434/v1", wantPrio: 50, wantAvail: true},
		{name: "nothing configured", wantPrio: 0, wantAvail: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", tt.apiKey)
			t.Setenv("OPENAI_BASE_URL", tt.baseURL)

			prio, avail := (&Factory{}).DetectEnvironment()
			if prio != tt.wantPrio || avail != tt.wantAvail {
				t.Errorf("DetectEnvironment() = (%d, %v), want (%d, %v)", prio, avail, tt.wantPrio, tt.wantAvail)
			}
		})
	}
}

func TestFactory_Create(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("OPENAI_BASE_URL", "")

	tests := []struct {
		name        string
		config      *ai.AIConfig
		wantKey     string
		wantBaseURL string
		wantModel   string
		wantRetries int
	}{
		{
			name:        "falls back to environment",
			config:      &ai.AIConfig{MaxRetries: 2},
			wantKey:     "env-key",
			wantBaseURL: defaultBaseURL,
			wantModel:   defaultModel,
			wantRetries: 2,
		},
		{
			name: "explicit configuration wins",
			config: &ai.AIConfig{
				APIKey:     "cfg-key",
				BaseURL:    "https://gateway.example.eu/v1/",
				Model:      "gpt-4o-mini",
				MaxRetries: 0,
				RetryDelay: 10 * time.Millisecond,
				Timeout:    5 * time.Second,
			},
			wantKey:     "cfg-key",
			wantBaseURL: "https://gateway.example.eu/v1",
			wantModel:   "gpt-4o-mini",
			wantRetries: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created, err := (&Factory{}).Create(tt.config)
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			client, ok := created.(*Client)
			if !ok {
				t.Fatalf("expected *Client, got %T", created)
			}
			if client.apiKey != tt.wantKey {
				t.Errorf("apiKey = %q, want %q", client.apiKey, tt.wantKey)
			}
			if client.baseURL != tt.wantBaseURL {
				t.Errorf("baseURL = %q, want %q", client.baseURL, tt.wantBaseURL)
			}
			if client.DefaultModel != tt.wantModel {
				t.Errorf("DefaultModel = %q, want %q", client.DefaultModel, tt.wantModel)
			}
			if client.MaxRetries != tt.wantRetries {
				t.Errorf("MaxRetries = %d, want %d", client.MaxRetries, tt.wantRetries)
			}
		})
	}
}
