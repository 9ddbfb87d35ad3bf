package acrcloud

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"lyricsync-go/services/providers"
	"lyricsync-go/services/signer"
)

const matchResponse = `{
	"status": {"code": 0, "msg": "Success"},
	"metadata": {"music": [{
		"title": "Bohemian Rhapsody",
		"artists": [{"name": "Queen"}],
		"album": {"name": "A Night at the Opera"},
		"external_metadata": {"spotify": {"track": {"id": "abc"}}}
	}]}
}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return New(Config{
		Host:         "identify-eu-west-1.acrcloud.com",
		AccessKey:    "test_key",
		AccessSecret: "test_secret",
		BaseURL:      server.URL,
	})
}

func TestEnabled(t *testing.T) {
	tests := []struct {
		name     string
		conf     Config
		expected bool
	}{
		{"All credentials", Config{Host: "h", AccessKey: "k", AccessSecret: "s"}, true},
		{"Missing host", Config{AccessKey: "k", AccessSecret: "s"}, false},
		{"Missing key", Config{Host: "h", AccessSecret: "s"}, false},
		{"Missing secret", Config{Host: "h", AccessKey: "k"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.conf).Enabled(); got != tt.expected {
				t.Errorf("Enabled() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestIdentify_SignedMultipartRequest(t *testing.T) {
	sample := providers.Sample{Data: []byte("fake-audio-bytes")}

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != identifyPath {
			t.Errorf("Expected path %s, got %s", identifyPath, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}

		for field, want := range map[string]string{
			"access_key":        "test_key",
			"data_type":         "audio",
			"signature_version": "1",
			"sample_bytes":      strconv.Itoa(len(sample.Data)),
		} {
			if got := r.FormValue(field); got != want {
				t.Errorf("Field %s = %q, expected %q", field, got, want)
			}
		}

		ts, err := strconv.ParseInt(r.FormValue("timestamp"), 10, 64)
		if err != nil {
			t.Errorf("Invalid timestamp %q", r.FormValue("timestamp"))
		}
		signed := signer.SignedRequest{Signature: r.FormValue("signature"), Timestamp: ts}
		if !signer.Verify(identifyPath, "test_key", "test_secret", signed) {
			t.Error("Signature does not verify")
		}

		file, header, err := r.FormFile("sample")
		if err != nil {
			t.Errorf("Missing sample file: %v", err)
			http.Error(w, "no sample", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != sampleFilename {
			t.Errorf("Expected filename %s, got %s", sampleFilename, header.Filename)
		}
		data, _ := io.ReadAll(file)
		if string(data) != string(sample.Data) {
			t.Errorf("Sample bytes were altered: %q", data)
		}

		w.Write([]byte(matchResponse))
	})

	result, err := p.Identify(context.Background(), sample)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Provider != ProviderName {
		t.Errorf("Expected provider %s, got %s", ProviderName, result.Provider)
	}
	if result.Title == nil || *result.Title != "Bohemian Rhapsody" {
		t.Errorf("Unexpected title: %v", result.Title)
	}
	if result.Artist == nil || *result.Artist != "Queen" {
		t.Errorf("Unexpected artist: %v", result.Artist)
	}
	if result.Album == nil || *result.Album != "A Night at the Opera" {
		t.Errorf("Unexpected album: %v", result.Album)
	}
	if result.ExternalURL != nil || result.Lyrics != nil {
		t.Error("Expected externalUrl and lyrics to stay absent")
	}
	if len(result.Raw) == 0 {
		t.Error("Expected raw payload passthrough")
	}
}

func TestIdentify_ResponseOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantNoMatch bool
		wantErr     bool
	}{
		{
			name:   "String status code",
			status: http.StatusOK,
			body:   `{"status":{"code":"0"},"metadata":{"music":[{"title":"x"}]}}`,
		},
		{
			name:        "No result code",
			status:      http.StatusOK,
			body:        `{"status":{"code":1001,"msg":"No result"}}`,
			wantNoMatch: true,
			wantErr:     true,
		},
		{
			name:        "Empty music list",
			status:      http.StatusOK,
			body:        `{"status":{"code":0},"metadata":{"music":[]}}`,
			wantNoMatch: true,
			wantErr:     true,
		},
		{
			name:    "Invalid signature code",
			status:  http.StatusOK,
			body:    `{"status":{"code":3014,"msg":"invalid signature"}}`,
			wantErr: true,
		},
		{
			name:    "Server error",
			status:  http.StatusInternalServerError,
			body:    `oops`,
			wantErr: true,
		},
		{
			name:    "Malformed JSON",
			status:  http.StatusOK,
			body:    `{"status":`,
			wantErr: true,
		},
		{
			name:    "Non-numeric status code",
			status:  http.StatusOK,
			body:    `{"status":{"code":"abc"},"metadata":{"music":[{"title":"x"}]}}`,
			wantErr: true,
		},
		{
			name:    "Fractional status code",
			status:  http.StatusOK,
			body:    `{"status":{"code":0.5},"metadata":{"music":[{"title":"x"}]}}`,
			wantErr: true,
		},
		{
			name:    "Boolean status code",
			status:  http.StatusOK,
			body:    `{"status":{"code":false},"metadata":{"music":[{"title":"x"}]}}`,
			wantErr: true,
		},
		{
			name:    "Missing status code",
			status:  http.StatusOK,
			body:    `{"metadata":{"music":[{"title":"x"}]}}`,
			wantErr: true,
		},
		{
			name:    "Match without title or artist",
			status:  http.StatusOK,
			body:    `{"status":{"code":0},"metadata":{"music":[{"album":{"name":"x"}}]}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			result, err := p.Identify(context.Background(), providers.Sample{Data: []byte{1, 2, 3}})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error, got result %+v", result)
				}
				if got := errors.Is(err, providers.ErrNoMatch); got != tt.wantNoMatch {
					t.Errorf("errors.Is(err, ErrNoMatch) = %v, expected %v (err: %v)", got, tt.wantNoMatch, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !result.HasTitleOrArtist() {
				t.Error("Expected a populated result")
			}
		})
	}
}

func TestIdentify_MultipleArtistsJoined(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":{"code":0},"metadata":{"music":[{"title":"Under Pressure","artists":[{"name":"Queen"},{"name":"David Bowie"}]}]}}`))
	})

	result, err := p.Identify(context.Background(), providers.Sample{Data: []byte{1}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Artist == nil || *result.Artist != "Queen, David Bowie" {
		t.Errorf("Expected joined artists, got %v", result.Artist)
	}
}

func TestIdentify_DisabledProvider(t *testing.T) {
	p := New(Config{})
	if _, err := p.Identify(context.Background(), providers.Sample{Data: []byte{1}}); err == nil {
		t.Error("Expected error from disabled provider")
	}
}

func TestIdentify_CanceledContext(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(matchResponse))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Identify(ctx, providers.Sample{Data: []byte{1}})
	if err == nil {
		t.Fatal("Expected error for canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got %v", err)
	}
}
