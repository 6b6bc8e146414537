package locator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	collyfetcher "github.com/JakeFAU/servicetags-publisher/internal/fetcher/colly"
	"github.com/JakeFAU/servicetags-publisher/internal/servicetags"
)

const marker = "window.__DLCDetails__"

var pattern = regexp.MustCompile(`"url":"(https://download.microsoft.com/download/[^"]+\.json)"`)

func discoveryPage(script string) string {
	return fmt.Sprintf(`<html><head>
<script>var analytics = {"url":"https://download.microsoft.com/download/0/other.json"};</script>
<script>%s</script>
</head><body><p>Download</p></body></html>`, script)
}

func TestExtractLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		page    string
		want    string
		wantErr error
	}{
		{
			name: "marker script with link",
			page: discoveryPage(`window.__DLCDetails__={"dlcDetailsView":{"downloadFile":[{"name":"ServiceTags_Public_20240513.json","url":"https://download.microsoft.com/download/7/1/D/ServiceTags_Public_20240513.json"}]}}`),
			want: "https://download.microsoft.com/download/7/1/D/ServiceTags_Public_20240513.json",
		},
		{
			name:    "marker missing",
			page:    `<html><script>var x = 1;</script></html>`,
			wantErr: servicetags.ErrNotFound,
		},
		{
			name:    "marker without link",
			page:    discoveryPage(`window.__DLCDetails__={"downloadFile":[]}`),
			wantErr: servicetags.ErrNotFound,
		},
		{
			name:    "link outside marker script is ignored",
			page:    `<html><script>{"url":"https://download.microsoft.com/download/a.json"}</script><script>window.__DLCDetails__={}</script></html>`,
			wantErr: servicetags.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ExtractLink([]byte(tt.page), marker, pattern)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	fetcher := collyfetcher.New(collyfetcher.Config{}, nil)

	_, err := New(nil, Config{Marker: marker, Pattern: pattern}, nil)
	assert.Error(t, err)
	_, err = New(fetcher, Config{Pattern: pattern}, nil)
	assert.Error(t, err)
	_, err = New(fetcher, Config{Marker: marker, Pattern: regexp.MustCompile(`json`)}, nil)
	assert.Error(t, err)
	_, err = New(fetcher, Config{Marker: marker, Pattern: pattern}, nil)
	assert.NoError(t, err)
}

func TestLocate(t *testing.T) {
	t.Parallel()

	agents := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.UserAgent()
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, discoveryPage(`window.__DLCDetails__={"url":"https://download.microsoft.com/download/x/ServiceTags_Public_1.json"}`))
	}))
	defer server.Close()

	loc, err := New(collyfetcher.New(collyfetcher.Config{}, nil), Config{
		Marker:    marker,
		Pattern:   pattern,
		UserAgent: "Mozilla/5.0 test",
	}, nil)
	require.NoError(t, err)

	link, err := loc.Locate(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://download.microsoft.com/download/x/ServiceTags_Public_1.json", link)
	assert.Equal(t, "Mozilla/5.0 test", <-agents)
}

func TestLocateHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	loc, err := New(collyfetcher.New(collyfetcher.Config{}, nil), Config{Marker: marker, Pattern: pattern}, nil)
	require.NoError(t, err)

	_, err = loc.Locate(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, servicetags.ErrNetwork)

	var statusErr *servicetags.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}
