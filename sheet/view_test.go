package sheet

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestFindRow(t *testing.T) {
	rows := [][]string{
		{"Video ID", "YouTube URL", "Title", "Channel", "Duration"},
		{"aaaaaaaaaaa", "https://youtu.be/aaaaaaaaaaa", "First", "Chan A", "1:00"},
		{"", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "Rick", "Rick Astley", "3:33"},
		{"short"},
	}

	tests := []struct {
		name    string
		videoID string
		want    string
		wantNil bool
	}{
		{"by id column", "aaaaaaaaaaa", "First", false},
		{"by url when id blank", "dQw4w9WgXcQ", "Rick", false},
		{"absent", "zzzzzzzzzzz", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := findRow(rows, DefaultColumns(), tt.videoID)
			if tt.wantNil {
				assert.Nil(t, row)
				return
			}
			require.NotNil(t, row)
			assert.Equal(t, tt.want, row.Title)
		})
	}
}

func TestFindRow_HeaderOnly(t *testing.T) {
	assert.Nil(t, findRow([][]string{{"Video ID"}}, DefaultColumns(), "aaaaaaaaaaa"))
	assert.Nil(t, findRow(nil, DefaultColumns(), "aaaaaaaaaaa"))
}

func TestFindRow_CaseInsensitiveHeaders(t *testing.T) {
	rows := [][]string{
		{" channel name ", "TITLE", "url", "length"},
		{"Rick Astley", "Rick", "https://youtu.be/dQw4w9WgXcQ", "3:33"},
	}
	row := findRow(rows, DefaultColumns(), "dQw4w9WgXcQ")
	require.NotNil(t, row)
	assert.Equal(t, "Rick Astley", row.ChannelName)
	assert.Equal(t, "Rick", row.Title)
	assert.Equal(t, "3:33", row.Duration)
	assert.Empty(t, row.VideoID)
}

func TestView_Row(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"range":          "Master!A1:E2",
			"majorDimension": "ROWS",
			"values": [][]any{
				{"Video ID", "YouTube URL", "Title", "Channel", "Duration"},
				{"dQw4w9WgXcQ", "https://youtu.be/dQw4w9WgXcQ", "Rick", "Rick Astley", "3:33"},
			},
		})
	}))
	defer srv.Close()

	log := logrus.New()
	log.SetOutput(io.Discard)
	view, err := New(context.Background(), "sheet-123", "", log,
		option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)

	row, err := view.Row(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", row.SourceURL)
	assert.Equal(t, "3:33", row.Duration)
	assert.True(t, strings.Contains(gotPath, "/v4/spreadsheets/sheet-123/values/"), gotPath)

	missing, err := view.Row(context.Background(), "aaaaaaaaaaa")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestView_RowUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	view, err := New(context.Background(), "sheet-123", "Master", nil,
		option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)

	_, err = view.Row(context.Background(), "dQw4w9WgXcQ")
	assert.Error(t, err)
}

func TestNew_RequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "", "Master", nil, option.WithoutAuthentication())
	assert.Error(t, err)
}
