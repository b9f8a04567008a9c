// Package sheet reads the master spreadsheet that mirrors the metadata
// store for human editors. It is the view layer used for recovery and
// reconciliation; nothing here writes to the sheet.
package sheet

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"ytpipeline/storage"
	"ytpipeline/youtube"
)

// ColumnMap names the header cells that hold each field. Matching ignores
// case and surrounding whitespace.
type ColumnMap struct {
	VideoID     []string
	SourceURL   []string
	Title       []string
	ChannelName []string
	Duration    []string
}

// DefaultColumns matches the headers of the master sheet.
func DefaultColumns() ColumnMap {
	return ColumnMap{
		VideoID:     []string{"Video ID", "videoId", "ID"},
		SourceURL:   []string{"YouTube URL", "Source URL", "URL", "sourceUrl"},
		Title:       []string{"Title", "Original Title"},
		ChannelName: []string{"Channel", "Channel Name", "channelName"},
		Duration:    []string{"Duration", "Length"},
	}
}

// View looks up video rows in one sheet of a spreadsheet.
type View struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	columns       ColumnMap
	log           logrus.FieldLogger
}

var _ storage.ViewLayer = (*View)(nil)

// New creates a view over sheetName. opts configure the Sheets client.
func New(ctx context.Context, spreadsheetID, sheetName string, log logrus.FieldLogger, opts ...option.ClientOption) (*View, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID required")
	}
	if sheetName == "" {
		sheetName = "Master"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &View{
		service:       service,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		columns:       DefaultColumns(),
		log:           log.WithField("component", "sheet-view"),
	}, nil
}

// NewFromCredentialsFile authenticates with a service account key file
// and opens the sheet read-only.
func NewFromCredentialsFile(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, log logrus.FieldLogger) (*View, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return New(ctx, spreadsheetID, sheetName, log, option.WithHTTPClient(conf.Client(ctx)))
}

// WithColumns replaces the header mapping.
func (v *View) WithColumns(c ColumnMap) *View {
	v.columns = c
	return v
}

// Row returns the first row whose video ID matches, or (nil, nil). Rows
// without a video ID cell are matched by the ID in their source URL.
func (v *View) Row(ctx context.Context, videoID string) (*storage.ViewRow, error) {
	resp, err := v.service.Spreadsheets.Values.Get(v.spreadsheetID, v.sheetName+"!A:Z").
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", v.sheetName, err)
	}

	row := findRow(toStrings(resp.Values), v.columns, videoID)
	if row == nil {
		v.log.WithField("video_id", videoID).Debug("no sheet row")
	}
	return row, nil
}

func toStrings(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, r := range values {
		out[i] = make([]string, len(r))
		for j, cell := range r {
			out[i][j] = strings.TrimSpace(fmt.Sprint(cell))
		}
	}
	return out
}

// findRow treats rows[0] as the header.
func findRow(rows [][]string, cols ColumnMap, videoID string) *storage.ViewRow {
	if len(rows) < 2 {
		return nil
	}
	header := rows[0]
	idx := struct{ id, url, title, channel, duration int }{
		id:       column(header, cols.VideoID),
		url:      column(header, cols.SourceURL),
		title:    column(header, cols.Title),
		channel:  column(header, cols.ChannelName),
		duration: column(header, cols.Duration),
	}

	for _, r := range rows[1:] {
		id := cell(r, idx.id)
		url := cell(r, idx.url)
		if id == "" && url != "" {
			id, _ = youtube.ExtractVideoID(url)
		}
		if id != videoID {
			continue
		}
		return &storage.ViewRow{
			VideoID:     cell(r, idx.id),
			SourceURL:   url,
			Title:       cell(r, idx.title),
			ChannelName: cell(r, idx.channel),
			Duration:    cell(r, idx.duration),
		}
	}
	return nil
}

func column(header, names []string) int {
	for _, name := range names {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
