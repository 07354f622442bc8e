package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/StevenGall/delavan-lake-fishing-reports/internal/report"
	"github.com/StevenGall/delavan-lake-fishing-reports/internal/retry"
	"github.com/StevenGall/delavan-lake-fishing-reports/internal/store"
)

// chatStub serves a chat-completions endpoint whose reply content comes
// from fn, so tests control exactly what the "model" says.
func chatStub(t *testing.T, fn func(callCount int64, w http.ResponseWriter)) (*Client, *int64) {
	t.Helper()
	calls := new(int64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		fn(atomic.AddInt64(calls, 1), w)
	}))
	t.Cleanup(srv.Close)

	return NewClient(ClientConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "gpt-4o-mini",
	}), calls
}

func replyContent(w http.ResponseWriter, content string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
}

func testRetryConfig(t *testing.T) retry.Config {
	return retry.Config{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Logger:      zaptest.NewLogger(t),
	}
}

func TestExtractParsesFencedJSON(t *testing.T) {
	t.Parallel()

	client, _ := chatStub(t, func(_ int64, w http.ResponseWriter) {
		replyContent(w, "```json\n{\"month\": 3, \"season\": \"spring\", \"species_caught\": \"Largemouth Bass\", \"water_depth_feet\": 12}\n```")
	})

	ext, err := client.Extract(context.Background(), report.RawReport{RawContent: "bass in 12 feet"})
	require.NoError(t, err)
	require.NotNil(t, ext.Month)
	require.Equal(t, 3, *ext.Month)
	require.Equal(t, "spring", *ext.Season)
	require.Equal(t, "Largemouth Bass", *ext.SpeciesCaught)
	require.Equal(t, 12.0, *ext.WaterDepthFeet)
}

func TestExtractInvalidJSONIsPermanent(t *testing.T) {
	t.Parallel()

	client, calls := chatStub(t, func(_ int64, w http.ResponseWriter) {
		replyContent(w, "I could not find any fishing data, sorry!")
	})

	err := retry.Do(context.Background(), testRetryConfig(t), "extract", func() error {
		_, callErr := client.Extract(context.Background(), report.RawReport{RawContent: "x"})
		return callErr
	})
	require.Error(t, err)
	require.True(t, retry.IsPermanent(err))
	require.EqualValues(t, 1, *calls, "malformed model output must not be retried")
}

func TestExtractRetriesServerErrors(t *testing.T) {
	t.Parallel()

	client, calls := chatStub(t, func(n int64, w http.ResponseWriter) {
		if n == 1 {
			http.Error(w, "upstream hiccup", http.StatusInternalServerError)
			return
		}
		replyContent(w, `{"month": 6}`)
	})

	var ext Extraction
	err := retry.Do(context.Background(), testRetryConfig(t), "extract", func() error {
		var callErr error
		ext, callErr = client.Extract(context.Background(), report.RawReport{RawContent: "x"})
		return callErr
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, *calls)
	require.Equal(t, 6, *ext.Month)
}

func TestExtractRejectsAuthErrors(t *testing.T) {
	t.Parallel()

	client, _ := chatStub(t, func(_ int64, w http.ResponseWriter) {
		http.Error(w, `{"error": {"message": "bad key"}}`, http.StatusUnauthorized)
	})

	_, err := client.Extract(context.Background(), report.RawReport{RawContent: "x"})
	require.Error(t, err)
	require.True(t, retry.IsPermanent(err))
}

func TestStripCodeFence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"  {\"a\": 1}  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, stripCodeFence(tt.in))
	}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestRunProcessesBacklog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	for i := 0; i < 3; i++ {
		_, inserted, err := st.InsertRawReport(ctx, report.RawReport{
			SourceID:   fmt.Sprintf("src-%d", i),
			Username:   "Bob",
			DatePosted: strPtr("2024-03-15T06:30:00"),
			RawContent: fmt.Sprintf("Report %d: bass on jigs in 12 feet near the north point.", i),
		})
		require.NoError(t, err)
		require.True(t, inserted)
	}

	client, calls := chatStub(t, func(_ int64, w http.ResponseWriter) {
		replyContent(w, `{"month": 3, "season": "spring", "species_caught": "Largemouth Bass", "bait_lure": "jigs", "location": "north point", "water_depth_feet": 12}`)
	})

	proc := New(st, client, Config{BatchSize: 2, Workers: 2}, testRetryConfig(t), zaptest.NewLogger(t))
	sum, err := proc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, sum.Processed)
	require.Equal(t, 0, sum.Errors)
	require.EqualValues(t, 3, *calls)

	reports, err := st.ReportsByMonth(ctx, 3)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	require.Equal(t, "Bob", *reports[0].Username)
	require.Equal(t, "Largemouth Bass", *reports[0].SpeciesCaught)

	// A second run finds nothing left to do.
	again, err := proc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, again.Processed)
}

func TestRunDerivesMonthAndSeason(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	_, _, err := st.InsertRawReport(ctx, report.RawReport{
		SourceID:   "src-ice",
		Username:   "IceGuy",
		DatePosted: strPtr("2024-02-10T07:00:00"),
		RawContent: "Tip-ups on the south bay, slow morning on the ice.",
	})
	require.NoError(t, err)

	// The model omits month and season; both must come from the posting date.
	client, _ := chatStub(t, func(_ int64, w http.ResponseWriter) {
		replyContent(w, `{"species_targeted": "Northern Pike", "ice_thickness_inches": 8}`)
	})

	proc := New(st, client, Config{}, testRetryConfig(t), zaptest.NewLogger(t))
	sum, err := proc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Processed)

	reports, err := st.ReportsByMonth(ctx, 2)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, "winter", *reports[0].Season)
	require.Equal(t, "2024-02-10T07:00:00", *reports[0].DatePosted)
	require.Equal(t, 8.0, *reports[0].IceThicknessInches)
}

func TestRunCountsFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	_, _, err := st.InsertRawReport(ctx, report.RawReport{
		SourceID:   "src-bad",
		Username:   "Y",
		RawContent: "A report the model cannot make sense of at all.",
	})
	require.NoError(t, err)

	client, _ := chatStub(t, func(_ int64, w http.ResponseWriter) {
		replyContent(w, "not json at all")
	})

	proc := New(st, client, Config{}, testRetryConfig(t), zaptest.NewLogger(t))
	sum, err := proc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, sum.Processed)
	require.Equal(t, 1, sum.Errors)
}

func TestRunHonorsMaxReports(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	for i := 0; i < 5; i++ {
		_, _, err := st.InsertRawReport(ctx, report.RawReport{
			SourceID:   fmt.Sprintf("cap-%d", i),
			Username:   "Z",
			RawContent: fmt.Sprintf("Yet another perfectly ordinary report number %d.", i),
		})
		require.NoError(t, err)
	}

	client, calls := chatStub(t, func(_ int64, w http.ResponseWriter) {
		replyContent(w, `{"month": 7}`)
	})

	proc := New(st, client, Config{BatchSize: 10, MaxReports: 2}, testRetryConfig(t), zaptest.NewLogger(t))
	sum, err := proc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, sum.Processed)
	require.EqualValues(t, 2, *calls)
}

var _ Store = (*store.Store)(nil)
