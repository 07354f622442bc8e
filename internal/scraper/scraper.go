// Package scraper fetches the forum's paginated fishing-report listing and
// persists each distinct post as a raw report.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/StevenGall/delavan-lake-fishing-reports/internal/report"
	"github.com/StevenGall/delavan-lake-fishing-reports/internal/telemetry"
)

// consecutiveEmptyLimit stops pagination after this many pages in a row
// produce no posts.
const consecutiveEmptyLimit = 3

var totalCountPattern = regexp.MustCompile(`Displaying\s+\d+\s+to\s+\d+\s+of\s+([\d,]+)\s+posts`)

// Config controls the scrape run.
type Config struct {
	BaseURL        string
	LoginPageURL   string
	LoginURL       string
	UserAgent      string
	Email          string
	Password       string
	RecordsPerPage int
	Delay          time.Duration
	MaxPages       int
	Authenticate   bool
}

// RawInserter is the slice of the store the scraper needs.
type RawInserter interface {
	InsertRawReport(ctx context.Context, r report.RawReport) (int64, bool, error)
}

// Scraper drives the sequential page loop. It is strictly single-threaded;
// the origin server must not be hammered.
type Scraper struct {
	cfg        Config
	store      RawInserter
	collector  *colly.Collector
	strategies []Strategy
	logger     *zap.Logger
}

// Summary reports the outcome of a scrape run.
type Summary struct {
	PagesFetched  int
	PostsScraped  int
	PostsInserted int
}

type responseSink struct {
	status int
	body   []byte
	err    error
}

// New builds a Scraper. The collector keeps one cookie jar for the whole
// run, so a login session carries across every page request.
func New(cfg Config, store RawInserter, logger *zap.Logger) *Scraper {
	c := colly.NewCollector(colly.AllowURLRevisit())
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.SetRequestTimeout(30 * time.Second)
	if cfg.Delay > 0 {
		_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: cfg.Delay})
	}

	c.OnResponse(func(r *colly.Response) {
		if sink, ok := r.Ctx.GetAny("sink").(*responseSink); ok {
			sink.status = r.StatusCode
			sink.body = append([]byte(nil), r.Body...)
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if sink, ok := r.Ctx.GetAny("sink").(*responseSink); ok {
			sink.status = r.StatusCode
			sink.err = err
		}
	})

	return &Scraper{
		cfg:        cfg,
		store:      store,
		collector:  c,
		strategies: DefaultStrategies(),
		logger:     logger,
	}
}

func (s *Scraper) fetch(method, u string, body io.Reader, hdr http.Header) ([]byte, error) {
	sink := &responseSink{}
	cctx := colly.NewContext()
	cctx.Put("sink", sink)

	if err := s.collector.Request(method, u, body, cctx, hdr); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, u, err)
	}
	if sink.err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, u, sink.err)
	}
	if sink.status >= 400 {
		return nil, fmt.Errorf("%s %s: status %d", method, u, sink.status)
	}
	return sink.body, nil
}

// Login authenticates against the forum so the full post history is
// visible. Missing credentials or a rejected login degrade to the
// unauthenticated window rather than aborting the run.
func (s *Scraper) Login(ctx context.Context) bool {
	if !s.cfg.Authenticate {
		return false
	}
	if s.cfg.Email == "" || s.cfg.Password == "" {
		s.logger.Warn("scrape credentials not set, running unauthenticated (limited to recent reports)")
		return false
	}
	if err := ctx.Err(); err != nil {
		return false
	}

	// Hit the login page first to establish session cookies.
	if _, err := s.fetch(http.MethodGet, s.cfg.LoginPageURL, nil, nil); err != nil {
		s.logger.Warn("login page fetch failed, falling back to unauthenticated scraping", zap.Error(err))
		return false
	}

	payload, err := json.Marshal(map[string]string{
		"loginAccount": "Lake-Link",
		"email":        s.cfg.Email,
		"password":     s.cfg.Password,
	})
	if err != nil {
		s.logger.Warn("marshal login payload", zap.Error(err))
		return false
	}

	hdr := http.Header{"Content-Type": []string{"application/json"}}
	body, err := s.fetch(http.MethodPost, s.cfg.LoginURL, bytes.NewReader(payload), hdr)
	if err != nil {
		s.logger.Warn("login request failed, falling back to unauthenticated scraping", zap.Error(err))
		return false
	}

	var resp struct {
		Success bool   `json:"SUCCESS"`
		Message string `json:"MESSAGE"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		s.logger.Warn("login response not understood, falling back to unauthenticated scraping", zap.Error(err))
		return false
	}
	if !resp.Success {
		s.logger.Warn("authentication failed, falling back to unauthenticated scraping",
			zap.String("message", resp.Message))
		return false
	}

	s.logger.Info("authenticated", zap.String("email", s.cfg.Email))
	return true
}

// FetchPage retrieves one listing page and parses its posts. The returned
// total is the forum's overall post count hint, or 0 when the page does not
// carry one.
func (s *Scraper) FetchPage(startRow, recordsPerPage int) ([]report.RawReport, int, error) {
	u, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return nil, 0, fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("startRow", strconv.Itoa(startRow))
	q.Set("recordsToDisplay", strconv.Itoa(recordsPerPage))
	q.Set("sortOrder", "DESC")
	u.RawQuery = q.Encode()

	body, err := s.fetch(http.MethodGet, u.String(), nil, nil)
	if err != nil {
		return nil, 0, err
	}
	telemetry.ObservePage()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("parse listing page: %w", err)
	}

	total := 0
	if m := totalCountPattern.FindStringSubmatch(doc.Text()); m != nil {
		total, _ = strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	}

	for i, strat := range s.strategies {
		posts := strat.Posts(doc)
		if len(posts) == 0 {
			continue
		}
		if i > 0 {
			s.logger.Info("primary markup not found, used fallback parse strategy",
				zap.String("strategy", strat.Name()))
		}
		return posts, total, nil
	}
	return nil, total, nil
}

// Run pages through the listing until the stopping conditions are met,
// inserting each parsed post. Duplicate fingerprints are silent no-ops.
func (s *Scraper) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	s.Login(ctx)

	perPage := s.cfg.RecordsPerPage
	startRow := 1
	page := 1
	consecutiveEmpty := 0

	s.logger.Info("starting scrape", zap.Int("records_per_page", perPage))

	posts, total, err := s.FetchPage(startRow, perPage)
	if err != nil {
		return sum, fmt.Errorf("fetch first page: %w", err)
	}
	sum.PagesFetched++

	if total == 0 {
		// No count hint: page until the empty-page stop kicks in.
		s.logger.Info("total report count unknown, scraping until no more reports found")
	} else {
		s.logger.Info("total reports to scrape", zap.Int("total", total))
	}

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if s.cfg.MaxPages > 0 && page > s.cfg.MaxPages {
			s.logger.Info("reached max pages limit", zap.Int("max_pages", s.cfg.MaxPages))
			break
		}

		if page > 1 { // page 1 is already in hand
			posts, _, err = s.FetchPage(startRow, perPage)
			if err != nil {
				return sum, fmt.Errorf("fetch page %d: %w", page, err)
			}
			sum.PagesFetched++
		}

		if len(posts) == 0 {
			consecutiveEmpty++
			if consecutiveEmpty >= consecutiveEmptyLimit {
				s.logger.Info("stopping after consecutive empty pages",
					zap.Int("empty_pages", consecutiveEmpty))
				break
			}
			s.logger.Debug("no reports on page",
				zap.Int("page", page), zap.Int("empty_streak", consecutiveEmpty))
			startRow += perPage
			page++
			continue
		}
		consecutiveEmpty = 0

		for _, p := range posts {
			sum.PostsScraped++
			_, inserted, err := s.store.InsertRawReport(ctx, p)
			if err != nil {
				return sum, fmt.Errorf("insert raw report: %w", err)
			}
			if inserted {
				sum.PostsInserted++
				telemetry.ObservePost("inserted")
			} else {
				telemetry.ObservePost("duplicate")
			}
		}

		s.logger.Info("page scraped",
			zap.Int("page", page),
			zap.Int("posts", len(posts)),
			zap.Int("inserted_total", sum.PostsInserted),
		)

		startRow += perPage
		page++

		if total > 0 && startRow > total {
			break
		}
	}

	s.logger.Info("scrape complete",
		zap.Int("pages", sum.PagesFetched),
		zap.Int("scraped", sum.PostsScraped),
		zap.Int("inserted", sum.PostsInserted),
	)
	return sum, nil
}
