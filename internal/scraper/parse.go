package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/StevenGall/delavan-lake-fishing-reports/internal/report"
)

// Strategy is one heuristic for locating and parsing post containers in a
// listing document. Strategies are tried in order until one yields posts;
// the later ones exist because the forum markup drifts.
type Strategy interface {
	Name() string
	Posts(doc *goquery.Document) []report.RawReport
}

// DefaultStrategies returns the parse strategies in preference order:
// id-attribute containers, profile-link ancestors, free-text date scan.
func DefaultStrategies() []Strategy {
	return []Strategy{
		idAttrStrategy{},
		profileLinkStrategy{},
		textPatternStrategy{},
	}
}

var (
	weatherPattern  = regexp.MustCompile(`(?i)(Sunny|Cloudy|Overcast|Rain|Snow|Clear|Fog|Windy)`)
	icePattern      = regexp.MustCompile(`Ice:\s*(\d+["\x{201d}]?)`)
	dateTextPattern = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2}\s*@?\s*\d{1,2}:\d{2}\s*(?i:AM|PM)?`)
	cdnPattern      = regexp.MustCompile(`cloudinary|upload`)
)

// idAttrStrategy handles the forum's primary markup: each post lives in a
// <div id="post-id-NNNNNNN"> card.
type idAttrStrategy struct{}

func (idAttrStrategy) Name() string { return "id-attribute" }

func (idAttrStrategy) Posts(doc *goquery.Document) []report.RawReport {
	var posts []report.RawReport
	doc.Find(`div[id^="post-id-"]`).Each(func(_ int, sel *goquery.Selection) {
		if p, ok := parseCard(sel, firstOwnText(sel.Find("h6").First())); ok {
			posts = append(posts, p)
		}
	})
	return posts
}

// profileLinkStrategy recovers posts when the container ids are gone but
// author profile links still are: each link's card ancestor is a post.
type profileLinkStrategy struct{}

func (profileLinkStrategy) Name() string { return "profile-link" }

func (profileLinkStrategy) Posts(doc *goquery.Document) []report.RawReport {
	var posts []report.RawReport
	seen := make(map[*html.Node]struct{})
	doc.Find(`a[href*="/members/"], a[href*="/profile/"]`).Each(func(_ int, link *goquery.Selection) {
		card := link.Closest("div.card")
		if card.Length() == 0 {
			return
		}
		node := card.Nodes[0]
		if _, dup := seen[node]; dup {
			return
		}
		seen[node] = struct{}{}

		if p, ok := parseCard(card, strings.TrimSpace(link.Text())); ok {
			posts = append(posts, p)
		}
	})
	return posts
}

// textPatternStrategy is the last resort: any card-like block whose text
// carries a posting timestamp is treated as a post with an unknown author.
type textPatternStrategy struct{}

func (textPatternStrategy) Name() string { return "text-pattern" }

func (textPatternStrategy) Posts(doc *goquery.Document) []report.RawReport {
	var posts []report.RawReport
	doc.Find("div.card, article").Each(func(_ int, sel *goquery.Selection) {
		text := sel.Text()
		dateText := dateTextPattern.FindString(text)
		if dateText == "" {
			return
		}
		body := normalizeText(text)
		// Strip the timestamp itself so it does not count as content.
		body = normalizeText(strings.Replace(body, normalizeText(dateText), "", 1))
		if p, ok := buildPost("", dateText, body, sel); ok {
			posts = append(posts, p)
		}
	})
	return posts
}

// parseCard extracts the shared card fields given an already-located
// username. The posting timestamp is required; posts without one are
// dropped because month/season derivation depends on it downstream.
func parseCard(sel *goquery.Selection, username string) (report.RawReport, bool) {
	dateText := strings.TrimSpace(sel.Find("strong.text-primary").First().Text())
	if dateText == "" {
		return report.RawReport{}, false
	}

	content := sel.Find(`div[class*="post-content"]`).First()
	if content.Length() == 0 {
		content = sel.Find("div.card-text").First()
	}
	if content.Length() == 0 {
		return report.RawReport{}, false
	}

	return buildPost(username, dateText, normalizeText(content.Text()), sel)
}

// buildPost applies the shared per-post rules: required date, minimum body
// length, badge and image extraction, fingerprint.
func buildPost(username, dateText, body string, sel *goquery.Selection) (report.RawReport, bool) {
	if dateText == "" || len(body) < 10 {
		return report.RawReport{}, false
	}
	if username == "" {
		username = "Unknown"
	}

	date := report.ParsePostedDate(dateText)
	p := report.RawReport{
		SourceID:   report.SourceID(username, date, body),
		Username:   username,
		RawContent: body,
	}
	if date != "" {
		p.DatePosted = &date
	}
	if badge := extractWeatherBadge(sel); badge != "" {
		p.WeatherBadge = &badge
	}
	if imgs := extractImageURLs(sel); imgs != "" {
		p.ImageURLs = &imgs
	}
	return p, true
}

// extractWeatherBadge matches the badge row's strong elements against the
// fixed weather vocabulary, then appends any ice-thickness annotation found
// in the row text, e.g. "Sunny 40° | Ice: 8"".
func extractWeatherBadge(sel *goquery.Selection) string {
	row := sel.Find("div.d-flex.align-items-center.flex-wrap").First()
	if row.Length() == 0 {
		row = sel
	}

	var badge string
	row.Find("strong").EachWithBreak(func(_ int, b *goquery.Selection) bool {
		text := strings.TrimSpace(b.Text())
		if weatherPattern.MatchString(text) {
			badge = text
			return false
		}
		return true
	})

	if m := icePattern.FindStringSubmatch(row.Text()); m != nil {
		ice := "Ice: " + m[1]
		if badge == "" {
			return ice
		}
		return badge + " | " + ice
	}
	return badge
}

// extractImageURLs collects attachment images served from the CDN,
// comma-joined. Avatar and layout images never carry the CDN marker.
func extractImageURLs(sel *goquery.Selection) string {
	scope := sel.Find("div.card-body").First()
	if scope.Length() == 0 {
		scope = sel
	}

	var urls []string
	scope.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			return
		}
		if cdnPattern.MatchString(src) {
			urls = append(urls, src)
		}
	})
	return strings.Join(urls, ",")
}

// firstOwnText returns the first non-empty direct text node of sel,
// skipping child elements such as the online-status icon.
func firstOwnText(sel *goquery.Selection) string {
	for _, n := range sel.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.TextNode {
				continue
			}
			if t := strings.TrimSpace(c.Data); t != "" {
				return t
			}
		}
	}
	return ""
}

// normalizeText collapses all runs of whitespace to single spaces.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
