package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

const primaryMarkup = `
<html><body>
<div id="post-id-1001" class="card">
  <div class="card-body">
    <h6>FishinBob <i class="online"></i></h6>
    <strong class="text-primary">3/15/24 @ 6:30 AM</strong>
    <div class="d-flex align-items-center flex-wrap">
      <strong>Sunny 45&#176;</strong>
    </div>
    <div class="post-content">Caught 5 largemouth bass near the north point in 12 feet of water on jigs.</div>
    <img src="https://res.cloudinary.com/lakes/upload/v1/catch.jpg">
    <img src="/static/avatar.png">
  </div>
</div>
<div id="post-id-1002" class="card">
  <div class="card-body">
    <h6>IceGuy</h6>
    <strong class="text-primary">1/20/24 @ 7:00 AM</strong>
    <div class="d-flex align-items-center flex-wrap">
      <strong>Cloudy 20&#176;</strong>
      <span>Ice: 8"</span>
    </div>
    <div class="post-content">Northern pike through the ice on tip-ups with shiners, slow but steady morning.</div>
  </div>
</div>
<div id="post-id-1003" class="card">
  <div class="card-body">
    <h6>NoDate</h6>
    <div class="post-content">This post has no timestamp and must be dropped by the parser entirely.</div>
  </div>
</div>
<div id="post-id-1004" class="card">
  <div class="card-body">
    <h6>ShortPost</h6>
    <strong class="text-primary">3/16/24 @ 9:00 AM</strong>
    <div class="post-content">tiny</div>
  </div>
</div>
</body></html>`

func TestIDAttrStrategy(t *testing.T) {
	t.Parallel()

	posts := idAttrStrategy{}.Posts(mustDoc(t, primaryMarkup))
	require.Len(t, posts, 2, "dateless and too-short posts must be dropped")

	first := posts[0]
	require.Equal(t, "FishinBob", first.Username)
	require.NotNil(t, first.DatePosted)
	require.Equal(t, "2024-03-15T06:30:00", *first.DatePosted)
	require.Contains(t, first.RawContent, "largemouth bass")
	require.NotNil(t, first.WeatherBadge)
	require.Contains(t, *first.WeatherBadge, "Sunny")
	require.NotNil(t, first.ImageURLs)
	require.Equal(t, "https://res.cloudinary.com/lakes/upload/v1/catch.jpg", *first.ImageURLs,
		"avatar image must not be collected")
	require.NotEmpty(t, first.SourceID)

	second := posts[1]
	require.Equal(t, "IceGuy", second.Username)
	require.NotNil(t, second.WeatherBadge)
	require.Equal(t, `Cloudy 20° | Ice: 8"`, *second.WeatherBadge)
	require.Nil(t, second.ImageURLs)
}

func TestProfileLinkStrategy(t *testing.T) {
	t.Parallel()

	markup := `
<html><body>
<div class="card">
  <a href="/members/walleye-wade">WalleyeWade</a>
  <a href="/members/walleye-wade/posts">history</a>
  <strong class="text-primary">6/2/24 @ 5:15 PM</strong>
  <div class="card-text">Walleye were biting on crawler harnesses along the weed edge at dusk.</div>
</div>
</body></html>`

	doc := mustDoc(t, markup)
	require.Empty(t, idAttrStrategy{}.Posts(doc))

	posts := profileLinkStrategy{}.Posts(doc)
	require.Len(t, posts, 1, "two links into the same card must yield one post")
	require.Equal(t, "WalleyeWade", posts[0].Username)
	require.Equal(t, "2024-06-02T17:15:00", *posts[0].DatePosted)
}

func TestTextPatternStrategy(t *testing.T) {
	t.Parallel()

	markup := `
<html><body>
<div class="card">
  <span>7/4/24 @ 11:45 AM</span>
  <p>Holiday crowd on the water but still managed a few bluegill off the pier.</p>
</div>
<div class="card"><p>No timestamp here, so this block is not a post.</p></div>
</body></html>`

	doc := mustDoc(t, markup)
	require.Empty(t, idAttrStrategy{}.Posts(doc))
	require.Empty(t, profileLinkStrategy{}.Posts(doc))

	posts := textPatternStrategy{}.Posts(doc)
	require.Len(t, posts, 1)
	require.Equal(t, "Unknown", posts[0].Username)
	require.Equal(t, "2024-07-04T11:45:00", *posts[0].DatePosted)
	require.NotContains(t, posts[0].RawContent, "7/4/24",
		"the timestamp itself must not count as body text")
	require.Contains(t, posts[0].RawContent, "bluegill")
}

func TestBuildPostDefaults(t *testing.T) {
	t.Parallel()

	sel := mustDoc(t, `<div></div>`).Find("div").First()

	_, ok := buildPost("x", "", "long enough body text", sel)
	require.False(t, ok, "posts without a date are dropped")

	_, ok = buildPost("x", "3/1/24 @ 8:00 AM", "short", sel)
	require.False(t, ok, "bodies under ten characters are dropped")

	p, ok := buildPost("", "3/1/24 @ 8:00 AM", "a perfectly reasonable report body", sel)
	require.True(t, ok)
	require.Equal(t, "Unknown", p.Username)
}

func TestExtractWeatherBadge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{
			name:   "vocabulary match",
			markup: `<div><div class="d-flex align-items-center flex-wrap"><strong>Overcast 33&#176;</strong></div></div>`,
			want:   "Overcast 33°",
		},
		{
			name:   "non weather strong ignored",
			markup: `<div><div class="d-flex align-items-center flex-wrap"><strong>Member since 2019</strong></div></div>`,
			want:   "",
		},
		{
			name:   "ice only",
			markup: `<div><div class="d-flex align-items-center flex-wrap"><span>Ice: 10"</span></div></div>`,
			want:   `Ice: 10"`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sel := mustDoc(t, tt.markup).Find("div").First()
			require.Equal(t, tt.want, extractWeatherBadge(sel))
		})
	}
}
