// Package content stores the public media catalog and the site counters.
//
// Each collection (tracks, videos, articles, gallery, categories,
// playlists) is one opaque JSON document written by the admin console and
// read by every visitor. Site stats are a single counter document updated
// through the store's optimistic Update so concurrent hits are not lost.
package content

// Collection names a catalog document. The name doubles as its KV key.
type Collection string

const (
	CollectionTracks     Collection = "tracks"
	CollectionVideos     Collection = "videos"
	CollectionArticles   Collection = "articles"
	CollectionGallery    Collection = "gallery"
	CollectionCategories Collection = "categories"
	CollectionPlaylists  Collection = "playlists"
)

// Collections lists every catalog document in route order.
var Collections = []Collection{
	CollectionTracks,
	CollectionVideos,
	CollectionArticles,
	CollectionGallery,
	CollectionCategories,
	CollectionPlaylists,
}

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

const (
	statsKey = "site_stats"

	// maxCollectionBytes caps one collection document.
	maxCollectionBytes = 8 << 20

	// maxStatIDLen bounds the per-item counter keys.
	maxStatIDLen = 128
)

// emptyCollection is served for collections that were never written.
var emptyCollection = []byte("[]")

// articleTextFields are the plain-text article fields stripped of markup.
var articleTextFields = []string{"title", "subtitle", "author"}

// Stat event types accepted by POST /api/stats.
const (
	EventVisit       = "visit"
	EventMusicPlay   = "music_play"
	EventVideoPlay   = "video_play"
	EventArticleView = "article_view"
)

// SiteStats is the counter document under site_stats.
type SiteStats struct {
	Visits       int `json:"visits"`
	MusicPlays   int `json:"musicPlays"`
	VideoPlays   int `json:"videoPlays"`
	ArticleViews int `json:"articleViews"`

	TrackPlays         map[string]int `json:"trackPlays,omitempty"`
	VideoPlayDetails   map[string]int `json:"videoPlayDetails,omitempty"`
	ArticleViewDetails map[string]int `json:"articleViewDetails,omitempty"`
}

// StatEventRequest is the body of POST /api/stats.
type StatEventRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}
