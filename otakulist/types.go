package otakulist

import "time"

// Anime is the detail payload of /api/anime/{id}
type Anime struct {
	ID            int      `json:"id"`
	Title         string   `json:"title"`
	TitleJapanese string   `json:"title_japanese,omitempty"`
	Synopsis      string   `json:"synopsis"`
	Episodes      int      `json:"episodes"`
	Status        string   `json:"status"`
	Season        string   `json:"season,omitempty"`
	Year          int      `json:"year,omitempty"`
	Genres        []string `json:"genres"`
	Score         float64  `json:"score"`
	RatingCount   int      `json:"rating_count"`
	UserRating    *int     `json:"user_rating"` // nil when the user has not rated
	ImageURL      string   `json:"image_url,omitempty"`
}

type Character struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Role       string `json:"role"` // "Main", "Supporting"
	ImageURL   string `json:"image_url,omitempty"`
	VoiceActor string `json:"voice_actor,omitempty"`
}

type Recommendation struct {
	ID       int     `json:"id"`
	Title    string  `json:"title"`
	Score    float64 `json:"score"`
	Votes    int     `json:"votes"`
	ImageURL string  `json:"image_url,omitempty"`
}

type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Category    string    `json:"category"`
	PublishedAt time.Time `json:"published_at"`
}

// NewsFeed is one page of the news listing
type NewsFeed struct {
	Items      []NewsItem `json:"items"`
	Page       int        `json:"page"`
	TotalPages int        `json:"total_pages"`
}

// Stats is the dashboard summary for one user
type Stats struct {
	Watching        int     `json:"watching"`
	Completed       int     `json:"completed"`
	OnHold          int     `json:"on_hold"`
	Dropped         int     `json:"dropped"`
	PlanToWatch     int     `json:"plan_to_watch"`
	EpisodesWatched int     `json:"episodes_watched"`
	MinutesWatched  int     `json:"minutes_watched"`
	MeanScore       float64 `json:"mean_score"`
}

type Achievement struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Progress    int        `json:"progress"`
	Goal        int        `json:"goal"`
	UnlockedAt  *time.Time `json:"unlocked_at"`
}

// Unlocked reports whether the achievement has been earned
func (a Achievement) Unlocked() bool {
	return a.UnlockedAt != nil
}

// NewsQuery selects one page of news
type NewsQuery struct {
	Category string `json:"category"`
	Source   string `json:"source"`
	Page     int    `json:"page"`
	Query    string `json:"q,omitempty"`
}
