package models

// MovieIDEntry is one line of the nightly TMDB movie id export.
type MovieIDEntry struct {
	ID            uint64  `json:"id"`
	OriginalTitle string  `json:"original_title"`
	Popularity    float64 `json:"popularity"`
	Adult         bool    `json:"adult"`
	Video         bool    `json:"video"`
}

type MovieDetails struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	ReleaseDate   string `json:"release_date"` // YYYY-MM-DD, may be empty
	Runtime       *int   `json:"runtime"`      // minutes
}

// StoredTitle is the title written to the movies table.
func (m MovieDetails) StoredTitle() string {
	if m.OriginalTitle != "" {
		return m.OriginalTitle
	}
	return m.Title
}

type CastMember struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Character string `json:"character"`
	Order     int    `json:"order"`
}

type Cast struct {
	ID   int64        `json:"id"`
	Cast []CastMember `json:"cast"`
}

// Packet is the unit handed from the fetch loop to the database writer.
// Cast is nil when no credits were fetched for the movie.
type Packet struct {
	MovieDetails MovieDetails
	Cast         *Cast
}
