package domain

// Movie is the list-level record returned by the metadata API.
type Movie struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Overview         string  `json:"overview"`
	ReleaseDate      string  `json:"releaseDate"`
	VoteAverage      float64 `json:"voteAverage"`
	VoteCount        int64   `json:"voteCount"`
	PosterPath       string  `json:"posterPath"`
	BackdropPath     string  `json:"backdropPath"`
	GenreIDs         []int   `json:"genreIds,omitempty"`
	Popularity       float64 `json:"popularity,omitempty"`
	OriginalLanguage string  `json:"originalLanguage,omitempty"`
	Adult            bool    `json:"adult,omitempty"`
}

// Genre is a named genre attached to a movie detail.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CastMember is one credited performer.
type CastMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	ProfilePath string `json:"profilePath,omitempty"`
	Order       int    `json:"order"`
}

// ProductionCompany is a studio credited on a movie.
type ProductionCompany struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	LogoPath      string `json:"logoPath,omitempty"`
	OriginCountry string `json:"originCountry,omitempty"`
}

// MovieDetail is the lazily fetched payload shown in a detail view.
type MovieDetail struct {
	Movie
	Tagline             string              `json:"tagline,omitempty"`
	Runtime             *int                `json:"runtime,omitempty"`
	Budget              int64               `json:"budget"`
	Revenue             int64               `json:"revenue"`
	Status              string              `json:"status,omitempty"`
	Homepage            string              `json:"homepage,omitempty"`
	IMDbID              string              `json:"imdbId,omitempty"`
	Genres              []Genre             `json:"genres"`
	Cast                []CastMember        `json:"cast"`
	ProductionCompanies []ProductionCompany `json:"productionCompanies"`
}

// MoviePage is one page of list results.
type MoviePage struct {
	Page         int     `json:"page"`
	TotalPages   int     `json:"totalPages"`
	TotalResults int     `json:"totalResults"`
	Results      []Movie `json:"results"`
}
