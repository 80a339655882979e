package model

// Genre 类型
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CastMember 演员
type CastMember struct {
	ID               int     `json:"id"`
	Name             string  `json:"name"`
	ProfileImagePath *string `json:"profile_path"`
}

// MaxCastMembers 详情中最多保留的演员数量
const MaxCastMembers = 5

// DetailRecord 条目详情（类型、片长、预告片、演员）
type DetailRecord struct {
	Key            ItemKey      `json:"key"`
	Genres         []Genre      `json:"genres"`
	RuntimeMinutes *int         `json:"runtime_minutes,omitempty"`
	TrailerKey     *string      `json:"trailer_key,omitempty"`
	Cast           []CastMember `json:"cast"`
}

// genreNames TMDB 类型表
var genreNames = map[int]string{
	28:    "Action",
	12:    "Adventure",
	16:    "Animation",
	35:    "Comedy",
	80:    "Crime",
	99:    "Documentary",
	18:    "Drama",
	10751: "Family",
	14:    "Fantasy",
	36:    "History",
	27:    "Horror",
	10402: "Music",
	9648:  "Mystery",
	10749: "Romance",
	878:   "Science Fiction",
	10770: "TV Movie",
	53:    "Thriller",
	10752: "War",
	37:    "Western",
}

// GenreNames 把类型 ID 转为名称，未知 ID 直接丢弃
func GenreNames(ids []int) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := genreNames[id]; ok {
			names = append(names, name)
		}
	}
	return names
}
