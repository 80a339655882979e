package model

import (
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// WatchlistEntry 片单条目，保存足够重新渲染的信息
type WatchlistEntry struct {
	ID           int       `json:"id" validate:"gt=0"`
	Kind         MediaKind `json:"kind" validate:"oneof=movie tv"`
	Title        string    `json:"title" validate:"required"`
	PosterPath   *string   `json:"poster_path"`
	BackdropPath *string   `json:"backdrop_path"`
	VoteAverage  float64   `json:"vote_average" validate:"gte=0,lte=10"`
	ReleaseDate  *string   `json:"release_date"`
	GenreIDs     []int     `json:"genre_ids"`
	AddedAt      time.Time `json:"added_at"`
}

// NewWatchlistEntry 从内容条目创建片单条目
func NewWatchlistEntry(item CatalogItem, now time.Time) WatchlistEntry {
	return WatchlistEntry{
		ID:           item.ID,
		Kind:         item.Kind,
		Title:        item.Title,
		PosterPath:   item.PosterPath,
		BackdropPath: item.BackdropPath,
		VoteAverage:  item.VoteAverage,
		ReleaseDate:  item.ReleaseDate,
		GenreIDs:     slices.Clone(item.GenreIDs),
		AddedAt:      now,
	}
}

// Key 返回条目的复合键
func (e WatchlistEntry) Key() ItemKey {
	return ItemKey{Kind: e.Kind, ID: e.ID}
}

// Validate 校验字段
func (e WatchlistEntry) Validate() error {
	return validate.Struct(e)
}

// Item 还原为内容条目
func (e WatchlistEntry) Item() CatalogItem {
	return CatalogItem{
		ID:           e.ID,
		Kind:         e.Kind,
		Title:        e.Title,
		PosterPath:   e.PosterPath,
		BackdropPath: e.BackdropPath,
		VoteAverage:  e.VoteAverage,
		ReleaseDate:  e.ReleaseDate,
		GenreIDs:     slices.Clone(e.GenreIDs),
	}
}
