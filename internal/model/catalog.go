package model

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// MediaKind 内容类型（与 TMDB media_type 保持一致）
type MediaKind string

const (
	KindMovie  MediaKind = "movie"
	KindSeries MediaKind = "tv"
)

// ParseMediaKind 解析内容类型，兼容 series 写法
func ParseMediaKind(s string) (MediaKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie":
		return KindMovie, nil
	case "tv", "series":
		return KindSeries, nil
	}
	return "", fmt.Errorf("unknown media kind: %q", s)
}

// Valid 是否为已知类型
func (k MediaKind) Valid() bool {
	return k == KindMovie || k == KindSeries
}

// ItemKey 复合键 (kind, id)
// 电影和剧集的 id 空间互相独立，任何按条目索引的缓存/集合都必须用它
type ItemKey struct {
	Kind MediaKind `json:"kind"`
	ID   int       `json:"id"`
}

func (k ItemKey) String() string {
	return string(k.Kind) + ":" + strconv.Itoa(k.ID)
}

// CatalogItem 远端返回的内容条目
type CatalogItem struct {
	ID           int       `json:"id"`
	Kind         MediaKind `json:"kind"`
	Title        string    `json:"title"`
	Overview     string    `json:"overview"`
	PosterPath   *string   `json:"poster_path"`
	BackdropPath *string   `json:"backdrop_path"`
	VoteAverage  float64   `json:"vote_average"`
	ReleaseDate  *string   `json:"release_date"`
	GenreIDs     []int     `json:"genre_ids"`
}

// Key 返回条目的复合键
func (i CatalogItem) Key() ItemKey {
	return ItemKey{Kind: i.Kind, ID: i.ID}
}

// MatchPercent 评分换算成匹配度百分比
func (i CatalogItem) MatchPercent() int {
	return int(math.Round(i.VoteAverage * 10))
}

// Year 上映年份，没有日期时返回空
func (i CatalogItem) Year() string {
	if i.ReleaseDate == nil {
		return ""
	}
	year, _, _ := strings.Cut(*i.ReleaseDate, "-")
	return year
}

// Category 分类名称
type Category string

const (
	CategoryTrending         Category = "trending"
	CategoryOriginals        Category = "originals"
	CategoryTopRated         Category = "top_rated"
	CategoryAction           Category = "action"
	CategoryComedy           Category = "comedy"
	CategoryHorror           Category = "horror"
	CategoryDocumentary      Category = "documentary"
	CategoryRomance          Category = "romance"
	CategoryRegionalLanguage Category = "regional_language"
)

// AllCategories 默认的分类列表，也是首页的展示顺序
var AllCategories = []Category{
	CategoryOriginals,
	CategoryTrending,
	CategoryTopRated,
	CategoryAction,
	CategoryComedy,
	CategoryHorror,
	CategoryDocumentary,
	CategoryRomance,
	CategoryRegionalLanguage,
}

// CategorySet 一次聚合的结果快照
// 创建后不可修改，重新聚合时整体替换
type CategorySet struct {
	order []Category
	items map[Category][]CatalogItem
}

// NewCategorySet 按给定分类顺序构造快照，缺失的分类映射为空列表
func NewCategorySet(order []Category, items map[Category][]CatalogItem) *CategorySet {
	set := &CategorySet{
		order: slices.Clone(order),
		items: make(map[Category][]CatalogItem, len(order)),
	}
	for _, c := range order {
		list := items[c]
		if list == nil {
			list = []CatalogItem{}
		}
		set.items[c] = slices.Clone(list)
	}
	return set
}

// Categories 快照中的分类（按配置顺序）
func (s *CategorySet) Categories() []Category {
	if s == nil {
		return nil
	}
	return slices.Clone(s.order)
}

// Items 某个分类的条目副本
func (s *CategorySet) Items(c Category) []CatalogItem {
	if s == nil {
		return nil
	}
	return slices.Clone(s.items[c])
}

// Has 分类是否存在于快照中
func (s *CategorySet) Has(c Category) bool {
	if s == nil {
		return false
	}
	_, ok := s.items[c]
	return ok
}

// Len 分类数量
func (s *CategorySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// categoryRow 序列化时保留分类顺序
type categoryRow struct {
	Category Category      `json:"category"`
	Items    []CatalogItem `json:"items"`
}

func (s *CategorySet) MarshalJSON() ([]byte, error) {
	rows := make([]categoryRow, 0, s.Len())
	if s != nil {
		for _, c := range s.order {
			rows = append(rows, categoryRow{Category: c, Items: s.items[c]})
		}
	}
	return json.Marshal(rows)
}
