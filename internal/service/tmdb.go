package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/user/flixdeck/internal/model"
	"github.com/user/flixdeck/internal/utils"
)

// MetadataClient 远端元数据服务
// 不做重试，重试策略由调用方决定
type MetadataClient interface {
	FetchCategory(ctx context.Context, category model.Category) ([]model.CatalogItem, error)
	FetchDetails(ctx context.Context, kind model.MediaKind, id int) (*model.DetailRecord, error)
	Search(ctx context.Context, query string) ([]model.CatalogItem, error)
}

// TMDBOptions TMDB 客户端配置
type TMDBOptions struct {
	BaseURL            string
	Token              string
	APIKey             string
	Language           string
	Timeout            time.Duration
	OriginalsNetworkID int
	RegionalLanguage   string
}

// TMDBClient TMDB 元数据客户端
type TMDBClient struct {
	http *utils.HTTPClient
	opts TMDBOptions
}

// NewTMDBClient 创建 TMDB 客户端
// Token 走 Bearer 头，APIKey 走 api_key 参数，两者可同时配置
func NewTMDBClient(opts TMDBOptions) *TMDBClient {
	headers := map[string]string{}
	if opts.Token != "" {
		headers["Authorization"] = "Bearer " + opts.Token
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &TMDBClient{
		http: utils.NewHTTPClient(opts.Timeout, headers),
		opts: opts,
	}
}

// categoryEndpoint 分类对应的接口、参数和默认内容类型
func (c *TMDBClient) categoryEndpoint(category model.Category) (string, url.Values, model.MediaKind, error) {
	params := url.Values{}
	switch category {
	case model.CategoryTrending:
		return "/trending/all/week", params, model.KindMovie, nil
	case model.CategoryOriginals:
		params.Set("with_networks", strconv.Itoa(c.opts.OriginalsNetworkID))
		return "/discover/tv", params, model.KindSeries, nil
	case model.CategoryTopRated:
		return "/movie/top_rated", params, model.KindMovie, nil
	case model.CategoryAction:
		params.Set("with_genres", "28")
	case model.CategoryComedy:
		params.Set("with_genres", "35")
	case model.CategoryHorror:
		params.Set("with_genres", "27")
	case model.CategoryDocumentary:
		params.Set("with_genres", "99")
	case model.CategoryRomance:
		params.Set("with_genres", "10749")
	case model.CategoryRegionalLanguage:
		params.Set("with_original_language", c.opts.RegionalLanguage)
		params.Set("sort_by", "popularity.desc")
	default:
		return "", nil, "", fmt.Errorf("unknown category: %s", category)
	}
	return "/discover/movie", params, model.KindMovie, nil
}

type tmdbListItem struct {
	ID           int     `json:"id"`
	MediaType    string  `json:"media_type"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	PosterPath   *string `json:"poster_path"`
	BackdropPath *string `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
	ReleaseDate  *string `json:"release_date"`
	FirstAirDate *string `json:"first_air_date"`
	GenreIDs     []int   `json:"genre_ids"`
}

type tmdbListResponse struct {
	Page    int            `json:"page"`
	Results []tmdbListItem `json:"results"`
}

// FetchCategory 获取分类列表（只取第一页）
func (c *TMDBClient) FetchCategory(ctx context.Context, category model.Category) ([]model.CatalogItem, error) {
	path, params, kind, err := c.categoryEndpoint(category)
	if err != nil {
		return nil, err
	}

	var resp tmdbListResponse
	if err := c.getJSON(ctx, path, params, &resp); err != nil {
		return nil, err
	}
	return mapListItems(resp.Results, kind), nil
}

// Search 多类型搜索，空查询直接返回空结果
func (c *TMDBClient) Search(ctx context.Context, query string) ([]model.CatalogItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.CatalogItem{}, nil
	}

	params := url.Values{}
	params.Set("query", query)

	var resp tmdbListResponse
	if err := c.getJSON(ctx, "/search/multi", params, &resp); err != nil {
		return nil, err
	}
	return mapListItems(resp.Results, model.KindMovie), nil
}

type tmdbDetailsResponse struct {
	ID             int           `json:"id"`
	Genres         []model.Genre `json:"genres"`
	Runtime        int           `json:"runtime"`
	EpisodeRunTime []int         `json:"episode_run_time"` // 电视剧
	Videos         struct {
		Results []struct {
			Key  string `json:"key"`
			Site string `json:"site"`
			Type string `json:"type"`
		} `json:"results"`
	} `json:"videos"`
	Credits struct {
		Cast []struct {
			ID          int     `json:"id"`
			Name        string  `json:"name"`
			ProfilePath *string `json:"profile_path"`
		} `json:"cast"`
	} `json:"credits"`
}

// FetchDetails 一次请求带回类型、片长、预告片和演员
func (c *TMDBClient) FetchDetails(ctx context.Context, kind model.MediaKind, id int) (*model.DetailRecord, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown media kind: %q", kind)
	}

	params := url.Values{}
	params.Set("append_to_response", "videos,credits")

	var resp tmdbDetailsResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/%s/%d", kind, id), params, &resp); err != nil {
		return nil, err
	}
	return mapDetails(model.ItemKey{Kind: kind, ID: id}, &resp), nil
}

// getJSON 发送请求，所有失败统一转为 RemoteError
func (c *TMDBClient) getJSON(ctx context.Context, path string, params url.Values, target interface{}) error {
	if c.opts.APIKey != "" {
		params.Set("api_key", c.opts.APIKey)
	}
	if c.opts.Language != "" {
		params.Set("language", c.opts.Language)
	}
	endpoint := c.opts.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	err := c.http.GetJSON(ctx, endpoint, target)
	if err == nil {
		return nil
	}

	var statusErr *utils.StatusError
	if errors.As(err, &statusErr) {
		return &RemoteError{
			Status:  statusErr.StatusCode,
			Message: tmdbStatusMessage(statusErr.Body),
			Err:     err,
		}
	}
	return &RemoteError{Message: err.Error(), Err: err}
}

// tmdbStatusMessage 提取 TMDB 错误体中的 status_message
func tmdbStatusMessage(body string) string {
	var payload struct {
		StatusMessage string `json:"status_message"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err == nil && payload.StatusMessage != "" {
		return payload.StatusMessage
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return body
}

// mapListItems 转换列表条目，跳过人物结果
func mapListItems(results []tmdbListItem, fallback model.MediaKind) []model.CatalogItem {
	items := make([]model.CatalogItem, 0, len(results))
	for _, r := range results {
		kind := fallback
		switch r.MediaType {
		case "":
		case "movie", "tv":
			kind = model.MediaKind(r.MediaType)
		default:
			continue
		}

		title := r.Title
		if title == "" {
			title = r.Name
		}
		releaseDate := nonEmpty(r.ReleaseDate)
		if releaseDate == nil {
			releaseDate = nonEmpty(r.FirstAirDate)
		}
		genreIDs := r.GenreIDs
		if genreIDs == nil {
			genreIDs = []int{}
		}

		items = append(items, model.CatalogItem{
			ID:           r.ID,
			Kind:         kind,
			Title:        title,
			Overview:     r.Overview,
			PosterPath:   nonEmpty(r.PosterPath),
			BackdropPath: nonEmpty(r.BackdropPath),
			VoteAverage:  r.VoteAverage,
			ReleaseDate:  releaseDate,
			GenreIDs:     genreIDs,
		})
	}
	return items
}

func mapDetails(key model.ItemKey, resp *tmdbDetailsResponse) *model.DetailRecord {
	record := &model.DetailRecord{
		Key:    key,
		Genres: resp.Genres,
		Cast:   []model.CastMember{},
	}
	if record.Genres == nil {
		record.Genres = []model.Genre{}
	}

	if resp.Runtime > 0 {
		runtime := resp.Runtime
		record.RuntimeMinutes = &runtime
	} else if len(resp.EpisodeRunTime) > 0 && resp.EpisodeRunTime[0] > 0 {
		runtime := resp.EpisodeRunTime[0]
		record.RuntimeMinutes = &runtime
	}

	for _, v := range resp.Videos.Results {
		if v.Type == "Trailer" && v.Site == "YouTube" {
			trailer := v.Key
			record.TrailerKey = &trailer
			break
		}
	}

	for _, member := range resp.Credits.Cast {
		if len(record.Cast) == model.MaxCastMembers {
			break
		}
		record.Cast = append(record.Cast, model.CastMember{
			ID:               member.ID,
			Name:             member.Name,
			ProfileImagePath: nonEmpty(member.ProfilePath),
		})
	}
	return record
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
