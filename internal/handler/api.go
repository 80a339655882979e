package handler

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/flixdeck/internal/middleware"
	"github.com/user/flixdeck/internal/model"
	"github.com/user/flixdeck/internal/service"
	"github.com/user/flixdeck/internal/utils"
)

// itemRequest 前端提交的内容条目
type itemRequest struct {
	ID           int     `json:"id" binding:"required,gt=0"`
	Kind         string  `json:"kind" binding:"required,oneof=movie tv series"`
	Title        string  `json:"title" binding:"required"`
	Overview     string  `json:"overview"`
	PosterPath   *string `json:"poster_path"`
	BackdropPath *string `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average" binding:"gte=0,lte=10"`
	ReleaseDate  *string `json:"release_date"`
	GenreIDs     []int   `json:"genre_ids"`
}

func (r itemRequest) toItem() model.CatalogItem {
	kind, _ := model.ParseMediaKind(r.Kind)
	genreIDs := r.GenreIDs
	if genreIDs == nil {
		genreIDs = []int{}
	}
	return model.CatalogItem{
		ID:           r.ID,
		Kind:         kind,
		Title:        r.Title,
		Overview:     r.Overview,
		PosterPath:   r.PosterPath,
		BackdropPath: r.BackdropPath,
		VoteAverage:  r.VoteAverage,
		ReleaseDate:  r.ReleaseDate,
		GenreIDs:     genreIDs,
	}
}

// currentSession 获取当前用户的会话
func (h *Handler) currentSession(c *gin.Context) (*service.CatalogSession, bool) {
	s, err := h.Sessions.Get(c.Request.Context(), middleware.GetIdentity(c))
	if err != nil {
		if errors.Is(err, service.ErrUnauthenticated) {
			utils.Unauthorized(c, "")
		} else {
			utils.InternalServerError(c, "")
		}
		return nil, false
	}
	return s, true
}

// parseItemKey 解析路径中的 kind 和 id
func parseItemKey(c *gin.Context) (model.ItemKey, bool) {
	kind, err := model.ParseMediaKind(c.Param("kind"))
	if err != nil {
		utils.BadRequest(c, "未知的内容类型")
		return model.ItemKey{}, false
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		utils.BadRequest(c, "无效的 ID")
		return model.ItemKey{}, false
	}
	return model.ItemKey{Kind: kind, ID: id}, true
}

// remoteFailure 远端失败的统一响应
func remoteFailure(c *gin.Context, err error) {
	var remoteErr *service.RemoteError
	if errors.As(err, &remoteErr) {
		if remoteErr.Status == http.StatusNotFound {
			utils.NotFound(c, remoteErr.Message)
			return
		}
		utils.BadGateway(c, remoteErr.Message)
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		utils.Error(c, http.StatusGatewayTimeout, "请求超时")
		return
	}
	utils.InternalServerError(c, err.Error())
}

// ==================== 首页数据 ====================

// loadInBackground 后台执行聚合，结果通过快照和 SSE 下发
func loadInBackground(s *service.CatalogSession, action string, load func(context.Context) error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Catalog] 后台%s发生恐慌 (用户: %s): %v", action, s.UserID(), r)
			}
		}()
		// 全部失败时快照里已有失败原因
		if err := load(context.Background()); err != nil {
			log.Printf("[Catalog] 后台%s失败 (用户: %s): %v", action, s.UserID(), err)
		}
	}()
}

// Catalog 返回会话快照，首次访问时在后台开始聚合
func (h *Handler) Catalog(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}

	snapshot := s.Snapshot()
	if snapshot.State == service.StateIdle {
		loadInBackground(s, "聚合", s.Start)
		snapshot.State = service.StateLoading
	}

	utils.Success(c, snapshot)
}

// RetryCatalog 在后台重新聚合并立即返回，加载中时忽略
func (h *Handler) RetryCatalog(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}

	snapshot := s.Snapshot()
	if snapshot.State != service.StateLoading {
		loadInBackground(s, "重试", s.Retry)
		snapshot.State = service.StateLoading
		snapshot.Categories = nil
	}

	utils.Success(c, snapshot)
}

// CatalogEvents 以 SSE 推送会话快照
func (h *Handler) CatalogEvents(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}

	updates := make(chan service.Snapshot, 8)
	unsubscribe := s.Subscribe(func(snap service.Snapshot) {
		select {
		case updates <- snap:
		default:
			// 客户端太慢，丢弃中间状态
		}
	})
	defer unsubscribe()

	c.SSEvent("snapshot", s.Snapshot())
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case snap := <-updates:
			c.SSEvent("snapshot", snap)
			return true
		}
	})
}

// ==================== 推荐 ====================

// Featured 当前推荐
func (h *Handler) Featured(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}
	utils.Success(c, s.Snapshot().Featured)
}

// SetFeatured 手动设置推荐
func (h *Handler) SetFeatured(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "参数错误: "+err.Error())
		return
	}
	utils.Success(c, s.SetFeaturedManually(req.toItem()))
}

// ==================== 详情 ====================

// detailView 详情及图片地址
type detailView struct {
	*model.DetailRecord
	CastProfiles []string `json:"cast_profile_urls"`
}

func (h *Handler) newDetailView(record *model.DetailRecord) detailView {
	view := detailView{DetailRecord: record, CastProfiles: make([]string, 0, len(record.Cast))}
	for _, member := range record.Cast {
		view.CastProfiles = append(view.CastProfiles, utils.ProfileURL(h.Config.TMDBImageBaseURL, member.ProfileImagePath))
	}
	return view
}

// Details 获取详情
func (h *Handler) Details(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}
	key, ok := parseItemKey(c)
	if !ok {
		return
	}

	record, err := s.GetDetails(c.Request.Context(), key.Kind, key.ID)
	if err != nil {
		remoteFailure(c, err)
		return
	}
	utils.Success(c, h.newDetailView(record))
}

// OpenDetails 打开详情弹窗
func (h *Handler) OpenDetails(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	_, err := s.OpenDetails(c.Request.Context(), req.toItem())
	if errors.Is(err, service.ErrSuperseded) {
		utils.Error(c, http.StatusConflict, "已打开其他条目")
		return
	}
	// 详情失败不关闭弹窗，错误在 selection.error 中
	utils.Success(c, s.Snapshot().Selection)
}

// CloseDetails 关闭详情弹窗
func (h *Handler) CloseDetails(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}
	s.CloseDetails()
	utils.Success(c, nil)
}

// ==================== 搜索 ====================

// Search 搜索
func (h *Handler) Search(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}

	items, err := s.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		remoteFailure(c, err)
		return
	}
	utils.Success(c, gin.H{
		"query": c.Query("q"),
		"items": items,
	})
}

// ==================== 片单 ====================

// watchlistView 片单条目及展示字段
type watchlistView struct {
	model.WatchlistEntry
	PosterURL    string   `json:"poster_url"`
	BackdropURL  string   `json:"backdrop_url"`
	Genres       []string `json:"genres"`
	MatchPercent int      `json:"match_percent"`
	Year         string   `json:"year"`
}

// Watchlist 片单列表（按加入顺序）
func (h *Handler) Watchlist(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}

	entries := s.Watchlist().Entries()
	views := make([]watchlistView, 0, len(entries))
	for _, e := range entries {
		item := e.Item()
		views = append(views, watchlistView{
			WatchlistEntry: e,
			PosterURL:      utils.PosterURL(h.Config.TMDBImageBaseURL, e.PosterPath),
			BackdropURL:    utils.BackdropURL(h.Config.TMDBImageBaseURL, e.BackdropPath),
			Genres:         model.GenreNames(e.GenreIDs),
			MatchPercent:   item.MatchPercent(),
			Year:           item.Year(),
		})
	}
	utils.Success(c, views)
}

// ToggleWatchlist 切换片单状态
func (h *Handler) ToggleWatchlist(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	inList := s.ToggleWatchlist(req.toItem())
	utils.Success(c, gin.H{"in_watchlist": inList})
}

// WatchlistStatus 是否在片单中
func (h *Handler) WatchlistStatus(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}
	key, ok := parseItemKey(c)
	if !ok {
		return
	}
	utils.Success(c, gin.H{"in_watchlist": s.IsInWatchlist(key.Kind, key.ID)})
}

// RemoveFromWatchlist 从片单移除，不存在时同样返回成功
func (h *Handler) RemoveFromWatchlist(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}
	key, ok := parseItemKey(c)
	if !ok {
		return
	}
	s.Watchlist().Remove(key)
	utils.Success(c, gin.H{"in_watchlist": false})
}
