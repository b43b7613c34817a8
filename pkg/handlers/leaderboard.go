package handlers

import (
	"math"
	"net/http"
	"sort"
	"time"

	"studyhabit-backend/pkg/config"
	"studyhabit-backend/pkg/database"
	"studyhabit-backend/pkg/middleware"
	"studyhabit-backend/pkg/models"
	"studyhabit-backend/pkg/utils"
)

// LeaderboardHandler 排行榜与个人统计处理器
type LeaderboardHandler struct {
	config *config.Config
	client *database.Client
}

// NewLeaderboardHandler 创建排行榜处理器
func NewLeaderboardHandler(cfg *config.Config, client *database.Client) *LeaderboardHandler {
	return &LeaderboardHandler{config: cfg, client: client}
}

// LeaderboardEntry 排行榜单行
type LeaderboardEntry struct {
	UserID     string  `json:"user_id"`
	FullName   string  `json:"full_name"`
	TotalHours float64 `json:"total_hours"`
	Sessions   int     `json:"sessions"`
	Rank       int     `json:"rank"`
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// periodStart 解析 period 查询参数（week | month，默认 week）
func periodStart(period string, now time.Time) time.Time {
	switch period {
	case "month":
		return now.AddDate(0, 0, -30)
	default:
		return now.AddDate(0, 0, -7)
	}
}

// GetLeaderboard 汇总窗口期内每个学生的总学习时长，按时长倒序取前10
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.RequireUser(r.Context()); err != nil {
		utils.WriteUnauthorizedResponse(w, err.Error())
		return
	}

	since := periodStart(r.URL.Query().Get("period"), time.Now().UTC())

	sessions, err := h.client.From("study_sessions").
		Select().
		Gte("session_date", since.Format(time.RFC3339)).
		Exec(r.Context())
	if err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	profiles, err := h.client.From("profiles").
		Select().
		Eq("role", "student").
		Exec(r.Context())
	if err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	names := make(map[string]string, len(profiles))
	for _, p := range profiles {
		id, _ := p["id"].(string)
		name, _ := p["full_name"].(string)
		names[id] = name
	}

	totals := make(map[string]*LeaderboardEntry)
	for _, s := range sessions {
		userID, _ := s["user_id"].(string)
		name, isStudent := names[userID]
		if !isStudent {
			continue
		}
		hours, _ := s["duration_hours"].(float64)

		entry, ok := totals[userID]
		if !ok {
			entry = &LeaderboardEntry{UserID: userID, FullName: name}
			totals[userID] = entry
		}
		entry.TotalHours += hours
		entry.Sessions++
	}

	entries := make([]LeaderboardEntry, 0, len(totals))
	for _, e := range totals {
		e.TotalHours = round1(e.TotalHours)
		entries = append(entries, *e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalHours > entries[j].TotalHours
	})
	if len(entries) > 10 {
		entries = entries[:10]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	utils.WriteSuccessResponse(w, entries)
}

// StatsResponse 个人学习统计
type StatsResponse struct {
	TotalHours    float64            `json:"total_hours"`
	TotalSessions int                `json:"total_sessions"`
	BySubject     map[string]float64 `json:"by_subject"`
	StreakDays    int                `json:"streak_days"`
}

// GetStats 当前用户的学习统计：总时长、科目分布、连续学习天数
func (h *LeaderboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, err.Error())
		return
	}

	records, err := h.client.From("study_sessions").
		Select().
		Eq("user_id", user.ID).
		Order("session_date", false).
		Exec(r.Context())
	if err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	sessions := make([]models.StudySession, 0, len(records))
	if err := database.Decode(records, &sessions); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to decode sessions")
		return
	}

	stats := StatsResponse{BySubject: make(map[string]float64)}
	days := make(map[string]bool)
	for _, s := range sessions {
		stats.TotalHours += s.DurationHours
		stats.TotalSessions++
		stats.BySubject[s.Subject] = round1(stats.BySubject[s.Subject] + s.DurationHours)
		days[s.SessionDate.UTC().Format("2006-01-02")] = true
	}
	stats.TotalHours = round1(stats.TotalHours)

	// 从今天往回数连续有学习记录的天数
	day := time.Now().UTC()
	for days[day.Format("2006-01-02")] {
		stats.StreakDays++
		day = day.AddDate(0, 0, -1)
	}

	utils.WriteSuccessResponse(w, stats)
}

// ListAchievements 当前用户已获得的徽章（本地层只存储，不颁发）
func (h *LeaderboardHandler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, err.Error())
		return
	}

	records, err := h.client.From("achievements").
		Select().
		Eq("user_id", user.ID).
		Order("earned_at", false).
		Exec(r.Context())
	if err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	achievements := make([]models.Achievement, 0, len(records))
	if err := database.Decode(records, &achievements); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to decode achievements")
		return
	}

	utils.WriteSuccessResponse(w, achievements)
}
