package database

import (
	"fmt"
	"math"
	"time"

	"studyhabit-backend/pkg/logs"
)

// StorageVersion 模式版本标记。升级此常量会强制整体重置种子数据。
const StorageVersion = "2.1"

var seedSubjects = []string{"Math", "Science", "History", "English"}

// ClearVersionMarker 删除版本标记；下一次客户端初始化会强制重置种子数据。
func ClearVersionMarker(s Storage) error {
	return s.Delete(keyVersion)
}

// ensureSeed 版本守卫：版本标记不匹配或 profiles 集合为空时，
// 无条件覆盖全部数据并写入演示账号。
func (c *Client) ensureSeed() error {
	stored, _ := c.storage.Get(keyVersion)
	if string(stored) == StorageVersion && len(readCollection(c.storage, keyProfiles)) > 0 {
		return nil
	}

	logs.Logger.Info("initializing local storage with demo accounts")

	now := nowRFC3339()

	orgs := []Record{{
		"id":                  "org-1",
		"organization_name":   "Demo Organization",
		"organization_type":   "University",
		"expected_students":   "50-100",
		"subscription_plan":   "monthly",
		"subscription_status": "active",
		"trial_ends_at":       nil,
		"created_at":          now,
		"updated_at":          now,
	}}
	if err := writeCollection(c.storage, keyOrganizations, orgs); err != nil {
		return err
	}

	profiles := []Record{
		{
			"id":              "admin-1",
			"email":           "admin@studyhabit.com",
			"full_name":       "Admin User",
			"role":            "admin",
			"organization_id": "org-1",
			"avatar_url":      nil,
			"password":        "admin123",
			"created_at":      now,
			"updated_at":      now,
		},
		{
			"id":              "student-1",
			"email":           "student@studyhabit.com",
			"full_name":       "Demo Student",
			"role":            "student",
			"organization_id": "org-1",
			"avatar_url":      nil,
			"password":        "student123",
			"created_at":      now,
			"updated_at":      now,
		},
	}
	if err := writeCollection(c.storage, keyProfiles, profiles); err != nil {
		return err
	}

	// 给演示学生最近 14 天每天一条学习记录。
	// 科目和时长由下标确定性导出，时长落在 [0.5, 3.5]，保留一位小数。
	today := time.Now().UTC()
	sessions := make([]Record, 0, 14)
	for i := 0; i < 14; i++ {
		duration := 0.5 + float64((i*7)%31)/10
		duration = math.Round(duration*10) / 10

		sessions = append(sessions, Record{
			"id":             fmt.Sprintf("session-%d", i),
			"user_id":        "student-1",
			"subject":        seedSubjects[i%len(seedSubjects)],
			"duration_hours": duration,
			"notes":          "Demo session",
			"session_date":   today.AddDate(0, 0, -i).Format(time.RFC3339),
			"created_at":     now,
			"updated_at":     now,
		})
	}
	if err := writeCollection(c.storage, keySessions, sessions); err != nil {
		return err
	}

	if err := writeCollection(c.storage, keyInvitations, []Record{}); err != nil {
		return err
	}

	if err := c.storage.Put(keyVersion, []byte(StorageVersion)); err != nil {
		return err
	}

	logs.Logger.WithField("accounts", []string{
		"admin@studyhabit.com / admin123",
		"student@studyhabit.com / student123",
	}).Info("demo accounts created")

	return nil
}
