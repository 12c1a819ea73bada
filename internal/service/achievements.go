package service

import (
	_ "embed"
	"encoding/json"
	"log"
	"math"
	"strings"

	"hit/internal/model"
)

const (
	metricSessions      = "sessions"
	metricStreak        = "streak"
	metricAverage       = "average"
	metricSpeedSessions = "speed_sessions"
)

//go:embed achievement_rules.json
var achievementRulesRawJSON []byte

type achievementRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Metric      string `json:"metric"`
	Target      int    `json:"target"`
}

type achievementCatalog struct {
	Achievements []achievementRule `json:"achievements"`
}

func loadAchievementRules() []achievementRule {
	var catalog achievementCatalog
	if err := json.Unmarshal(achievementRulesRawJSON, &catalog); err != nil {
		log.Printf("achievement rules unreadable: %v", err)
		return nil
	}
	rules := make([]achievementRule, 0, len(catalog.Achievements))
	for _, rule := range catalog.Achievements {
		rule.ID = strings.TrimSpace(rule.ID)
		if rule.ID == "" {
			continue
		}
		if rule.Target <= 0 {
			rule.Target = 1
		}
		rules = append(rules, rule)
	}
	return rules
}

func evaluateAchievements(rules []achievementRule, stats model.UserStats) []model.Achievement {
	speedSessions := 0
	for _, session := range stats.History {
		if session.IsSpeedMode {
			speedSessions++
		}
	}

	achievements := make([]model.Achievement, 0, len(rules))
	for _, rule := range rules {
		var progress int
		switch rule.Metric {
		case metricSessions:
			progress = stats.TotalSessions
		case metricStreak:
			progress = stats.Streak
		case metricAverage:
			if stats.TotalSessions > 0 {
				progress = int(math.Round(stats.AverageScore))
			}
		case metricSpeedSessions:
			progress = speedSessions
		}
		unlocked := progress >= rule.Target
		if progress > rule.Target {
			progress = rule.Target
		}
		achievements = append(achievements, model.Achievement{
			ID:          rule.ID,
			Name:        rule.Name,
			Description: rule.Description,
			Unlocked:    unlocked,
			Progress:    progress,
			Target:      rule.Target,
		})
	}
	return achievements
}
