package cron

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kindred-ai/kindred-api/model"
)

// RepairStalePartialMessages marks chat messages stuck in pending status as
// partial so clients stop waiting on them. Runs every 15 minutes.
func (m *CronManager) RepairStalePartialMessages() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "repair_stale_partials"

	// A generation that has been pending for more than 15 minutes is dead
	cutoff := time.Now().Add(-15 * time.Minute)

	var stale []model.ChatMessage
	err := m.db.WithContext(ctx).
		Where("status = ? AND role = ? AND created_at < ?",
			model.MessageStatusPending, model.MessageRoleAssistant, cutoff).
		Find(&stale).Error
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to query stale messages: %w", err))
		return
	}

	if len(stale) == 0 {
		m.logJobComplete(jobName, "No stale messages found")
		return
	}

	repaired := 0
	failed := 0

	for _, msg := range stale {
		msg.MarkAsPartial("stale", "Generation did not complete before the repair cutoff")
		if err := m.db.WithContext(ctx).Save(&msg).Error; err != nil {
			log.Printf("[CRON] Failed to repair message %d: %v", msg.ID, err)
			failed++
			continue
		}
		repaired++
	}

	m.logJobComplete(jobName, fmt.Sprintf("Repaired %d stale messages, failed %d", repaired, failed))
}

// AggregateUsageStatistics aggregates usage statistics for the previous hour
// and stores them in app_settings. Runs every hour.
func (m *CronManager) AggregateUsageStatistics() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "aggregate_statistics"

	// Calculate time range (previous hour)
	now := time.Now()
	endTime := now.Truncate(time.Hour)
	startTime := endTime.Add(-time.Hour)

	// Aggregate chat statistics
	var chatSessions int64
	if err := m.db.Model(&model.ChatSession{}).
		Where("created_at >= ? AND created_at < ?", startTime, endTime).
		Count(&chatSessions).Error; err != nil {
		log.Printf("[CRON] Failed to aggregate chat sessions: %v", err)
	}

	var chatMessages int64
	if err := m.db.Model(&model.ChatMessage{}).
		Where("created_at >= ? AND created_at < ?", startTime, endTime).
		Count(&chatMessages).Error; err != nil {
		log.Printf("[CRON] Failed to aggregate chat messages: %v", err)
	}

	// Aggregate agent dialogue statistics
	var agentMessages int64
	if err := m.db.Model(&model.AgentChatMessage{}).
		Where("created_at >= ? AND created_at < ?", startTime, endTime).
		Count(&agentMessages).Error; err != nil {
		log.Printf("[CRON] Failed to aggregate agent messages: %v", err)
	}

	var agentBatches int64
	if err := m.db.Model(&model.AgentChatMessage{}).
		Select("COUNT(DISTINCT batch_id)").
		Where("created_at >= ? AND created_at < ? AND batch_id <> ''", startTime, endTime).
		Scan(&agentBatches).Error; err != nil {
		log.Printf("[CRON] Failed to aggregate agent batches: %v", err)
	}

	// Aggregate memory consolidations
	var summaries int64
	if err := m.db.Model(&model.AgentPromptHistory{}).
		Where("created_at >= ? AND created_at < ?", startTime, endTime).
		Count(&summaries).Error; err != nil {
		log.Printf("[CRON] Failed to aggregate summaries: %v", err)
	}

	statsJSON := fmt.Sprintf(`{
		"timestamp": "%s",
		"hour_start": "%s",
		"hour_end": "%s",
		"chat_sessions": %d,
		"chat_messages": %d,
		"agent_messages": %d,
		"agent_batches": %d,
		"summaries": %d
	}`, now.Format(time.RFC3339), startTime.Format(time.RFC3339), endTime.Format(time.RFC3339),
		chatSessions, chatMessages, agentMessages, agentBatches, summaries)

	// Save to app_settings with a unique key for this hour
	settingKey := fmt.Sprintf("stats_hourly_%s", startTime.Format("2006010215"))
	setting := model.AppSetting{
		Key:         settingKey,
		Value:       statsJSON,
		Type:        "json",
		Description: fmt.Sprintf("Hourly statistics for %s", startTime.Format("2006-01-02 15:00")),
		Category:    "statistics",
		IsPublic:    false,
	}

	if err := m.db.WithContext(ctx).Create(&setting).Error; err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to save statistics: %w", err))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Aggregated statistics for hour %s", startTime.Format("2006-01-02 15:00")))
}

// CleanupOldData removes old data to keep the database clean
// Runs daily at 2 AM
func (m *CronManager) CleanupOldData() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	jobName := "cleanup_old_data"

	totalCleaned := 0

	// 1. Clean up expired JWT tokens from blacklist (older than 30 days)
	cutoffTokens := time.Now().Add(-30 * 24 * time.Hour)
	result := m.db.Where("expires_at < ?", cutoffTokens).Delete(&model.JWTTokenBlacklist{})
	if result.Error != nil {
		log.Printf("[CRON] Failed to clean token blacklist: %v", result.Error)
	} else {
		log.Printf("[CRON] Cleaned %d expired tokens", result.RowsAffected)
		totalCleaned += int(result.RowsAffected)
	}

	// 2. Clean up old password reset tokens (older than 7 days)
	cutoffResets := time.Now().Add(-7 * 24 * time.Hour)
	result = m.db.Where("created_at < ?", cutoffResets).Delete(&model.PasswordResetToken{})
	if result.Error != nil {
		log.Printf("[CRON] Failed to clean password resets: %v", result.Error)
	} else {
		log.Printf("[CRON] Cleaned %d old password resets", result.RowsAffected)
		totalCleaned += int(result.RowsAffected)
	}

	// 3. Clean up old cron job logs (keep only last 90 days)
	cutoffLogs := time.Now().Add(-90 * 24 * time.Hour)
	result = m.db.Where("created_at < ?", cutoffLogs).Delete(&model.CronJobLog{})
	if result.Error != nil {
		log.Printf("[CRON] Failed to clean cron logs: %v", result.Error)
	} else {
		log.Printf("[CRON] Cleaned %d old cron logs", result.RowsAffected)
		totalCleaned += int(result.RowsAffected)
	}

	// 4. Clean up old hourly statistics (keep only last 90 days)
	cutoffStats := time.Now().Add(-90 * 24 * time.Hour)
	statsPattern := fmt.Sprintf("stats_hourly_%s%%", cutoffStats.Format("200601"))
	result = m.db.Unscoped().Where("key LIKE ? AND created_at < ?", statsPattern, cutoffStats).
		Delete(&model.AppSetting{})
	if result.Error != nil {
		log.Printf("[CRON] Failed to clean old statistics: %v", result.Error)
	} else {
		log.Printf("[CRON] Cleaned %d old statistics", result.RowsAffected)
		totalCleaned += int(result.RowsAffected)
	}

	// 5. Clean up chat sessions with no messages (older than 7 days)
	cutoffSessions := time.Now().Add(-7 * 24 * time.Hour)
	var emptySessions []model.ChatSession
	m.db.Where("created_at < ?", cutoffSessions).Find(&emptySessions)

	cleanedSessions := 0
	for _, session := range emptySessions {
		var messageCount int64
		m.db.Model(&model.ChatMessage{}).Where("session_id = ?", session.ID).Count(&messageCount)

		if messageCount == 0 {
			if err := m.db.WithContext(ctx).Delete(&session).Error; err != nil {
				log.Printf("[CRON] Failed to delete empty session %d: %v", session.ID, err)
			} else {
				cleanedSessions++
			}
		}
	}
	log.Printf("[CRON] Cleaned %d empty chat sessions", cleanedSessions)
	totalCleaned += cleanedSessions

	m.logJobComplete(jobName, fmt.Sprintf("Cleaned up %d total records", totalCleaned))
}
