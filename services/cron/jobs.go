package cron

import (
	"fmt"
	"time"

	"github.com/courseforge/api/model"
)

// purgeRetention is how long a soft-deleted course is kept before hard removal
const purgeRetention = 30 * 24 * time.Hour

// PurgeDeletedCourses hard-deletes course trees that were soft-deleted more
// than the retention period ago. Children go first so foreign keys never
// dangle mid-job.
func (m *CronManager) PurgeDeletedCourses() {
	const jobName = "purge_deleted_courses"
	cutoff := time.Now().Add(-purgeRetention)

	var courseIDs []uint
	if err := m.db.Unscoped().
		Model(&model.Course{}).
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Pluck("id", &courseIDs).Error; err != nil {
		m.logJobError(jobName, err)
		return
	}

	if len(courseIDs) == 0 {
		m.logJobComplete(jobName, "no courses to purge")
		return
	}

	var moduleIDs []uint
	if err := m.db.Unscoped().
		Model(&model.Module{}).
		Where("course_id IN ?", courseIDs).
		Pluck("id", &moduleIDs).Error; err != nil {
		m.logJobError(jobName, err)
		return
	}

	if len(moduleIDs) > 0 {
		if err := m.db.Unscoped().Where("module_id IN ?", moduleIDs).Delete(&model.Lesson{}).Error; err != nil {
			m.logJobError(jobName, err)
			return
		}
		if err := m.db.Unscoped().Where("module_id IN ?", moduleIDs).Delete(&model.Homework{}).Error; err != nil {
			m.logJobError(jobName, err)
			return
		}
		if err := m.db.Unscoped().Where("course_id IN ?", courseIDs).Delete(&model.Module{}).Error; err != nil {
			m.logJobError(jobName, err)
			return
		}
	}

	if err := m.db.Unscoped().Where("id IN ?", courseIDs).Delete(&model.Course{}).Error; err != nil {
		m.logJobError(jobName, err)
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("purged %d courses", len(courseIDs)))
}

// RollupTokenUsage sums the last hour of generation log counters into the job
// log, for billing telemetry without scanning the table ad hoc.
func (m *CronManager) RollupTokenUsage() {
	const jobName = "rollup_token_usage"
	since := time.Now().Add(-1 * time.Hour)

	var totals struct {
		Requests    int64
		TotalTokens int64
	}
	err := m.db.Model(&model.GenerationLog{}).
		Select("COUNT(*) AS requests, COALESCE(SUM(total_tokens), 0) AS total_tokens").
		Where("created_at >= ?", since).
		Scan(&totals).Error
	if err != nil {
		m.logJobError(jobName, err)
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("%d generation requests, %d tokens in the last hour", totals.Requests, totals.TotalTokens))
}

// CleanupTokenBlacklist removes expired JWT blacklist entries
func (m *CronManager) CleanupTokenBlacklist() {
	const jobName = "cleanup_token_blacklist"

	res := m.db.Unscoped().
		Where("expires_at < ?", time.Now()).
		Delete(&model.JWTTokenBlacklist{})
	if res.Error != nil {
		m.logJobError(jobName, res.Error)
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("removed %d expired tokens", res.RowsAffected))
}
