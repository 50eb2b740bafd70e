package service

import (
	"levelup_backend/internal/model"
	"time"
)

// DateOnly 丢弃时分秒，统一到 UTC 零点，连续天数只看日历日
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// advanceStreak 按完成记录的逻辑日期推进连续天数：
//
//	首次活跃        -> 1
//	间隔 0 天       -> 不变（同日多次完成不重复累计）
//	间隔 1 天       -> +1
//	间隔 > 1 天     -> 归 1（断签重新开始）
//	间隔 < 0 天     -> 不变（时钟偏移/回填，绝不递减）
//
// 日期来自完成记录本身而不是读取时的墙钟，回放对账因此可确定重现
func advanceStreak(state *model.StreakState, day time.Time) {
	day = DateOnly(day)

	if state.StreakCount == 0 || state.LastActivityDate.IsZero() {
		state.StreakCount = 1
		state.LastActivityDate = day
		return
	}

	last := DateOnly(state.LastActivityDate)
	diffDays := int(day.Sub(last).Hours() / 24)

	switch {
	case diffDays == 1:
		state.StreakCount++
	case diffDays > 1:
		state.StreakCount = 1
	}
	// diffDays <= 0 保持原计数

	state.LastActivityDate = day
}

// ReplayStreak 以完成时间升序回放，重建最终连续天数状态
func ReplayStreak(userID string, records []model.CompletionRecord) model.StreakState {
	state := model.StreakState{UserID: userID}
	for _, rec := range records {
		advanceStreak(&state, rec.CompletedAt)
	}
	return state
}
