package wecom

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Message size limits, counted in characters
const (
	MaxMessageLength = 2048
	ChunkSize        = 1800
)

// Footer identity
const (
	ProjectName = "Karmy-Gold"
	DataSource  = "AkShare"
)

// Category selects the prefix of a notification
type Category string

const (
	CategoryArbitrage    Category = "arbitrage"
	CategoryPosition     Category = "position"
	CategoryDailyReport  Category = "daily_report"
	CategoryError        Category = "error"
	CategoryTask         Category = "task_notification"
	CategoryDataCleaning Category = "data_cleaning"
	CategoryDefault      Category = "default"
)

// Prefix returns the heading line of the category
func (c Category) Prefix() string {
	switch c {
	case CategoryArbitrage:
		return "📊 【套利机会】\n"
	case CategoryPosition:
		return "📈 【仓位策略】\n"
	case CategoryDailyReport:
		return "🗞️ 【每日报告】\n"
	case CategoryError:
		return "❌ 【系统错误】\n"
	case CategoryTask:
		return "🔧 【任务通知】\n"
	case CategoryDataCleaning:
		return "🧹 【数据清理】\n"
	default:
		return "ℹ️ 【消息】\n"
	}
}

// Footer is appended to every notification
func Footer(environment string, at time.Time) string {
	return fmt.Sprintf("\n\n【%s】\n📊 数据来源：%s | 环境：%s\n🕒 消息生成时间：%s",
		ProjectName, DataSource, environment, at.Format("2006-01-02 15:04:05"))
}

// Format wraps message with the category prefix and the footer. at should
// already be in Beijing time.
func Format(message string, category Category, environment string, at time.Time) string {
	return category.Prefix() + message + Footer(environment, at)
}

// PageHeader marks page i (1-based) of n
func PageHeader(i, n int) string {
	return fmt.Sprintf("-------------  第%d条  /  共%d条  ---------------------\n\n", i, n)
}

// Split breaks message into chunks of at most ChunkSize characters on line
// boundaries. Messages up to MaxMessageLength are returned whole; a single
// line longer than ChunkSize is cut.
func Split(message string) []string {
	if utf8.RuneCountInString(message) <= MaxMessageLength {
		return []string{message}
	}

	var chunks []string
	var current []string
	size := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))
			current = current[:0]
			size = 0
		}
	}

	for _, line := range strings.Split(message, "\n") {
		for _, part := range cut(line, ChunkSize) {
			n := utf8.RuneCountInString(part)
			// each line carries one separator
			if size+n+1 > ChunkSize {
				flush()
			}
			current = append(current, part)
			size += n + 1
		}
	}
	flush()
	return chunks
}

// cut splits s into pieces of at most limit characters
func cut(s string, limit int) []string {
	runes := []rune(s)
	if len(runes) <= limit {
		return []string{s}
	}
	var parts []string
	for len(runes) > limit {
		parts = append(parts, string(runes[:limit-1]))
		runes = runes[limit-1:]
	}
	return append(parts, string(runes))
}
