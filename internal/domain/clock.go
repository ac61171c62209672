package domain

import "time"

// Beijing is the exchange timezone (UTC+8, no DST)
var Beijing = time.FixedZone("CST", 8*60*60)

// DualTime returns now in UTC and in Beijing time
func DualTime(now time.Time) (utc, beijing time.Time) {
	return now.UTC(), now.In(Beijing)
}

// BeijingDate returns the calendar date of t in Beijing as YYYY-MM-DD
func BeijingDate(t time.Time) string {
	return t.In(Beijing).Format("2006-01-02")
}

// Clock abstracts the current time for tests
type Clock func() time.Time
