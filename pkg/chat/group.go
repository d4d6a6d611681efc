package chat

import (
	"sort"
	"time"
)

// DayGroup is the messages of one calendar day.
type DayGroup struct {
	Day      time.Time
	Label    string
	Messages []*Message
}

// GroupByDay groups messages by the local calendar day of CreatedAt. There is
// one group per day, oldest first; messages keep their order within a group.
// Messages with a zero timestamp are treated as created now.
func GroupByDay(messages []*Message, now time.Time) []DayGroup {
	var groups []DayGroup
	index := make(map[time.Time]int)
	for _, m := range messages {
		ts := m.CreatedAt
		if ts.IsZero() {
			ts = now
		}
		day := startOfDay(ts.In(now.Location()))

		if i, ok := index[day]; ok {
			groups[i].Messages = append(groups[i].Messages, m)
			continue
		}
		index[day] = len(groups)
		groups = append(groups, DayGroup{Day: day, Label: dayLabel(day, now), Messages: []*Message{m}})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Day.Before(groups[j].Day)
	})
	return groups
}

func startOfDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

func dayLabel(day, now time.Time) string {
	today := startOfDay(now)
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return day.Format("Monday, January 2, 2006")
	}
}
