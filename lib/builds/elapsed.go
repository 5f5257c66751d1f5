package builds

import (
	"fmt"
	"time"
)

// FormatElapsed renders d as H:MM:SS, dropping the hours segment below one
// hour. Durations of a day or more keep counting hours.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h, m, s := total/3600, (total/60)%60, total%60
	if h == 0 {
		return fmt.Sprintf("%02d:%02d", m, s)
	}
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
