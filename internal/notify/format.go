package notify

import (
	"strings"

	"github.com/JakeFAU/bidwatch/internal/bid"
)

// Format renders one message for a keyword's newly admitted records. Blocks
// are separated by a blank line; records without a doc type omit that line.
func Format(records []bid.Record) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("【标题】")
		b.WriteString(r.Title)
		b.WriteByte('\n')
		if r.DocType != "" {
			b.WriteString("【类型】")
			b.WriteString(r.DocType)
			b.WriteByte('\n')
		}
		b.WriteString("【链接】")
		b.WriteString(r.Link)
	}
	return b.String()
}

// Startup is the lifecycle message sent when a run begins.
func Startup(ts string) string {
	return "重启，必胜！\n " + ts
}

// Shutdown is the lifecycle message sent when a run ends.
func Shutdown(ts string) string {
	return "归零，更新！\n" + ts
}

// Failure reports an unhandled run failure.
func Failure(err error) string {
	return "全局异常: " + err.Error()
}
