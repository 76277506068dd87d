package lifecycle

import "fmt"

// FormatTopicCode 生成立项编号，如 NCKH-25-001
func FormatTopicCode(prefix string, year, seq int) string {
	if prefix == "" {
		prefix = "NCKH"
	}
	return fmt.Sprintf("%s-%02d-%03d", prefix, year%100, seq)
}
