package util

import (
	"strconv"
)

// ParseLessonIndex 解析路径中的课时下标，负数视为非法
func ParseLessonIndex(s string) (int, bool) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// ParseLimit 解析 limit 查询参数，解析失败返回 0 交给服务层使用默认值
func ParseLimit(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
