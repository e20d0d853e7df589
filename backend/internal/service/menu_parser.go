package service

import (
	"strings"
)

// DishMention 单元格中的一条菜品记录
type DishMention struct {
	Raw         string
	Name        string
	Description string
	IsFasting   bool
	IsComplete  bool
}

// fastingMarkers 斋期菜品标记（子串匹配，大小写不敏感）
var fastingMarkers = []string{"постн", "(пост)", "[пост]", "lenten", "fasting"}

// completeMarkers 已含配菜的主菜标记
var completeMarkers = []string{"с гарниром"}

// ParseCell 将单元格文本按换行拆分为菜品记录，空行跳过
func ParseCell(raw string) []DishMention {
	text := strings.ReplaceAll(raw, "_x000D_", "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var mentions []DishMention
	for _, segment := range strings.Split(text, "\n") {
		if strings.TrimSpace(segment) == "" {
			continue
		}
		mentions = append(mentions, ParseMention(segment))
	}
	return mentions
}

// ParseMention 拆分菜名与括号内描述
// 仅识别位于末尾的最后一个顶层括号，内部为空时整段视为菜名
func ParseMention(text string) DishMention {
	trimmed := strings.TrimSpace(text)
	m := DishMention{
		Raw:        trimmed,
		IsFasting:  containsAny(trimmed, fastingMarkers),
		IsComplete: containsAny(trimmed, completeMarkers),
	}

	openIdx, closeIdx := trailingParenSpan(trimmed)
	if openIdx >= 0 {
		inner := collapseSpaces(trimmed[openIdx+1 : closeIdx])
		if inner != "" {
			m.Name = collapseSpaces(trimmed[:openIdx])
			m.Description = inner
			return m
		}
	}

	m.Name = collapseSpaces(trimmed)
	return m
}

// IsFastingText 文本是否带斋期标记
func IsFastingText(text string) bool {
	return containsAny(text, fastingMarkers)
}

// trailingParenSpan 返回末尾顶层括号的 [open, close] 下标，未找到返回 -1
// 右括号之后只允许出现空白与 .,; 等收尾标点
func trailingParenSpan(s string) (int, int) {
	end := strings.TrimRight(s, " \t.,;")
	if !strings.HasSuffix(end, ")") {
		return -1, -1
	}
	closeIdx := len(end) - 1

	depth := 0
	for i := closeIdx; i >= 0; i-- {
		switch end[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				if i < closeIdx {
					return i, closeIdx
				}
				return -1, -1
			}
		}
	}
	return -1, -1
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsAny(s string, markers []string) bool {
	lower := strings.ToLower(s)
	for _, mk := range markers {
		if strings.Contains(lower, mk) {
			return true
		}
	}
	return false
}
