package domain

import "strings"

// Caption は1枚のミーム画像に載せる上下テキストの組です。
// どちらのスロットも空を許容し、1回の描画呼び出しの間だけ存在します。
type Caption struct {
	Top    string
	Bottom string
}

// IsEmpty は両スロットとも描画対象のテキストがないことを判定します。
// 空白のみの文字列は「テキストなし」として扱います。
func (c Caption) IsEmpty() bool {
	return strings.TrimSpace(c.Top) == "" && strings.TrimSpace(c.Bottom) == ""
}
