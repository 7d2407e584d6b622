package domain

import "strings"

const (
	// MarkerPrefix はページ本文に埋め込むマーカーコメントの開始部分
	MarkerPrefix = "<!-- ping update"

	// markerSuffix はHTMLコメントの終端
	markerSuffix = "-->"

	// TimestampLayout はマーカーに埋め込むタイムスタンプの書式（秒精度）
	TimestampLayout = "2006-01-02 15:04:05"
)

// NewMarker は指定したタイムスタンプのマーカーコメントを生成します
func NewMarker(timestamp string) string {
	return MarkerPrefix + " " + timestamp + " " + markerSuffix
}

// PatchMarker はページ本文のマーカーを新しいタイムスタンプに置き換えます
//
// 最初に現れるマーカーのみを対象とし、その開始位置以降で最初の "-->" までを置換します。
// マーカーが存在しない場合、または "-->" で閉じられていない場合は本文末尾に改行付きで追記します。
// 閉じられていない断片はそのまま残るため、マーカーが重複することがあります。
func PatchMarker(currentText, timestamp string) string {
	newMarker := NewMarker(timestamp)

	start := strings.Index(currentText, MarkerPrefix)
	if start == -1 {
		return currentText + "\n" + newMarker
	}

	end := strings.Index(currentText[start:], markerSuffix)
	if end == -1 {
		return currentText + "\n" + newMarker
	}
	end += start + len(markerSuffix)

	return currentText[:start] + newMarker + currentText[end:]
}
