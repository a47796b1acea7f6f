package dynamic

import "strconv"

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// LiveRoomURL is the public page for a live room.
func LiveRoomURL(roomID int64) string {
	if roomID <= 0 {
		return ""
	}
	return "https://live.bilibili.com/" + formatInt(roomID)
}
