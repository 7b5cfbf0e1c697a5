package ratelimit

import "strconv"

// small helpers for consistent header formatting without pulling in fmt

func itoa(v int) string { return strconv.Itoa(v) }

func i64toa(v int64) string { return strconv.FormatInt(v, 10) }
