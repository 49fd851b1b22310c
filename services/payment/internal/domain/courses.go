package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ParseCourseIDs разбирает course_ids из тела запроса: JSON массив
// чисел или строк, либо строка "3,5".
func ParseCourseIDs(raw json.RawMessage) ([]int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, InvalidInputf("course_ids обязательны")
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, InvalidInputf("course_ids: %v", err)
		}
		return ParseCourseIDList(s)

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, InvalidInputf("course_ids: %v", err)
		}
		ids := make([]int64, 0, len(items))
		for _, item := range items {
			id, err := parseCourseID(strings.Trim(string(bytes.TrimSpace(item)), `"`))
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return NormalizeCourseIDs(ids)

	default:
		return nil, InvalidInputf("course_ids должны быть массивом или строкой")
	}
}

// ParseCourseIDList разбирает список вида "3,5" (формат notes шлюза).
func ParseCourseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := parseCourseID(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return NormalizeCourseIDs(ids)
}

// FormatCourseIDs сериализует список для notes шлюза: "3,5".
func FormatCourseIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// NormalizeCourseIDs убирает дубли с сохранением порядка.
// Пустой список и неположительные id — ошибка.
func NormalizeCourseIDs(ids []int64) ([]int64, error) {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, InvalidInputf("некорректный id курса %d", id)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, InvalidInputf("course_ids обязательны")
	}
	return out, nil
}

func parseCourseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, InvalidInputf("некорректный id курса %q", s)
	}
	if id <= 0 {
		return 0, InvalidInputf("некорректный id курса %d", id)
	}
	return id, nil
}
