package service

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
	"github.com/dreschagin/aip-monitor/internal/domain/valueobject"
)

// Normalize приводит сырое показание к канонической записи (Domain Service).
// Функция тотальная: любое отсутствующее или некорректное поле заменяется
// на -1 или "unknown", ошибка не возвращается.
func Normalize(raw valueobject.RawReading) entity.Record {
	return entity.Record{
		Timestamp: SanitizeText(lookup(raw, valueobject.KeyTimestamp)),
		UUID:      SanitizeText(lookup(raw, valueobject.KeyUUID)),
		Bus:       SanitizeText(lookup(raw, valueobject.KeyBus)),
		Temp:      SanitizeNumber(lookup(raw, valueobject.KeyTemperature)),
		UtilAIP:   SanitizeNumber(lookup(raw, valueobject.KeyUtilizationAIP)),
		UtilMem:   SanitizeNumber(lookup(raw, valueobject.KeyUtilizationMem)),
		MemTotal:  SanitizeNumber(lookup(raw, valueobject.KeyMemoryTotal)),
		MemFree:   SanitizeNumber(lookup(raw, valueobject.KeyMemoryFree)),
		MemUsed:   SanitizeNumber(lookup(raw, valueobject.KeyMemoryUsed)),
		Power:     SanitizeNumber(lookup(raw, valueobject.KeyPower)),
		Serial:    SanitizeText(lookup(raw, valueobject.KeySerial)),
		Index:     SanitizeIndex(lookup(raw, valueobject.KeyIndex)),
	}
}

// NormalizeAll нормализует пачку показаний, сохраняя порядок
func NormalizeAll(raws []valueobject.RawReading) []entity.Record {
	records := make([]entity.Record, 0, len(raws))
	for _, raw := range raws {
		records = append(records, Normalize(raw))
	}
	return records
}

func lookup(raw valueobject.RawReading, key string) any {
	v, _ := raw.Lookup(key)
	return v
}

// SanitizeNumber превращает значение в конечное число или -1.
// У строк обрезаются пробелы и суффиксы "%" и "C".
func SanitizeNumber(v any) float64 {
	var f float64

	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int8:
		f = float64(val)
	case int16:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	case uint:
		f = float64(val)
	case uint8:
		f = float64(val)
	case uint16:
		f = float64(val)
	case uint32:
		f = float64(val)
	case uint64:
		f = float64(val)
	case string:
		parsed, ok := parseNumericText(val)
		if !ok {
			return valueobject.Sentinel
		}
		f = parsed
	default:
		return valueobject.Sentinel
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return valueobject.Sentinel
	}
	return f
}

func parseNumericText(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	s = strings.TrimSpace(strings.TrimSuffix(s, "C"))
	if s == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// SanitizeText превращает значение в непустую строку или "unknown"
func SanitizeText(v any) string {
	var s string

	switch val := v.(type) {
	case string:
		s = strings.TrimSpace(val)
	case time.Time:
		if val.IsZero() {
			return valueobject.Unknown
		}
		s = valueobject.FormatTimestamp(val)
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return valueobject.Unknown
		}
		s = strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return valueobject.Unknown
	}

	if s == "" {
		return valueobject.Unknown
	}
	return s
}

// SanitizeIndex возвращает целый индекс устройства или -1.
// Отрицательные и большие MaxInt32 значения считаются некорректными для любого типа.
func SanitizeIndex(v any) int {
	switch val := v.(type) {
	case int:
		return boundIndex(int64(val))
	case int32:
		return boundIndex(int64(val))
	case int64:
		return boundIndex(val)
	case uint:
		return boundIndex(int64(min(val, math.MaxInt32+1)))
	case uint32:
		return boundIndex(int64(val))
	}

	f := SanitizeNumber(v)
	if f != math.Trunc(f) {
		return int(valueobject.Sentinel)
	}
	return boundIndex(int64(max(min(f, math.MaxInt32+1), -1)))
}

func boundIndex(n int64) int {
	if n < 0 || n > math.MaxInt32 {
		return int(valueobject.Sentinel)
	}
	return int(n)
}
