package entity

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/dreschagin/aip-monitor/internal/domain/valueobject"
)

// Имена полей канонической записи
const (
	FieldTimestamp = "timestamp"
	FieldUUID      = "uuid"
	FieldBus       = "bus"
	FieldTemp      = "temp"
	FieldUtilAIP   = "util_aip"
	FieldUtilMem   = "util_mem"
	FieldMemTotal  = "mem_total"
	FieldMemFree   = "mem_free"
	FieldMemUsed   = "mem_used"
	FieldPower     = "power"
	FieldSerial    = "serial"
	FieldIndex     = "index"
)

// RecordFields задает схему экспорта. Порядок одинаков для заголовка CSV,
// ключей JSON и суффиксов удаленного лога.
var RecordFields = []string{
	FieldTimestamp,
	FieldUUID,
	FieldBus,
	FieldTemp,
	FieldUtilAIP,
	FieldUtilMem,
	FieldMemTotal,
	FieldMemFree,
	FieldMemUsed,
	FieldPower,
	FieldSerial,
	FieldIndex,
}

// Record - каноническая запись метрик одного устройства за один цикл.
// Числовые поля конечны либо равны -1, текстовые поля не пустые.
// Порядок полей структуры совпадает с RecordFields.
type Record struct {
	Timestamp string  `json:"timestamp"`
	UUID      string  `json:"uuid"`
	Bus       string  `json:"bus"`
	Temp      float64 `json:"temp"`
	UtilAIP   float64 `json:"util_aip"`
	UtilMem   float64 `json:"util_mem"`
	MemTotal  float64 `json:"mem_total"`
	MemFree   float64 `json:"mem_free"`
	MemUsed   float64 `json:"mem_used"`
	Power     float64 `json:"power"`
	Serial    string  `json:"serial"`
	Index     int     `json:"index"`
}

// Point - одно поле записи с именем
type Point struct {
	Field string
	Value any
}

// Points возвращает поля записи в порядке RecordFields
func (r Record) Points() []Point {
	return []Point{
		{FieldTimestamp, r.Timestamp},
		{FieldUUID, r.UUID},
		{FieldBus, r.Bus},
		{FieldTemp, r.Temp},
		{FieldUtilAIP, r.UtilAIP},
		{FieldUtilMem, r.UtilMem},
		{FieldMemTotal, r.MemTotal},
		{FieldMemFree, r.MemFree},
		{FieldMemUsed, r.MemUsed},
		{FieldPower, r.Power},
		{FieldSerial, r.Serial},
		{FieldIndex, r.Index},
	}
}

// Values возвращает текстовые значения полей в порядке RecordFields (для CSV)
func (r Record) Values() []string {
	points := r.Points()
	values := make([]string, len(points))
	for i, p := range points {
		values[i] = formatValue(p.Value)
	}
	return values
}

// Numeric возвращает только числовые поля (float64) в порядке RecordFields
func (r Record) Numeric() []Point {
	return []Point{
		{FieldTemp, r.Temp},
		{FieldUtilAIP, r.UtilAIP},
		{FieldUtilMem, r.UtilMem},
		{FieldMemTotal, r.MemTotal},
		{FieldMemFree, r.MemFree},
		{FieldMemUsed, r.MemUsed},
		{FieldPower, r.Power},
	}
}

// DeviceID возвращает uuid устройства. Устройства без uuid различаются
// по индексу: "index-<N>".
func (r Record) DeviceID() string {
	if r.UUID == "" || r.UUID == valueobject.Unknown {
		return "index-" + strconv.Itoa(r.Index)
	}
	return r.UUID
}

// PointSet возвращает набор точек с ключами, пространственно разделенными
// по устройству: "<uuid>/temp", "<uuid>/util_aip" и т.д.
func (r Record) PointSet() PointSet {
	id := r.DeviceID()
	points := r.Points()
	set := PointSet{Namespace: id, Points: make([]Point, len(points))}
	for i, p := range points {
		set.Points[i] = Point{Field: id + "/" + p.Field, Value: p.Value}
	}
	return set
}

// PointSet - упорядоченный набор ключ-значение одного устройства
type PointSet struct {
	Namespace string
	Points    []Point
}

// keys возвращает ключи в порядке добавления
func (s PointSet) keys() []string {
	keys := make([]string, len(s.Points))
	for i, p := range s.Points {
		keys[i] = p.Field
	}
	return keys
}

// MarshalJSON кодирует набор как JSON-объект с сохранением порядка ключей
func (s PointSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range s.Points {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Field)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	default:
		return ""
	}
}
