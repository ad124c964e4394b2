package postgres

import (
	"fmt"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
)

// columnTypes задает тип колонки для каждого поля записи
var columnTypes = map[string]string{
	entity.FieldTimestamp: "TEXT NOT NULL",
	entity.FieldUUID:      "TEXT NOT NULL",
	entity.FieldBus:       "TEXT NOT NULL",
	entity.FieldTemp:      "DOUBLE PRECISION NOT NULL",
	entity.FieldUtilAIP:   "DOUBLE PRECISION NOT NULL",
	entity.FieldUtilMem:   "DOUBLE PRECISION NOT NULL",
	entity.FieldMemTotal:  "DOUBLE PRECISION NOT NULL",
	entity.FieldMemFree:   "DOUBLE PRECISION NOT NULL",
	entity.FieldMemUsed:   "DOUBLE PRECISION NOT NULL",
	entity.FieldPower:     "DOUBLE PRECISION NOT NULL",
	entity.FieldSerial:    "TEXT NOT NULL",
	entity.FieldIndex:     "INTEGER NOT NULL",
}

// ToRow конвертирует запись в аргументы INSERT в порядке схемы
func ToRow(record entity.Record, schema []string) ([]any, error) {
	values := make(map[string]any, len(schema))
	for _, p := range record.Points() {
		values[p.Field] = p.Value
	}

	row := make([]any, len(schema))
	for i, field := range schema {
		v, ok := values[field]
		if !ok {
			return nil, fmt.Errorf("unknown field %q", field)
		}
		row[i] = v
	}
	return row, nil
}
