package dto

import "github.com/dreschagin/aip-monitor/internal/domain/entity"

// Echo - необязательный результат цикла сбора.
// Пустой Echo (None) отличается от Echo с пустой пачкой записей.
type Echo struct {
	records []entity.Record
	present bool
}

// Some возвращает Echo с пачкой записей
func Some(records []entity.Record) Echo {
	if records == nil {
		records = []entity.Record{}
	}
	return Echo{records: records, present: true}
}

// None возвращает пустой Echo
func None() Echo {
	return Echo{}
}

// Records возвращает записи и признак их наличия
func (e Echo) Records() ([]entity.Record, bool) {
	return e.records, e.present
}

// IsPresent сообщает, были ли записи запрошены
func (e Echo) IsPresent() bool {
	return e.present
}
