package storage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"histdata/internal/model"
)

func getTime(rec model.Record, field string) (time.Time, error) {
	v, ok := rec[field]
	if !ok || v == nil {
		return time.Time{}, fmt.Errorf("storage: field %q absent", field)
	}
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("storage: field %q is not a time.Time (got %T)", field, v)
	}
	return t, nil
}

func getOptTime(rec model.Record, field string) *time.Time {
	v, ok := rec[field]
	if !ok || v == nil {
		return nil
	}
	if t, ok := v.(time.Time); ok {
		return &t
	}
	return nil
}

func getDecimal(rec model.Record, field string) (decimal.Decimal, error) {
	v, ok := rec[field]
	if !ok || v == nil {
		return decimal.Decimal{}, fmt.Errorf("storage: field %q absent", field)
	}
	d, ok := v.(decimal.Decimal)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("storage: field %q is not a decimal (got %T)", field, v)
	}
	return d, nil
}

func getOptDecimal(rec model.Record, field string) *decimal.Decimal {
	v, ok := rec[field]
	if !ok || v == nil {
		return nil
	}
	if d, ok := v.(decimal.Decimal); ok {
		return &d
	}
	return nil
}

func getUint32(rec model.Record, field string) (uint32, error) {
	v, ok := rec[field]
	if !ok || v == nil {
		return 0, fmt.Errorf("storage: field %q absent", field)
	}
	switch t := v.(type) {
	case uint32:
		return t, nil
	case uint64:
		return uint32(t), nil
	case int:
		return uint32(t), nil
	default:
		return 0, fmt.Errorf("storage: field %q is not an integer (got %T)", field, v)
	}
}

func getOptUint32(rec model.Record, field string) *uint32 {
	v, ok := rec[field]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case uint32:
		return &t
	case uint64:
		n := uint32(t)
		return &n
	}
	return nil
}

func getUint16(rec model.Record, field string) (uint16, error) {
	v, ok := rec[field]
	if !ok || v == nil {
		return 0, nil
	}
	switch t := v.(type) {
	case uint16:
		return t, nil
	case uint32:
		return uint16(t), nil
	case uint64:
		return uint16(t), nil
	default:
		return 0, fmt.Errorf("storage: field %q is not an integer (got %T)", field, v)
	}
}

func getUint64(rec model.Record, field string) (uint64, error) {
	v, ok := rec[field]
	if !ok || v == nil {
		return 0, nil
	}
	switch t := v.(type) {
	case uint64:
		return t, nil
	case uint32:
		return uint64(t), nil
	case int:
		return uint64(t), nil
	default:
		return 0, fmt.Errorf("storage: field %q is not an integer (got %T)", field, v)
	}
}

func getOptUint64(rec model.Record, field string) *uint64 {
	v, ok := rec[field]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case uint64:
		return &t
	case uint32:
		n := uint64(t)
		return &n
	}
	return nil
}

func getInt32(rec model.Record, field string, def int32) int32 {
	v, ok := rec[field]
	if !ok || v == nil {
		return def
	}
	if n, ok := v.(int32); ok {
		return n
	}
	return def
}

func getOptInt32(rec model.Record, field string) *int32 {
	v, ok := rec[field]
	if !ok || v == nil {
		return nil
	}
	if n, ok := v.(int32); ok {
		return &n
	}
	return nil
}
