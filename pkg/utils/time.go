package utils

import (
	"time"
)

// time.go - утилиты для работы со временем
//
// Используются для:
// - дневных лимитов гардрейлов (счётчик ордеров с начала дня)
// - временных бакетов в idempotency key оркестратора

// ============================================================
// Границы периодов
// ============================================================

// GetDayStart возвращает начало текущего дня (00:00:00) в UTC
func GetDayStart() time.Time {
	return GetDayStartFrom(time.Now().UTC())
}

// GetDayStartFrom возвращает начало дня для указанного времени в UTC
func GetDayStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ============================================================
// Временные бакеты
// ============================================================

// TimeBucket возвращает номер бакета размера size для момента t
//
// Все моменты внутри одного бакета дают один номер - на этом
// построен time-bucketed idempotency key: повторная оценка того же
// сигнала внутри бакета детерминированно даёт тот же ключ.
//
// Пример:
//
//	TimeBucket(t, 5*time.Minute) // 12:03:17 и 12:04:59 → один бакет
func TimeBucket(t time.Time, size time.Duration) int64 {
	if size <= 0 {
		return t.UTC().Unix()
	}
	return t.UTC().Unix() / int64(size.Seconds())
}

// PercentChange возвращает изменение цены в процентах относительно base
//
// Используется ценовым гейтом троттлинга. Для base <= 0 возвращает 0.
func PercentChange(base, current float64) float64 {
	if base <= 0 {
		return 0
	}
	change := (current - base) / base * 100
	if change < 0 {
		return -change
	}
	return change
}
