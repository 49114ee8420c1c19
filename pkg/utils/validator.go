package utils

import (
	"fmt"
	"strings"
)

// validator.go - валидация входных данных пайплайна
//
// Некорректный вход - ошибка программирования вызывающей стороны,
// такие ошибки пробрасываются наверх, а не превращаются в SKIPPED.

// NormalizeSymbol приводит символ к каноническому виду (BTCUSDT)
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidateSymbol проверяет что символ непустой и выглядит как тикер
func ValidateSymbol(symbol string) error {
	s := NormalizeSymbol(symbol)
	if s == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(s) > 20 {
		return fmt.Errorf("symbol %q too long", symbol)
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return fmt.Errorf("symbol %q contains invalid character %q", symbol, r)
		}
	}
	return nil
}

// ValidateSide проверяет сторону сигнала/ордера
func ValidateSide(side string) error {
	if side != "BUY" && side != "SELL" {
		return fmt.Errorf("side must be BUY or SELL, got %q", side)
	}
	return nil
}

// ValidatePrice проверяет что цена положительная
func ValidatePrice(price float64) error {
	if price <= 0 {
		return fmt.Errorf("price must be positive, got %f", price)
	}
	return nil
}
