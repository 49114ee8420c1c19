package exchange

import (
	"context"
	"errors"
	"net"
	"net/http"

	"tradegate/internal/models"
)

// Коды ошибок биржи, значимые для классификации
const (
	codeUnknown           = -1000
	codeRateLimited       = -1003
	codeInvalidTimestamp  = -1021
	codeInvalidSignature  = -1022
	codeInsufficientFunds = -2010
)

// classification - исход классификации: код причины для интента
// и допустимость повтора
type classification struct {
	reason    string
	retryable bool
}

// classifyExchangeError сопоставляет ошибку биржи причине отказа
//
// Классификация только по кодам, не по тексту сообщения: текст
// биржа меняет без предупреждения, коды - контракт.
func classifyExchangeError(e *ExchangeError) classification {
	switch e.Code {
	case codeInvalidSignature, codeInvalidTimestamp:
		return classification{reason: models.ReasonSignatureError, retryable: false}
	case codeInsufficientFunds:
		return classification{reason: models.ReasonInsufficientFunds, retryable: false}
	case codeRateLimited:
		return classification{reason: models.ReasonRateLimited, retryable: true}
	}

	switch {
	case e.HTTPStatus == http.StatusTooManyRequests:
		return classification{reason: models.ReasonRateLimited, retryable: true}
	case e.HTTPStatus >= 500:
		return classification{reason: models.ReasonUnknownExchangeError, retryable: true}
	case isRejectedStatus(e.HTTPStatus):
		return classification{reason: models.ReasonExchangeRejected, retryable: false}
	}

	return classification{reason: models.ReasonUnknownExchangeError, retryable: true}
}

// isRejectedStatus - статусы, которые повтор не исправит.
// Остальные 4xx (408 и прочие транзиентные) уходят в retry как
// неизвестные сбои.
func isRejectedStatus(status int) bool {
	switch status {
	case http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// ClassifyError переводит произвольную ошибку вызова биржи в код
// причины для записи в интент
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return classifyExchangeError(exErr).reason
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return models.ReasonTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.ReasonTimeout
	}

	return models.ReasonUnknownExchangeError
}

// IsRetryableError сообщает можно ли повторить вызов после ошибки
//
// Таймауты и сетевые сбои повторяемы: сам запрос идемпотентен
// на стороне биржи благодаря clientOrderId.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return classifyExchangeError(exErr).retryable
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	return true
}
