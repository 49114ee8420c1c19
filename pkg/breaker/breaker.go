package breaker

import (
	"errors"
	"sync"
	"time"
)

// Breaker - circuit breaker по скользящему окну отказов
//
// Состояния:
// - closed: вызовы проходят, отказы накапливаются в окне Window
// - open:   при failures >= FailureThreshold внутри окна; вызовы
//           отклоняются на время Cooldown без обращения к зависимости
// - после истечения Cooldown breaker снова closed; первый успех
//   полностью очищает историю отказов
//
// Один экземпляр на внешнюю зависимость (биржа, нотификатор),
// разделяется всеми вызовами - иначе счётчик отказов теряется.
// Потокобезопасен.
//
// Контракт вызывающего кода: IsOpen() проверяется ПЕРЕД каждым
// вызовом зависимости, обходить проверку нельзя.
type Breaker struct {
	name string
	cfg  Config

	mu       sync.Mutex
	failures []time.Time // скользящее окно отказов
	openedAt *time.Time

	now func() time.Time // подменяется в тестах
}

// Config - конфигурация circuit breaker
type Config struct {
	// FailureThreshold - количество отказов в окне, открывающее breaker
	FailureThreshold int

	// Window - ширина скользящего окна отказов
	Window time.Duration

	// Cooldown - время, на которое вызовы отклоняются после открытия
	Cooldown time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию:
// 5 отказов за 5 минут → открытие на 2 минуты
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Window:           5 * time.Minute,
		Cooldown:         2 * time.Minute,
	}
}

// ErrOpen возвращается вызывающим кодом когда breaker открыт
var ErrOpen = errors.New("circuit breaker is open")

// New создаёт breaker для зависимости name
func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Minute
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 2 * time.Minute
	}
	return &Breaker{
		name: name,
		cfg:  cfg,
		now:  time.Now,
	}
}

// Name возвращает имя зависимости
func (b *Breaker) Name() string {
	return b.name
}

// IsOpen возвращает true если вызовы сейчас отклоняются
//
// По истечении Cooldown breaker закрывается сам; накопленное окно
// отказов при этом сохраняется до первого успеха - мигающая
// зависимость снова откроет breaker быстрее.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openedAt == nil {
		return false
	}

	if b.now().Sub(*b.openedAt) < b.cfg.Cooldown {
		return true
	}

	// Cooldown истёк - закрываемся
	b.openedAt = nil
	return false
}

// RecordFailure фиксирует отказ зависимости
//
// Открывает breaker когда количество отказов в окне достигает порога.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.pruneLocked(now)
	b.failures = append(b.failures, now)

	if b.openedAt == nil && len(b.failures) >= b.cfg.FailureThreshold {
		opened := now
		b.openedAt = &opened
	}
}

// RecordSuccess фиксирует успешный вызов и полностью сбрасывает
// историю отказов
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = nil
	b.openedAt = nil
}

// FailureCount возвращает число отказов в текущем окне
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pruneLocked(b.now())
	return len(b.failures)
}

// pruneLocked выкидывает отказы, вышедшие за окно. Вызывается под lock'ом.
func (b *Breaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.Window)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = kept
}

// ============================================================
// Registry - breakers по именам зависимостей
// ============================================================

// Registry хранит по одному breaker на зависимость
//
// Гарантирует что все вызовы одной зависимости разделяют
// состояние отказов.
type Registry struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry создаёт реестр с общей конфигурацией
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		breakers: make(map[string]*Breaker),
	}
}

// Get возвращает breaker для зависимости, создавая при первом обращении
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[name]
	if !ok {
		b = New(name, r.cfg)
		r.breakers[name] = b
	}
	return b
}
