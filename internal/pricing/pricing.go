// Package pricing содержит чистые функции расчёта цен групповых занятий,
// комиссии платформы и заработка учителя. Все суммы в центах, деление
// целочисленное с усечением на каждом шаге.
package pricing

import "errors"

// ErrInvalidGroupSize возвращается для размера группы вне {2, 3}
var ErrInvalidGroupSize = errors.New("invalid group size")

const (
	// Комиссия платформы: 12.5% от фактически собранных денег
	commissionNumerator   = 125
	commissionDenominator = 1000

	// Цена за участника как доля эталонной ставки
	pairPricePercent = 60 // группа из 2: каждый платит 60%
	trioPricePercent = 45 // группа из 3: каждый платит 45%
)

// ParticipantPrice возвращает цену одного участника для группы
// указанного размера от эталонной почасовой ставки учителя.
func ParticipantPrice(referenceCents int64, groupSize int) (int64, error) {
	switch groupSize {
	case 2:
		return referenceCents * pairPricePercent / 100, nil
	case 3:
		return referenceCents * trioPricePercent / 100, nil
	default:
		return 0, ErrInvalidGroupSize
	}
}

// TotalCollected возвращает сумму, собранную с полной группы.
// Считается через цену участника, а не одним умножением:
// усечение на каждом шаге должно совпадать с фактическими списаниями.
func TotalCollected(referenceCents int64, groupSize int) (int64, error) {
	perParticipant, err := ParticipantPrice(referenceCents, groupSize)
	if err != nil {
		return 0, err
	}
	return perParticipant * int64(groupSize), nil
}

// Commission возвращает комиссию платформы с собранной суммы
func Commission(collectedCents int64) int64 {
	return collectedCents * commissionNumerator / commissionDenominator
}

// TeacherEarnings возвращает заработок учителя с собранной суммы
func TeacherEarnings(collectedCents int64) int64 {
	return collectedCents - Commission(collectedCents)
}

// SavingsPercent возвращает процент экономии участника относительно
// индивидуального занятия. Информационное значение, 0 для прочих размеров.
func SavingsPercent(groupSize int) int {
	switch groupSize {
	case 2:
		return 100 - pairPricePercent
	case 3:
		return 100 - trioPricePercent
	default:
		return 0
	}
}
