package domain

import "time"

// TimelineEvent — одна запись аудиторского следа заказа: смена статуса,
// резерв купона, результат платежа. Reason заполняется только там, где
// у перехода есть человекочитаемая причина (отмена, отклонённый платёж).
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}

// NewTimelineEvent создаёт запись с текущим временем.
func NewTimelineEvent(orderID, eventType, reason string) TimelineEvent {
	return TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	}
}
