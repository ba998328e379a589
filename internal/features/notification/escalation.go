package notification

// importantCategories always warrant an out-of-band copy.
var importantCategories = map[string]struct{}{
	CategoryAttendance: {},
	CategoryLeave:      {},
	CategoryAccount:    {},
	CategoryPayroll:    {},
	CategorySystem:     {},
}

// ShouldEscalate decides, once per notification, whether the secondary
// channel is attempted in addition to push.
func ShouldEscalate(p Payload) bool {
	if _, ok := importantCategories[p.Category]; ok {
		return true
	}
	switch p.Type {
	case NotificationTypeError, NotificationTypeWarning, NotificationTypeSuccess:
		return true
	}
	return false
}
